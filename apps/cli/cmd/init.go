package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new playspec project",
	Long: `Initialize a new playspec project in the current directory.

This creates:
  - playspec.properties              - Settings file
  - checks/example.playspec.yaml     - Example UI and API checks

Examples:
  playspec init
  playspec init --force`,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleSettings = `# playspec settings. Environment variables (UI_URL, API_KEY, ...) and
# --set key=value override anything here.
ui.url=https://demoqa.com
api.url=https://reqres.in/api
api.key=reqres-free-v1

browser=chrome
browser.chrome=chromium
browser.firefox=firefox
headless=true

viewport.width=1920
viewport.height=1080

timeout.element=10s
timeout.poll=100ms
timeout.navigation=30s

output.dir=playspec-report
`

const exampleSuite = `name: Example
variables:
  fullName: John Doe

checks:
  - name: text box echoes the submitted name
    tags: [smoke, ui]
    steps:
      - open: /text-box
      - fill: {selector: "#userName", text: "{{fullName}}"}
      - click: "#submit"
      - expectText: {selector: "#name", contains: "{{fullName}}"}

  - name: list users
    tags: [smoke, api]
    request:
      method: GET
      url: /users?page=2
    expect:
      - {subject: status, op: equals, value: 200}
      - {subject: data, op: length, value: 6}
    capture:
      - {name: firstId, from: data.0.id}

  - name: fetch first user
    tags: [api]
    depends: [list users]
    request:
      url: /users/{{firstId}}
    expect:
      - {subject: status, op: equals, value: 200}
      - {subject: data.id, op: equals, value: "{{firstId}}"}
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	settingsFile := filepath.Join(cwd, "playspec.properties")
	suiteFile := filepath.Join(cwd, "checks", "example.playspec.yaml")

	if !forceInit {
		for _, f := range []string{settingsFile, suiteFile} {
			if _, err := os.Stat(f); err == nil {
				return fmt.Errorf("file already exists: %s (use --force to overwrite)", f)
			}
		}
	}

	if err := os.WriteFile(settingsFile, []byte(exampleSettings), 0644); err != nil {
		return fmt.Errorf("failed to create settings file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", settingsFile)

	if err := os.MkdirAll(filepath.Dir(suiteFile), 0755); err != nil {
		return fmt.Errorf("failed to create checks directory: %w", err)
	}
	if err := os.WriteFile(suiteFile, []byte(exampleSuite), 0644); err != nil {
		return fmt.Errorf("failed to create example suite: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", suiteFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nplayspec project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'playspec install' once, then 'playspec run checks/'.\n")

	return nil
}
