package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/playspec/packages/core/parser"
)

var listCmd = &cobra.Command{
	Use:   "list <file|directory>...",
	Short: "List all checks in playspec suites",
	Long: `List all checks defined in .playspec.yaml suites.

Examples:
  playspec list checks/text-box.playspec.yaml
  playspec list ./checks/`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := parser.FindFiles(args)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("no %s files found", strings.Join(parser.Extensions, " or "))
	}

	for _, file := range files {
		suite, err := parser.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStderr(), "Error parsing %s: %v\n", file, err)
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\n%s (%s):\n", suite.Name, file)
		for _, check := range suite.Checks {
			if check.IsUI() {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s [ui, %d steps]\n", check.Name, len(check.Steps))
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s [api, %s %s]\n", check.Name, check.Request.Method, check.Request.URL)
			}
			if len(check.Tags) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "    tags: %v\n", check.Tags)
			}
			if len(check.Depends) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "    depends: %v\n", check.Depends)
			}
		}
	}

	return nil
}
