package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/playspec/packages/browser"
)

var installCmd = &cobra.Command{
	Use:   "install [engine...]",
	Short: "Download the Playwright driver and browser engines",
	Long: `Download the Playwright driver and the given browser engines.
With no arguments every supported engine is installed.

Examples:
  playspec install
  playspec install chromium firefox
  playspec install chrome --set browser.chrome=chromium`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger(cmd)
		if err != nil {
			return withExitCode(ExitUsageError, err)
		}
		settings, err := loadSettings(log)
		if err != nil {
			return err
		}

		// Logical names such as chrome resolve through the browser mapping.
		engines := make([]string, 0, len(args))
		for _, name := range args {
			engine, err := browser.MapEngine(settings, name)
			if err != nil {
				return err
			}
			engines = append(engines, engine)
		}

		driver := &browser.PlaywrightDriver{Output: cmd.OutOrStdout()}
		if err := driver.Install(engines...); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Browsers installed.")
		return nil
	},
}
