package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/playspec/packages/core/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect resolved settings",
	Long: `Inspect settings as playspec resolves them: --set overrides first, then
environment variables (ui.url is read from UI_URL), then the settings file.

Examples:
  playspec config list
  playspec config get ui.url
  UI_URL=https://staging.demoqa.com playspec config get ui.url`,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every known setting and where its value came from",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger(cmd)
		if err != nil {
			return withExitCode(ExitUsageError, err)
		}
		settings, err := loadSettings(log)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE\tSOURCE\tENV")
		for _, s := range settings.Settings() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Key, s.Value, s.Source, config.EnvKey(s.Key))
		}
		return w.Flush()
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the resolved value of one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger(cmd)
		if err != nil {
			return withExitCode(ExitUsageError, err)
		}
		settings, err := loadSettings(log)
		if err != nil {
			return err
		}

		s, ok := settings.Lookup(args[0])
		if !ok {
			return &config.MissingError{Key: args[0]}
		}
		if verboseFlag > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (from %s)\n", s.Value, s.Source)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), s.Value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
}
