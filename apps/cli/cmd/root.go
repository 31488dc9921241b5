package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/playspec/packages/browser"
	"github.com/abdul-hamid-achik/playspec/packages/core/config"
	"github.com/abdul-hamid-achik/playspec/packages/core/parser"
	"github.com/abdul-hamid-achik/playspec/packages/logging"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFlag    string
	noConfigFlag  bool
	setFlags      []string
	envFileFlag   string
	verboseFlag   int // 0=off, 1=-v, 2=-vv, 3=-vvv
	noColorFlag   bool
	logFormatFlag string
)

var rootCmd = &cobra.Command{
	Use:   "playspec",
	Short: "Browser and API checks with a clean lifecycle.",
	Long: `playspec runs UI checks in real browsers and API checks over HTTP.

Every check gets its own isolated browser, bound to it alone. Failed
checks are screenshotted before their browser is closed, and settings
resolve from --set overrides, then environment variables, then the
settings file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// exitCode maps an error returned by a command to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}

	var missing *config.MissingError
	var unsupported *browser.UnsupportedEngineError
	var parseErr *parser.ParseError
	switch {
	case errors.As(err, &missing), errors.As(err, &unsupported):
		return ExitConfigError
	case errors.As(err, &parseErr):
		return ExitParseError
	default:
		return ExitTestFailure
	}
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		var exit *exitError
		if !errors.As(err, &exit) || exit.err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(exitCode(err))
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFlag, "config", getEnvString("PLAYSPEC_CONFIG", ""), "Path to settings file (env: PLAYSPEC_CONFIG)")
	flags.BoolVar(&noConfigFlag, "no-config", getEnvBool("PLAYSPEC_NO_CONFIG", false), "Run without a settings file, from environment and --set only (env: PLAYSPEC_NO_CONFIG)")
	flags.StringArrayVar(&setFlags, "set", nil, "Override a setting, key=value (repeatable)")
	flags.StringVar(&envFileFlag, "env-file", getEnvString("PLAYSPEC_ENV_FILE", ""), "Path to .env file read as environment variables (env: PLAYSPEC_ENV_FILE)")
	flags.CountVarP(&verboseFlag, "verbose", "v", "Verbose logging (-v, -vv, -vvv for more detail)")
	flags.BoolVar(&noColorFlag, "no-color", getEnvBool("PLAYSPEC_NO_COLOR", false), "Disable colored output (env: PLAYSPEC_NO_COLOR)")
	flags.StringVar(&logFormatFlag, "log-format", getEnvString("PLAYSPEC_LOG_FORMAT", "text"), "Log format: text, json, raw (env: PLAYSPEC_LOG_FORMAT)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func newLogger(cmd *cobra.Command) (*logrus.Logger, error) {
	return logging.New(logging.Options{
		Verbosity: verboseFlag,
		NoColor:   noColorFlag,
		Format:    logFormatFlag,
		Output:    cmd.ErrOrStderr(),
	})
}

// parseSets turns repeated key=value flags into an override map.
func parseSets(sets []string) (map[string]string, error) {
	overrides := make(map[string]string, len(sets))
	for _, s := range sets {
		key, value, ok := strings.Cut(s, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, expected key=value", s)
		}
		overrides[key] = strings.TrimSpace(value)
	}
	return overrides, nil
}

// envLookup layers the --env-file values over the process environment.
func envLookup(path string) (func(string) (string, bool), error) {
	if path == "" {
		return os.LookupEnv, nil
	}
	values, err := config.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("env file: %w", err)
	}
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := values[key]
		return v, ok
	}, nil
}

// loadSettings builds the resolver from --config (or the first default
// settings file in the working directory), --env-file and --set. A missing
// settings file is fatal unless --no-config is given.
func loadSettings(log logrus.FieldLogger) (*config.Resolver, error) {
	overrides, err := parseSets(setFlags)
	if err != nil {
		return nil, withExitCode(ExitUsageError, err)
	}
	lookup, err := envLookup(envFileFlag)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	opts := []config.Option{
		config.WithOverrides(overrides),
		config.WithLookupEnv(lookup),
		config.WithLogger(log),
	}

	if noConfigFlag && configFlag == "" {
		log.Debug("Settings file disabled, using environment and overrides only")
		return config.New(nil, opts...), nil
	}
	path, err := config.Locate(configFlag, ".")
	if err != nil {
		return nil, err
	}
	return config.Load(path, opts...)
}
