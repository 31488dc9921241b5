package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/playspec/packages/browser"
	"github.com/abdul-hamid-achik/playspec/packages/core/config"
	"github.com/abdul-hamid-achik/playspec/packages/core/parser"
	"github.com/abdul-hamid-achik/playspec/packages/core/runner"
	"github.com/abdul-hamid-achik/playspec/packages/core/testctx"
	"github.com/abdul-hamid-achik/playspec/packages/diagnostics"
	"github.com/abdul-hamid-achik/playspec/packages/history"
	"github.com/abdul-hamid-achik/playspec/packages/metrics"
	"github.com/abdul-hamid-achik/playspec/packages/notify"
	"github.com/abdul-hamid-achik/playspec/packages/output"
)

var runCmd = &cobra.Command{
	Use:   "run <file|directory>...",
	Short: "Run UI and API checks from playspec suites",
	Long: `Run the checks defined in .playspec.yaml suites.

Examples:
  playspec run checks/
  playspec run checks/text-box.playspec.yaml --set browser=firefox
  playspec run checks/ --tags smoke -o junit --output-file report.xml
  playspec run checks/ --parallel --concurrency 4
  playspec run checks/ --threshold "wait visible<2s" --history`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	nameFlag        string
	tagsFlag        string
	outputFlag      string
	outputFileFlag  string
	bailFlag        bool
	parallelFlag    bool
	concurrencyFlag int
	watchFlag       bool
	historyFlag     bool
	thresholdFlags  []string
	dryRunFlag      bool

	// Notification flags
	notifyFlag       string
	notifyOnFlag     string
	slackWebhookFlag string
	slackChannelFlag string
	teamsWebhookFlag string
)

func init() {
	// Selection flags
	runCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Run only checks matching name pattern")
	runCmd.Flags().StringVarP(&tagsFlag, "tags", "t", getEnvString("PLAYSPEC_TAGS", ""), "Run only checks with specified tags (comma-separated) (env: PLAYSPEC_TAGS)")

	// Output flags
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("PLAYSPEC_OUTPUT", "console"), "Output format: console, json, junit, tap, html (env: PLAYSPEC_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("PLAYSPEC_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: PLAYSPEC_OUTPUT_FILE)")

	// Execution flags
	runCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("PLAYSPEC_BAIL", false), "Stop on first failure (env: PLAYSPEC_BAIL)")
	runCmd.Flags().BoolVarP(&parallelFlag, "parallel", "p", getEnvBool("PLAYSPEC_PARALLEL", false), "Run checks in parallel (when no dependencies) (env: PLAYSPEC_PARALLEL)")
	runCmd.Flags().IntVar(&concurrencyFlag, "concurrency", getEnvInt("PLAYSPEC_CONCURRENCY", runner.DefaultConcurrency), "Number of concurrent checks when running in parallel (env: PLAYSPEC_CONCURRENCY)")
	runCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Parse and show what would run without executing")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch files for changes and re-run checks")

	// Reporting flags
	runCmd.Flags().BoolVar(&historyFlag, "history", getEnvBool("PLAYSPEC_HISTORY", false), "Record the run in the history database (env: PLAYSPEC_HISTORY)")
	runCmd.Flags().StringArrayVar(&thresholdFlags, "threshold", nil, "Fail the run when a latency p95 exceeds a bound, e.g. \"wait visible<2s\" (repeatable)")

	// Notification flags
	runCmd.Flags().StringVar(&notifyFlag, "notify", getEnvString("PLAYSPEC_NOTIFY", ""), "Notification services: slack, teams (comma-separated) (env: PLAYSPEC_NOTIFY)")
	runCmd.Flags().StringVar(&notifyOnFlag, "notify-on", getEnvString("PLAYSPEC_NOTIFY_ON", "failure"), "When to notify: always, failure, success, recovery (env: PLAYSPEC_NOTIFY_ON)")
	runCmd.Flags().StringVar(&slackWebhookFlag, "slack-webhook", getEnvString("SLACK_WEBHOOK", ""), "Slack webhook URL (env: SLACK_WEBHOOK)")
	runCmd.Flags().StringVar(&slackChannelFlag, "slack-channel", getEnvString("SLACK_CHANNEL", ""), "Slack channel override (env: SLACK_CHANNEL)")
	runCmd.Flags().StringVar(&teamsWebhookFlag, "teams-webhook", getEnvString("TEAMS_WEBHOOK", ""), "Microsoft Teams webhook URL (env: TEAMS_WEBHOOK)")
}

// newNotifier builds the notification manager from the flags, or nil when
// --notify is empty.
func newNotifier() (*notify.Manager, error) {
	if notifyFlag == "" {
		return nil, nil
	}
	on, err := notify.ParseNotifyOn(notifyOnFlag)
	if err != nil {
		return nil, err
	}

	var notifiers []notify.Notifier
	for _, service := range strings.Split(notifyFlag, ",") {
		switch strings.ToLower(strings.TrimSpace(service)) {
		case "slack":
			if slackWebhookFlag == "" {
				return nil, fmt.Errorf("--slack-webhook is required when using --notify slack")
			}
			var opts []notify.SlackOption
			if slackChannelFlag != "" {
				opts = append(opts, notify.WithSlackChannel(slackChannelFlag))
			}
			notifiers = append(notifiers, notify.NewSlackNotifier(slackWebhookFlag, opts...))
		case "teams":
			if teamsWebhookFlag == "" {
				return nil, fmt.Errorf("--teams-webhook is required when using --notify teams")
			}
			notifiers = append(notifiers, notify.NewTeamsNotifier(teamsWebhookFlag))
		case "":
		default:
			return nil, fmt.Errorf("unknown notification service %q (use slack or teams)", service)
		}
	}
	return notify.NewManager(on, notifiers...), nil
}

// Formatter interface for all output formatters
type Formatter interface {
	FormatResult(result *runner.RunResult)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable interface for formatters that need to flush output
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// MetricsFormatter is implemented by formatters that report latencies.
type MetricsFormatter interface {
	FormatMetrics(summaries []metrics.Summary)
}

func newFormatter(format string, w io.Writer, attachments *output.Attachments) (Formatter, error) {
	switch strings.ToLower(format) {
	case "json":
		opts := []output.JSONOption{output.JSONWithAttachments(attachments)}
		if w != nil {
			opts = append(opts, output.JSONWithWriter(w))
		}
		return output.NewJSONFormatter(opts...), nil
	case "junit":
		opts := []output.JUnitOption{output.JUnitWithAttachments(attachments)}
		if w != nil {
			opts = append(opts, output.JUnitWithWriter(w))
		}
		return output.NewJUnitFormatter(opts...), nil
	case "tap":
		opts := []output.TAPOption{output.TAPWithAttachments(attachments)}
		if w != nil {
			opts = append(opts, output.TAPWithWriter(w))
		}
		return output.NewTAPFormatter(opts...), nil
	case "html":
		opts := []output.HTMLOption{output.HTMLWithAttachments(attachments)}
		if w != nil {
			opts = append(opts, output.HTMLWithWriter(w))
		}
		return output.NewHTMLFormatter(opts...), nil
	case "console", "":
		opts := []output.ConsoleOption{
			output.WithVerbose(verboseFlag > 0),
			output.WithNoColor(noColorFlag),
			output.WithAttachments(attachments),
		}
		if w != nil {
			opts = append(opts, output.WithWriter(w))
		}
		return output.NewConsoleFormatter(opts...), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (use console, json, junit, tap or html)", format)
	}
}

// parseThresholds reads "name<duration" bounds on p95 latency.
func parseThresholds(specs []string) ([]metrics.Threshold, error) {
	thresholds := make([]metrics.Threshold, 0, len(specs))
	for _, s := range specs {
		name, bound, ok := strings.Cut(s, "<")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid threshold %q, expected name<duration", s)
		}
		d, err := time.ParseDuration(strings.TrimSpace(bound))
		if err != nil {
			return nil, fmt.Errorf("invalid threshold %q: %w", s, err)
		}
		thresholds = append(thresholds, metrics.Threshold{Name: name, P95: d})
	}
	return thresholds, nil
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// session holds what one invocation of run shares across files and re-runs.
type session struct {
	cmd         *cobra.Command
	log         *logrus.Logger
	settings    *config.Resolver
	driver      browser.Driver
	store       *testctx.Store
	attachments *output.Attachments
	thresholds  []metrics.Threshold
	notifier    *notify.Manager
	out         io.Writer
}

// summary totals one pass over all files.
type summary struct {
	results   []*runner.RunResult
	passed    int
	failed    int
	skipped   int
	breached  int
	startedAt time.Time
	duration  time.Duration
}

func runCommand(cmd *cobra.Command, args []string) error {
	log, err := newLogger(cmd)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	settings, err := loadSettings(log)
	if err != nil {
		return err
	}

	thresholds, err := parseThresholds(thresholdFlags)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	notifier, err := newNotifier()
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	// Setup output writer
	var out io.Writer
	if outputFileFlag != "" {
		f, err := os.Create(outputFileFlag)
		if err != nil {
			return fmt.Errorf("cannot create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	files, err := parser.FindFiles(args)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	if len(files) == 0 {
		return withExitCode(ExitUsageError, fmt.Errorf("no %s files found", strings.Join(parser.Extensions, " or ")))
	}

	if dryRunFlag {
		return dryRun(cmd, files)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := &session{
		cmd:      cmd,
		log:      log,
		settings: settings,
		driver: &browser.PlaywrightDriver{
			ActionTimeout: settings.ResolveDuration(config.KeyElementTimeout, config.DefaultElementTimeout),
		},
		store:       testctx.NewStore(log),
		attachments: output.NewAttachments(settings.Resolve(config.KeyOutputDir, config.DefaultOutputDir), log),
		thresholds:  thresholds,
		notifier:    notifier,
		out:         out,
	}

	sum, err := s.runAll(ctx, files)
	if err != nil {
		return err
	}
	s.report(ctx, sum)

	if !watchFlag {
		if sum.failed > 0 || sum.breached > 0 {
			return withExitCode(ExitTestFailure, nil)
		}
		return nil
	}

	return s.watch(ctx, args, files)
}

// runAll runs every file once with a fresh formatter and metrics collector.
func (s *session) runAll(ctx context.Context, files []string) (*summary, error) {
	formatter, err := newFormatter(outputFlag, s.out, s.attachments)
	if err != nil {
		return nil, withExitCode(ExitUsageError, err)
	}
	formatter.FormatHeader(version)

	collector := metrics.NewCollector()
	r := runner.NewRunner(runner.Deps{
		Settings:    s.settings,
		Driver:      s.driver,
		Store:       s.store,
		Diagnostics: diagnostics.NewCapturer(s.store, s.attachments, s.log),
		Recorder:    collector,
		Logger:      s.log,
	}, &runner.Config{
		Bail:        bailFlag,
		NameFilter:  nameFlag,
		TagsFilter:  splitTags(tagsFlag),
		Parallel:    parallelFlag,
		Concurrency: concurrencyFlag,
	})

	sum := &summary{startedAt: time.Now()}
	for _, file := range files {
		if ctx.Err() != nil {
			break
		}

		result, err := r.RunFile(ctx, file)
		if err != nil {
			formatter.FormatError(err)
			sum.failed++
			if bailFlag {
				break
			}
			continue
		}

		formatter.FormatResult(result)
		sum.results = append(sum.results, result)
		sum.passed += result.Passed
		sum.failed += result.Failed
		sum.skipped += result.Skipped

		if bailFlag && result.Failed > 0 {
			break
		}
	}
	sum.duration = time.Since(sum.startedAt)

	if mf, ok := formatter.(MetricsFormatter); ok {
		mf.FormatMetrics(collector.Summaries())
	}
	for _, tr := range collector.Evaluate(s.thresholds) {
		if !tr.Passed {
			sum.breached++
			formatter.FormatError(fmt.Errorf("threshold %s: p95 %v exceeds %v", tr.Name, tr.Actual, tr.Expected))
		}
	}

	// Flush output for formatters that accumulate results
	if flushable, ok := formatter.(Flushable); ok {
		if err := flushable.Flush(sum.duration); err != nil {
			return nil, fmt.Errorf("error writing output: %w", err)
		}
	}
	return sum, nil
}

// report records the run in history and sends notifications. Neither can
// fail the run.
func (s *session) report(ctx context.Context, sum *summary) {
	if historyFlag {
		s.record(ctx, sum)
	}
	if s.notifier == nil {
		return
	}
	target := s.settings.Resolve(config.KeyUIURL, s.settings.Resolve(config.KeyAPIURL, ""))
	if err := s.notifier.Notify(ctx, notify.SummaryFrom(sum.results, sum.duration, target)); err != nil {
		s.log.WithError(err).Warn("Notification not sent")
	}
}

func (s *session) record(ctx context.Context, sum *summary) {
	path := s.settings.Resolve(config.KeyHistoryPath, config.DefaultHistoryPath)
	store, err := history.Open(ctx, path)
	if err != nil {
		s.log.WithError(err).WithField("path", path).Warn("History unavailable, run not recorded")
		return
	}
	defer store.Close()

	// The previous run seeds the recovery policy.
	if s.notifier != nil {
		if runs, err := store.Runs(ctx, 1); err == nil && len(runs) == 1 {
			s.notifier.SetLastState(runs[0].Failed == 0)
		}
	}

	run, err := store.Record(ctx, sum.startedAt, sum.duration, sum.results)
	if err != nil {
		s.log.WithError(err).Warn("Run not recorded")
		return
	}
	s.log.WithField("run", run.ID).Info("Run recorded")
}

func dryRun(cmd *cobra.Command, files []string) error {
	for _, file := range files {
		suite, err := parser.ParseFile(file)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Would run: %s\n", file)
		for _, check := range suite.Checks {
			kind := runner.KindAPI
			if check.IsUI() {
				kind = runner.KindUI
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  - [%s] %s\n", kind, check.Name)
		}
	}
	return nil
}

// watch re-runs everything when a suite file changes, until ctx is done.
func (s *session) watch(ctx context.Context, args, files []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Add files and directories to watch
	watchedDirs := make(map[string]bool)
	for _, file := range files {
		dir := filepath.Dir(file)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				s.log.WithError(err).WithField("dir", dir).Warn("Cannot watch directory")
			}
			watchedDirs[dir] = true
		}
	}
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			continue
		}
		_ = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() && !watchedDirs[path] {
				_ = watcher.Add(path)
				watchedDirs[path] = true
			}
			return nil
		})
	}

	stdout := s.cmd.OutOrStdout()
	fmt.Fprintf(stdout, "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	rerun := make(chan string, 1)
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Only react to writes and creates of suite files
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !parser.IsSuiteFile(event.Name) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				select {
				case rerun <- name:
				default:
				}
			})

		case name := <-rerun:
			fmt.Fprintf(stdout, "\n\nFile changed: %s\nRe-running checks...\n\n", name)
			current, err := parser.FindFiles(args)
			if err != nil {
				s.log.WithError(err).Error("Cannot collect suite files")
				continue
			}
			sum, err := s.runAll(ctx, current)
			if err != nil {
				s.log.WithError(err).Error("Re-run failed")
			} else {
				s.report(ctx, sum)
			}
			fmt.Fprintf(stdout, "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.WithError(err).Warn("Watcher error")
		}
	}
}
