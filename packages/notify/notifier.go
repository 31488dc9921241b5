// Package notify posts run summaries to chat webhooks (Slack, Microsoft Teams).
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/playspec/packages/core/outcome"
	"github.com/abdul-hamid-achik/playspec/packages/core/runner"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when checks fail
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when every check passes
	NotifySuccess NotifyOn = "success"
	// NotifyRecovery sends notifications on failures and on the first passing run after one
	NotifyRecovery NotifyOn = "recovery"
)

// ParseNotifyOn accepts the NotifyOn names, case-insensitively.
func ParseNotifyOn(s string) (NotifyOn, error) {
	on := NotifyOn(strings.ToLower(strings.TrimSpace(s)))
	switch on {
	case NotifyAlways, NotifyFailure, NotifySuccess, NotifyRecovery:
		return on, nil
	}
	return "", fmt.Errorf("unknown notify policy %q (use always, failure, success or recovery)", s)
}

// Summary is what a notification reports about one run.
type Summary struct {
	Files      int           `json:"files"`
	Checks     int           `json:"checks"`
	Passed     int           `json:"passed"`
	Failed     int           `json:"failed"`
	Timeouts   int           `json:"timeouts"`
	Skipped    int           `json:"skipped"`
	Duration   time.Duration `json:"duration"`
	Target     string        `json:"target,omitempty"`
	Failures   []FailedCheck `json:"failures,omitempty"`
	IsRecovery bool          `json:"is_recovery,omitempty"`
}

// FailedCheck is one check that did not pass.
type FailedCheck struct {
	Suite      string `json:"suite"`
	Name       string `json:"name"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
	Screenshot bool   `json:"screenshot,omitempty"`
}

// maxFailures bounds how many failures a message lists.
const maxFailures = 10

// SummaryFrom totals run results. target names what was tested, usually ui.url.
func SummaryFrom(results []*runner.RunResult, duration time.Duration, target string) *Summary {
	s := &Summary{Files: len(results), Duration: duration, Target: target}
	for _, rr := range results {
		s.Passed += rr.Passed
		s.Failed += rr.Failed
		s.Skipped += rr.Skipped
		for _, cr := range rr.Results {
			if cr.Outcome == outcome.Timeout {
				s.Timeouts++
			}
			if !cr.Outcome.Failed() {
				continue
			}
			fc := FailedCheck{
				Suite:      rr.Suite,
				Name:       cr.Name,
				Outcome:    cr.Outcome.String(),
				Screenshot: cr.Diagnostics,
			}
			if cr.Error != nil {
				fc.Error = cr.Error.Error()
			}
			s.Failures = append(s.Failures, fc)
		}
	}
	s.Checks = s.Passed + s.Failed + s.Skipped
	return s
}

func (s *Summary) title() string {
	switch {
	case s.Failed > 0:
		return fmt.Sprintf("%d check(s) failed", s.Failed)
	case s.IsRecovery:
		return "Checks recovered"
	default:
		return "All checks passed"
	}
}

// listed returns the failures a message shows and how many were left out.
func (s *Summary) listed() ([]FailedCheck, int) {
	if len(s.Failures) <= maxFailures {
		return s.Failures, 0
	}
	return s.Failures[:maxFailures], len(s.Failures) - maxFailures
}

// Notifier is the interface for notification services
type Notifier interface {
	Notify(ctx context.Context, summary *Summary) error
	Name() string
}

// Manager applies a NotifyOn policy across notifiers.
type Manager struct {
	notifiers []Notifier
	notifyOn  NotifyOn
	lastState bool // true if last run was successful
}

func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		lastState: true,
	}
}

// SetLastState seeds the previous run's result, e.g. from run history.
func (m *Manager) SetLastState(passed bool) {
	m.lastState = passed
}

// Notify sends summary to every notifier when the policy asks for it. Every
// notifier is tried; their errors are joined.
func (m *Manager) Notify(ctx context.Context, summary *Summary) error {
	shouldNotify := false
	currentSuccess := summary.Failed == 0

	switch m.notifyOn {
	case NotifyAlways:
		shouldNotify = true
	case NotifyFailure:
		shouldNotify = !currentSuccess
	case NotifySuccess:
		shouldNotify = currentSuccess
	case NotifyRecovery:
		if !m.lastState && currentSuccess {
			shouldNotify = true
			summary.IsRecovery = true
		}
		if !currentSuccess {
			shouldNotify = true
		}
	}

	m.lastState = currentSuccess

	if !shouldNotify {
		return nil
	}

	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, summary); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}
