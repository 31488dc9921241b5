package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/playspec/packages/core/outcome"
	"github.com/abdul-hamid-achik/playspec/packages/core/runner"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, s *Summary) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockNotifier) Name() string {
	return "mock"
}

func results() []*runner.RunResult {
	return []*runner.RunResult{
		{
			Suite: "Elements", Passed: 1, Failed: 2,
			Results: []*runner.CheckResult{
				{Name: "page reachable", Outcome: outcome.Success},
				{Name: "text box", Outcome: outcome.Timeout, Diagnostics: true, Error: errors.New("timed out after 10s waiting for #output")},
				{Name: "firefox", Outcome: outcome.Failure, Error: errors.New("text mismatch")},
			},
		},
		{
			Suite: "Users API", Passed: 1, Skipped: 1,
			Results: []*runner.CheckResult{
				{Name: "list users", Outcome: outcome.Success},
				{Name: "single user", Outcome: outcome.Skipped},
			},
		},
	}
}

func TestSummaryFrom(t *testing.T) {
	s := SummaryFrom(results(), 3*time.Second, "https://demoqa.com")

	assert.Equal(t, 2, s.Files)
	assert.Equal(t, 5, s.Checks)
	assert.Equal(t, 2, s.Passed)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.Timeouts)
	require.Len(t, s.Failures, 2)
	assert.Equal(t, FailedCheck{
		Suite: "Elements", Name: "text box", Outcome: "TIMEOUT",
		Error: "timed out after 10s waiting for #output", Screenshot: true,
	}, s.Failures[0])
	assert.Equal(t, "2 check(s) failed", s.title())
}

func TestManager_Policies(t *testing.T) {
	passing := func() *Summary { return &Summary{Checks: 3, Passed: 3} }
	failing := func() *Summary { return &Summary{Checks: 3, Passed: 2, Failed: 1} }

	tests := []struct {
		on      NotifyOn
		summary *Summary
		sent    bool
	}{
		{NotifyAlways, passing(), true},
		{NotifyAlways, failing(), true},
		{NotifyFailure, passing(), false},
		{NotifyFailure, failing(), true},
		{NotifySuccess, passing(), true},
		{NotifySuccess, failing(), false},
		{NotifyRecovery, passing(), false},
		{NotifyRecovery, failing(), true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/failed=%d", tt.on, tt.summary.Failed), func(t *testing.T) {
			n := &mockNotifier{}
			if tt.sent {
				n.On("Notify", mock.Anything, tt.summary).Return(nil).Once()
			}

			require.NoError(t, NewManager(tt.on, n).Notify(context.Background(), tt.summary))
			n.AssertExpectations(t)
			if !tt.sent {
				n.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestManager_Recovery(t *testing.T) {
	n := &mockNotifier{}
	n.On("Notify", mock.Anything, mock.Anything).Return(nil)
	m := NewManager(NotifyRecovery, n)
	m.SetLastState(false)

	s := &Summary{Checks: 1, Passed: 1}
	require.NoError(t, m.Notify(context.Background(), s))

	assert.True(t, s.IsRecovery)
	assert.Equal(t, "Checks recovered", s.title())
	n.AssertNumberOfCalls(t, "Notify", 1)

	// second passing run is not a recovery
	require.NoError(t, m.Notify(context.Background(), &Summary{Checks: 1, Passed: 1}))
	n.AssertNumberOfCalls(t, "Notify", 1)
}

func TestManager_JoinsErrors(t *testing.T) {
	bad := &mockNotifier{}
	bad.On("Notify", mock.Anything, mock.Anything).Return(errors.New("boom"))
	good := &mockNotifier{}
	good.On("Notify", mock.Anything, mock.Anything).Return(nil)

	err := NewManager(NotifyAlways, bad, good).Notify(context.Background(), &Summary{})

	assert.EqualError(t, err, "mock: boom")
	good.AssertExpectations(t)
}

func TestParseNotifyOn(t *testing.T) {
	on, err := ParseNotifyOn(" Recovery ")
	require.NoError(t, err)
	assert.Equal(t, NotifyRecovery, on)

	_, err = ParseNotifyOn("sometimes")
	assert.Error(t, err)
}

func capture(t *testing.T, status int) (*httptest.Server, *map[string]any) {
	t.Helper()
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(status)
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestSlackNotifier(t *testing.T) {
	srv, got := capture(t, http.StatusOK)
	n := NewSlackNotifier(srv.URL, WithSlackChannel("#qa"), WithSlackClient(srv.Client()))

	require.NoError(t, n.Notify(context.Background(), SummaryFrom(results(), time.Second, "")))

	assert.Equal(t, "#qa", (*got)["channel"])
	attachments := (*got)["attachments"].([]any)
	require.Len(t, attachments, 1)
	first := attachments[0].(map[string]any)
	assert.Equal(t, "danger", first["color"])
	assert.Contains(t, first["title"], "2 check(s) failed")
	assert.Contains(t, first["text"], "`Elements` / `text box` TIMEOUT :camera:")
}

func TestSlackNotifier_BadStatus(t *testing.T) {
	srv, _ := capture(t, http.StatusForbidden)
	n := NewSlackNotifier(srv.URL, WithSlackClient(srv.Client()))

	err := n.Notify(context.Background(), &Summary{})

	assert.ErrorContains(t, err, "webhook returned status 403")
}

func TestTeamsNotifier(t *testing.T) {
	srv, got := capture(t, http.StatusAccepted)
	n := NewTeamsNotifier(srv.URL, WithTeamsClient(srv.Client()))

	summary := &Summary{Checks: 2, Passed: 2, Target: "https://demoqa.com"}
	require.NoError(t, n.Notify(context.Background(), summary))

	assert.Equal(t, "message", (*got)["type"])
	card := (*got)["attachments"].([]any)[0].(map[string]any)
	assert.Equal(t, "application/vnd.microsoft.card.adaptive", card["contentType"])
	body := card["content"].(map[string]any)["body"].([]any)
	assert.Equal(t, "All checks passed", body[0].(map[string]any)["text"])
}

func TestSummary_ListedCapsFailures(t *testing.T) {
	s := &Summary{}
	for i := 0; i < maxFailures+3; i++ {
		s.Failures = append(s.Failures, FailedCheck{Name: fmt.Sprint(i)})
	}

	listed, more := s.listed()

	assert.Len(t, listed, maxFailures)
	assert.Equal(t, 3, more)
}
