package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SlackNotifier sends notifications to Slack via webhook
type SlackNotifier struct {
	webhookURL string
	channel    string
	username   string
	iconEmoji  string
	client     *http.Client
}

// SlackOption is a functional option for SlackNotifier
type SlackOption func(*SlackNotifier)

// WithSlackChannel sets the Slack channel
func WithSlackChannel(channel string) SlackOption {
	return func(s *SlackNotifier) {
		s.channel = channel
	}
}

// WithSlackClient replaces the HTTP client.
func WithSlackClient(c *http.Client) SlackOption {
	return func(s *SlackNotifier) {
		s.client = c
	}
}

func NewSlackNotifier(webhookURL string, opts ...SlackOption) *SlackNotifier {
	s := &SlackNotifier{
		webhookURL: webhookURL,
		username:   "playspec",
		iconEmoji:  ":performing_arts:",
		client:     &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SlackNotifier) Name() string {
	return "slack"
}

type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text,omitempty"`
	Fields []slackField `json:"fields,omitempty"`
	Footer string       `json:"footer,omitempty"`
	TS     int64        `json:"ts,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

func (s *SlackNotifier) Notify(ctx context.Context, summary *Summary) error {
	color, emoji := "good", ":white_check_mark:"
	switch {
	case summary.Failed > 0:
		color, emoji = "danger", ":x:"
	case summary.IsRecovery:
		emoji = ":tada:"
	}

	fields := []slackField{
		{Title: "Checks", Value: fmt.Sprint(summary.Checks), Short: true},
		{Title: "Passed", Value: fmt.Sprint(summary.Passed), Short: true},
		{Title: "Failed", Value: fmt.Sprint(summary.Failed), Short: true},
		{Title: "Timeouts", Value: fmt.Sprint(summary.Timeouts), Short: true},
		{Title: "Duration", Value: summary.Duration.Round(time.Millisecond).String(), Short: true},
	}
	if summary.Target != "" {
		fields = append(fields, slackField{Title: "Target", Value: summary.Target, Short: true})
	}

	var text strings.Builder
	failures, more := summary.listed()
	if len(failures) > 0 {
		text.WriteString("*Failed checks:*\n")
		for _, fc := range failures {
			fmt.Fprintf(&text, "• `%s` / `%s` %s", fc.Suite, fc.Name, fc.Outcome)
			if fc.Screenshot {
				text.WriteString(" :camera:")
			}
			text.WriteString("\n")
			if fc.Error != "" {
				fmt.Fprintf(&text, "  %s\n", fc.Error)
			}
		}
		if more > 0 {
			fmt.Fprintf(&text, "…and %d more\n", more)
		}
	}

	msg := slackMessage{
		Channel:   s.channel,
		Username:  s.username,
		IconEmoji: s.iconEmoji,
		Attachments: []slackAttachment{{
			Color:  color,
			Title:  fmt.Sprintf("%s %s", emoji, summary.title()),
			Text:   text.String(),
			Fields: fields,
			Footer: "playspec",
			TS:     time.Now().Unix(),
		}},
	}
	return post(ctx, s.client, s.webhookURL, msg, http.StatusOK)
}
