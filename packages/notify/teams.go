package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// TeamsNotifier sends notifications to Microsoft Teams via webhook
type TeamsNotifier struct {
	webhookURL string
	client     *http.Client
}

// TeamsOption is a functional option for TeamsNotifier
type TeamsOption func(*TeamsNotifier)

// WithTeamsClient replaces the HTTP client.
func WithTeamsClient(c *http.Client) TeamsOption {
	return func(t *TeamsNotifier) {
		t.client = c
	}
}

func NewTeamsNotifier(webhookURL string, opts ...TeamsOption) *TeamsNotifier {
	t := &TeamsNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *TeamsNotifier) Name() string {
	return "teams"
}

// teamsMessage wraps an Adaptive Card.
type teamsMessage struct {
	Type        string      `json:"type"`
	Attachments []teamsCard `json:"attachments"`
}

type teamsCard struct {
	ContentType string           `json:"contentType"`
	ContentURL  *string          `json:"contentUrl"`
	Content     teamsCardContent `json:"content"`
}

type teamsCardContent struct {
	Schema  string       `json:"$schema"`
	Type    string       `json:"type"`
	Version string       `json:"version"`
	Body    []teamsBlock `json:"body"`
}

type teamsBlock struct {
	Type      string      `json:"type"`
	Size      string      `json:"size,omitempty"`
	Weight    string      `json:"weight,omitempty"`
	Text      string      `json:"text,omitempty"`
	Color     string      `json:"color,omitempty"`
	Wrap      bool        `json:"wrap,omitempty"`
	Facts     []teamsFact `json:"facts,omitempty"`
	Spacing   string      `json:"spacing,omitempty"`
	Separator bool        `json:"separator,omitempty"`
}

type teamsFact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

func (t *TeamsNotifier) Notify(ctx context.Context, summary *Summary) error {
	color := "good"
	if summary.Failed > 0 {
		color = "attention"
	}

	facts := []teamsFact{
		{Title: "Checks", Value: fmt.Sprint(summary.Checks)},
		{Title: "Passed", Value: fmt.Sprint(summary.Passed)},
		{Title: "Failed", Value: fmt.Sprint(summary.Failed)},
		{Title: "Timeouts", Value: fmt.Sprint(summary.Timeouts)},
		{Title: "Skipped", Value: fmt.Sprint(summary.Skipped)},
		{Title: "Duration", Value: summary.Duration.Round(time.Millisecond).String()},
	}
	if summary.Target != "" {
		facts = append(facts, teamsFact{Title: "Target", Value: summary.Target})
	}

	body := []teamsBlock{
		{Type: "TextBlock", Size: "Large", Weight: "Bolder", Text: summary.title(), Color: color},
		{Type: "FactSet", Facts: facts, Separator: true, Spacing: "Medium"},
	}

	failures, more := summary.listed()
	if len(failures) > 0 {
		body = append(body, teamsBlock{Type: "TextBlock", Text: "**Failed checks:**", Separator: true, Spacing: "Medium"})
		for _, fc := range failures {
			text := fmt.Sprintf("- `%s` / `%s` %s", fc.Suite, fc.Name, fc.Outcome)
			if fc.Error != "" {
				text += ": " + fc.Error
			}
			body = append(body, teamsBlock{Type: "TextBlock", Text: text, Wrap: true})
		}
		if more > 0 {
			body = append(body, teamsBlock{Type: "TextBlock", Text: fmt.Sprintf("_and %d more_", more)})
		}
	}

	body = append(body, teamsBlock{
		Type:      "TextBlock",
		Text:      fmt.Sprintf("_playspec - %s_", time.Now().Format(time.RFC3339)),
		Separator: true,
		Spacing:   "Medium",
	})

	msg := teamsMessage{
		Type: "message",
		Attachments: []teamsCard{{
			ContentType: "application/vnd.microsoft.card.adaptive",
			Content: teamsCardContent{
				Schema:  "http://adaptivecards.io/schemas/adaptive-card.json",
				Type:    "AdaptiveCard",
				Version: "1.2",
				Body:    body,
			},
		}},
	}
	return post(ctx, t.client, t.webhookURL, msg, http.StatusOK, http.StatusAccepted)
}
