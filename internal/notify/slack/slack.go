// Package slack sends red triage alerts to the care team via Slack incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/aftercare/internal/triage"
)

const (
	maxSuggestionsLen = 3000
	httpTimeout       = 10 * time.Second
)

// Notifier sends triage results to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}
}

// Send posts a triage result to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
// Patient answers are never included in the message.
func (n *Notifier) Send(ctx context.Context, result *triage.Result) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(result)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info(ctx, "slack notification delivered",
		"triage_id", result.ID,
		"severity", string(result.Severity),
		"duration", time.Since(start).Seconds(),
	)
	return nil
}

func buildMessage(r *triage.Result) map[string]any {
	return map[string]any{
		"text": fallbackText(r),
		"blocks": []map[string]any{
			headerBlock(r),
			{"type": "divider"},
			fieldsBlock(r),
			{"type": "divider"},
			suggestionsBlock(r),
			{"type": "divider"},
			contextBlock(r),
		},
	}
}

// fallbackText is shown in push notifications, where blocks are not rendered.
func fallbackText(r *triage.Result) string {
	return fmt.Sprintf("%s check-in from patient %s (%s)", severityLabel(r.Severity), r.PatientID, r.FormID)
}

func headerBlock(r *triage.Result) map[string]any {
	text := fmt.Sprintf("%s %s check-in: %s", severityEmoji(r.Severity), severityLabel(r.Severity), r.FormID)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": truncate(text, 150),
		},
	}
}

func fieldsBlock(r *triage.Result) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Patient:* %s", escape(r.PatientID)),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Form:* %s", escape(r.FormID)),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Severity:* %s", r.Severity),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Rules matched:* %d of %d", r.MatchedRules, r.RulesEvaluated),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Submitted:* %s", r.SubmittedAt.UTC().Format("2006-01-02 15:04 UTC")),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Response:* %s", escape(r.ResponseID)),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func suggestionsBlock(r *triage.Result) map[string]any {
	var b strings.Builder
	for _, s := range r.Suggestions {
		fmt.Fprintf(&b, "%s %s\n", severityEmoji(s.Severity), escape(s.Text))
	}
	text := truncate(strings.TrimRight(b.String(), "\n"), maxSuggestionsLen)
	if text == "" {
		text = "_No suggested actions configured._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Suggested actions*\n\n%s", text),
		},
	}
}

func contextBlock(r *triage.Result) map[string]any {
	ts := r.CreatedAt
	if ts.IsZero() {
		ts = r.SubmittedAt
	}

	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("aftercare • triage %s • %s", r.ID, ts.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func severityEmoji(s triage.Severity) string {
	switch s.Normalize() {
	case triage.SeverityRed:
		return "\U0001f534" // red circle
	case triage.SeverityYellow:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func severityLabel(s triage.Severity) string {
	switch s.Normalize() {
	case triage.SeverityRed:
		return "Red"
	case triage.SeverityYellow:
		return "Yellow"
	default:
		return "Green"
	}
}

var mrkdwnEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// escape neutralizes Slack control sequences such as <!channel> in free text.
func escape(s string) string {
	return mrkdwnEscaper.Replace(s)
}

// truncate shortens s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
