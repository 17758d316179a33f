// Package slack sends incident reports to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/linnemanlabs/go-core/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/dbugger/internal/incident"
)

const (
	// MaxMessageLength is kept under Slack's 40000 character limit. Lengths
	// are measured in bytes, which never undercounts characters.
	MaxMessageLength = 39000

	httpTimeout = 10 * time.Second

	ellipsis   = "..."
	logHeading = "*Log:*\n\n"
	fence      = "```"
)

// ErrNoWebhook is returned by Send when no webhook URL is configured.
var ErrNoWebhook = errors.New("slack: no webhook url configured")

// Notifier sends incident records to a Slack webhook.
type Notifier struct {
	webhookURL string
	channel    string
	client     *http.Client
	logger     log.Logger
}

// New creates a new Slack notifier. channel is optional and only honored by
// legacy webhooks.
func New(webhookURL, channel string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		channel:    channel,
		client: &http.Client{
			Timeout:   httpTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

type payload struct {
	Text    string `json:"text"`
	Mrkdwn  bool   `json:"mrkdwn"`
	Channel string `json:"channel,omitempty"`
}

// Send posts an incident to the configured Slack webhook. Only HTTP 200
// counts as delivered.
func (n *Notifier) Send(ctx context.Context, rec *incident.Record) error {
	if n.webhookURL == "" {
		return ErrNoWebhook
	}

	body, err := json.Marshal(payload{
		Text:    buildMessage(rec),
		Mrkdwn:  true,
		Channel: n.channel,
	})
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info(ctx, "slack webhook accepted incident", "incident_id", rec.ID, "bytes", len(body))
	return nil
}

// buildMessage renders the incident as Slack mrkdwn. The log body is the
// only part shortened to fit MaxMessageLength.
func buildMessage(r *incident.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*ERROR IN %s* :rotating_light:\n", strings.ToUpper(r.ProcessName))
	if r.HasAnalysis() {
		fmt.Fprintf(&b, "\n%s\n\n", r.Analysis)
	}
	fmt.Fprintf(&b, "*Branch:* %s\n", r.Branch)
	fmt.Fprintf(&b, "*User:* %s\n", r.User)
	fmt.Fprintf(&b, "*Commit:* %s\n", r.Commit)

	head := b.String()
	room := MaxMessageLength - len(head) - len(logHeading) - 2*len(fence)
	logBody := truncateEscaped(escapeBackticks(r.RawLog), room)

	msg := head + logHeading + fence + logBody + fence
	return truncate(msg, MaxMessageLength)
}

func escapeBackticks(s string) string {
	return strings.ReplaceAll(s, "`", "\\`")
}

// truncateEscaped shortens already-escaped text and never leaves a lone
// escape backslash that would swallow the closing fence.
func truncateEscaped(s string, limit int) string {
	if len(s) <= limit {
		return trimDanglingEscape(s)
	}
	if limit < len(ellipsis) {
		return ""
	}
	return trimDanglingEscape(runeCut(s, limit-len(ellipsis))) + ellipsis
}

func trimDanglingEscape(s string) string {
	if trailing := len(s) - len(strings.TrimRight(s, "\\")); trailing%2 == 1 {
		return s[:len(s)-1]
	}
	return s
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	if limit < len(ellipsis) {
		return runeCut(s, limit)
	}
	return runeCut(s, limit-len(ellipsis)) + ellipsis
}

// runeCut returns the longest prefix of s no longer than n bytes that does
// not split a UTF-8 sequence.
func runeCut(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
