package slack

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/dbugger/internal/incident"
)

func newRecord(raw string) *incident.Record {
	return &incident.Record{
		ID:          "01JN123",
		ProcessName: "api",
		Branch:      "main",
		User:        "ada",
		Commit:      "abc123 - fix checkout",
		RawLog:      raw,
	}
}

func TestSend_PostsToWebhook(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rec := newRecord("2024-01-01 00:00:05: error X occurred")
	rec.Analysis = "Customer id is null."

	n := New(srv.URL, "#alerts", log.Nop())
	if err := n.Send(context.Background(), rec); err != nil {
		t.Fatalf("Send: %v", err)
	}

	text, _ := got["text"].(string)
	for _, want := range []string{
		"*ERROR IN API*",
		"Customer id is null.",
		"*Branch:* main",
		"*User:* ada",
		"*Commit:* abc123 - fix checkout",
		"```2024-01-01 00:00:05: error X occurred```",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q:\n%s", want, text)
		}
	}
	if got["mrkdwn"] != true {
		t.Errorf("mrkdwn = %v, want true", got["mrkdwn"])
	}
	if got["channel"] != "#alerts" {
		t.Errorf("channel = %v, want #alerts", got["channel"])
	}
}

func TestSend_OmitsChannelWhenUnset(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := New(srv.URL, "", log.Nop()).Send(context.Background(), newRecord("x")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, ok := got["channel"]; ok {
		t.Error("channel should be omitted when not configured")
	}
}

func TestSend_NoWebhook(t *testing.T) {
	t.Parallel()

	err := New("", "", log.Nop()).Send(context.Background(), newRecord("x"))
	if !errors.Is(err, ErrNoWebhook) {
		t.Fatalf("err = %v, want ErrNoWebhook", err)
	}
}

func TestSend_NonOKStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
	}{
		{"server error", http.StatusInternalServerError},
		{"bad request", http.StatusBadRequest},
		{"no content is not success", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("invalid_payload"))
			}))
			defer srv.Close()

			err := New(srv.URL, "", log.Nop()).Send(context.Background(), newRecord("x"))
			if err == nil {
				t.Fatalf("expected error on status %d", tt.status)
			}
			if !strings.Contains(err.Error(), strconv.Itoa(tt.status)) {
				t.Errorf("error = %q, want to contain status code %d", err, tt.status)
			}
		})
	}
}

func TestSend_TransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	if err := New(url, "", log.Nop()).Send(context.Background(), newRecord("x")); err == nil {
		t.Fatal("expected error when webhook is unreachable")
	}
}

func TestBuildMessage_NoAnalysisBlock(t *testing.T) {
	t.Parallel()

	msg := buildMessage(newRecord("boom"))
	want := "*ERROR IN API* :rotating_light:\n*Branch:* main\n*User:* ada\n*Commit:* abc123 - fix checkout\n*Log:*\n\n```boom```"
	if msg != want {
		t.Errorf("message =\n%q\nwant\n%q", msg, want)
	}
}

func TestBuildMessage_TruncatesLogNotHeader(t *testing.T) {
	t.Parallel()

	rec := newRecord(strings.Repeat("x", 50000))
	rec.Analysis = "Short analysis."
	msg := buildMessage(rec)

	if len(msg) > MaxMessageLength {
		t.Errorf("message length = %d, want <= %d", len(msg), MaxMessageLength)
	}
	for _, want := range []string{"*ERROR IN API*", "Short analysis.", "*Branch:* main", "*User:* ada", "*Commit:* abc123 - fix checkout", "*Log:*"} {
		if !strings.Contains(msg, want) {
			t.Errorf("header content %q was lost", want)
		}
	}
	if !strings.HasSuffix(msg, "...```") {
		t.Errorf("expected truncated log to end with ...```, got tail %q", msg[len(msg)-10:])
	}
}

func TestBuildMessage_ExactFitIsNotTruncated(t *testing.T) {
	t.Parallel()

	overhead := len(buildMessage(newRecord("")))
	rec := newRecord(strings.Repeat("y", MaxMessageLength-overhead))
	msg := buildMessage(rec)

	if len(msg) != MaxMessageLength {
		t.Errorf("message length = %d, want %d", len(msg), MaxMessageLength)
	}
	if strings.Contains(msg, "...") {
		t.Error("message that fits exactly should not be truncated")
	}
}

func TestBuildMessage_EscapesBackticks(t *testing.T) {
	t.Parallel()

	msg := buildMessage(newRecord("run `npm start` failed\n```nested```"))

	_, body, ok := strings.Cut(msg, "*Log:*\n\n```")
	if !ok {
		t.Fatalf("missing log fence:\n%s", msg)
	}
	if !strings.HasSuffix(body, "```") {
		t.Fatalf("missing closing fence:\n%s", msg)
	}
	body = strings.TrimSuffix(body, "```")

	for i := 0; i < len(body); i++ {
		if body[i] == '`' && (i == 0 || body[i-1] != '\\') {
			t.Fatalf("unescaped backtick at %d in %q", i, body)
		}
	}
}

func TestBuildMessage_TruncationKeepsFenceIntact(t *testing.T) {
	t.Parallel()

	// every cut point lands inside an escape sequence or right after one
	for pad := 0; pad < 4; pad++ {
		rec := newRecord(strings.Repeat("a", pad) + strings.Repeat("`", 40000))
		msg := buildMessage(rec)

		if len(msg) > MaxMessageLength {
			t.Errorf("pad %d: length = %d", pad, len(msg))
		}
		if !strings.HasSuffix(msg, "...```") {
			t.Errorf("pad %d: closing fence damaged: %q", pad, msg[len(msg)-12:])
		}
		if strings.HasSuffix(msg, "\\...```") {
			t.Errorf("pad %d: dangling escape before ellipsis", pad)
		}
	}
}

func TestBuildMessage_OversizedHeaderStillBounded(t *testing.T) {
	t.Parallel()

	rec := newRecord("log")
	rec.Analysis = strings.Repeat("z", MaxMessageLength+100)

	msg := buildMessage(rec)
	if len(msg) > MaxMessageLength {
		t.Errorf("message length = %d, want <= %d", len(msg), MaxMessageLength)
	}
	if !strings.HasSuffix(msg, "...") {
		t.Error("expected final safety truncation marker")
	}
}

func TestRuneCut(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 3, "hel"},
		{"hello", 10, "hello"},
		{"héllo", 2, "h"},
		{"héllo", 3, "hé"},
		{"x", 0, ""},
		{"x", -1, ""},
	}
	for _, tt := range tests {
		if got := runeCut(tt.in, tt.n); got != tt.want {
			t.Errorf("runeCut(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestTrimDanglingEscape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{`abc`, `abc`},
		{`abc\`, `abc`},
		{`abc\\`, `abc\\`},
		{`abc\\\`, `abc\\`},
		{``, ``},
	}
	for _, tt := range tests {
		if got := trimDanglingEscape(tt.in); got != tt.want {
			t.Errorf("trimDanglingEscape(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func FuzzBuildMessage(f *testing.F) {
	f.Add("api", "analysis", "2024-01-01 00:00:00: error\n  at x")
	f.Add("", "", "")
	f.Add("proc", "*bold* _italic_", "```code``` and `tick` \\")
	f.Add("p\x00", "a\tb", strings.Repeat("é`", 30000))
	f.Add(strings.Repeat("P", 100), strings.Repeat("A", 5000), strings.Repeat("\\`", 25000))

	f.Fuzz(func(t *testing.T, process, analysis, raw string) {
		rec := &incident.Record{
			ProcessName: process,
			Branch:      "b",
			User:        "u",
			Commit:      "c",
			RawLog:      raw,
			Analysis:    analysis,
		}

		msg := buildMessage(rec)
		if len(msg) > MaxMessageLength {
			t.Fatalf("message length = %d, want <= %d", len(msg), MaxMessageLength)
		}
		if utf8.ValidString(raw) && utf8.ValidString(process) && utf8.ValidString(analysis) && !utf8.ValidString(msg) {
			t.Fatal("truncation produced invalid UTF-8")
		}
		if _, err := json.Marshal(payload{Text: msg, Mrkdwn: true}); err != nil {
			t.Fatalf("payload not marshalable: %v", err)
		}
	})
}
