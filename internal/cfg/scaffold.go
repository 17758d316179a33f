package cfg

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// example is written by Scaffold. Only the keys an operator must edit are
// included; everything else falls back to defaults.
type example struct {
	ProcessName     string   `json:"pm2_process_name"`
	SlackWebhookURL string   `json:"slack_webhook_url"`
	SlackChannel    string   `json:"slack_channel"`
	ErrorKeywords   []string `json:"error_keywords"`
	AnthropicAPIKey string   `json:"anthropic_api_key"`
	AnthropicModel  string   `json:"anthropic_model"`
}

// ScaffoldResult reports what Scaffold changed.
type ScaffoldResult struct {
	ConfigPath       string
	ConfigCreated    bool
	GitignoreUpdated bool
}

// Scaffold writes an example DefaultFile into dir unless one exists, and
// makes sure dir/.gitignore lists it.
func Scaffold(dir string) (*ScaffoldResult, error) {
	res := &ScaffoldResult{ConfigPath: filepath.Join(dir, DefaultFile)}

	switch _, err := os.Stat(res.ConfigPath); {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		body, err := json.MarshalIndent(example{
			ProcessName:     "your_process_name",
			SlackWebhookURL: "your_slack_webhook_url",
			SlackChannel:    "your_slack_channel",
			ErrorKeywords:   []string{"error", "exception", "fail", "StripeInvalidRequestError"},
			AnthropicAPIKey: "your_anthropic_api_key",
			AnthropicModel:  DefaultModel,
		}, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal example config: %w", err)
		}
		// the file holds credentials
		if err := os.WriteFile(res.ConfigPath, append(body, '\n'), 0o600); err != nil {
			return nil, fmt.Errorf("write config: %w", err)
		}
		res.ConfigCreated = true
	default:
		return nil, fmt.Errorf("stat config: %w", err)
	}

	updated, err := ensureIgnored(filepath.Join(dir, ".gitignore"), DefaultFile)
	if err != nil {
		return nil, err
	}
	res.GitignoreUpdated = updated
	return res, nil
}

func ensureIgnored(path, entry string) (bool, error) {
	content, err := os.ReadFile(path) //nolint:gosec // G304: fixed name inside the target dir
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("read .gitignore: %w", err)
	}
	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) == entry {
			return false, nil
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G302: .gitignore is meant to be readable
	if err != nil {
		return false, fmt.Errorf("open .gitignore: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteString("\n" + entry + "\n"); err != nil {
		return false, fmt.Errorf("append .gitignore: %w", err)
	}
	return true, nil
}
