package cfg

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = ".dbugger.config"

// EnvPrefix prefixes environment overrides, e.g. DBUGGER_SLACK_WEBHOOK_URL.
const EnvPrefix = "DBUGGER"

// Defaults for optional settings.
const (
	DefaultModel          = "claude-sonnet-4-20250514"
	DefaultQuietPeriod    = 5 * time.Second
	DefaultWindowMaxLines = 200
	DefaultAITimeout      = 60 * time.Second
	DefaultPM2Bin         = "pm2"
)

// ErrConfigNotFound is returned by Load when the config file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// Config is the per-project dbugger configuration file.
type Config struct {
	ProcessName     string        `mapstructure:"pm2_process_name"`
	ErrorKeywords   []string      `mapstructure:"error_keywords"`
	SlackWebhookURL string        `mapstructure:"slack_webhook_url"`
	SlackChannel    string        `mapstructure:"slack_channel"`
	AnthropicAPIKey string        `mapstructure:"anthropic_api_key"`
	AnthropicModel  string        `mapstructure:"anthropic_model"`
	QuietPeriod     time.Duration `mapstructure:"quiet_period"`
	WindowMaxLines  int           `mapstructure:"window_max_lines"`
	AITimeout       time.Duration `mapstructure:"ai_timeout"`
	LogPaths        []string      `mapstructure:"log_paths"`
	PM2Bin          string        `mapstructure:"pm2_bin"`
	RepoDir         string        `mapstructure:"repo_dir"`
}

func setDefaults(v *viper.Viper) {
	// every key gets a default so AutomaticEnv can override it
	v.SetDefault("pm2_process_name", "")
	v.SetDefault("error_keywords", []string{})
	v.SetDefault("slack_webhook_url", "")
	v.SetDefault("slack_channel", "")
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("anthropic_model", DefaultModel)
	v.SetDefault("quiet_period", DefaultQuietPeriod)
	v.SetDefault("window_max_lines", DefaultWindowMaxLines)
	v.SetDefault("ai_timeout", DefaultAITimeout)
	v.SetDefault("log_paths", []string{})
	v.SetDefault("pm2_bin", DefaultPM2Bin)
	v.SetDefault("repo_dir", "")
}

// Load reads the JSON config file at path, applies defaults and DBUGGER_*
// environment overrides, and validates the result. A relative path is
// resolved against the working directory.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultFile
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, abs)
		}
		return nil, fmt.Errorf("stat config: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(abs)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", abs, err)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", abs, err)
	}
	c.normalize()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", abs, err)
	}
	return &c, nil
}

func (c *Config) normalize() {
	c.ProcessName = strings.TrimSpace(c.ProcessName)
	c.LogPaths = compact(c.LogPaths)
}

func compact(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks all configuration fields for correctness.
func (c *Config) Validate() error {
	var errs []error

	if c.ProcessName == "" {
		errs = append(errs, errors.New("pm2_process_name is required"))
	}

	hasKeyword := false
	for _, k := range c.ErrorKeywords {
		if k != "" {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword {
		errs = append(errs, errors.New("error_keywords must contain at least one non-empty keyword"))
	}

	if c.QuietPeriod <= 0 {
		errs = append(errs, fmt.Errorf("invalid quiet_period %s (must be > 0)", c.QuietPeriod))
	}
	if c.WindowMaxLines <= 0 {
		errs = append(errs, fmt.Errorf("invalid window_max_lines %d (must be > 0)", c.WindowMaxLines))
	}
	if c.AITimeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid ai_timeout %s (must be > 0)", c.AITimeout))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Warnings lists settings that are valid but disable part of the pipeline.
func (c *Config) Warnings() []string {
	var w []string
	if c.SlackWebhookURL == "" {
		w = append(w, "slack_webhook_url is empty, incidents cannot be delivered")
	}
	if c.AnthropicAPIKey == "" {
		w = append(w, "anthropic_api_key is empty, AI analysis is disabled")
	}
	return w
}
