package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/sjawhar/roomline/internal/llm"
)

// EnvPrefix is the namespace prefix for all roomline environment variables.
const EnvPrefix = "ROOMLINE_"

// Config holds all application configuration. Secrets are loaded exclusively
// from environment variables and never appear in the config file.
type Config struct {
	ListenAddr      string `yaml:"listen_addr" env:"LISTEN_ADDR"`
	DBPath          string `yaml:"db_path" env:"DB_PATH"`
	ArchiveDir      string `yaml:"archive_dir" env:"ARCHIVE_DIR"`
	AudioDir        string `yaml:"audio_dir" env:"AUDIO_DIR"`
	AudioSampleRate int    `yaml:"audio_sample_rate" env:"AUDIO_SAMPLE_RATE"`
	CallIdleTimeout string `yaml:"call_idle_timeout" env:"CALL_IDLE_TIMEOUT"`
	LogLevel        string `yaml:"log_level" env:"LOG_LEVEL"`

	Summary  SummaryConfig  `yaml:"summary" envPrefix:"SUMMARY_"`
	Bus      BusConfig      `yaml:"bus" envPrefix:"BUS_"`
	Orders   OrdersConfig   `yaml:"orders" envPrefix:"ORDERS_"`
	Notify   NotifyConfig   `yaml:"notify" envPrefix:"NOTIFY_"`
	GDrive   GDriveConfig   `yaml:"gdrive" envPrefix:"GDRIVE_"`
	Deepgram DeepgramConfig `yaml:"deepgram" envPrefix:"DEEPGRAM_"`

	// Secrets, env vars only.
	OpenAIAPIKey    string   `yaml:"-" env:"OPENAI_API_KEY"`
	AnthropicAPIKey string   `yaml:"-" env:"ANTHROPIC_API_KEY"`
	GeminiAPIKey    string   `yaml:"-" env:"GEMINI_API_KEY"`
	DeepgramAPIKey  string   `yaml:"-" env:"DEEPGRAM_API_KEY"`
	SMTPPassword    string   `yaml:"-" env:"SMTP_PASSWORD"`
	SlackWebhookURL string   `yaml:"-" env:"SLACK_WEBHOOK_URL"`
	StaffTokens     []string `yaml:"-" env:"STAFF_TOKENS" envSeparator:","`
}

type SummaryConfig struct {
	// Model is "provider/name", e.g. "openai/gpt-4o-mini".
	Model           string `yaml:"model" env:"MODEL"`
	DefaultLanguage string `yaml:"default_language" env:"DEFAULT_LANGUAGE"`
	ForceHeuristic  bool   `yaml:"force_heuristic" env:"FORCE_HEURISTIC"`
	Timeout         string `yaml:"timeout" env:"TIMEOUT"`
	MaxConcurrent   int    `yaml:"max_concurrent" env:"MAX_CONCURRENT"`
	MaxPromptTokens int    `yaml:"max_prompt_tokens" env:"MAX_PROMPT_TOKENS"`
	ExtractTimeout  string `yaml:"extract_timeout" env:"EXTRACT_TIMEOUT"`
}

type BusConfig struct {
	Heartbeat  string `yaml:"heartbeat" env:"HEARTBEAT"`
	BufferSize int    `yaml:"buffer_size" env:"BUFFER_SIZE"`
}

type OrdersConfig struct {
	Strict bool `yaml:"strict" env:"STRICT"`
}

type NotifyConfig struct {
	SMTPHost        string   `yaml:"smtp_host" env:"SMTP_HOST"`
	SMTPPort        int      `yaml:"smtp_port" env:"SMTP_PORT"`
	SMTPUsername    string   `yaml:"smtp_username" env:"SMTP_USERNAME"`
	From            string   `yaml:"from" env:"FROM"`
	StaffRecipients []string `yaml:"staff_recipients" env:"STAFF_RECIPIENTS" envSeparator:","`
	SlackChannel    string   `yaml:"slack_channel" env:"SLACK_CHANNEL"`
}

type GDriveConfig struct {
	FolderID        string `yaml:"folder_id" env:"FOLDER_ID"`
	CredentialsFile string `yaml:"credentials_file" env:"CREDENTIALS_FILE"`
	Interval        string `yaml:"interval" env:"INTERVAL"`
}

type DeepgramConfig struct {
	Model    string `yaml:"model" env:"MODEL"`
	Language string `yaml:"language" env:"LANGUAGE"`
}

func defaults() Config {
	return Config{
		ListenAddr:      ":8080",
		DBPath:          "data/roomline.db",
		ArchiveDir:      "data/archive",
		AudioDir:        "data/audio",
		AudioSampleRate: 16000,
		CallIdleTimeout: "2m",
		LogLevel:        "info",
		Summary: SummaryConfig{
			Model:           "openai/gpt-4o-mini",
			DefaultLanguage: "en",
			Timeout:         "30s",
			MaxConcurrent:   4,
			MaxPromptTokens: 6000,
			ExtractTimeout:  "20s",
		},
		Bus:      BusConfig{Heartbeat: "30s", BufferSize: 64},
		Notify:   NotifyConfig{SMTPPort: 587},
		GDrive:   GDriveConfig{CredentialsFile: "./service-account.json", Interval: "5m"},
		Deepgram: DeepgramConfig{Model: "nova-2", Language: "en-US"},
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides and secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix, Environment: setEnv()}); err != nil {
		return cfg, nil, fmt.Errorf("parse environment: %w", err)
	}

	return cfg, validate(&cfg), nil
}

// setEnv returns the environment without empty variables, so an empty
// override never clears a value from the file.
func setEnv() map[string]string {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && v != "" {
			vars[k] = v
		}
	}
	return vars
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func (c *Config) IdleTimeout() time.Duration { return parseDuration(c.CallIdleTimeout, 2*time.Minute) }

func (c *Config) SummaryTimeout() time.Duration { return parseDuration(c.Summary.Timeout, 30*time.Second) }

func (c *Config) ExtractTimeout() time.Duration {
	return parseDuration(c.Summary.ExtractTimeout, 20*time.Second)
}

func (c *Config) Heartbeat() time.Duration { return parseDuration(c.Bus.Heartbeat, 30*time.Second) }

func (c *Config) GDriveInterval() time.Duration { return parseDuration(c.GDrive.Interval, 5*time.Minute) }

func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// APIKey returns the key for a generative provider name.
func (c *Config) APIKey(provider string) string {
	switch provider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	case "gemini":
		return c.GeminiAPIKey
	}
	return ""
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.DeepgramAPIKey == "" {
		warnings = append(warnings, "Deepgram API key not configured: live call transcription is disabled. Set "+EnvPrefix+"DEEPGRAM_API_KEY.")
	}

	if provider, _, err := llm.ParseModel(cfg.Summary.Model); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid summary model %q: summaries use the heuristic fallback.", cfg.Summary.Model))
	} else if cfg.APIKey(provider) == "" {
		warnings = append(warnings, fmt.Sprintf("No API key for %s: summaries use the heuristic fallback. Set %s%s_API_KEY.",
			provider, EnvPrefix, strings.ToUpper(provider)))
	}

	if len(cfg.StaffTokens) == 0 {
		warnings = append(warnings, "No staff tokens configured: staff order endpoints reject every request. Set "+EnvPrefix+"STAFF_TOKENS.")
	}

	durations := []struct {
		name, value, fallback string
	}{
		{"call_idle_timeout", cfg.CallIdleTimeout, "2m"},
		{"summary.timeout", cfg.Summary.Timeout, "30s"},
		{"summary.extract_timeout", cfg.Summary.ExtractTimeout, "20s"},
		{"bus.heartbeat", cfg.Bus.Heartbeat, "30s"},
		{"gdrive.interval", cfg.GDrive.Interval, "5m"},
	}
	for _, d := range durations {
		if v, err := time.ParseDuration(d.value); err != nil || v <= 0 {
			warnings = append(warnings, fmt.Sprintf("Invalid %s %q: using default %s.", d.name, d.value, d.fallback))
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid log_level %q: using info.", cfg.LogLevel))
	}

	if cfg.Notify.SMTPHost != "" && cfg.Notify.From == "" {
		warnings = append(warnings, "notify.smtp_host is set without notify.from: email notifications are disabled.")
	}

	return warnings
}
