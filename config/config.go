// Package config provides configuration loading and management for hndaily.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Provider names accepted for LLMConfig.Provider.
const (
	ProviderDeepSeek   = "deepseek"
	ProviderOpenRouter = "openrouter"
	ProviderZhipu      = "zhipu"
)

// Sensitivity levels accepted for FilterConfig.Sensitivity.
const (
	SensitivityLow    = "low"
	SensitivityMedium = "medium"
	SensitivityHigh   = "high"
)

// Config represents the complete hndaily configuration.
type Config struct {
	LLM       LLMConfig      `yaml:"llm"`
	HN        HNConfig       `yaml:"hackernews"`
	Summary   SummaryConfig  `yaml:"summary"`
	Task      TaskConfig     `yaml:"task"`
	Filter    FilterConfig   `yaml:"content_filter"`
	GitHub    GitHubConfig   `yaml:"github"`
	Telegram  TelegramConfig `yaml:"telegram"`
	Crawler   CrawlerConfig  `yaml:"crawler"`
	Server    ServerConfig   `yaml:"server"`
	Database  DatabaseConfig `yaml:"database"`
	LocalTest bool           `yaml:"local_test_mode"`
}

// LLMConfig selects the chat-completion backend and its credentials.
type LLMConfig struct {
	// Provider is one of "deepseek", "openrouter", "zhipu".
	Provider   string         `yaml:"provider" validate:"required,oneof=deepseek openrouter zhipu"`
	DeepSeek   ProviderConfig `yaml:"deepseek"`
	OpenRouter ProviderConfig `yaml:"openrouter"`
	Zhipu      ProviderConfig `yaml:"zhipu"`
}

// ProviderConfig holds per-provider credentials and request attributes.
type ProviderConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
	// SiteURL and SiteName are OpenRouter attribution headers; ignored elsewhere.
	SiteURL  string `yaml:"site_url"`
	SiteName string `yaml:"site_name"`
}

// HNConfig configures the HackerNews source adapter.
type HNConfig struct {
	// StoryLimit truncates the day's candidate set.
	StoryLimit int `yaml:"story_limit" validate:"min=1,max=100"`
	// TimeWindowHours is the candidate window ending at day end (UTC).
	TimeWindowHours int `yaml:"time_window_hours" validate:"min=1,max=168"`
}

// SummaryConfig configures the translator/summarizer.
type SummaryConfig struct {
	// MaxLength is the target length, in characters, of article summaries.
	MaxLength int `yaml:"max_length" validate:"min=50,max=1000"`
	// CommentMaxLength is the target length of comment digests.
	CommentMaxLength int `yaml:"comment_max_length" validate:"min=50,max=1000"`
}

// TaskConfig configures the batch executor.
type TaskConfig struct {
	// BatchSize is the number of pending articles claimed per trigger.
	BatchSize int `yaml:"batch_size" validate:"min=1,max=10"`
	// MaxRetryCount bounds LLM and extractor retries.
	MaxRetryCount int `yaml:"max_retry_count" validate:"min=0,max=10"`
}

// FilterConfig configures the optional content classifier.
type FilterConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Sensitivity string `yaml:"sensitivity" validate:"oneof=low medium high"`
}

// GitHubConfig configures the Git publisher.
type GitHubConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	// Repo is "owner/repo".
	Repo   string `yaml:"repo"`
	Branch string `yaml:"branch"`
}

// TelegramConfig configures the chat publisher.
type TelegramConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
	// BatchSize controls how many messages are sent between delays.
	BatchSize int `yaml:"batch_size" validate:"min=1,max=10"`
}

// CrawlerConfig configures the optional headless-crawler fallback for
// article extraction. Empty URL disables the fallback.
type CrawlerConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// ServerConfig configures the HTTP surface and the in-process trigger.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// CronSchedule is the in-process trigger schedule (cron syntax).
	CronSchedule string `yaml:"cron_schedule"`
}

// DatabaseConfig configures the task store.
type DatabaseConfig struct {
	// URL is a PostgreSQL DSN.
	URL string `yaml:"url"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			DeepSeek:   ProviderConfig{Model: "deepseek-chat"},
			OpenRouter: ProviderConfig{Model: "deepseek/deepseek-chat"},
			Zhipu:      ProviderConfig{Model: "glm-4-flash"},
		},
		HN: HNConfig{
			StoryLimit:      30,
			TimeWindowHours: 24,
		},
		Summary: SummaryConfig{
			MaxLength:        300,
			CommentMaxLength: 300,
		},
		Task: TaskConfig{
			BatchSize:     6,
			MaxRetryCount: 3,
		},
		Filter: FilterConfig{
			Enabled:     false,
			Sensitivity: SensitivityMedium,
		},
		GitHub: GitHubConfig{
			Branch: "main",
		},
		Telegram: TelegramConfig{
			BatchSize: 2,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			CronSchedule: "*/10 * * * *",
		},
	}
}

// structValidator checks range and enum tags on Config.
var structValidator = validator.New()

// Validate checks the configuration and reports every problem in a single
// error, one line per violation.
func (c *Config) Validate() error {
	var problems []string

	if err := structValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, ve := range verrs {
				problems = append(problems, describeFieldError(ve))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}

	// The selected provider must have a key.
	switch c.LLM.Provider {
	case ProviderDeepSeek:
		if c.LLM.DeepSeek.APIKey == "" {
			problems = append(problems, "LLM_DEEPSEEK_API_KEY is required when LLM_PROVIDER=deepseek")
		}
	case ProviderOpenRouter:
		if c.LLM.OpenRouter.APIKey == "" {
			problems = append(problems, "LLM_OPENROUTER_API_KEY is required when LLM_PROVIDER=openrouter")
		}
	case ProviderZhipu:
		if c.LLM.Zhipu.APIKey == "" {
			problems = append(problems, "LLM_ZHIPU_API_KEY is required when LLM_PROVIDER=zhipu")
		}
	}

	if c.GitHub.Enabled {
		if c.GitHub.Token == "" {
			problems = append(problems, "GITHUB_TOKEN is required when GITHUB_ENABLED=true")
		}
		if c.GitHub.Repo == "" {
			problems = append(problems, "TARGET_REPO is required when GITHUB_ENABLED=true")
		} else if !strings.Contains(c.GitHub.Repo, "/") {
			problems = append(problems, fmt.Sprintf("TARGET_REPO %q must be owner/repo", c.GitHub.Repo))
		}
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			problems = append(problems, "TELEGRAM_BOT_TOKEN is required when TELEGRAM_ENABLED=true")
		}
		if c.Telegram.ChannelID == "" {
			problems = append(problems, "TELEGRAM_CHANNEL_ID is required when TELEGRAM_ENABLED=true")
		}
	}

	// At least one publisher unless test mode supplies the terminal sink.
	if !c.GitHub.Enabled && !c.Telegram.Enabled && !c.LocalTest {
		problems = append(problems, "no publisher enabled: set GITHUB_ENABLED, TELEGRAM_ENABLED, or LOCAL_TEST_MODE")
	}

	if c.Database.URL == "" {
		problems = append(problems, "DATABASE_URL is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

// describeFieldError renders one validator violation in env-variable terms.
func describeFieldError(ve validator.FieldError) string {
	field := fieldEnvName(ve.Namespace())
	switch ve.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, ve.Param())
	case "min":
		return fmt.Sprintf("%s must be >= %s", field, ve.Param())
	case "max":
		return fmt.Sprintf("%s must be <= %s", field, ve.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, ve.Tag())
	}
}

// fieldEnvName maps a validator namespace to the env variable users set.
func fieldEnvName(ns string) string {
	names := map[string]string{
		"Config.LLM.Provider":             "LLM_PROVIDER",
		"Config.HN.StoryLimit":            "HN_STORY_LIMIT",
		"Config.HN.TimeWindowHours":       "HN_TIME_WINDOW_HOURS",
		"Config.Summary.MaxLength":        "SUMMARY_MAX_LENGTH",
		"Config.Summary.CommentMaxLength": "COMMENT_SUMMARY_MAX_LENGTH",
		"Config.Task.BatchSize":           "TASK_BATCH_SIZE",
		"Config.Task.MaxRetryCount":       "MAX_RETRY_COUNT",
		"Config.Filter.Sensitivity":       "CONTENT_FILTER_SENSITIVITY",
		"Config.Telegram.BatchSize":       "TELEGRAM_BATCH_SIZE",
	}
	if name, ok := names[ns]; ok {
		return name
	}
	return ns
}

// ProviderSettings returns the settings for the selected provider.
func (c *Config) ProviderSettings() ProviderConfig {
	switch c.LLM.Provider {
	case ProviderOpenRouter:
		return c.LLM.OpenRouter
	case ProviderZhipu:
		return c.LLM.Zhipu
	default:
		return c.LLM.DeepSeek
	}
}

// LoadFromFile loads configuration from a YAML file on top of defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}
