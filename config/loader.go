package config

import (
	"log/slog"
	"os"
	"strconv"
)

// ConfigFile is the optional project-level config file, looked up in the
// working directory. Environment variables take precedence over it.
const ConfigFile = "hndaily.yaml"

// Loader handles configuration loading with layered precedence.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new configuration loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. Project config (hndaily.yaml in the working directory)
// 3. Environment variables
//
// The result is validated before being returned.
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()

	if fileConfig, err := LoadFromFile(ConfigFile); err == nil {
		l.logger.Debug("Loaded project config", slog.String("path", ConfigFile))
		config = fileConfig
	} else if !os.IsNotExist(err) {
		l.logger.Warn("Failed to load project config",
			slog.String("path", ConfigFile), slog.String("error", err.Error()))
	}

	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnv overlays recognized environment variables onto config.
func applyEnv(c *Config) {
	setString(&c.LLM.Provider, "LLM_PROVIDER")
	setString(&c.LLM.DeepSeek.APIKey, "LLM_DEEPSEEK_API_KEY")
	setString(&c.LLM.DeepSeek.Model, "LLM_DEEPSEEK_MODEL")
	setString(&c.LLM.OpenRouter.APIKey, "LLM_OPENROUTER_API_KEY")
	setString(&c.LLM.OpenRouter.Model, "LLM_OPENROUTER_MODEL")
	setString(&c.LLM.OpenRouter.SiteURL, "LLM_OPENROUTER_SITE_URL")
	setString(&c.LLM.OpenRouter.SiteName, "LLM_OPENROUTER_SITE_NAME")
	setString(&c.LLM.Zhipu.APIKey, "LLM_ZHIPU_API_KEY")
	setString(&c.LLM.Zhipu.Model, "LLM_ZHIPU_MODEL")

	setInt(&c.HN.StoryLimit, "HN_STORY_LIMIT")
	setInt(&c.HN.TimeWindowHours, "HN_TIME_WINDOW_HOURS")

	setInt(&c.Summary.MaxLength, "SUMMARY_MAX_LENGTH")
	setInt(&c.Summary.CommentMaxLength, "COMMENT_SUMMARY_MAX_LENGTH")

	setInt(&c.Task.BatchSize, "TASK_BATCH_SIZE")
	setInt(&c.Task.MaxRetryCount, "MAX_RETRY_COUNT")

	setBool(&c.Filter.Enabled, "ENABLE_CONTENT_FILTER")
	setString(&c.Filter.Sensitivity, "CONTENT_FILTER_SENSITIVITY")

	setBool(&c.GitHub.Enabled, "GITHUB_ENABLED")
	setString(&c.GitHub.Token, "GITHUB_TOKEN")
	setString(&c.GitHub.Repo, "TARGET_REPO")
	setString(&c.GitHub.Branch, "TARGET_BRANCH")

	setBool(&c.Telegram.Enabled, "TELEGRAM_ENABLED")
	setString(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.Telegram.ChannelID, "TELEGRAM_CHANNEL_ID")
	setInt(&c.Telegram.BatchSize, "TELEGRAM_BATCH_SIZE")

	setBool(&c.LocalTest, "LOCAL_TEST_MODE")

	setString(&c.Crawler.URL, "CRAWLER_API_URL")
	setString(&c.Crawler.Token, "CRAWLER_API_TOKEN")

	setString(&c.Server.Addr, "HTTP_ADDR")
	setString(&c.Server.CronSchedule, "CRON_SCHEDULE")

	setString(&c.Database.URL, "DATABASE_URL")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
