// Package main provides the hndaily binary entry point.
// hndaily fetches the previous day's top HackerNews stories, translates
// and summarizes them into Chinese, and publishes a daily Markdown digest.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	// Register LLM providers via init()
	_ "github.com/c360studio/hndaily/llm/providers"

	"github.com/c360studio/hndaily/config"
	"github.com/c360studio/hndaily/contentfilter"
	"github.com/c360studio/hndaily/extract"
	"github.com/c360studio/hndaily/fetch"
	"github.com/c360studio/hndaily/hackernews"
	"github.com/c360studio/hndaily/llm"
	"github.com/c360studio/hndaily/metrics"
	"github.com/c360studio/hndaily/publish"
	"github.com/c360studio/hndaily/server"
	"github.com/c360studio/hndaily/store"
	"github.com/c360studio/hndaily/summarize"
	"github.com/c360studio/hndaily/task"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "hndaily"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "HackerNews daily Chinese digest",
		Long: `hndaily turns the previous day's top HackerNews stories into a
Chinese-language Markdown digest.

It fetches candidates from the HackerNews APIs, extracts article
content, translates titles and summarizes bodies and comment threads
through an LLM provider, and publishes the result to a Jekyll
repository, a Telegram channel, or the terminal.`,
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(serveCmd(&logLevel))
	cmd.AddCommand(exportCmd(&logLevel))
	cmd.AddCommand(retryCmd(&logLevel))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func serveCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server with the cron trigger",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(*logLevel, true)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, runner, st, err := buildRunner(ctx, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			srv := server.New(runner, st, cfg.Server.Addr,
				server.WithCronSchedule(cfg.Server.CronSchedule),
				server.WithLogger(logger))

			logger.Info("hndaily ready", "version", Version, "provider", cfg.LLM.Provider)
			return srv.Run(ctx)
		},
	}
}

func exportCmd(logLevel *string) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Run one synchronous trigger invocation",
		Long: `Advances the target date's task by one phase: fetching the candidate
list, processing one batch, or aggregating and publishing. Run it
repeatedly to carry a day to publication.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(*logLevel, false)
			ctx := context.Background()

			_, runner, st, err := buildRunner(ctx, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := runner.RunOnce(ctx, date); err != nil {
				return err
			}

			if date == "" {
				date = task.TargetDate(time.Now())
			}
			snap, err := st.GetSnapshot(ctx, date)
			if err != nil {
				return err
			}
			fmt.Printf("task %s: %s (%d completed, %d pending, %d processing, %d failed)\n",
				snap.Task.Date, snap.Task.Status, snap.Counts.Completed,
				snap.Counts.Pending, snap.Counts.Processing, snap.Counts.Failed)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Target date (YYYY-MM-DD, default: previous UTC day)")
	return cmd
}

func retryCmd(logLevel *string) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Reset a date's failed articles to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(*logLevel, false)
			ctx := context.Background()

			_, runner, st, err := buildRunner(ctx, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			if date == "" {
				date = task.TargetDate(time.Now())
			}
			n, err := runner.RetryFailed(ctx, date)
			if err != nil {
				return err
			}
			fmt.Printf("reset %d articles for %s\n", n, date)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Target date (YYYY-MM-DD, default: previous UTC day)")
	return cmd
}

// setupLogger configures slog: JSON for the long-running server, text for
// one-shot CLI runs.
func setupLogger(logLevel string, json bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// buildRunner loads configuration and wires every component behind the
// state machine.
func buildRunner(ctx context.Context, logger *slog.Logger) (*config.Config, *task.Runner, *store.Store, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.NewLoader(logger).Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	st, err := store.Open(ctx, cfg.Database.URL, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	fetcher := fetch.NewFetcher(fetch.WithLogger(logger))

	pc := cfg.ProviderSettings()
	client, err := llm.NewClient(cfg.LLM.Provider, llm.Settings{
		APIKey:   pc.APIKey,
		Model:    pc.Model,
		SiteURL:  pc.SiteURL,
		SiteName: pc.SiteName,
	}, llm.NewGate())
	if err != nil {
		st.Close()
		return nil, nil, nil, err
	}
	chat := metrics.InstrumentChat(cfg.LLM.Provider, client)

	source := hackernews.NewClient(fetcher, cfg.HN.StoryLimit, cfg.HN.TimeWindowHours,
		hackernews.WithLogger(logger))

	extractOpts := []extract.Option{extract.WithLogger(logger)}
	if cfg.Crawler.URL != "" {
		extractOpts = append(extractOpts, extract.WithCrawler(extract.CrawlerConfig{
			URL:   cfg.Crawler.URL,
			Token: cfg.Crawler.Token,
		}))
	}
	extractor := extract.NewExtractor(fetcher, extractOpts...)

	summarizer := summarize.NewSummarizer(chat, cfg.Summary.MaxLength, cfg.Summary.CommentMaxLength,
		summarize.WithLogger(logger))
	filter := contentfilter.NewFilter(chat, cfg.Filter.Enabled, cfg.Filter.Sensitivity, logger)

	var sinks []publish.Sink
	if cfg.GitHub.Enabled {
		sinks = append(sinks, publish.Sink{
			Publisher: publish.NewGitHubSink(fetcher, cfg.GitHub.Token, cfg.GitHub.Repo, cfg.GitHub.Branch,
				publish.WithGitHubLogger(logger)),
			Hard: true,
		})
	}
	if cfg.Telegram.Enabled {
		sinks = append(sinks, publish.Sink{
			Publisher: publish.NewTelegramSink(fetcher, cfg.Telegram.BotToken, cfg.Telegram.ChannelID,
				cfg.Telegram.BatchSize, publish.WithTelegramLogger(logger)),
		})
	}
	if cfg.LocalTest {
		sinks = append(sinks, publish.Sink{Publisher: publish.NewTerminalSink(nil)})
	}
	fanout := publish.NewFanout(logger, sinks...)

	runner := task.NewRunner(st, source, extractor, summarizer, filter, fanout,
		cfg.Task.BatchSize, task.WithLogger(logger))

	return cfg, runner, st, nil
}
