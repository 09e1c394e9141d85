package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/seanstash/stashd/internal/analyze"
	"github.com/seanstash/stashd/internal/config"
	"github.com/seanstash/stashd/internal/enhance"
	"github.com/seanstash/stashd/internal/provider"
	"github.com/seanstash/stashd/internal/sanitize"
	"github.com/seanstash/stashd/internal/storage"
)

// newLogger builds the structured logger from daemon config.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(cfg.Daemon.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	if cfg.Daemon.LogFile != "" {
		f, err := os.OpenFile(cfg.Daemon.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})), nil
}

// openStore opens the SQLite store at the configured path.
func openStore(paths *config.Paths, logger *slog.Logger) (*storage.SQLiteStore, error) {
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}
	store, err := storage.NewSQLiteStore(paths.DatabaseFile(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

// newWorker wires the provider, analyzer, and enhancement worker from config.
func newWorker(cfg *config.Config, store storage.Store, logger *slog.Logger) *enhance.Worker {
	gemini := provider.NewGeminiProvider(cfg.AI.APIKey,
		provider.WithMaxRetries(cfg.AI.MaxRetries),
		provider.WithTimeout(time.Duration(cfg.AI.RequestTimeoutMs)*time.Millisecond),
	)

	analyzer := analyze.NewAnalyzer(analyze.AnalyzerConfig{
		Store:       store,
		Provider:    gemini,
		Logger:      logger,
		Model:       cfg.AI.Model,
		MaxTokens:   cfg.AI.MaxTokens,
		Temperature: cfg.AI.Temperature,
		CacheTTL:    time.Duration(cfg.Enhance.CacheTTLHours) * time.Hour,
	})

	return enhance.NewWorker(store, analyzer, logger, enhance.Config{
		PollInterval:     time.Duration(cfg.Enhance.PollIntervalMs) * time.Millisecond,
		BatchSize:        cfg.Enhance.BatchSize,
		OwnerDelay:       time.Duration(cfg.Enhance.OwnerDelayMs) * time.Millisecond,
		MaxCandidates:    cfg.Enhance.MaxCandidates,
		GroupSimilar:     cfg.Enhance.GroupSimilar,
		CleanupRedundant: cfg.Enhance.CleanupRedundant,
	})
}

// newSanitizer builds the secret redactor.
func newSanitizer() *sanitize.Sanitizer {
	return sanitize.NewSanitizer()
}

// workerProviderAvailable reports whether an API key is configured
// anywhere the provider will look.
func workerProviderAvailable(cfg *config.Config) bool {
	return cfg.AI.APIKey != "" ||
		os.Getenv("GEMINI_API_KEY") != "" ||
		os.Getenv("GOOGLE_API_KEY") != ""
}

// newIngestFilter builds the capture filter from config.
func newIngestFilter(cfg *config.Config) (*sanitize.Filter, error) {
	filter, err := sanitize.NewFilter(cfg.Ingest.MinLength, cfg.Ingest.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("invalid ingest exclude pattern: %w", err)
	}
	return filter, nil
}
