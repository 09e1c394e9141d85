package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the stashd configuration.
type Config struct {
	Daemon  DaemonConfig  `yaml:"daemon"`
	AI      AIConfig      `yaml:"ai"`
	Enhance EnhanceConfig `yaml:"enhance"`
	Ingest  IngestConfig  `yaml:"ingest"`
}

// DaemonConfig holds daemon-related settings.
type DaemonConfig struct {
	ListenAddr string `yaml:"listen_addr"` // HTTP listen address for ingest/status API
	LogLevel   string `yaml:"log_level"`   // debug, info, warn, error
	LogFile    string `yaml:"log_file"`    // Log file path (empty = stderr)
}

// AIConfig holds provider-related settings.
type AIConfig struct {
	Provider         string  `yaml:"provider"`           // Provider name (currently "gemini")
	Model            string  `yaml:"model"`              // Provider-specific model id
	APIKey           string  `yaml:"api_key"`            // Provider API key (env override preferred)
	MaxTokens        int     `yaml:"max_tokens"`         // Max output tokens per request
	Temperature      float64 `yaml:"temperature"`        // Sampling temperature
	MaxRetries       int     `yaml:"max_retries"`        // Transport-level retries on 429/5xx
	RequestTimeoutMs int     `yaml:"request_timeout_ms"` // Per-request timeout
}

// EnhanceConfig holds enhancement worker settings.
type EnhanceConfig struct {
	PollIntervalMs   int  `yaml:"poll_interval_ms"`  // Interval between enhancement passes
	BatchSize        int  `yaml:"batch_size"`        // Commands per owner per pass
	OwnerDelayMs     int  `yaml:"owner_delay_ms"`    // Delay between owners within a pass
	MaxCandidates    int  `yaml:"max_candidates"`    // Max snippet candidates per batch
	GroupSimilar     bool `yaml:"group_similar"`     // Hint the provider to merge related commands
	CleanupRedundant bool `yaml:"cleanup_redundant"` // Delete raw captures superseded by a snippet
	CacheTTLHours    int  `yaml:"cache_ttl_hours"`   // Analysis cache lifetime
}

// IngestConfig holds capture/ingest filter settings.
type IngestConfig struct {
	MinLength       int      `yaml:"min_length"`       // Minimum command length to accept
	ExcludePatterns []string `yaml:"exclude_patterns"` // Regex patterns for commands to drop
	RedactSecrets   bool     `yaml:"redact_secrets"`   // Redact credential-looking tokens
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Daemon: DaemonConfig{
			ListenAddr: "127.0.0.1:8742",
			LogLevel:   "info",
			LogFile:    "",
		},
		AI: AIConfig{
			Provider:         "gemini",
			Model:            "gemini-2.0-flash",
			MaxTokens:        4096,
			Temperature:      0.2,
			MaxRetries:       2,
			RequestTimeoutMs: 30000,
		},
		Enhance: EnhanceConfig{
			PollIntervalMs:   30000,
			BatchSize:        10,
			OwnerDelayMs:     2000,
			MaxCandidates:    3,
			GroupSimilar:     true,
			CleanupRedundant: true,
			CacheTTLHours:    720,
		},
		Ingest: IngestConfig{
			MinLength: 3,
			ExcludePatterns: []string{
				`^cd(\s|$)`,
				`^ls(\s|$)`,
				`^pwd$`,
				`^exit$`,
				`^clear$`,
				`^history(\s|$)`,
				`(?i)password`,
				`(?i)secret`,
				`(?i)token`,
			},
			RedactSecrets: true,
		},
	}
}

// Load loads configuration from the default path.
func Load() (*Config, error) {
	paths := DefaultPaths()
	return LoadFromFile(paths.ConfigFile())
}

// LoadFromFile loads configuration from the specified file.
// If the file doesn't exist, returns default configuration.
// Environment variable overrides are applied after file loading.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Save saves the configuration to the default path.
func (c *Config) Save() error {
	paths := DefaultPaths()
	return c.SaveToFile(paths.ConfigFile())
}

// SaveToFile saves the configuration to the specified file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnvOverrides applies environment variable overrides to the config.
// The API key is deliberately env-first so it never has to live in the
// config file.
func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.AI.APIKey = key
	} else if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.AI.APIKey = key
	}
	if addr := os.Getenv("STASHD_LISTEN_ADDR"); addr != "" {
		c.Daemon.ListenAddr = addr
	}
	if level := os.Getenv("STASHD_LOG_LEVEL"); level != "" {
		c.Daemon.LogLevel = level
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if !isValidLogLevel(c.Daemon.LogLevel) {
		return fmt.Errorf("invalid log level: %s", c.Daemon.LogLevel)
	}
	if c.AI.Model == "" {
		return fmt.Errorf("ai.model must not be empty")
	}
	if c.AI.MaxTokens <= 0 {
		return fmt.Errorf("ai.max_tokens must be positive")
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("ai.temperature must be in [0, 2]")
	}
	if c.AI.MaxRetries < 0 {
		return fmt.Errorf("ai.max_retries must not be negative")
	}
	if c.Enhance.PollIntervalMs <= 0 {
		return fmt.Errorf("enhance.poll_interval_ms must be positive")
	}
	if c.Enhance.BatchSize <= 0 {
		return fmt.Errorf("enhance.batch_size must be positive")
	}
	if c.Enhance.MaxCandidates <= 0 {
		return fmt.Errorf("enhance.max_candidates must be positive")
	}
	if c.Enhance.CacheTTLHours <= 0 {
		return fmt.Errorf("enhance.cache_ttl_hours must be positive")
	}
	return nil
}

func isValidLogLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
