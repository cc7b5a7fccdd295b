// Package config provides application configuration management with support
// for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Server    ServerConfig
	Data      DataConfig
	Synthesis SynthesisConfig
	Aligner   AlignerConfig
	Inbox     InboxConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
}

// DataConfig holds storage paths. Everything lives under BasePath:
// the database in {base}/db, audio blobs in {base}/audio, the local
// progress cache in {base}/progress.json, and the recorded-narration
// inbox in {base}/inbox.
type DataConfig struct {
	BasePath string
}

// SynthesisConfig holds narration synthesis configuration.
type SynthesisConfig struct {
	// ShardWords is the target word count per audio shard (default: 50).
	ShardWords int
	// MaxConcurrent is the maximum simultaneous shard synthesis tasks (default: 4).
	MaxConcurrent int
	// ProviderURL is the base URL of the text-to-speech provider.
	ProviderURL string
	// ProviderKey is the provider API key.
	ProviderKey string
	// RequestTimeout bounds each provider call, not the whole run (default: 60s).
	RequestTimeout time.Duration
	// MaxRetries is the bounded retry count per provider call (default: 3).
	MaxRetries int
	// RatePerSec throttles provider calls (default: 2).
	RatePerSec float64
}

// AlignerConfig holds forced-alignment configuration for user-recorded
// narration.
type AlignerConfig struct {
	// BinPath is the aligner executable (default: auto-detect on PATH).
	BinPath string
	// Timeout bounds one alignment invocation (default: 120s).
	Timeout time.Duration
}

// InboxConfig holds the recorded-narration drop directory configuration.
type InboxConfig struct {
	Enabled bool
	Path    string
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := flag.String("data-path", "", "Base path for data storage")
	serverPort := flag.String("port", "", "Server port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	shardWords := flag.String("shard-words", "", "Target words per audio shard (default: 50)")
	synthConcurrent := flag.String("synth-max-concurrent", "", "Max concurrent shard synthesis tasks (default: 4)")
	ttsURL := flag.String("tts-url", "", "Text-to-speech provider base URL")
	ttsTimeout := flag.String("tts-timeout", "", "TTS provider call timeout (default: 60s)")
	ttsRetries := flag.String("tts-max-retries", "", "TTS provider retry count (default: 3)")

	alignerBin := flag.String("aligner-bin", "", "Forced-aligner binary (default: auto-detect)")
	alignerTimeout := flag.String("aligner-timeout", "", "Forced-aligner timeout (default: 120s)")

	inboxEnabled := flag.String("inbox-enabled", "", "Watch the recorded-narration inbox (default: true)")
	inboxPath := flag.String("inbox-path", "", "Recorded-narration inbox directory")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port: getConfigValue(*serverPort, "SERVER_PORT", "8080"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Synthesis: SynthesisConfig{
			ShardWords:    getIntConfigValue(*shardWords, "SHARD_WORDS", 50),
			MaxConcurrent: getIntConfigValue(*synthConcurrent, "SYNTH_MAX_CONCURRENT", 4),
			ProviderURL:   getConfigValue(*ttsURL, "TTS_URL", ""),
			ProviderKey:   getConfigValue("", "TTS_API_KEY", ""),
			MaxRetries:    getIntConfigValue(*ttsRetries, "TTS_MAX_RETRIES", 3),
			RatePerSec:    float64(getIntConfigValue("", "TTS_RATE_PER_SEC", 2)),
		},
		Aligner: AlignerConfig{
			BinPath: getConfigValue(*alignerBin, "ALIGNER_BIN", ""),
		},
		Inbox: InboxConfig{
			Enabled: getBoolConfigValue(*inboxEnabled, "INBOX_ENABLED", true),
			Path:    getConfigValue(*inboxPath, "INBOX_PATH", ""),
		},
	}

	// Parse durations.
	var err error
	if cfg.Server.ReadTimeout, err = parseDurationValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, fmt.Errorf("invalid read timeout: %w", err)
	}
	if cfg.Server.WriteTimeout, err = parseDurationValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"); err != nil {
		return nil, fmt.Errorf("invalid write timeout: %w", err)
	}
	if cfg.Server.IdleTimeout, err = parseDurationValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, fmt.Errorf("invalid idle timeout: %w", err)
	}
	if cfg.Synthesis.RequestTimeout, err = parseDurationValue(*ttsTimeout, "TTS_TIMEOUT", "60s"); err != nil {
		return nil, fmt.Errorf("invalid tts timeout: %w", err)
	}
	if cfg.Aligner.Timeout, err = parseDurationValue(*alignerTimeout, "ALIGNER_TIMEOUT", "120s"); err != nil {
		return nil, fmt.Errorf("invalid aligner timeout: %w", err)
	}

	// Expand and validate the data path.
	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	// Inbox defaults to {data}/inbox.
	if err := cfg.expandInboxPath(); err != nil {
		return nil, fmt.Errorf("invalid inbox path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	if c.Synthesis.ShardWords < 1 {
		return fmt.Errorf("shard word count must be positive, got %d", c.Synthesis.ShardWords)
	}
	if c.Synthesis.MaxConcurrent < 1 {
		return fmt.Errorf("synthesis concurrency must be positive, got %d", c.Synthesis.MaxConcurrent)
	}
	if c.Synthesis.MaxRetries < 0 {
		return fmt.Errorf("tts retry count cannot be negative, got %d", c.Synthesis.MaxRetries)
	}

	return nil
}

// DatabasePath returns the badger database directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Data.BasePath, "db")
}

// AudioPath returns the audio blob storage directory.
func (c *Config) AudioPath() string {
	return filepath.Join(c.Data.BasePath, "audio")
}

// ProgressCachePath returns the local progress cache file.
func (c *Config) ProgressCachePath() string {
	return filepath.Join(c.Data.BasePath, "progress.json")
}

// expandDataPath expands ~ and makes the path absolute.
// Defaults to ~/ReadAlong/data.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "ReadAlong", "data")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// expandInboxPath expands ~ and makes the path absolute.
// Defaults to {data}/inbox.
func (c *Config) expandInboxPath() error {
	defaultPath := filepath.Join(c.Data.BasePath, "inbox")

	expanded, err := expandPath(c.Inbox.Path, defaultPath)
	if err != nil {
		return err
	}
	c.Inbox.Path = expanded
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// parseDurationValue resolves a duration from flag, env var, or default.
func parseDurationValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	str := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(str)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", str, err)
	}
	return d, nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		// Env vars take precedence over the .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
