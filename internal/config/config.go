// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
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
	App      AppConfig
	Logger   LoggerConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Zotero   ZoteroConfig
	WebDAV   WebDAVConfig
	LLM      LLMConfig
	Server   ServerConfig
	Sync     SyncConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StorageConfig holds the on-disk locations the server owns.
type StorageConfig struct {
	DataPath     string // Root for everything below (default: ~/Zotairo)
	CacheDir     string // File-cache JSON (default: {data}/cache)
	DownloadsDir string // Materialized attachments (default: {data}/downloaded_pdfs)
	StaticDir    string // Optional frontend build served at /
}

// DatabaseConfig selects the relational store backend.
type DatabaseConfig struct {
	Driver string // sqlite or postgres
	URL    string // File path for sqlite, DSN for postgres
}

// ZoteroConfig holds reference-manager API credentials.
type ZoteroConfig struct {
	APIKey  string
	UserID  string
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond paces outbound calls per library scope.
	RequestsPerSecond float64
}

// WebDAVConfig holds the optional attachment mirror. All three fields must be set to enable it.
type WebDAVConfig struct {
	URL      string
	User     string
	Password string
	Timeout  time.Duration
}

// Enabled reports whether the mirror is fully configured.
func (w WebDAVConfig) Enabled() bool {
	return w.URL != "" && w.User != "" && w.Password != ""
}

// LLMConfig holds default provider API keys. A key sent with a request wins over these.
type LLMConfig struct {
	GoogleAPIKey     string
	OpenAIAPIKey     string
	OpenRouterAPIKey string
	DeepSeekAPIKey   string
	Timeout          time.Duration

	// RequestsPerMinute caps QA calls per client IP. Zero disables the cap.
	RequestsPerMinute int
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 300s, QA uploads are slow)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
}

// SyncConfig controls background work started with the server.
type SyncConfig struct {
	OnStartup      bool // Run a mirror sync after boot (default: true)
	WatchDownloads bool // Extract text from PDFs dropped into the downloads dir (default: true)
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	return loadConfig(flag.CommandLine, os.Args[1:])
}

func loadConfig(fs *flag.FlagSet, args []string) (*Config, error) {
	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base path for server data")
	cacheDir := fs.String("cache-dir", "", "Directory for cached Zotero responses")
	downloadsDir := fs.String("downloads-dir", "", "Directory for downloaded attachments")
	staticDir := fs.String("static-dir", "", "Directory with a frontend build to serve at /")

	dbDriver := fs.String("db-driver", "", "Relational store driver (sqlite, postgres)")
	dbURL := fs.String("db-url", "", "Relational store path or DSN")

	zoteroURL := fs.String("zotero-url", "", "Zotero API base URL")

	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 300s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	syncOnStartup := fs.String("sync-on-startup", "", "Mirror the library after boot (default: true)")
	watchDownloads := fs.String("watch-downloads", "", "Watch the downloads directory (default: true)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			DataPath:     getConfigValue(*dataPath, "DATA_PATH", ""),
			CacheDir:     getConfigValue(*cacheDir, "CACHE_DIR", ""),
			DownloadsDir: getConfigValue(*downloadsDir, "DOWNLOADS_DIR", ""),
			StaticDir:    getConfigValue(*staticDir, "STATIC_DIR", ""),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(getConfigValue(*dbDriver, "DATABASE_DRIVER", "sqlite")),
			URL:    getConfigValue(*dbURL, "DATABASE_URL", ""),
		},
		Zotero: ZoteroConfig{
			APIKey:            getConfigValue("", "ZOTERO_API_KEY", ""),
			UserID:            getConfigValue("", "ZOTERO_USER_ID", ""),
			BaseURL:           strings.TrimRight(getConfigValue(*zoteroURL, "ZOTERO_API_URL", "https://api.zotero.org"), "/"),
			RequestsPerSecond: float64(getIntConfigValue("", "ZOTERO_REQUESTS_PER_SECOND", 5)),
		},
		WebDAV: WebDAVConfig{
			URL:      strings.TrimRight(getConfigValue("", "WEBDAV_URL", ""), "/"),
			User:     getConfigValue("", "WEBDAV_USER", ""),
			Password: getConfigValue("", "WEBDAV_PASS", ""),
		},
		LLM: LLMConfig{
			GoogleAPIKey:     getConfigValue("", "GOOGLE_API_KEY", ""),
			OpenAIAPIKey:     getConfigValue("", "OPENAI_API_KEY", ""),
			OpenRouterAPIKey: getConfigValue("", "OPENROUTER_API_KEY", ""),
			DeepSeekAPIKey:   getConfigValue("", "DEEPSEEK_API_KEY", ""),

			RequestsPerMinute: getIntConfigValue("", "LLM_REQUESTS_PER_MINUTE", 30),
		},
		Server: ServerConfig{
			Port: getConfigValue(*serverPort, "SERVER_PORT", "8080"),
		},
		Sync: SyncConfig{
			OnStartup:      getBoolConfigValue(*syncOnStartup, "SYNC_ON_STARTUP", true),
			WatchDownloads: getBoolConfigValue(*watchDownloads, "WATCH_DOWNLOADS", true),
		},
	}

	durations := []struct {
		flagValue string
		envKey    string
		def       string
		dst       *time.Duration
	}{
		{*readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "300s", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{"", "ZOTERO_TIMEOUT", "30s", &cfg.Zotero.Timeout},
		{"", "WEBDAV_TIMEOUT", "30s", &cfg.WebDAV.Timeout},
		{"", "LLM_TIMEOUT", "120s", &cfg.LLM.Timeout},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagValue, d.envKey, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", strings.ToLower(d.envKey), raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandStoragePaths(); err != nil {
		return nil, fmt.Errorf("invalid storage path: %w", err)
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

	if c.Storage.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	switch c.Database.Driver {
	case "sqlite":
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid database driver: %s (must be sqlite or postgres)", c.Database.Driver)
	}

	if c.Zotero.APIKey == "" {
		return errors.New("ZOTERO_API_KEY is required")
	}
	if c.Zotero.UserID == "" {
		return errors.New("ZOTERO_USER_ID is required")
	}

	// WebDAV is all-or-nothing; a partial setup is almost always a typo.
	w := c.WebDAV
	if (w.URL != "" || w.User != "" || w.Password != "") && !w.Enabled() {
		return errors.New("WEBDAV_URL, WEBDAV_USER and WEBDAV_PASS must be set together")
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandStoragePaths resolves the data root first, then derives every unset path from it.
func (c *Config) expandStoragePaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	data, err := expandPath(c.Storage.DataPath, filepath.Join(homeDir, "Zotairo"))
	if err != nil {
		return err
	}
	c.Storage.DataPath = data

	if c.Storage.CacheDir, err = expandPath(c.Storage.CacheDir, filepath.Join(data, "cache")); err != nil {
		return err
	}
	if c.Storage.DownloadsDir, err = expandPath(c.Storage.DownloadsDir, filepath.Join(data, "downloaded_pdfs")); err != nil {
		return err
	}
	if c.Storage.StaticDir != "" {
		if c.Storage.StaticDir, err = expandPath(c.Storage.StaticDir, ""); err != nil {
			return err
		}
	}

	if c.Database.Driver == "sqlite" {
		if c.Database.URL, err = expandPath(c.Database.URL, filepath.Join(data, "zotairo.db")); err != nil {
			return err
		}
	}
	return nil
}

// AnnotationsPath is the badger directory for saved PDF annotations.
func (c *Config) AnnotationsPath() string {
	return filepath.Join(c.Storage.DataPath, "annotations")
}

// SearchPath is the bleve directory for the item full-text index.
func (c *Config) SearchPath() string {
	return filepath.Join(c.Storage.DataPath, "search")
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

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Real env vars take precedence over the file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
