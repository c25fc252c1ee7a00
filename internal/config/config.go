// Package config handles WeConnect configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration structure for WeConnect.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Redis settings for the remote message store
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`

	// Chat settings
	Chat ChatConfig `yaml:"chat" mapstructure:"chat"`

	// Database settings for the local history cache
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// TUI settings
	TUI TUIConfig `yaml:"tui" mapstructure:"tui"`
}

// GlobalConfig contains global WeConnect settings.
type GlobalConfig struct {
	// DataDir is where WeConnect stores its data (default: ~/.local/share/weconnect).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConfigDir is where config files are stored (default: ~/.config/weconnect).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

// RedisConfig contains remote store connection settings.
type RedisConfig struct {
	// URL is the Redis connection URL (redis://host:port/db).
	URL string `yaml:"url" mapstructure:"url"`

	// DialTimeout is the connection timeout.
	DialTimeout time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`

	// ReadTimeout is the per-command read timeout.
	ReadTimeout time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`

	// WriteTimeout is the per-command write timeout.
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`

	// PoolSize is the maximum number of connections.
	PoolSize int `yaml:"pool_size" mapstructure:"pool_size"`

	// MinIdleConns is the minimum number of idle connections.
	MinIdleConns int `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`

	// PresenceTTL is how long presence flags survive a crashed client.
	PresenceTTL time.Duration `yaml:"presence_ttl" mapstructure:"presence_ttl"`
}

// ChatConfig contains conversation behavior settings.
type ChatConfig struct {
	// PageSize is how many messages a page load fetches.
	PageSize int `yaml:"page_size" mapstructure:"page_size"`

	// TypingDebounce is how long after the last keystroke the typing
	// indicator is lowered.
	TypingDebounce time.Duration `yaml:"typing_debounce" mapstructure:"typing_debounce"`

	// ContactsPageSize is how many contacts a directory page returns.
	ContactsPageSize int `yaml:"contacts_page_size" mapstructure:"contacts_page_size"`
}

// DatabaseConfig contains local history cache settings.
type DatabaseConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path" mapstructure:"path"`

	// BusyTimeout is how long to wait for a locked database (milliseconds).
	BusyTimeoutMs int `yaml:"busy_timeout_ms" mapstructure:"busy_timeout_ms"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// TUIConfig contains TUI settings.
type TUIConfig struct {
	// Theme is the color theme (default, dark, light).
	Theme string `yaml:"theme" mapstructure:"theme"`

	// ShowTimestamps shows timestamps next to messages.
	ShowTimestamps bool `yaml:"show_timestamps" mapstructure:"show_timestamps"`

	// CompactMode uses a more compact layout.
	CompactMode bool `yaml:"compact_mode" mapstructure:"compact_mode"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir:   filepath.Join(homeDir, ".local", "share", "weconnect"),
			ConfigDir: filepath.Join(homeDir, ".config", "weconnect"),
		},
		Redis: RedisConfig{
			URL:          "redis://localhost:6379/0",
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
			MinIdleConns: 2,
			PresenceTTL:  30 * time.Second,
		},
		Chat: ChatConfig{
			PageSize:         20,
			TypingDebounce:   200 * time.Millisecond,
			ContactsPageSize: 25,
		},
		Database: DatabaseConfig{
			Path:          "", // Will be set to DataDir/weconnect.db
			BusyTimeoutMs: 5000,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			EnableCaller: false,
		},
		TUI: TUIConfig{
			Theme:          "default",
			ShowTimestamps: true,
			CompactMode:    false,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Redis.URL == "" {
		return fmt.Errorf("redis.url is required")
	}

	if c.Chat.PageSize < 1 {
		return fmt.Errorf("chat.page_size must be at least 1")
	}

	if c.Chat.TypingDebounce < 50*time.Millisecond {
		return fmt.Errorf("chat.typing_debounce must be at least 50ms")
	}

	if c.Chat.ContactsPageSize < 1 {
		return fmt.Errorf("chat.contacts_page_size must be at least 1")
	}

	if c.Database.BusyTimeoutMs < 0 {
		return fmt.Errorf("database.busy_timeout_ms must not be negative")
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Global.DataDir,
		c.Global.ConfigDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// DatabasePath returns the full database path.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Global.DataDir, "weconnect.db")
}

// SessionPath returns where the signed-in session is persisted.
func (c *Config) SessionPath() string {
	return filepath.Join(c.Global.ConfigDir, "session.json")
}
