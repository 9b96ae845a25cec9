// ABOUTME: Configuration management for pagemem with YAML config loading.
// ABOUTME: Handles embedding backend, store location, server, logging, and env overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file or environment leaves a value empty.
const (
	DefaultProvider      = "ollama"
	DefaultDimension     = 768
	DefaultMaxInputChars = 1000
	DefaultStoreBackend  = "json"
	DefaultServerAddr    = ":8000"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
)

// Config stores pagemem configuration loaded from ~/.config/pagemem/config.yaml.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	Store     StoreConfig     `yaml:"store"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	Provider      string `yaml:"provider"` // local, ollama, openai, google
	BaseURL       string `yaml:"base_url,omitempty"`
	Model         string `yaml:"model,omitempty"`
	APIKey        string `yaml:"api_key,omitempty"`
	Dimension     int    `yaml:"dimension,omitempty"`
	MaxInputChars int    `yaml:"max_input_chars,omitempty"`
}

// StoreConfig holds the persistence backend and file location.
type StoreConfig struct {
	Backend string `yaml:"backend"` // json or sqlite
	Path    string `yaml:"path,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = DefaultProvider
	}
	if c.Embedding.Dimension <= 0 {
		c.Embedding.Dimension = DefaultDimension
	}
	if c.Embedding.MaxInputChars <= 0 {
		c.Embedding.MaxInputChars = DefaultMaxInputChars
	}
	if c.Store.Backend == "" {
		c.Store.Backend = DefaultStoreBackend
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

// ApplyEnv overrides config values from PAGEMEM_* environment variables.
func (c *Config) ApplyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", key, v, err)
		}
		*dst = n
		return nil
	}

	setString("PAGEMEM_EMBEDDING_PROVIDER", &c.Embedding.Provider)
	setString("PAGEMEM_EMBEDDING_BASE_URL", &c.Embedding.BaseURL)
	setString("PAGEMEM_EMBEDDING_MODEL", &c.Embedding.Model)
	setString("PAGEMEM_EMBEDDING_API_KEY", &c.Embedding.APIKey)
	if err := setInt("PAGEMEM_EMBEDDING_DIMENSION", &c.Embedding.Dimension); err != nil {
		return err
	}
	if err := setInt("PAGEMEM_MAX_INPUT_CHARS", &c.Embedding.MaxInputChars); err != nil {
		return err
	}
	setString("PAGEMEM_STORE_BACKEND", &c.Store.Backend)
	setString("PAGEMEM_STORE_PATH", &c.Store.Path)
	setString("PAGEMEM_SERVER_ADDR", &c.Server.Addr)
	setString("PAGEMEM_LOG_LEVEL", &c.Log.Level)
	setString("PAGEMEM_LOG_FORMAT", &c.Log.Format)
	return nil
}

// Validate checks enumerated fields.
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "local", "ollama", "openai", "google":
	default:
		return fmt.Errorf("unknown embedding provider %q (want local, ollama, openai, or google)", c.Embedding.Provider)
	}
	switch c.Store.Backend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("unknown store backend %q (want json or sqlite)", c.Store.Backend)
	}
	return nil
}

// GetStorePath returns the store file path, defaulting to the XDG data directory.
func (c *Config) GetStorePath() (string, error) {
	if c.Store.Path != "" {
		return ExpandPath(c.Store.Path)
	}
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	name := "pages.json"
	if c.Store.Backend == "sqlite" {
		name = "pages.db"
	}
	return filepath.Join(dataDir, name), nil
}

// DataDir returns the default pagemem data directory.
func DataDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "pagemem"), nil
}

// GetConfigPath returns the config file path.
func GetConfigPath() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "pagemem", "config.yaml"), nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return home, nil
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// LoadFile reads config from disk without defaults or env overrides.
// Returns an empty config if the file doesn't exist.
func LoadFile() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// Load reads config from disk, loads .env from the working directory, applies
// PAGEMEM_* overrides and fills defaults.
func Load() (*Config, error) {
	cfg, err := LoadFile()
	if err != nil {
		return nil, err
	}

	// .env is optional; values already in the environment win.
	_ = godotenv.Load()

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to disk.
func (c *Config) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
