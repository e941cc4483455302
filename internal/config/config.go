// Package config загружает YAML-конфигурацию сервера и клиента.
// Значения из файла накладываются на значения по умолчанию; флаги командной
// строки применяются поверх уже в cmd/.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig - конфигурация сервера документов
type ServerConfig struct {
	Addr             string        `yaml:"addr"`
	DBPath           string        `yaml:"db_path"`
	JWTSecret        string        `yaml:"jwt_secret"`
	LogLevel         string        `yaml:"log_level"`
	TokenTTL         time.Duration `yaml:"token_ttl"`
	RateWindow       time.Duration `yaml:"rate_window"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
	WriteRateLimit   int           `yaml:"write_rate_limit"`
	SubscriberBuffer int           `yaml:"subscriber_buffer"`
	RequireAuth      bool          `yaml:"require_auth"`
}

// DefaultServerConfig returns server defaults
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:             ":8080",
		DBPath:           "worksync.db",
		LogLevel:         "info",
		TokenTTL:         0,
		RateWindow:       time.Minute,
		ShutdownTimeout:  10 * time.Second,
		WriteRateLimit:   120,
		SubscriberBuffer: 8,
		RequireAuth:      true,
	}
}

// Validate checks server configuration
func (c ServerConfig) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.DBPath == "" {
		return errors.New("db_path is required")
	}
	if c.RequireAuth && c.JWTSecret == "" {
		return errors.New("jwt_secret is required when require_auth is enabled")
	}
	if c.WriteRateLimit < 0 {
		return fmt.Errorf("write_rate_limit must not be negative, got %d", c.WriteRateLimit)
	}
	if c.WriteRateLimit > 0 && c.RateWindow <= 0 {
		return errors.New("rate_window must be positive when write_rate_limit is set")
	}
	if c.TokenTTL < 0 {
		return errors.New("token_ttl must not be negative")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ClientConfig - конфигурация CLI клиента
type ClientConfig struct {
	// Remote - http(s)://host:port для сервера документов или redis://host:port/db
	Remote         string `yaml:"remote"`
	Workspace      string `yaml:"workspace"`
	DBPath         string `yaml:"db_path"`
	Token          string `yaml:"token"`
	LogLevel       string `yaml:"log_level"`
	PassphraseFile string `yaml:"cache_passphrase_file"`
	// Encrypt включает шифрование локального кеша паролем
	Encrypt           bool          `yaml:"encrypt"`
	Debounce          time.Duration `yaml:"debounce"`
	SuppressionMargin time.Duration `yaml:"suppression_margin"`
}

// DefaultClientConfig returns client defaults
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Remote:            "http://localhost:8080",
		Workspace:         "default",
		DBPath:            "worksync-client.db",
		LogLevel:          "warn",
		Debounce:          2 * time.Second,
		SuppressionMargin: 500 * time.Millisecond,
	}
}

// Validate checks client configuration
func (c ClientConfig) Validate() error {
	if c.Remote == "" {
		return errors.New("remote is required")
	}
	if c.Workspace == "" {
		return errors.New("workspace is required")
	}
	if c.DBPath == "" {
		return errors.New("db_path is required")
	}
	if c.Debounce <= 0 {
		return fmt.Errorf("debounce must be positive, got %s", c.Debounce)
	}
	if c.SuppressionMargin < 0 {
		return fmt.Errorf("suppression_margin must not be negative, got %s", c.SuppressionMargin)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Load reads server configuration from path. Пустой путь - только значения по умолчанию.
func Load(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if err := loadFile(path, &cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// LoadClient reads client configuration from path. Отсутствующий файл не ошибка.
func LoadClient(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()
	if err := loadFile(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return ClientConfig{}, err
	}
	return cfg, nil
}

func loadFile(path string, dst any) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return nil
}

// ParseLogLevel converts debug|info|warn|error into slog.Level
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
