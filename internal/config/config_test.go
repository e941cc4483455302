package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultServerConfig(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
addr: 127.0.0.1:9090
db_path: /var/lib/worksync/docs.db
jwt_secret: s3cret
token_ttl: 720h
write_rate_limit: 30
rate_window: 30s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Addr)
	assert.Equal(t, "/var/lib/worksync/docs.db", cfg.DBPath)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 720*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 30, cfg.WriteRateLimit)
	assert.Equal(t, 30*time.Second, cfg.RateWindow)
	// Не указанные в файле поля сохраняют значения по умолчанию
	assert.True(t, cfg.RequireAuth)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "addr: [unclosed"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "token_ttl: forever"))
	assert.Error(t, err)
}

func TestServerConfig_Validate(t *testing.T) {
	valid := DefaultServerConfig()
	valid.JWTSecret = "secret"

	tests := []struct {
		mutate  func(c *ServerConfig)
		name    string
		wantErr bool
	}{
		{name: "valid", mutate: func(c *ServerConfig) {}},
		{name: "no auth without secret", mutate: func(c *ServerConfig) { c.RequireAuth = false; c.JWTSecret = "" }},
		{name: "auth without secret", mutate: func(c *ServerConfig) { c.JWTSecret = "" }, wantErr: true},
		{name: "empty addr", mutate: func(c *ServerConfig) { c.Addr = "" }, wantErr: true},
		{name: "empty db path", mutate: func(c *ServerConfig) { c.DBPath = "" }, wantErr: true},
		{name: "negative rate", mutate: func(c *ServerConfig) { c.WriteRateLimit = -1 }, wantErr: true},
		{name: "rate without window", mutate: func(c *ServerConfig) { c.RateWindow = 0 }, wantErr: true},
		{name: "rate limit disabled", mutate: func(c *ServerConfig) { c.WriteRateLimit = 0; c.RateWindow = 0 }},
		{name: "negative ttl", mutate: func(c *ServerConfig) { c.TokenTTL = -time.Second }, wantErr: true},
		{name: "bad log level", mutate: func(c *ServerConfig) { c.LogLevel = "loud" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestLoadClient(t *testing.T) {
	cfg, err := LoadClient(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultClientConfig(), cfg)

	path := writeConfig(t, `
remote: redis://localhost:6379/0
workspace: home
debounce: 750ms
encrypt: true
`)
	cfg, err = LoadClient(path)
	require.NoError(t, err)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Remote)
	assert.Equal(t, "home", cfg.Workspace)
	assert.Equal(t, 750*time.Millisecond, cfg.Debounce)
	assert.True(t, cfg.Encrypt)
	assert.Equal(t, 500*time.Millisecond, cfg.SuppressionMargin)
	assert.NoError(t, cfg.Validate())

	_, err = LoadClient(writeConfig(t, "debounce: {"))
	assert.Error(t, err)
}

func TestClientConfig_Validate(t *testing.T) {
	tests := []struct {
		mutate func(c *ClientConfig)
		name   string
	}{
		{name: "empty remote", mutate: func(c *ClientConfig) { c.Remote = "" }},
		{name: "empty workspace", mutate: func(c *ClientConfig) { c.Workspace = "" }},
		{name: "empty db", mutate: func(c *ClientConfig) { c.DBPath = "" }},
		{name: "zero debounce", mutate: func(c *ClientConfig) { c.Debounce = 0 }},
		{name: "negative margin", mutate: func(c *ClientConfig) { c.SuppressionMargin = -time.Millisecond }},
		{name: "bad log level", mutate: func(c *ClientConfig) { c.LogLevel = "chatty" }},
	}

	require.NoError(t, DefaultClientConfig().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultClientConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLogLevel("trace")
	assert.Error(t, err)
}
