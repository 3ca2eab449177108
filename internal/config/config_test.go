package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Minute, cfg.Housekeeping.Interval)
	assert.Equal(t, "Europe/Bratislava", cfg.App.Timezone)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SMTP_SERVER", "mail.example.com")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("HOUSEKEEPING_INTERVAL", "30s")
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mail.example.com", cfg.SMTP.Host)
	assert.Equal(t, 2525, cfg.SMTP.Port)
	assert.Equal(t, 30*time.Second, cfg.Housekeeping.Interval)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// untouched defaults survive
	assert.Equal(t, "noreply@muzikuj.sk", cfg.SMTP.Sender)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "custom.yaml")
	content := `
database:
  path: /tmp/from-file.db
smtp:
  sender: file@muzikuj.sk
logging:
  format: console
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv(PathEnvVar, path)
	t.Setenv("SMTP_SENDER", "env@muzikuj.sk")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-file.db", cfg.Database.Path)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "env@muzikuj.sk", cfg.SMTP.Sender)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty db path", func(c *Config) { c.Database.Path = " " }, "database.path"},
		{"zero interval", func(c *Config) { c.Housekeeping.Interval = 0 }, "housekeeping.interval"},
		{"bad port", func(c *Config) { c.SMTP.Port = 70000 }, "smtp.port"},
		{"no session age", func(c *Config) { c.Session.MaxAge = 0 }, "session.max_age"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSMTPConfigured(t *testing.T) {
	c := Default().SMTP
	assert.False(t, c.Configured())
	c.Username, c.Password = "u", "p"
	assert.True(t, c.Configured())
}
