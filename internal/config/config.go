package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar overrides the config file location.
const PathEnvVar = "CONFIG_PATH"

var defaultPaths = []string{"config.yaml", "config.yml", "/etc/muzikuj/config.yaml"}

type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Database     DatabaseConfig     `koanf:"database"`
	Uploads      UploadsConfig      `koanf:"uploads"`
	Session      SessionConfig      `koanf:"session"`
	SMTP         SMTPConfig         `koanf:"smtp"`
	Housekeeping HousekeepingConfig `koanf:"housekeeping"`
	Logging      LoggingConfig      `koanf:"logging"`
	App          AppConfig          `koanf:"app"`
}

type ServerConfig struct {
	Addr          string `koanf:"addr"`
	BaseURL       string `koanf:"base_url"`
	SecureCookies bool   `koanf:"secure_cookies"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type UploadsConfig struct {
	Dir string `koanf:"dir"`
}

type SessionConfig struct {
	MaxAge time.Duration `koanf:"max_age"`
}

// SMTPConfig is considered unconfigured when host, username or password is empty.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Sender   string `koanf:"sender"`
}

type HousekeepingConfig struct {
	Interval time.Duration `koanf:"interval"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

type AppConfig struct {
	Timezone string `koanf:"timezone"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:    ":8080",
			BaseURL: "http://localhost:8080",
		},
		Database: DatabaseConfig{Path: "./instance/muzikuj.db"},
		Uploads:  UploadsConfig{Dir: "./instance/uploads"},
		Session:  SessionConfig{MaxAge: 24 * time.Hour},
		SMTP: SMTPConfig{
			Host:   "smtp.gmail.com",
			Port:   587,
			Sender: "noreply@muzikuj.sk",
		},
		Housekeeping: HousekeepingConfig{Interval: 10 * time.Minute},
		Logging:      LoggingConfig{Level: "info", Format: "json"},
		App:          AppConfig{Timezone: "Europe/Bratislava"},
	}
}

// Load layers defaults, an optional YAML file and the environment, in that order.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if path := findFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func findFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range defaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var envKeys = map[string]string{
	"port":                  "server.addr",
	"http_addr":             "server.addr",
	"base_url":              "server.base_url",
	"secure_cookies":        "server.secure_cookies",
	"database_path":         "database.path",
	"upload_dir":            "uploads.dir",
	"session_max_age":       "session.max_age",
	"smtp_server":           "smtp.host",
	"smtp_port":             "smtp.port",
	"smtp_username":         "smtp.username",
	"smtp_password":         "smtp.password",
	"smtp_sender":           "smtp.sender",
	"housekeeping_interval": "housekeeping.interval",
	"log_level":             "logging.level",
	"log_format":            "logging.format",
	"log_caller":            "logging.caller",
	"app_timezone":          "app.timezone",
}

// envKey maps SMTP_SERVER style names onto koanf paths. Unknown variables are
// dropped so the rest of the environment does not leak into the config tree.
func envKey(key string) string {
	k := strings.ToLower(key)
	if path, ok := envKeys[k]; ok {
		return path
	}
	return ""
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	} else if !strings.Contains(c.Server.Addr, ":") {
		// PORT=8080 style
		c.Server.Addr = ":" + c.Server.Addr
	}
	if c.Session.MaxAge <= 0 {
		errs = append(errs, errors.New("session.max_age must be positive"))
	}
	if c.Housekeeping.Interval <= 0 {
		errs = append(errs, errors.New("housekeeping.interval must be positive"))
	}
	if c.SMTP.Port < 0 || c.SMTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("smtp.port %d out of range", c.SMTP.Port))
	}
	if c.Uploads.Dir == "" {
		errs = append(errs, errors.New("uploads.dir is required"))
	}
	return errors.Join(errs...)
}

// Configured reports whether outbound email can be attempted.
func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.Username != "" && c.Password != "" && c.Sender != ""
}
