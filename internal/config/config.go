package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port         string   `yaml:"port"`
		AllowOrigins []string `yaml:"allowOrigins"`
		LogLevel     string   `yaml:"logLevel"`
	} `yaml:"server"`
	Redis struct {
		Addr           string `yaml:"addr"`
		Password       string `yaml:"password"`
		DB             int    `yaml:"db"`
		TTL            string `yaml:"ttl"`
		LeaderboardTTL string `yaml:"leaderboardTTL"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL      string `yaml:"ttl"`
		SeedFile string `yaml:"seedFile"`
	} `yaml:"quiz"`
	Session struct {
		TimePerQuestion int   `yaml:"timePerQuestion"`
		AutoStart       *bool `yaml:"autoStart"`
		CodeAttempts    int   `yaml:"codeAttempts"`
	} `yaml:"session"`
	Generator struct {
		APIKey   string `yaml:"apiKey"`
		Model    string `yaml:"model"`
		Endpoint string `yaml:"endpoint"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"generator"`
}

// Load reads YAML config from path. Environment variables in the file are expanded,
// so secrets such as the generator key can stay out of it.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// AutoStart reports whether new sessions start immediately. Defaults to true.
func (c Config) AutoStart() bool {
	if c.Session.AutoStart == nil {
		return true
	}
	return *c.Session.AutoStart
}

// Level maps server.logLevel to a slog level, defaulting to info.
func (c Config) Level() slog.Level {
	switch strings.ToLower(c.Server.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
