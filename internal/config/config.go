package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
		// MessagesPerSecond limits inbound websocket messages per connection.
		MessagesPerSecond float64 `yaml:"messages_per_second"`
		MessageBurst      int     `yaml:"message_burst"`
	} `yaml:"server"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Game struct {
		DurationSeconds int    `yaml:"duration_seconds"`
		Difficulty      string `yaml:"difficulty"`
		Mode            string `yaml:"mode"`
		AnswerDelay     string `yaml:"answer_delay"`
		Timezone        string `yaml:"timezone"`
	} `yaml:"game"`
}

// Default returns a config that runs fully in memory.
func Default() Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.Server.MessagesPerSecond = 20
	cfg.Server.MessageBurst = 40
	cfg.Log.Level = "info"
	cfg.Log.MaxSizeMB = 100
	cfg.Log.MaxBackups = 5
	cfg.Log.MaxAgeDays = 30
	cfg.Redis.TTL = "10m"
	cfg.Game.DurationSeconds = 30
	cfg.Game.Difficulty = "medium"
	cfg.Game.Mode = "multiple-choice"
	cfg.Game.AnswerDelay = "400ms"
	return cfg
}

// Load reads YAML config from path on top of Default. A missing file yields
// the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
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

// Location resolves the game timezone, falling back to the server's local zone.
func (c Config) Location() *time.Location {
	if c.Game.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Game.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
