// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token   string `yaml:"token"`
	Workers int    `yaml:"workers"` // polling workers
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port int `yaml:"port"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	StateTTL time.Duration `yaml:"state_ttl"` // 0 = states never expire
}

type MoltinConfig struct {
	BaseURL          string        `yaml:"base_url"`
	ClientID         string        `yaml:"client_id"`
	ClientSecret     string        `yaml:"client_secret"`
	PriceBookID      string        `yaml:"price_book_id"`
	CustomerPassword string        `yaml:"customer_password"`
	Timeout          time.Duration `yaml:"timeout"`
}

type LimitsConfig struct {
	PerChatPerMinute int `yaml:"per_chat_per_minute"`
}

type Config struct {
	Bot    BotConfig    `yaml:"bot"`
	Log    LogConfig    `yaml:"log"`
	Admin  AdminConfig  `yaml:"admin"`
	Redis  RedisConfig  `yaml:"redis"`
	Moltin MoltinConfig `yaml:"moltin"`
	Limits LimitsConfig `yaml:"limits"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Admin.Port <= 0 {
		cfg.Admin.Port = 8081
	}
	if cfg.Moltin.BaseURL == "" {
		cfg.Moltin.BaseURL = "https://api.moltin.com"
	}
	if cfg.Moltin.Timeout <= 0 {
		cfg.Moltin.Timeout = 15 * time.Second
	}
	if cfg.Moltin.CustomerPassword == "" {
		cfg.Moltin.CustomerPassword = "mysecretpassword"
	}
	if cfg.Limits.PerChatPerMinute <= 0 {
		cfg.Limits.PerChatPerMinute = 20
	}

	// Minimal validation
	if cfg.Bot.Token == "" {
		return nil, errors.New("bot.token is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Moltin.ClientID == "" || cfg.Moltin.ClientSecret == "" {
		return nil, errors.New("moltin.client_id and moltin.client_secret are required")
	}
	if cfg.Moltin.PriceBookID == "" {
		return nil, errors.New("moltin.price_book_id is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
