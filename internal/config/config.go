package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"concierge/internal/natsbus"
	"concierge/internal/reasoner"
	"concierge/internal/router"
	"concierge/internal/scheduler"
	"concierge/internal/store"
)

type Config struct {
	Reasoner  reasoner.Config  `yaml:"reasoner"`
	Engine    router.Config    `yaml:"engine"`
	Store     store.Config     `yaml:"store"`
	NATS      natsbus.Config   `yaml:"nats"`
	Web       WebConfig        `yaml:"web"`
	Telegram  TelegramConfig   `yaml:"telegram"`
	Scheduler scheduler.Config `yaml:"scheduler"`
	Vault     VaultConfig      `yaml:"vault"`
}

type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Auth    string `yaml:"auth"`
}

type TelegramConfig struct {
	Token     string  `yaml:"token"`
	AllowFrom []int64 `yaml:"allow_from"`
}

type VaultConfig struct {
	Passphrase string `yaml:"passphrase"`
}

func defaults() Config {
	return Config{
		Reasoner: reasoner.Config{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Engine: router.Config{
			BootstrapWorker: "onboarding",
			PlannerWorker:   "planner",
			MaxDepth:        router.DefaultMaxDepth,
		},
		Store: store.Config{
			Path: "data/concierge.db",
		},
		NATS: natsbus.Config{
			Port:    4222,
			DataDir: "data/nats",
		},
		Web: WebConfig{
			Enabled: true,
			Port:    8080,
		},
		Scheduler: scheduler.Config{
			PollInterval: 30 * time.Second,
		},
	}
}

func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("CONCIERGE_CONFIG")
	if path == "" {
		path = "config/concierge.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		// Expand environment variables in YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	applyEnv(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CONCIERGE_REASONER_API_KEY"); v != "" {
		cfg.Reasoner.APIKey = v
	}
	if v := os.Getenv("CONCIERGE_REASONER_BASE_URL"); v != "" {
		cfg.Reasoner.BaseURL = v
	}
	if v := os.Getenv("CONCIERGE_REASONER_MODEL"); v != "" {
		cfg.Reasoner.Model = v
	}
	if v := os.Getenv("CONCIERGE_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("CONCIERGE_WEB_PASSWORD"); v != "" {
		cfg.Web.Auth = v
	}
	if v := os.Getenv("CONCIERGE_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("CONCIERGE_NATS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.NATS.Port = port
		}
	}
	if v := os.Getenv("CONCIERGE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("CONCIERGE_VAULT_PASSPHRASE"); v != "" {
		cfg.Vault.Passphrase = v
	}
}
