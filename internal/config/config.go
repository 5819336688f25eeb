// Package config loads settings from the environment, with an optional YAML
// overlay named by CROWDPLAY_CONFIG. A .env file in the working directory is
// read first when present, so local runs need no exported variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Relay modes.
const (
	ModeServer = "server"
	ModeClient = "client"
)

// Proxy trust modes, controlling which header yields the client IP.
const (
	TrustNone       = "none"
	TrustCloudflare = "cloudflare"
	TrustAny        = "any"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Game     GameConfig     `yaml:"game"`
	Emulator EmulatorConfig `yaml:"emulator"`
	Relay    RelayConfig    `yaml:"relay"`
	Secrets  SecretsConfig  `yaml:"secrets"`
	AutoBan  AutoBanConfig  `yaml:"autoban"`
}

type ServerConfig struct {
	Port          string `yaml:"port"`
	BindAddr      string `yaml:"bind_addr"`
	TrustProxy    string `yaml:"trust_proxy"`
	IdleTimeoutMS int    `yaml:"idle_timeout_ms"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type GameConfig struct {
	ID             string `yaml:"id"`
	TickIntervalMS int    `yaml:"tick_interval_ms"`
}

type EmulatorConfig struct {
	Backend  string `yaml:"backend"`   // fake is the only in-tree binding
	RAMImage string `yaml:"ram_image"` // optional image loaded at startup
}

type RelayConfig struct {
	Mode   string `yaml:"mode"` // server | client
	URL    string `yaml:"url"`  // ws:// or wss:// endpoint, client mode
	Secret string `yaml:"secret"`
}

type SecretsConfig struct {
	Registration string `yaml:"registration"` // optional gate; empty disables
	Admin        string `yaml:"admin"`
}

type AutoBanConfig struct {
	RateLimitThreshold int `yaml:"rate_limit_threshold"`
	InvalidThreshold   int `yaml:"invalid_threshold"`
	WindowSeconds      int `yaml:"window_seconds"`
	DurationSeconds    int `yaml:"duration_seconds"`
}

// Load reads .env (if any), then the environment, then the optional YAML file
// named by CROWDPLAY_CONFIG. Environment values win over YAML.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:          "8080",
			BindAddr:      "0.0.0.0",
			TrustProxy:    TrustNone,
			IdleTimeoutMS: 120000,
		},
		Redis: RedisConfig{URL: "redis://localhost:6379/0"},
		Game: GameConfig{
			ID:             "pokemon-red",
			TickIntervalMS: 15000,
		},
		Emulator: EmulatorConfig{Backend: "fake"},
		Relay:    RelayConfig{Mode: ModeServer},
		AutoBan: AutoBanConfig{
			RateLimitThreshold: 10,
			InvalidThreshold:   20,
			WindowSeconds:      300,
			DurationSeconds:    3600,
		},
	}

	if path := os.Getenv("CROWDPLAY_CONFIG"); path != "" {
		if err := loadYAML(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.BindAddr, "BIND_ADDR")
	setString(&cfg.Server.TrustProxy, "TRUST_PROXY")
	setInt(&cfg.Server.IdleTimeoutMS, "IDLE_TIMEOUT_MS")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.Game.ID, "GAME_ID")
	setInt(&cfg.Game.TickIntervalMS, "TICK_INTERVAL_MS")
	setString(&cfg.Emulator.Backend, "EMULATOR")
	setString(&cfg.Emulator.RAMImage, "RAM_IMAGE")
	setString(&cfg.Relay.Mode, "RELAY_MODE")
	setString(&cfg.Relay.URL, "RELAY_URL")
	setString(&cfg.Relay.Secret, "RELAY_SECRET")
	setString(&cfg.Secrets.Registration, "REGISTRATION_SECRET")
	setString(&cfg.Secrets.Admin, "ADMIN_SECRET")
	setInt(&cfg.AutoBan.RateLimitThreshold, "AUTOBAN_RATE_LIMIT_THRESHOLD")
	setInt(&cfg.AutoBan.InvalidThreshold, "AUTOBAN_INVALID_REQUEST_THRESHOLD")
	setInt(&cfg.AutoBan.WindowSeconds, "AUTOBAN_WINDOW_SECONDS")
	setInt(&cfg.AutoBan.DurationSeconds, "AUTOBAN_DURATION_SECONDS")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate rejects configurations the servers cannot run with.
func (c *Config) Validate() error {
	if c.Game.TickIntervalMS < 1000 || c.Game.TickIntervalMS > 60000 {
		return fmt.Errorf("TICK_INTERVAL_MS %d outside [1000, 60000]", c.Game.TickIntervalMS)
	}
	switch c.Server.TrustProxy {
	case TrustNone, TrustCloudflare, TrustAny:
	default:
		return fmt.Errorf("TRUST_PROXY %q must be none, cloudflare or any", c.Server.TrustProxy)
	}
	switch c.Relay.Mode {
	case ModeServer, ModeClient:
	default:
		return fmt.Errorf("RELAY_MODE %q must be server or client", c.Relay.Mode)
	}
	if c.Emulator.Backend != "fake" {
		return fmt.Errorf("EMULATOR %q has no binding in this build", c.Emulator.Backend)
	}
	if c.Relay.Mode == ModeClient {
		if c.Relay.URL == "" {
			return fmt.Errorf("RELAY_URL is required in client mode")
		}
		if len(c.Relay.Secret) < 16 {
			return fmt.Errorf("RELAY_SECRET must be at least 16 characters")
		}
	}
	if c.Secrets.Admin != "" && len(c.Secrets.Admin) < 16 {
		return fmt.Errorf("ADMIN_SECRET must be at least 16 characters")
	}
	return nil
}

// TickInterval returns the tick period as a duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Game.TickIntervalMS) * time.Millisecond
}

// IdleTimeout returns the WebSocket idle timeout as a duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Server.IdleTimeoutMS) * time.Millisecond
}

// Addr returns the listen address for http.Server.
func (c *Config) Addr() string {
	return c.Server.BindAddr + ":" + c.Server.Port
}
