package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds everything the relay reads from the environment. The PHP
// backend and the relay must agree on IngressSecret and TokenSecret.
type Config struct {
	Port           int
	AllowedOrigins []string
	IngressSecret  string
	TokenSecret    string
	PingInterval   time.Duration
	PongTimeout    time.Duration
	SendBuffer     int
	LogLevel       string
}

// Load reads configuration from RELAY_* environment variables, with an
// optional .env file for local development.
func Load() (*Config, error) {
	// Ignore a missing .env; only a present-but-broken file is an error.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("RELAY")
	v.AutomaticEnv()

	v.SetDefault("port", 3000)
	v.SetDefault("allowed_origins", "")
	v.SetDefault("ingress_secret", "")
	v.SetDefault("token_secret", "")
	v.SetDefault("ping_interval", 25*time.Second)
	v.SetDefault("pong_timeout", 60*time.Second)
	v.SetDefault("send_buffer", 64)
	v.SetDefault("log_level", "info")

	cfg := &Config{
		Port:           v.GetInt("port"),
		AllowedOrigins: splitOrigins(v.GetString("allowed_origins")),
		IngressSecret:  v.GetString("ingress_secret"),
		TokenSecret:    v.GetString("token_secret"),
		PingInterval:   v.GetDuration("ping_interval"),
		PongTimeout:    v.GetDuration("pong_timeout"),
		SendBuffer:     v.GetInt("send_buffer"),
		LogLevel:       v.GetString("log_level"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on configurations the relay cannot run with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.IngressSecret == "" {
		return errors.New("RELAY_INGRESS_SECRET is required")
	}
	if c.TokenSecret == "" {
		return errors.New("RELAY_TOKEN_SECRET is required")
	}
	if c.PingInterval <= 0 {
		return errors.New("ping interval must be positive")
	}
	if c.PongTimeout <= c.PingInterval {
		return errors.New("pong timeout must be longer than the ping interval")
	}
	if c.SendBuffer <= 0 {
		return errors.New("send buffer must be positive")
	}
	return nil
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
