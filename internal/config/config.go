// internal/config/config.go
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	HTTPAddr        string        `mapstructure:"HTTP_ADDR"`
	DBURL           string        `mapstructure:"DB_URL"`
	JWTSecret       string        `mapstructure:"JWT_SECRET"`
	GithubToken     string        `mapstructure:"GITHUB_TOKEN"`
	CollectInterval time.Duration `mapstructure:"COLLECT_INTERVAL"`
	UserAgent       string        `mapstructure:"USER_AGENT"`
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	// Set default values
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("COLLECT_INTERVAL", "24h")
	viper.SetDefault("USER_AGENT", "opensen/1.0")

	// Load from .env file if it exists
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate required fields
	if cfg.DBURL == "" {
		return nil, errors.New("DB_URL is a required configuration field")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is a required configuration field")
	}
	if cfg.CollectInterval <= 0 {
		return nil, errors.New("COLLECT_INTERVAL must be a positive duration")
	}

	return &cfg, nil
}
