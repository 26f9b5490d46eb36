package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Feed     FeedConfig     `mapstructure:"feed"`
	Grid     GridConfig     `mapstructure:"grid"`
	Loan     LoanConfig     `mapstructure:"loan"`
	Anomaly  AnomalyConfig  `mapstructure:"anomaly"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// FeedConfig holds NY Fed feed configuration
type FeedConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"` // trade-date backward walk budget
}

// GridConfig holds the coupon rate grid parameters
type GridConfig struct {
	MinRate float64 `mapstructure:"min_rate"`
	MaxRate float64 `mapstructure:"max_rate"`
	Step    float64 `mapstructure:"step"`
}

// LoanConfig holds buydown economics parameters
type LoanConfig struct {
	Amount     float64   `mapstructure:"amount"`
	TermYears  int       `mapstructure:"term_years"`
	Increments []float64 `mapstructure:"increments"` // buydown decrements in percentage points
}

// AnomalyConfig holds anomaly classification configuration
type AnomalyConfig struct {
	Threshold float64 `mapstructure:"threshold"` // relative day-over-day change
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	Enabled  bool   `mapstructure:"enabled"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath         string `mapstructure:"db_path"`
	RetentionYears int    `mapstructure:"retention_years"` // 0 keeps data forever
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set config file
	v.SetConfigFile(path)

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("MBS_BUYDOWN")
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Feed defaults
	v.SetDefault("feed.base_url", "https://markets.newyorkfed.org/api/mbs/transactions")
	v.SetDefault("feed.timeout", "30s")
	v.SetDefault("feed.max_attempts", 20)

	// Grid defaults
	v.SetDefault("grid.min_rate", 3.0)
	v.SetDefault("grid.max_rate", 7.5)
	v.SetDefault("grid.step", 0.1)

	// Loan defaults
	v.SetDefault("loan.amount", 300000.0)
	v.SetDefault("loan.term_years", 30)
	v.SetDefault("loan.increments", []float64{0.1, 0.25, 0.5})

	// Anomaly defaults
	v.SetDefault("anomaly.threshold", 0.05)

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/mbs_data.db")
	v.SetDefault("storage.retention_years", 2)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Feed config
	if c.Feed.BaseURL == "" {
		return fmt.Errorf("feed.base_url is required")
	}
	if c.Feed.Timeout < 1*time.Second {
		return fmt.Errorf("feed.timeout must be at least 1 second")
	}
	if c.Feed.MaxAttempts < 1 {
		return fmt.Errorf("feed.max_attempts must be at least 1")
	}

	// Validate Grid config
	if c.Grid.MinRate >= c.Grid.MaxRate {
		return fmt.Errorf("grid.min_rate must be below grid.max_rate")
	}
	if c.Grid.Step <= 0 {
		return fmt.Errorf("grid.step must be positive")
	}

	// Validate Loan config
	if c.Loan.Amount <= 0 {
		return fmt.Errorf("loan.amount must be positive")
	}
	if c.Loan.TermYears < 1 {
		return fmt.Errorf("loan.term_years must be at least 1")
	}
	if len(c.Loan.Increments) == 0 {
		return fmt.Errorf("loan.increments must contain at least one increment")
	}
	for _, inc := range c.Loan.Increments {
		if inc <= 0 {
			return fmt.Errorf("loan.increments must all be positive")
		}
	}

	// Validate Anomaly config
	if c.Anomaly.Threshold <= 0.0 || c.Anomaly.Threshold > 1.0 {
		return fmt.Errorf("anomaly.threshold must be between 0.0 and 1.0")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.RetentionYears < 0 {
		return fmt.Errorf("storage.retention_years must not be negative")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
