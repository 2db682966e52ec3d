// Package config loads server configuration from file and environment.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/westend/payroll-engine/engine"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Payroll  PayrollConfig  `mapstructure:"payroll"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// PayrollConfig holds the pay classification knobs. The defaults are the
// agency's standing policy.
type PayrollConfig struct {
	RegularHoursPerDay string `mapstructure:"regular_hours_per_day"`
	OvertimeMultiplier string `mapstructure:"overtime_multiplier"`
	WeekendMultiplier  string `mapstructure:"weekend_multiplier"`
	HolidayMultiplier  string `mapstructure:"holiday_multiplier"`
}

// Policy converts the configured knobs into a pay policy.
func (p PayrollConfig) Policy() (engine.Policy, error) {
	var policy engine.Policy
	var err error
	if policy.RegularHoursPerDay, err = decimal.NewFromString(p.RegularHoursPerDay); err != nil {
		return policy, fmt.Errorf("payroll.regular_hours_per_day: %w", err)
	}
	if policy.OvertimeMultiplier, err = decimal.NewFromString(p.OvertimeMultiplier); err != nil {
		return policy, fmt.Errorf("payroll.overtime_multiplier: %w", err)
	}
	if policy.WeekendMultiplier, err = decimal.NewFromString(p.WeekendMultiplier); err != nil {
		return policy, fmt.Errorf("payroll.weekend_multiplier: %w", err)
	}
	if policy.HolidayMultiplier, err = decimal.NewFromString(p.HolidayMultiplier); err != nil {
		return policy, fmt.Errorf("payroll.holiday_multiplier: %w", err)
	}
	return policy, nil
}

// LoggerConfig holds logger configuration.
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from an optional file and environment
// variables. A missing file falls back to defaults.
func Load(configPath string) (*Config, error) {
	setDefaults()
	viper.AutomaticEnv()

	if configPath != "" {
		viper.SetConfigFile(configPath)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("database.path", "data/payroll.db")

	viper.SetDefault("payroll.regular_hours_per_day", "8")
	viper.SetDefault("payroll.overtime_multiplier", "1.5")
	viper.SetDefault("payroll.weekend_multiplier", "2")
	viper.SetDefault("payroll.holiday_multiplier", "2")

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	for field, v := range map[string]string{
		"payroll.regular_hours_per_day": c.Payroll.RegularHoursPerDay,
		"payroll.overtime_multiplier":   c.Payroll.OvertimeMultiplier,
		"payroll.weekend_multiplier":    c.Payroll.WeekendMultiplier,
		"payroll.holiday_multiplier":    c.Payroll.HolidayMultiplier,
	} {
		if v == "" {
			return fmt.Errorf("%s is required", field)
		}
	}
	return nil
}
