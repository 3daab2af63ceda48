package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/openhealth/modelserve/pkg/errors"
)

// DefaultModels are the model names seeded into a fresh registry.
var DefaultModels = []string{
	"brain_tumor",
	"kidney",
	"liver",
	"heart",
	"diabetes",
	"breast_cancer",
	"parkinsons",
}

// Config contains the configuration for the model serving service
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server" mapstructure:"server"`
	Models     ModelsConfig     `json:"models" yaml:"models" mapstructure:"models"`
	Monitoring MonitoringConfig `json:"monitoring" yaml:"monitoring" mapstructure:"monitoring"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `json:"host" yaml:"host" mapstructure:"host"`
	Port            int           `json:"port" yaml:"port" mapstructure:"port"`
	MetricsPort     int           `json:"metrics_port" yaml:"metrics_port" mapstructure:"metrics_port"`
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// ModelsConfig contains model resolution and loading settings
type ModelsConfig struct {
	Dir                 string   `json:"dir" yaml:"dir" mapstructure:"dir"`
	DefaultVersion      string   `json:"default_version" yaml:"default_version" mapstructure:"default_version"`
	// PinnedVersion pins every model to one version when non-empty.
	// Empty means no pin; this is distinct from the default version string,
	// so pinning to the default itself works.
	PinnedVersion       string   `json:"pinned_version" yaml:"pinned_version" mapstructure:"pinned_version"`
	ConfidenceThreshold float64  `json:"confidence_threshold" yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	KnownModels         []string `json:"known_models" yaml:"known_models" mapstructure:"known_models"`
	Preload             bool     `json:"preload" yaml:"preload" mapstructure:"preload"`
}

// MonitoringConfig contains logging, metrics, and drift settings
type MonitoringConfig struct {
	LogLevel          string  `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	LogFormat         string  `json:"log_format" yaml:"log_format" mapstructure:"log_format"`
	MetricsEnabled    bool    `json:"metrics_enabled" yaml:"metrics_enabled" mapstructure:"metrics_enabled"`
	DriftEnabled      bool    `json:"drift_enabled" yaml:"drift_enabled" mapstructure:"drift_enabled"`
	DriftThreshold    float64 `json:"drift_threshold" yaml:"drift_threshold" mapstructure:"drift_threshold"`
	ReferenceStatsDir string  `json:"reference_stats_dir" yaml:"reference_stats_dir" mapstructure:"reference_stats_dir"`
}

// NewDefaultConfig creates a default configuration
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			MetricsPort:     9090,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Models: ModelsConfig{
			Dir:                 "models",
			DefaultVersion:      "v1",
			PinnedVersion:       "",
			ConfidenceThreshold: 0.75,
			KnownModels:         DefaultModels,
			Preload:             false,
		},
		Monitoring: MonitoringConfig{
			LogLevel:          "info",
			LogFormat:         "json",
			MetricsEnabled:    true,
			DriftEnabled:      true,
			DriftThreshold:    0.3,
			ReferenceStatsDir: "models/reference_stats",
		},
	}
}

// Load reads configuration from an optional file and the environment.
// Environment variables use the MODELSERVE prefix, e.g.
// MODELSERVE_MODELS_PINNED_VERSION.
func Load(cfgFile string) (*Config, error) {
	config := NewDefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("modelserve")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/modelserve")
	}

	v.SetEnvPrefix("MODELSERVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			return nil, errors.WrapError(err, errors.ErrorTypeConfiguration,
				errors.CodeInvalidConfiguration, fmt.Sprintf("failed to read config file %s", cfgFile))
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeConfiguration,
			errors.CodeInvalidConfiguration, "failed to unmarshal configuration")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.NewValidationError(errors.CodeInvalidConfiguration,
			fmt.Sprintf("invalid port: %d", c.Server.Port))
	}

	if c.Server.MetricsPort < 1 || c.Server.MetricsPort > 65535 {
		return errors.NewValidationError(errors.CodeInvalidConfiguration,
			fmt.Sprintf("invalid metrics port: %d", c.Server.MetricsPort))
	}

	if c.Models.Dir == "" {
		return errors.NewValidationError(errors.CodeInvalidConfiguration,
			"models dir is required")
	}

	if c.Models.DefaultVersion == "" {
		return errors.NewValidationError(errors.CodeInvalidConfiguration,
			"default version is required")
	}

	if c.Models.ConfidenceThreshold < 0 || c.Models.ConfidenceThreshold > 1 {
		return errors.NewValidationError(errors.CodeInvalidThreshold,
			fmt.Sprintf("confidence threshold out of range: %f", c.Models.ConfidenceThreshold))
	}

	if c.Monitoring.DriftThreshold <= 0 {
		return errors.NewValidationError(errors.CodeInvalidThreshold,
			fmt.Sprintf("drift threshold must be positive: %f", c.Monitoring.DriftThreshold))
	}

	return nil
}

// GetAddress returns the server address
func (c *Config) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetMetricsAddress returns the metrics listener address
func (c *Config) GetMetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.MetricsPort)
}
