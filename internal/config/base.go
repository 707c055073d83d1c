package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type BaseConfig struct {
	Log      LogConfig      `mapstructure:"log"      yaml:"log"`
	Metadata MetadataConfig `mapstructure:"metadata" yaml:"metadata"`
	Ingest   IngestConfig   `mapstructure:"ingest"   yaml:"ingest"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  yaml:"metrics"`
}

func LoadConfig() (*BaseConfig, error) {
	cfg := &BaseConfig{}

	setDefaults()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *BaseConfig) Validate() error {
	switch strings.ToLower(cfg.Metadata.Type) {
	case "sqlite":
		if cfg.Metadata.SQLite.Path == "" {
			return fmt.Errorf("metadata.sqlite.path is required")
		}
	case "mysql":
		if cfg.Metadata.MySQL.DSN == "" {
			return fmt.Errorf("metadata.mysql.dsn is required")
		}
	default:
		return fmt.Errorf("unsupported metadata type '%s'", cfg.Metadata.Type)
	}

	return nil
}
