package config

// MetadataConfig selects and configures the relational store sessions are written to.
type MetadataConfig struct {
	Type     string               `mapstructure:"type"      yaml:"type"`
	LogLevel string               `mapstructure:"log_level" yaml:"log_level"`
	SQLite   MetadataSQLiteConfig `mapstructure:"sqlite"    yaml:"sqlite"`
	MySQL    MetadataMySQLConfig  `mapstructure:"mysql"     yaml:"mysql"`
}

// MetadataSQLiteConfig holds SQLite-specific configuration
type MetadataSQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// MetadataMySQLConfig holds MySQL-specific configuration
type MetadataMySQLConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}
