package config

import "github.com/spf13/viper"

func GetDefault() BaseConfig {
	return BaseConfig{
		Log: LogConfig{
			Level:      "INFO",
			TimeFormat: "2006-01-02 15:04:05",
			File:       "",
			NoColor:    false,
			JSON:       false,
			NoTerminal: false,
			Rotation: LogRotationConfig{
				MaxSize:    128,
				MaxBackups: 5,
				MaxAge:     16,
				Compress:   false,
			},
		},
		Metadata: MetadataConfig{
			Type:     "sqlite",
			LogLevel: "silent",
			SQLite: MetadataSQLiteConfig{
				Path: "ephysdb.sqlite",
			},
		},
		Ingest: IngestConfig{
			Roots:              []string{},
			SessionsFile:       "sessions.json",
			OverwriteExisting:  true,
			RequireSettingsXML: true,
			Rigs:               map[string]string{},
		},
	}
}

func setDefaults() {
	defaults := GetDefault()

	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.time_format", defaults.Log.TimeFormat)
	viper.SetDefault("log.file", defaults.Log.File)
	viper.SetDefault("log.no_color", defaults.Log.NoColor)
	viper.SetDefault("log.json", defaults.Log.JSON)
	viper.SetDefault("log.no_terminal", defaults.Log.NoTerminal)
	viper.SetDefault("log.rotation.max_size", defaults.Log.Rotation.MaxSize)
	viper.SetDefault("log.rotation.max_backups", defaults.Log.Rotation.MaxBackups)
	viper.SetDefault("log.rotation.max_age", defaults.Log.Rotation.MaxAge)
	viper.SetDefault("log.rotation.compress", defaults.Log.Rotation.Compress)

	viper.SetDefault("metadata.type", defaults.Metadata.Type)
	viper.SetDefault("metadata.log_level", defaults.Metadata.LogLevel)
	viper.SetDefault("metadata.sqlite.path", defaults.Metadata.SQLite.Path)
	viper.SetDefault("metadata.mysql.dsn", defaults.Metadata.MySQL.DSN)

	viper.SetDefault("ingest.roots", defaults.Ingest.Roots)
	viper.SetDefault("ingest.sessions_file", defaults.Ingest.SessionsFile)
	viper.SetDefault("ingest.overwrite_existing", defaults.Ingest.OverwriteExisting)
	viper.SetDefault("ingest.require_settings_xml", defaults.Ingest.RequireSettingsXML)
	viper.SetDefault("ingest.rigs", defaults.Ingest.Rigs)

	viper.SetDefault("metrics.textfile", defaults.Metrics.Textfile)
}
