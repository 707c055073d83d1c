package config

// IngestConfig controls where sessions are looked up and how they are written.
type IngestConfig struct {
	// Roots are searched in order when a session identifier is not a path.
	Roots        []string `mapstructure:"roots"         yaml:"roots"`
	SessionsFile string   `mapstructure:"sessions_file" yaml:"sessions_file"`

	OverwriteExisting  bool `mapstructure:"overwrite_existing"   yaml:"overwrite_existing"`
	RequireSettingsXML bool `mapstructure:"require_settings_xml" yaml:"require_settings_xml"`

	// Rigs maps acquisition hostnames to rig identifiers, e.g. W10DT713843: NP.1
	Rigs map[string]string `mapstructure:"rigs" yaml:"rigs"`
}

type MetricsConfig struct {
	// Textfile is written in the Prometheus text format after every ingest run.
	// Empty disables the export.
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}
