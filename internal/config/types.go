// Package config loads leapmetric settings from defaults, leapmetric.yaml,
// LEAPMETRIC_* environment variables and command-line flags.
package config

// Config holds all CLI configuration options.
type Config struct {
	CatalogDir   string        `koanf:"catalog_dir"`
	StatePath    string        `koanf:"state_path"`
	Dialect      string        `koanf:"dialect"`
	OutputFormat string        `koanf:"output"`
	LogLevel     string        `koanf:"log_level"`
	Verbose      bool          `koanf:"verbose"`
	Concurrency  int           `koanf:"concurrency"`
	Target       *TargetConfig `koanf:"target"`

	// ProjectRoot is the directory relative paths were resolved against.
	ProjectRoot string `koanf:"-"`
	// ConfigFile is the file that was loaded, if any.
	ConfigFile string `koanf:"-"`
}

// TargetConfig describes the database used for schema introspection.
type TargetConfig struct {
	Type   string `koanf:"type"`
	DSN    string `koanf:"dsn"`
	Schema string `koanf:"schema"`
	// Params are passed to the introspector, for example tables or skip_foreign_keys.
	Params map[string]any `koanf:"params"`
}

// Default configuration values.
const (
	DefaultCatalogDir  = "metrics"
	DefaultStateFile   = ".leapmetric/state.db"
	DefaultDialect     = "postgres"
	DefaultOutput      = "auto" // TTY=text, otherwise markdown
	DefaultLogLevel    = "info"
	DefaultConcurrency = 4
)

// Output formats.
const (
	OutputAuto     = "auto"
	OutputText     = "text"
	OutputMarkdown = "markdown"
	OutputJSON     = "json"
)

// Config file names, in lookup order.
const (
	ConfigFileName    = "leapmetric.yaml"
	ConfigFileNameAlt = "leapmetric.yml"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "LEAPMETRIC_"

// HasTarget reports whether a database target is configured.
func (c *Config) HasTarget() bool {
	return c.Target != nil && c.Target.Type != "" && c.Target.DSN != ""
}
