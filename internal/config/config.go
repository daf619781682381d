package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Table source kinds.
const (
	SourceFile   = "file"
	SourceSQLite = "sqlite"
)

const (
	DefaultTableFile = "probability_matrix.json"
	DefaultDBFile    = "predictor.db"
)

// Config holds all predictor configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Table       TableConfig       `mapstructure:"table"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	CORS        CORSConfig        `mapstructure:"cors"`
	Predictions PredictionsConfig `mapstructure:"predictions"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

type ServerConfig struct {
	Bind string `mapstructure:"bind"`
	Port int    `mapstructure:"port"`
}

type TableConfig struct {
	Source string `mapstructure:"source"` // "file" or "sqlite"
	Path   string `mapstructure:"path"`   // JSON file; empty means beside the executable
	Cache  bool   `mapstructure:"cache"`  // load once, refresh via POST /reload
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "text"
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type PredictionsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type MetricsConfig struct {
	Window int `mapstructure:"window"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "0.0.0.0",
			Port: 5000,
		},
		Table: TableConfig{
			Source: SourceFile,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Predictions: PredictionsConfig{
			Enabled: true,
		},
		Metrics: MetricsConfig{
			Window: 100,
		},
	}
}

// Load reads configuration from defaults, an optional YAML file, and the
// environment. PORT sets the listen port; every other key can be set with a
// PREDICTOR_ prefixed variable, e.g. PREDICTOR_TABLE_PATH.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PREDICTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", "PORT", "PREDICTOR_SERVER_PORT"); err != nil {
		return nil, fmt.Errorf("bind PORT: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.bind", d.Server.Bind)
	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("table.source", d.Table.Source)
	v.SetDefault("table.path", d.Table.Path)
	v.SetDefault("table.cache", d.Table.Cache)

	v.SetDefault("database.path", d.Database.Path)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetDefault("cors.allowed_origins", d.CORS.AllowedOrigins)
	v.SetDefault("predictions.enabled", d.Predictions.Enabled)
	v.SetDefault("metrics.window", d.Metrics.Window)
}

// Validate checks that all configuration values are usable.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Table.Source {
	case SourceFile, SourceSQLite:
	default:
		return fmt.Errorf("table.source must be %q or %q, got %q", SourceFile, SourceSQLite, c.Table.Source)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}
	if c.Metrics.Window < 1 {
		return errors.New("metrics.window must be at least 1")
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// TablePath returns the configured JSON table path, defaulting to
// probability_matrix.json next to the running executable.
func (c *Config) TablePath() (string, error) {
	if c.Table.Path != "" {
		return c.Table.Path, nil
	}
	return besideExecutable(DefaultTableFile)
}

// DBPath returns the configured SQLite path, defaulting to predictor.db next
// to the running executable.
func (c *Config) DBPath() (string, error) {
	if c.Database.Path != "" {
		return c.Database.Path, nil
	}
	return besideExecutable(DefaultDBFile)
}

func besideExecutable(name string) (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), name), nil
}
