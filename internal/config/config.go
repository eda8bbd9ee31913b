package config

import (
	"runtime"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Database   DatabaseConfig   `yaml:"database" mapstructure:"database"`
	Soil       SoilConfig       `yaml:"soil" mapstructure:"soil"`
	Simulation SimulationConfig `yaml:"simulation" mapstructure:"simulation"`
	Mgmt       MgmtConfig       `yaml:"mgmt" mapstructure:"mgmt"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	GIS        GISConfig        `yaml:"gis" mapstructure:"gis"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Plan       PlanConfig       `yaml:"plan" mapstructure:"plan"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DatabaseConfig configures the Postgres connection used for SSURGO horizons,
// design weather and result loading.
type DatabaseConfig struct {
	URL          string `yaml:"url" mapstructure:"url"`
	MaxConns     int32  `yaml:"max_conns" mapstructure:"max_conns"`
	WeatherTable string `yaml:"weather_table" mapstructure:"weather_table"`
}

// SoilConfig selects the horizon source and profile derivation.
type SoilConfig struct {
	Source      string   `yaml:"source" mapstructure:"source"` // postgres or sqlite
	SQLitePath  string   `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	SQLiteTable string   `yaml:"sqlite_table" mapstructure:"sqlite_table"`
	SWIM        bool     `yaml:"swim" mapstructure:"swim"`
	SaxtonRawls bool     `yaml:"saxton_rawls" mapstructure:"saxton_rawls"`
	Crops       []string `yaml:"crops" mapstructure:"crops"`
}

// SimulationConfig sets the .apsim simulation shell.
type SimulationConfig struct {
	Name      string   `yaml:"name" mapstructure:"name"`
	Window    int      `yaml:"window" mapstructure:"window"`
	Variables []string `yaml:"variables" mapstructure:"variables"`
}

// MgmtConfig selects how management dictionaries are read.
type MgmtConfig struct {
	Match string `yaml:"match" mapstructure:"match"` // prefix or substring
	Keys  string `yaml:"keys" mapstructure:"keys"`   // field or task
}

// OutputConfig configures .out summaries and their load target.
type OutputConfig struct {
	Table       string `yaml:"table" mapstructure:"table"`
	Upsert      bool   `yaml:"upsert" mapstructure:"upsert"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// GISConfig configures the joined-layer load target.
type GISConfig struct {
	Table string `yaml:"table" mapstructure:"table"`
}

// BatchConfig configures batch generation.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// PlanConfig holds defaults applied to run plans.
type PlanConfig struct {
	Root      string `yaml:"root" mapstructure:"root"`
	MetFolder string `yaml:"met_folder" mapstructure:"met_folder"`
}

// DefaultConcurrency leaves two cores free, with a floor of one.
func DefaultConcurrency() int {
	if n := runtime.NumCPU() - 2; n > 1 {
		return n
	}
	return 1
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FORESITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.weather_table", "design_weather")
	v.SetDefault("soil.source", "postgres")
	v.SetDefault("soil.sqlite_path", "")
	v.SetDefault("soil.sqlite_table", "horizons")
	v.SetDefault("soil.swim", false)
	v.SetDefault("soil.saxton_rawls", false)
	v.SetDefault("simulation.name", "Sim")
	v.SetDefault("simulation.window", 4)
	v.SetDefault("mgmt.match", "prefix")
	v.SetDefault("mgmt.keys", "field")
	v.SetDefault("output.table", "apsim_summary")
	v.SetDefault("output.upsert", false)
	v.SetDefault("output.concurrency", 4)
	v.SetDefault("gis.table", "apsim_zones")
	v.SetDefault("batch.concurrency", DefaultConcurrency())
	v.SetDefault("plan.root", "")
	v.SetDefault("plan.met_folder", "")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on.
func (c *Config) Validate(mode string) error {
	var missing []string

	switch mode {
	case "soil", "generate":
		switch c.Soil.Source {
		case "postgres":
			if c.Database.URL == "" {
				missing = append(missing, "database.url")
			}
		case "sqlite":
			if c.Soil.SQLitePath == "" {
				missing = append(missing, "soil.sqlite_path")
			}
		default:
			return eris.Errorf("config: unknown soil.source %q", c.Soil.Source)
		}
		if mode == "generate" && c.Simulation.Window < 2 {
			return eris.Errorf("config: simulation.window must be at least 2, got %d", c.Simulation.Window)
		}
	case "load":
		if c.Database.URL == "" {
			missing = append(missing, "database.url")
		}
	case "local":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Batch.Concurrency < 1 || c.Output.Concurrency < 1 {
		return eris.New("config: concurrency must be at least 1")
	}
	switch c.Mgmt.Match {
	case "prefix", "substring":
	default:
		return eris.Errorf("config: unknown mgmt.match %q", c.Mgmt.Match)
	}
	switch c.Mgmt.Keys {
	case "field", "task":
	default:
		return eris.Errorf("config: unknown mgmt.keys %q", c.Mgmt.Keys)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: missing required fields for %s: %s", mode, strings.Join(missing, ", "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
