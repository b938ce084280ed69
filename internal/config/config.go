package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Devproj  DevprojConfig  `yaml:"devproj" mapstructure:"devproj"`
	Capacity CapacityConfig `yaml:"capacity" mapstructure:"capacity"`
}

// StoreConfig configures the output database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	Schema      string `yaml:"schema" mapstructure:"schema"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	File   string `yaml:"file" mapstructure:"file"`
	// Dir, when set, gives every run its own <command>_<timestamp>.log file
	// in that directory instead of File.
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// RunLogTimeFormat is the timestamp layout of per-run log file names.
const RunLogTimeFormat = "2006_0102_150405"

// ForRun returns the logging configuration of one run of command name
// started at now: with Dir set, File becomes Dir/<name>_<timestamp>.log.
func (c LogConfig) ForRun(name string, now time.Time) LogConfig {
	if c.Dir == "" {
		return c
	}
	c.File = filepath.Join(c.Dir, name+"_"+now.Format(RunLogTimeFormat)+".log")
	return c
}

// SourceConfig points at one source point layer.
type SourceConfig struct {
	Name string `yaml:"name" mapstructure:"name"`
	Kind string `yaml:"kind" mapstructure:"kind"`
	Path string `yaml:"path" mapstructure:"path"`
}

// DevprojConfig configures the development-project conflation run.
type DevprojConfig struct {
	ParcelsPath        string         `yaml:"parcels_path" mapstructure:"parcels_path"`
	ParcelAttrsPath    string         `yaml:"parcel_attrs_path" mapstructure:"parcel_attrs_path"`
	Sources            []SourceConfig `yaml:"sources" mapstructure:"sources"`
	Scenarios          []int          `yaml:"scenarios" mapstructure:"scenarios"`
	EditDate           int            `yaml:"edit_date" mapstructure:"edit_date"`
	Editor             string         `yaml:"editor" mapstructure:"editor"`
	LookupsPath        string         `yaml:"lookups_path" mapstructure:"lookups_path"`
	OutputDir          string         `yaml:"output_dir" mapstructure:"output_dir"`
	Workers            int            `yaml:"workers" mapstructure:"workers"`
	SingleFamilyMarker string         `yaml:"single_family_marker" mapstructure:"single_family_marker"`
	BuildingsPath      string         `yaml:"buildings_path" mapstructure:"buildings_path"`
	WriteShapefiles    bool           `yaml:"write_shapefiles" mapstructure:"write_shapefiles"`
}

// CapacityConfig configures the zoning capacity imputation run.
type CapacityConfig struct {
	ParcelsPath      string `yaml:"parcels_path" mapstructure:"parcels_path"`
	PBA40ParcelsPath string `yaml:"pba40_parcels_path" mapstructure:"pba40_parcels_path"`
	PBA40LookupPath  string `yaml:"pba40_lookup_path" mapstructure:"pba40_lookup_path"`
	BasisPath        string `yaml:"basis_path" mapstructure:"basis_path"`
	ZoningModsPath   string `yaml:"zoning_mods_path" mapstructure:"zoning_mods_path"`
	JurisLookupPath  string `yaml:"juris_lookup_path" mapstructure:"juris_lookup_path"`
	OutputDir        string `yaml:"output_dir" mapstructure:"output_dir"`
	Workers          int    `yaml:"workers" mapstructure:"workers"`
	WriteQA          bool   `yaml:"write_qa" mapstructure:"write_qa"`
}

// DefaultScenarios is the scenario id list carried as scen<id> flags.
var DefaultScenarios = []int{0, 1, 2, 3, 4, 5, 6, 7, 10, 11, 12, 15, 20, 21, 22, 23, 24, 25}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SMELT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "none")
	v.SetDefault("store.sqlite_path", "smelt.db")
	v.SetDefault("store.schema", "basemap")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.dir", "")
	v.SetDefault("devproj.scenarios", DefaultScenarios)
	v.SetDefault("devproj.edit_date", 20200429)
	v.SetDefault("devproj.editor", "MKR")
	v.SetDefault("devproj.output_dir", "out")
	v.SetDefault("devproj.workers", 4)
	v.SetDefault("devproj.single_family_marker", "sfr")
	v.SetDefault("devproj.write_shapefiles", true)
	v.SetDefault("capacity.output_dir", "out")
	v.SetDefault("capacity.workers", 4)
	v.SetDefault("capacity.write_qa", true)

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
	var errs []string

	switch mode {
	case "devproj":
		if c.Devproj.ParcelsPath == "" {
			errs = append(errs, "devproj.parcels_path is required")
		}
		if len(c.Devproj.Sources) == 0 {
			errs = append(errs, "devproj.sources must name at least one layer")
		}
		for i, s := range c.Devproj.Sources {
			if s.Kind == "" || s.Path == "" {
				errs = append(errs, fmt.Sprintf("devproj.sources[%d] needs kind and path", i))
			}
		}
		if c.Devproj.Workers < 1 || c.Devproj.Workers > 64 {
			errs = append(errs, "devproj.workers must be between 1 and 64")
		}
	case "capacity":
		required := []struct{ key, val string }{
			{"capacity.parcels_path", c.Capacity.ParcelsPath},
			{"capacity.pba40_parcels_path", c.Capacity.PBA40ParcelsPath},
			{"capacity.pba40_lookup_path", c.Capacity.PBA40LookupPath},
			{"capacity.basis_path", c.Capacity.BasisPath},
		}
		for _, r := range required {
			if r.val == "" {
				errs = append(errs, r.key+" is required")
			}
		}
		if c.Capacity.Workers < 1 || c.Capacity.Workers > 64 {
			errs = append(errs, "capacity.workers must be between 1 and 64")
		}
	case "store":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "none", "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be one of none, sqlite, postgres", c.Store.Driver))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return eris.Wrap(err, "config: create log dir")
		}
		zapCfg.OutputPaths = append(zapCfg.OutputPaths, cfg.File)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
