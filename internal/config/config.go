package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Profiles ProfilesConfig `yaml:"profiles" mapstructure:"profiles"`
	Report   ReportConfig   `yaml:"report" mapstructure:"report"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
	// RetryAttempts bounds attempts at connecting and persisting when the
	// database reports a transient failure.
	RetryAttempts int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// ToleranceConfig holds fractional plausibility limits.
type ToleranceConfig struct {
	R1   float64 `yaml:"r1" mapstructure:"r1"`
	R2   float64 `yaml:"r2" mapstructure:"r2"`
	Gain float64 `yaml:"gain" mapstructure:"gain"`
}

// AnalysisConfig configures the measurement reduction.
type AnalysisConfig struct {
	Tolerance           ToleranceConfig `yaml:"tolerance" mapstructure:"tolerance"`
	RlinkMax            float64         `yaml:"rlink_max" mapstructure:"rlink_max"`
	TDefU               float64         `yaml:"t_def_u" mapstructure:"t_def_u"`
	TDefDoF             float64         `yaml:"t_def_dof" mapstructure:"t_def_dof"`
	Digitization        float64         `yaml:"digitization" mapstructure:"digitization"`
	NominalRelU         float64         `yaml:"nominal_rel_u" mapstructure:"nominal_rel_u"`
	NominalDoF          float64         `yaml:"nominal_dof" mapstructure:"nominal_dof"`
	DriftDoF            float64         `yaml:"drift_dof" mapstructure:"drift_dof"`
	CoverageProbability float64         `yaml:"coverage_probability" mapstructure:"coverage_probability"`
	RangeMode           string          `yaml:"range_mode" mapstructure:"range_mode"`
	BlockSize           int             `yaml:"block_size" mapstructure:"block_size"`
	MaxConcurrentRuns   int             `yaml:"max_concurrent_runs" mapstructure:"max_concurrent_runs"`
	// CSVCharset names the encoding of CSV exports; empty means UTF-8.
	CSVCharset string `yaml:"csv_charset" mapstructure:"csv_charset"`
	// UseSensorDVM averages the resistive-sensor temperature with the probe
	// reading when the resistor has a resistive sensor.
	UseSensorDVM bool `yaml:"use_sensor_dvm" mapstructure:"use_sensor_dvm"`
}

// ProfilesConfig locates the resistor and instrument tables.
type ProfilesConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
	// UseWorkbook also reads the Parameters sheet of each analysed workbook.
	UseWorkbook bool `yaml:"use_workbook" mapstructure:"use_workbook"`
}

// ReportConfig configures result output.
type ReportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the results API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "bridge.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("store.retry_attempts", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("analysis.tolerance.r1", 1.0)
	v.SetDefault("analysis.tolerance.r2", 2e-2)
	v.SetDefault("analysis.tolerance.gain", 0.01)
	v.SetDefault("analysis.rlink_max", 2000.0)
	v.SetDefault("analysis.t_def_u", 0.01)
	v.SetDefault("analysis.t_def_dof", 3.0)
	v.SetDefault("analysis.digitization", 0.01)
	v.SetDefault("analysis.nominal_rel_u", 1e-4)
	v.SetDefault("analysis.nominal_dof", 8.0)
	v.SetDefault("analysis.drift_dof", 8.0)
	v.SetDefault("analysis.coverage_probability", 0.95)
	v.SetDefault("analysis.block_size", 4)
	v.SetDefault("analysis.max_concurrent_runs", 4)
	v.SetDefault("profiles.use_workbook", true)
	v.SetDefault("report.dir", ".")

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

// Validate checks the configuration required by a command mode:
// "analyze" or "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	switch mode {
	case "analyze":
		a := c.Analysis
		if a.Tolerance.R1 <= 0 || a.Tolerance.R2 <= 0 || a.Tolerance.Gain <= 0 {
			errs = append(errs, "analysis.tolerance values must be > 0")
		}
		if a.RlinkMax <= 0 {
			errs = append(errs, "analysis.rlink_max must be > 0")
		}
		if a.CoverageProbability <= 0 || a.CoverageProbability >= 1 {
			errs = append(errs, "analysis.coverage_probability must be between 0 and 1")
		}
		if a.BlockSize != 4 && a.BlockSize != 6 {
			errs = append(errs, "analysis.block_size must be 4 or 6")
		}
		if a.TDefDoF <= 0 || a.NominalDoF <= 0 || a.DriftDoF <= 0 {
			errs = append(errs, "analysis dof values must be > 0")
		}
		if a.MaxConcurrentRuns < 1 || a.MaxConcurrentRuns > 64 {
			errs = append(errs, "analysis.max_concurrent_runs must be between 1 and 64")
		}
		if a.RangeMode != "" {
			u := strings.ToUpper(a.RangeMode)
			if !strings.Contains(u, "AUTO") && !strings.Contains(u, "FIXED") {
				errs = append(errs, "analysis.range_mode must be AUTO or FIXED")
			}
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "store":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
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

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
