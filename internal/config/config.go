package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. FEATX_DECOMPOSITION_COMPONENTS
const EnvPrefix = "FEATX"

// Config represents the complete featx configuration
type Config struct {
	Decomposition  DecompositionConfig  `mapstructure:"decomposition"`
	Parcellation   ParcellationConfig   `mapstructure:"parcellation"`
	DualRegression DualRegressionConfig `mapstructure:"dual_regression"`
	Input          InputConfig          `mapstructure:"input"`
	Output         OutputConfig         `mapstructure:"output"`
	Runtime        RuntimeConfig        `mapstructure:"runtime"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Metrics        MetricsConfig        `mapstructure:"metrics"`
}

// DecompositionConfig controls the group ICA
type DecompositionConfig struct {
	// Components is the number of group components K
	Components int `mapstructure:"components" validate:"min=1"`
	// Mode is "together" or "separately"
	Mode string `mapstructure:"mode" validate:"oneof=together separately"`
	// Groups lists the grayordinate groups decomposed on their own in
	// separately mode. Each entry is "left", "right", or a comma separated
	// list of structures. Empty means left and right hemispheres.
	Groups    []string `mapstructure:"groups"`
	Seed      int64    `mapstructure:"seed"`
	MaxIter   int      `mapstructure:"max_iter" validate:"min=1"`
	Tolerance float64  `mapstructure:"tolerance" validate:"gt=0"`
	// Eigensolver is "gonum" (in process) or "magma" (external binary)
	Eigensolver string `mapstructure:"eigensolver" validate:"oneof=gonum magma"`
	MagmaPath   string `mapstructure:"magma_path" validate:"required_if=Eigensolver magma"`
	// MagmaTolerance bounds the residual of A v = l v accepted from magma; 0 skips the check
	MagmaTolerance float64 `mapstructure:"magma_tolerance" validate:"gte=0"`
}

// ParcellationConfig controls the subcortical parcellation
type ParcellationConfig struct {
	// Threshold discards loadings with absolute value at or below it (0 = off)
	Threshold float64 `mapstructure:"threshold" validate:"gte=0"`
	// Compact renumbers the parcels that received members to 1..K'
	Compact bool `mapstructure:"compact"`
}

// DualRegressionConfig controls dual regression
type DualRegressionConfig struct {
	// Normalize z-scores every grayordinate before stage 1
	Normalize bool `mapstructure:"normalize"`
	// NormalizeTimeCourses variance normalises the stage 1 time courses
	NormalizeTimeCourses bool `mapstructure:"normalize_time_courses"`
}

// InputConfig describes how images are read
type InputConfig struct {
	// BrainMap is the grayordinate table every image is aligned to
	BrainMap string `mapstructure:"brain_map" validate:"required"`
	// TimeStart and TimeEnd select the NIfTI volumes sampled
	TimeStart int `mapstructure:"time_start" validate:"gte=0"`
	TimeEnd   int `mapstructure:"time_end" validate:"gtefield=TimeStart"`
}

// OutputConfig controls where results go
type OutputConfig struct {
	Dir    string `mapstructure:"dir" validate:"required"`
	Format string `mapstructure:"format" validate:"oneof=npy csv bin"`
}

// RuntimeConfig bounds parallelism
type RuntimeConfig struct {
	// Workers per numeric kernel (0 = number of CPUs)
	Workers        int `mapstructure:"workers" validate:"gte=0"`
	SubjectWorkers int `mapstructure:"subject_workers" validate:"min=1"`
	SessionWorkers int `mapstructure:"session_workers" validate:"min=1"`
	// Prefetch is how many loaded subjects may wait for a worker
	Prefetch int `mapstructure:"prefetch" validate:"min=1"`
}

// LoggingConfig controls logrus
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// MetricsConfig controls the Prometheus textfile written after a run
type MetricsConfig struct {
	// Textfile is written for the node exporter textfile collector; empty disables it
	Textfile string `mapstructure:"textfile"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Decomposition: DecompositionConfig{
			Components:  20,
			Mode:        "together",
			Seed:        1,
			MaxIter:     500,
			Tolerance:   1e-6,
			Eigensolver: "gonum",
		},
		Parcellation: ParcellationConfig{},
		DualRegression: DualRegressionConfig{
			Normalize: true,
		},
		Input: InputConfig{
			BrainMap:  "brain.brainmap",
			TimeStart: 0,
			TimeEnd:   1200,
		},
		Output: OutputConfig{
			Dir:    "out",
			Format: "npy",
		},
		Runtime: RuntimeConfig{
			Workers:        0,
			SubjectWorkers: max(1, runtime.NumCPU()/4),
			SessionWorkers: 4,
			Prefetch:       2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetDefaults registers default values with v
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("decomposition.components", defaults.Decomposition.Components)
	v.SetDefault("decomposition.mode", defaults.Decomposition.Mode)
	v.SetDefault("decomposition.groups", defaults.Decomposition.Groups)
	v.SetDefault("decomposition.seed", defaults.Decomposition.Seed)
	v.SetDefault("decomposition.max_iter", defaults.Decomposition.MaxIter)
	v.SetDefault("decomposition.tolerance", defaults.Decomposition.Tolerance)
	v.SetDefault("decomposition.eigensolver", defaults.Decomposition.Eigensolver)
	v.SetDefault("decomposition.magma_path", defaults.Decomposition.MagmaPath)
	v.SetDefault("decomposition.magma_tolerance", defaults.Decomposition.MagmaTolerance)

	v.SetDefault("parcellation.threshold", defaults.Parcellation.Threshold)
	v.SetDefault("parcellation.compact", defaults.Parcellation.Compact)

	v.SetDefault("dual_regression.normalize", defaults.DualRegression.Normalize)
	v.SetDefault("dual_regression.normalize_time_courses", defaults.DualRegression.NormalizeTimeCourses)

	v.SetDefault("input.brain_map", defaults.Input.BrainMap)
	v.SetDefault("input.time_start", defaults.Input.TimeStart)
	v.SetDefault("input.time_end", defaults.Input.TimeEnd)

	v.SetDefault("output.dir", defaults.Output.Dir)
	v.SetDefault("output.format", defaults.Output.Format)

	v.SetDefault("runtime.workers", defaults.Runtime.Workers)
	v.SetDefault("runtime.subject_workers", defaults.Runtime.SubjectWorkers)
	v.SetDefault("runtime.session_workers", defaults.Runtime.SessionWorkers)
	v.SetDefault("runtime.prefetch", defaults.Runtime.Prefetch)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)

	v.SetDefault("metrics.textfile", defaults.Metrics.Textfile)
}

// New returns a viper instance with defaults and environment overrides set up
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the config file at path (if any) on top of the defaults and
// environment, then validates the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags and reports every violation at once
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}

	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
