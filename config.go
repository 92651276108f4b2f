package qpath

import (
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

/*
Config groups everything a run needs: the simulated system, the bracket search
budget and the worker pool.
*/
type Config struct {
	System            SystemConfig
	Search            SearchConfig
	Workers           int
	QueueSize         int
	SchedulingTimeout time.Duration
	LogLevel          string
}

// NewConfig returns the defaults of the reference D=200 experiment.
func NewConfig() *Config {
	return &Config{
		System:            DefaultSystemConfig(),
		Search:            DefaultSearchConfig(),
		Workers:           4,
		QueueSize:         1024,
		SchedulingTimeout: 10 * time.Second,
		LogLevel:          "info",
	}
}

func (c *Config) Validate() error {
	if err := c.System.Validate(); err != nil {
		return err
	}
	if err := c.Search.Validate(); err != nil {
		return err
	}
	if c.Workers < 1 {
		return configError("workers", c.Workers, ErrInvalidParameter)
	}
	if c.QueueSize < 1 {
		return configError("queue_size", c.QueueSize, ErrInvalidParameter)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return configError("log_level", c.LogLevel, err)
	}
	return nil
}

/*
LoadConfig layers v over NewConfig. Keys are dotted ("system.dim",
"search.starts") and can also come from QPATH_-prefixed environment variables
("QPATH_SYSTEM_DIM"). A nil v reads the environment only. The result is
validated and the log level applied to the package logger.
*/
func LoadConfig(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	v.SetEnvPrefix("qpath")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := NewConfig()
	sys, search := defaults.System, defaults.Search

	v.SetDefault("system.dim", sys.Dim)
	v.SetDefault("system.v0", sys.V0)
	v.SetDefault("system.coupling", sys.Coupling)
	v.SetDefault("system.sigma", sys.Sigma)
	v.SetDefault("system.scaling", sys.Scaling.String())
	v.SetDefault("system.resonance", sys.Resonance)
	v.SetDefault("system.steps", sys.Steps)
	v.SetDefault("system.precision", sys.Precision)
	v.SetDefault("system.noise.model", sys.Noise.Model.String())
	v.SetDefault("system.noise.p", sys.Noise.P)
	v.SetDefault("system.noise.gamma", sys.Noise.Gamma)
	v.SetDefault("system.seed", sys.Seed)
	v.SetDefault("system.seed_mode", sys.SeedMode.String())
	v.SetDefault("search.starts", search.Starts)
	v.SetDefault("search.iterations", search.Iterations)
	v.SetDefault("search.evaluations", search.Evaluations)
	v.SetDefault("search.tolerance", search.Tolerance)
	v.SetDefault("search.converge_absolute", search.ConvergeAbsolute)
	v.SetDefault("search.converge_iterations", search.ConvergeIterations)
	v.SetDefault("search.simplex_size", search.SimplexSize)
	v.SetDefault("search.seed", search.Seed)
	v.SetDefault("workers", defaults.Workers)
	v.SetDefault("queue_size", defaults.QueueSize)
	v.SetDefault("scheduling_timeout", defaults.SchedulingTimeout)
	v.SetDefault("log_level", defaults.LogLevel)

	scaling, err := ParseNoiseScaling(v.GetString("system.scaling"))
	if err != nil {
		return nil, err
	}
	model, err := ParseNoiseModel(v.GetString("system.noise.model"))
	if err != nil {
		return nil, err
	}
	seedMode, err := ParseSeedMode(v.GetString("system.seed_mode"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		System: SystemConfig{
			Dim:       v.GetInt("system.dim"),
			V0:        v.GetFloat64("system.v0"),
			Coupling:  v.GetFloat64("system.coupling"),
			Sigma:     v.GetFloat64("system.sigma"),
			Scaling:   scaling,
			Resonance: v.GetFloat64("system.resonance"),
			Steps:     v.GetInt("system.steps"),
			Precision: v.GetInt("system.precision"),
			Noise: NoiseConfig{
				Model: model,
				P:     v.GetFloat64("system.noise.p"),
				Gamma: v.GetFloat64("system.noise.gamma"),
			},
			Seed:     v.GetUint64("system.seed"),
			SeedMode: seedMode,
		},
		Search: SearchConfig{
			Starts:             v.GetInt("search.starts"),
			Iterations:         v.GetInt("search.iterations"),
			Evaluations:        v.GetInt("search.evaluations"),
			Tolerance:          v.GetFloat64("search.tolerance"),
			ConvergeAbsolute:   v.GetFloat64("search.converge_absolute"),
			ConvergeIterations: v.GetInt("search.converge_iterations"),
			SimplexSize:        v.GetFloat64("search.simplex_size"),
			Seed:               v.GetUint64("search.seed"),
		},
		Workers:           v.GetInt("workers"),
		QueueSize:         v.GetInt("queue_size"),
		SchedulingTimeout: v.GetDuration("scheduling_timeout"),
		LogLevel:          v.GetString("log_level"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, _ := log.ParseLevel(cfg.LogLevel)
	Logger().SetLevel(level)

	return cfg, nil
}
