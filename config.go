package vgeom

import (
	"fmt"
	"os"
	"strconv"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/vgeom/cache"
	"github.com/gogpu/vgeom/pipeline"
)

// Environment variables that override configuration values.
const (
	EnvCacheBudget    = "VGEOM_CACHE_BUDGET"
	EnvPipelineStages = "VGEOM_PIPELINE_STAGES"
)

// Config holds the process-wide tunables.
type Config struct {
	// CacheBudget is the byte budget of the global cache manager.
	// Zero caches nothing; every munge is recomputed.
	CacheBudget int64 `yaml:"cache_budget"`

	// PipelineStages is the stage count of the default pipeline.
	PipelineStages int `yaml:"pipeline_stages"`

	// DecomposeCache keeps decomposed primitives in the cache manager.
	DecomposeCache bool `yaml:"decompose_cache"`

	// MaxHardwareTransforms is the largest number of per-vertex transforms a
	// hardware-animated format may request.
	MaxHardwareTransforms int `yaml:"max_hardware_transforms"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		CacheBudget:           cache.DefaultBudgetBytes,
		PipelineStages:        pipeline.DefaultNumStages,
		DecomposeCache:        true,
		MaxHardwareTransforms: 4,
	}
}

// ParseConfig decodes YAML on top of DefaultConfig and applies environment
// overrides.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("vgeom: parse config: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("vgeom: load config: %w", err)
	}
	return ParseConfig(data)
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvCacheBudget); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("vgeom: %s: %w", EnvCacheBudget, err)
		}
		c.CacheBudget = n
	}
	if v, ok := os.LookupEnv(EnvPipelineStages); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("vgeom: %s: %w", EnvPipelineStages, err)
		}
		c.PipelineStages = n
	}
	return nil
}

// Validate checks the configuration for out-of-range values.
func (c Config) Validate() error {
	if c.CacheBudget < 0 {
		return fmt.Errorf("vgeom: cache_budget must not be negative, got %d", c.CacheBudget)
	}
	if c.PipelineStages < 1 {
		return fmt.Errorf("vgeom: pipeline_stages must be at least 1, got %d", c.PipelineStages)
	}
	if c.MaxHardwareTransforms < 0 || c.MaxHardwareTransforms > 4 {
		return fmt.Errorf("vgeom: max_hardware_transforms must be in [0,4], got %d", c.MaxHardwareTransforms)
	}
	return nil
}

var activeConfig atomic.Pointer[Config]

func init() {
	c := DefaultConfig()
	activeConfig.Store(&c)
}

// Apply makes c the active configuration: the budget goes to the default cache
// manager and the stage count to the default pipeline.
func (c Config) Apply() error {
	if err := c.Validate(); err != nil {
		return err
	}
	activeConfig.Store(&c)
	cache.Default().SetBudget(c.CacheBudget)
	pipeline.Default().SetNumStages(c.PipelineStages)
	Logger().Info("vgeom: config applied",
		"cache_budget", c.CacheBudget,
		"pipeline_stages", c.PipelineStages,
		"decompose_cache", c.DecomposeCache)
	return nil
}

// ActiveConfig returns the configuration last applied.
func ActiveConfig() Config {
	return *activeConfig.Load()
}
