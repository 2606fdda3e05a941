package vgeom

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/vgeom/cache"
	"github.com/gogpu/vgeom/pipeline"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte("cache_budget: 4096\npipeline_stages: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(4096), cfg.CacheBudget)
	assert.Equal(t, 2, cfg.PipelineStages)
	assert.True(t, cfg.DecomposeCache, "unset keys keep their defaults")
	assert.Equal(t, DefaultConfig().MaxHardwareTransforms, cfg.MaxHardwareTransforms)
}

func TestParseConfigEmpty(t *testing.T) {
	cfg, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseConfigEnvOverride(t *testing.T) {
	t.Setenv(EnvCacheBudget, "123")
	t.Setenv(EnvPipelineStages, "3")
	cfg, err := ParseConfig([]byte("cache_budget: 4096\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(123), cfg.CacheBudget)
	assert.Equal(t, 3, cfg.PipelineStages)
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  string
	}{
		{"bad yaml", "cache_budget: [", ""},
		{"negative budget", "cache_budget: -1", ""},
		{"zero stages", "pipeline_stages: 0", ""},
		{"too many transforms", "max_hardware_transforms: 5", ""},
		{"bad env", "", "lots"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.env != "" {
				t.Setenv(EnvCacheBudget, tt.env)
			}
			_, err := ParseConfig([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vgeom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("decompose_cache: false\n"), 0o600))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.False(t, cfg.DecomposeCache)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfigApply(t *testing.T) {
	prev := ActiveConfig()
	prevBudget := cache.Default().Budget()
	prevStages := pipeline.Default().NumStages()
	t.Cleanup(func() {
		require.NoError(t, prev.Apply())
		cache.Default().SetBudget(prevBudget)
		pipeline.Default().SetNumStages(prevStages)
	})

	cfg := DefaultConfig()
	cfg.CacheBudget = 1 << 10
	cfg.PipelineStages = 2
	cfg.DecomposeCache = false
	require.NoError(t, cfg.Apply())

	assert.Equal(t, cfg, ActiveConfig())
	assert.Equal(t, int64(1<<10), cache.Default().Budget())
	assert.Equal(t, 2, pipeline.Default().NumStages())

	bad := cfg
	bad.PipelineStages = 0
	assert.Error(t, bad.Apply())
	assert.Equal(t, cfg, ActiveConfig(), "invalid config is not applied")
}

func TestDecomposeCacheDisabled(t *testing.T) {
	prev := ActiveConfig()
	t.Cleanup(func() { require.NoError(t, prev.Apply()) })

	cfg := prev
	cfg.DecomposeCache = false
	require.NoError(t, cfg.Apply())

	mgr := cache.NewManager(1 << 20)
	p := NewPrimitive(TriangleStrips, WithCacheManager(mgr))
	p.AddConsecutiveVertices(0, 4)
	require.NoError(t, p.ClosePrimitive())
	assert.NotSame(t, p.Decompose(), p.Decompose())
	assert.Zero(t, mgr.Len())
}
