package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var atlasEnvVars = []string{
	"ATLAS_MAP_WIDTH",
	"ATLAS_MAP_HEIGHT",
	"ATLAS_MAP_PADDING",
	"ATLAS_MAP_ITERATIONS",
	"ATLAS_MAP_CONNECTION_THRESHOLD",
	"ATLAS_MAP_CLUSTERS",
	"ATLAS_GENERATION_TIMEOUT",
	"ATLAS_REGENERATE_INTERVAL",
	"ATLAS_REGENERATE_BURST",
	"ATLAS_CACHE_TTL",
	"ATLAS_CACHE_CAPACITY",
	"ATLAS_REDIS_ADDR",
	"ATLAS_REDIS_PASSWORD",
	"ATLAS_REDIS_DB",
}

func clearAtlasEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range atlasEnvVars {
		t.Setenv(key, "")
	}
}

func TestProfileDefaults(t *testing.T) {
	clearAtlasEnvVars(t)

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, 4000.0, p.MapWidth)
	assert.Equal(t, 3000.0, p.MapHeight)
	assert.Equal(t, 100.0, p.MapPadding)
	assert.Equal(t, 50, p.MapIterations)
	assert.Equal(t, 3, p.MapConnectionThreshold)
	assert.Equal(t, 0, p.MapClusterCount)
	assert.Equal(t, 30*time.Second, p.GenerationTimeout)
	assert.Equal(t, 10*time.Second, p.RegenerateInterval)
	assert.Equal(t, 3, p.RegenerateBurst)
	assert.Equal(t, 10*time.Minute, p.CacheTTL)
	assert.Equal(t, 1000, p.CacheCapacity)
	assert.False(t, p.IsRedisEnabled())
}

func TestProfileFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVar   string
		envValue string
		check    func(t *testing.T, p *Profile)
	}{
		{
			name:     "width",
			envVar:   "ATLAS_MAP_WIDTH",
			envValue: "1200.5",
			check:    func(t *testing.T, p *Profile) { assert.Equal(t, 1200.5, p.MapWidth) },
		},
		{
			name:     "threshold",
			envVar:   "ATLAS_MAP_CONNECTION_THRESHOLD",
			envValue: "5",
			check:    func(t *testing.T, p *Profile) { assert.Equal(t, 5, p.MapConnectionThreshold) },
		},
		{
			name:     "timeout",
			envVar:   "ATLAS_GENERATION_TIMEOUT",
			envValue: "2m",
			check:    func(t *testing.T, p *Profile) { assert.Equal(t, 2*time.Minute, p.GenerationTimeout) },
		},
		{
			name:     "unparsable falls back",
			envVar:   "ATLAS_MAP_ITERATIONS",
			envValue: "many",
			check:    func(t *testing.T, p *Profile) { assert.Equal(t, 50, p.MapIterations) },
		},
		{
			name:     "redis",
			envVar:   "ATLAS_REDIS_ADDR",
			envValue: "localhost:6379",
			check: func(t *testing.T, p *Profile) {
				assert.True(t, p.IsRedisEnabled())
				assert.Equal(t, "localhost:6379", p.RedisAddr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearAtlasEnvVars(t)
			t.Setenv(tt.envVar, tt.envValue)

			p := &Profile{}
			p.FromEnv()
			tt.check(t, p)
		})
	}
}

func TestProfileMapOptions(t *testing.T) {
	clearAtlasEnvVars(t)
	t.Setenv("ATLAS_MAP_WIDTH", "800")
	t.Setenv("ATLAS_MAP_HEIGHT", "600")
	t.Setenv("ATLAS_MAP_PADDING", "20")
	t.Setenv("ATLAS_MAP_ITERATIONS", "10")
	t.Setenv("ATLAS_MAP_CONNECTION_THRESHOLD", "2")

	p := &Profile{}
	p.FromEnv()
	opts := p.MapOptions()

	assert.Equal(t, 800.0, opts.Width)
	assert.Equal(t, 600.0, opts.Height)
	assert.Equal(t, 20.0, opts.Padding)
	assert.Equal(t, 10, opts.Iterations)
	assert.Equal(t, 2, opts.ConnectionThreshold)
	assert.Equal(t, 1, opts.FallbackThreshold)
	require.NoError(t, opts.Validate())
}

func TestProfileValidate(t *testing.T) {
	clearAtlasEnvVars(t)

	t.Run("sqlite derives dsn from data dir", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "sqlite", Data: t.TempDir()}
		p.FromEnv()
		require.NoError(t, p.Validate())
		assert.Contains(t, p.DSN, "atlas_dev.db")
	})

	t.Run("unknown mode becomes demo", func(t *testing.T) {
		p := &Profile{Mode: "staging", Driver: "sqlite", Data: t.TempDir()}
		p.FromEnv()
		require.NoError(t, p.Validate())
		assert.Equal(t, "demo", p.Mode)
	})

	t.Run("postgres needs dsn", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "postgres"}
		p.FromEnv()
		assert.Error(t, p.Validate())
	})

	t.Run("unsupported driver", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "mysql"}
		p.FromEnv()
		assert.Error(t, p.Validate())
	})

	t.Run("missing data dir", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "sqlite", Data: "/nonexistent/atlas/data"}
		p.FromEnv()
		assert.Error(t, p.Validate())
	})

	t.Run("canvas smaller than padding", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "sqlite", Data: t.TempDir()}
		p.FromEnv()
		p.MapWidth = 150
		assert.Error(t, p.Validate())
	})
}
