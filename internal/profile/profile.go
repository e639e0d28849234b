package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/atlas/plugin/ai/atlas"
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where atlas stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// Map generation
	MapWidth               float64       // ATLAS_MAP_WIDTH (default: 4000)
	MapHeight              float64       // ATLAS_MAP_HEIGHT (default: 3000)
	MapPadding             float64       // ATLAS_MAP_PADDING (default: 100)
	MapIterations          int           // ATLAS_MAP_ITERATIONS (default: 50)
	MapConnectionThreshold int           // ATLAS_MAP_CONNECTION_THRESHOLD (default: 3)
	MapClusterCount        int           // ATLAS_MAP_CLUSTERS (default: 0, derived from topic count)
	GenerationTimeout      time.Duration // ATLAS_GENERATION_TIMEOUT (default: 30s)

	// Regeneration rate limit per user
	RegenerateInterval time.Duration // ATLAS_REGENERATE_INTERVAL (default: 10s)
	RegenerateBurst    int           // ATLAS_REGENERATE_BURST (default: 3)

	// Map cache
	CacheTTL      time.Duration // ATLAS_CACHE_TTL (default: 10m)
	CacheCapacity int           // ATLAS_CACHE_CAPACITY (default: 1000)
	RedisAddr     string        // ATLAS_REDIS_ADDR (empty disables the L2 cache)
	RedisPassword string        // ATLAS_REDIS_PASSWORD
	RedisDB       int           // ATLAS_REDIS_DB (default: 0)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsRedisEnabled reports whether a Redis L2 cache is configured.
func (p *Profile) IsRedisEnabled() bool {
	return p.RedisAddr != ""
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getFloatEnv(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

// FromEnv loads map, cache and rate limit settings from ATLAS_* environment
// variables. Unset or unparsable values fall back to defaults.
func (p *Profile) FromEnv() {
	defaults := atlas.DefaultOptions()

	p.MapWidth = getFloatEnv("ATLAS_MAP_WIDTH", defaults.Width)
	p.MapHeight = getFloatEnv("ATLAS_MAP_HEIGHT", defaults.Height)
	p.MapPadding = getFloatEnv("ATLAS_MAP_PADDING", defaults.Padding)
	p.MapIterations = getIntEnv("ATLAS_MAP_ITERATIONS", defaults.Iterations)
	p.MapConnectionThreshold = getIntEnv("ATLAS_MAP_CONNECTION_THRESHOLD", defaults.ConnectionThreshold)
	p.MapClusterCount = getIntEnv("ATLAS_MAP_CLUSTERS", 0)
	p.GenerationTimeout = getDurationEnv("ATLAS_GENERATION_TIMEOUT", 30*time.Second)

	p.RegenerateInterval = getDurationEnv("ATLAS_REGENERATE_INTERVAL", 10*time.Second)
	p.RegenerateBurst = getIntEnv("ATLAS_REGENERATE_BURST", 3)

	p.CacheTTL = getDurationEnv("ATLAS_CACHE_TTL", 10*time.Minute)
	p.CacheCapacity = getIntEnv("ATLAS_CACHE_CAPACITY", 1000)
	p.RedisAddr = os.Getenv("ATLAS_REDIS_ADDR")
	p.RedisPassword = os.Getenv("ATLAS_REDIS_PASSWORD")
	p.RedisDB = getIntEnv("ATLAS_REDIS_DB", 0)
}

// MapOptions converts the map fields to generator options.
func (p *Profile) MapOptions() atlas.Options {
	opts := atlas.DefaultOptions()
	if p.MapWidth > 0 {
		opts.Width = p.MapWidth
	}
	if p.MapHeight > 0 {
		opts.Height = p.MapHeight
	}
	if p.MapPadding >= 0 {
		opts.Padding = p.MapPadding
	}
	if p.MapIterations > 0 {
		opts.Iterations = p.MapIterations
	}
	if p.MapConnectionThreshold > 0 {
		opts.ConnectionThreshold = p.MapConnectionThreshold
	}
	return opts
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported driver %q", p.Driver)
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "atlas")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/atlas"
		}
	}

	if p.Driver == "sqlite" {
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			slog.Error("failed to check dsn", slog.String("data", dataDir), slog.String("error", err.Error()))
			return err
		}
		p.Data = dataDir
		if p.DSN == "" {
			dbFile := fmt.Sprintf("atlas_%s.db", p.Mode)
			p.DSN = filepath.Join(dataDir, dbFile)
		}
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("postgres driver requires a dsn")
	}

	if p.GenerationTimeout <= 0 {
		return errors.Errorf("generation timeout must be positive, got %s", p.GenerationTimeout)
	}
	if p.RegenerateBurst < 1 {
		return errors.Errorf("regenerate burst must be at least 1, got %d", p.RegenerateBurst)
	}
	if err := p.MapOptions().Validate(); err != nil {
		return errors.Wrap(err, "map options")
	}
	return nil
}
