package test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/atlas/internal/profile"
	"github.com/hrygo/atlas/store"
	"github.com/hrygo/atlas/store/db"
)

// getDriverFromEnv returns DRIVER, defaulting to sqlite.
func getDriverFromEnv() string {
	if driver := os.Getenv("DRIVER"); driver != "" {
		return driver
	}
	return "sqlite"
}

func getTestingProfile(t *testing.T, driver string) *profile.Profile {
	p := &profile.Profile{
		Mode:   "dev",
		Driver: driver,
	}
	p.FromEnv()
	switch driver {
	case "sqlite":
		p.Data = t.TempDir()
		p.DSN = filepath.Join(p.Data, "atlas_test.db")
	case "postgres":
		p.DSN = GetPostgresDSN(t)
	}
	return p
}

// NewTestingStore opens a migrated store on the driver selected by DRIVER.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()
	p := getTestingProfile(t, getDriverFromEnv())
	driver, err := db.NewDBDriver(p)
	require.NoError(t, err)

	ts := store.New(driver, p)
	require.NoError(t, ts.Migrate(ctx))
	t.Cleanup(func() {
		_ = ts.Close()
	})
	return ts
}
