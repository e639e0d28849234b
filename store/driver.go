package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// SystemSetting model related methods.
	UpsertSystemSetting(ctx context.Context, upsert *SystemSetting) (*SystemSetting, error)
	ListSystemSettings(ctx context.Context, find *FindSystemSetting) ([]*SystemSetting, error)

	// Item model related methods.
	UpsertItem(ctx context.Context, upsert *Item) (*Item, error)
	ListItems(ctx context.Context, find *FindItem) ([]*Item, error)
	DeleteItem(ctx context.Context, delete *DeleteItem) error

	// MapSnapshot model related methods.
	CreateMapSnapshot(ctx context.Context, create *MapSnapshot) (*MapSnapshot, error)
	ListMapSnapshots(ctx context.Context, find *FindMapSnapshot) ([]*MapSnapshot, error)
}
