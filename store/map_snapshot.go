package store

import "context"

// MapSnapshot is a persisted generated map.
type MapSnapshot struct {
	ID        int32
	UID       string
	Creator   string
	Version   int64
	ItemCount int
	// Payload is the JSON encoded map state.
	Payload   []byte
	CreatedTs int64
}

// FindMapSnapshot is the find condition for map snapshots. Results are
// ordered by version, newest first.
type FindMapSnapshot struct {
	Creator *string
	UID     *string
	Limit   *int
}

// CreateMapSnapshot stores a new map snapshot.
func (s *Store) CreateMapSnapshot(ctx context.Context, create *MapSnapshot) (*MapSnapshot, error) {
	return s.driver.CreateMapSnapshot(ctx, create)
}

// ListMapSnapshots lists map snapshots.
func (s *Store) ListMapSnapshots(ctx context.Context, find *FindMapSnapshot) ([]*MapSnapshot, error) {
	return s.driver.ListMapSnapshots(ctx, find)
}

// GetLatestMapSnapshot returns the newest snapshot of creator, or nil if there is none.
func (s *Store) GetLatestMapSnapshot(ctx context.Context, creator string) (*MapSnapshot, error) {
	limit := 1
	list, err := s.driver.ListMapSnapshots(ctx, &FindMapSnapshot{
		Creator: &creator,
		Limit:   &limit,
	})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}
