package store

import "context"

// ItemKind is the kind of a knowledge item.
type ItemKind string

const (
	ItemKindNote        ItemKind = "note"
	ItemKindProject     ItemKind = "project"
	ItemKindReadingItem ItemKind = "reading_item"
)

// ItemKinds lists every item kind.
var ItemKinds = []ItemKind{ItemKindNote, ItemKindProject, ItemKindReadingItem}

// Item is a stored knowledge item with its topic tags and optional embedding.
type Item struct {
	ID      int32
	UID     string
	Creator string
	Kind    ItemKind

	CreatedTs int64
	// LastActiveTs is zero when the item has never been touched after creation.
	LastActiveTs int64

	Tags      []string
	Embedding []float32
}

// FindItem is the find condition for items.
type FindItem struct {
	Creator *string
	Kind    *ItemKind
	UID     *string
}

// UpsertItem inserts an item, or updates the item with the same creator, kind and uid.
func (s *Store) UpsertItem(ctx context.Context, upsert *Item) (*Item, error) {
	return s.driver.UpsertItem(ctx, upsert)
}

// ListItems lists items ordered by created_ts then id.
func (s *Store) ListItems(ctx context.Context, find *FindItem) ([]*Item, error) {
	return s.driver.ListItems(ctx, find)
}

// DeleteItem is the delete condition for an item.
type DeleteItem struct {
	Creator string
	Kind    ItemKind
	UID     string
}

// DeleteItem removes one item.
func (s *Store) DeleteItem(ctx context.Context, delete *DeleteItem) error {
	return s.driver.DeleteItem(ctx, delete)
}
