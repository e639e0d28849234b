// Package topic aggregates knowledge items into topics keyed by label.
package topic

import (
	"time"
)

// Kind is the kind of a knowledge item.
type Kind string

// Kind constants.
const (
	KindNote        Kind = "note"
	KindProject     Kind = "project"
	KindReadingItem Kind = "reading_item"
)

// Item is a knowledge item as supplied by the ingestion layer.
// A zero time means the timestamp is missing.
type Item struct {
	ID         string    `json:"id" yaml:"id"`
	Kind       Kind      `json:"kind" yaml:"kind"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
	LastActive time.Time `json:"last_active,omitempty" yaml:"last_active,omitempty"`
	Labels     []string  `json:"labels" yaml:"labels"`
	Embedding  []float32 `json:"embedding,omitempty" yaml:"embedding,omitempty"`
}

// Timestamp returns the preferred timestamp for the item's kind.
// Projects prefer LastActive, everything else CreatedAt; when the preferred
// value is missing the other one is used. ok is false when neither is set.
func (it Item) Timestamp() (ts time.Time, ok bool) {
	preferred, alternate := it.CreatedAt, it.LastActive
	if it.Kind == KindProject {
		preferred, alternate = it.LastActive, it.CreatedAt
	}
	switch {
	case !preferred.IsZero():
		return preferred, true
	case !alternate.IsZero():
		return alternate, true
	default:
		return time.Time{}, false
	}
}

// Ref is a reference from a topic to one of its items.
type Ref struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// Key identifies the referenced item across kinds.
func (r Ref) Key() RefKey {
	return RefKey{ID: r.ID, Kind: r.Kind}
}

// RefKey is the identity of an item. Ids are only unique within a kind.
type RefKey struct {
	ID   string
	Kind Kind
}

// Topic is an aggregated group of items sharing a label.
type Topic struct {
	Key       string
	Refs      []Ref
	Embedding []float64
	// EmbeddingFrom is the id of the item that supplied Embedding.
	EmbeddingFrom string
	FirstSeen     time.Time
	LastSeen      time.Time
	ClusterID     int
}

// Population returns the number of items in the topic.
func (t *Topic) Population() int {
	return len(t.Refs)
}

// HasEmbedding reports whether the topic carries a representative embedding.
func (t *Topic) HasEmbedding() bool {
	return len(t.Embedding) > 0
}

// AdoptEmbedding sets the topic embedding unless one is already present.
// The first item carrying an embedding wins; later ones are ignored even if
// they are more central. It reports whether v was adopted.
func (t *Topic) AdoptEmbedding(itemID string, v []float64) bool {
	if t.HasEmbedding() || len(v) == 0 {
		return false
	}
	t.Embedding = v
	t.EmbeddingFrom = itemID
	return true
}

// observe records a valid item timestamp. FirstSeen is only ever set once,
// by the first timestamped item; it is not lowered by later, earlier items.
func (t *Topic) observe(ts time.Time) {
	if t.FirstSeen.IsZero() {
		t.FirstSeen = ts
	}
	if ts.After(t.LastSeen) {
		t.LastSeen = ts
	}
}
