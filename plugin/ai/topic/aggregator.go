package topic

import (
	"strings"

	"github.com/hrygo/atlas/plugin/ai/vector"
)

// Set holds the topics of one generation in first-encountered order.
// It is owned by a single call and must not be shared across goroutines.
type Set struct {
	topics []*Topic
	index  map[string]int
}

// NewSet creates an empty topic set.
func NewSet() *Set {
	return &Set{index: make(map[string]int)}
}

// Aggregate folds items, in order, into a topic set.
func Aggregate(items []Item) *Set {
	s := NewSet()
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Add folds a single item into the set.
func (s *Set) Add(item Item) {
	ts, hasTS := item.Timestamp()
	ref := Ref{ID: item.ID, Kind: item.Kind, Timestamp: ts}

	var embedding []float64
	for _, key := range normalizeLabels(item.Labels) {
		t := s.findOrCreate(key)
		t.Refs = append(t.Refs, ref)
		if hasTS {
			t.observe(ts)
		}
		if len(item.Embedding) > 0 && !t.HasEmbedding() {
			if embedding == nil {
				embedding = vector.FromFloat32(item.Embedding)
			}
			t.AdoptEmbedding(item.ID, embedding)
		}
	}
}

// Len returns the number of topics.
func (s *Set) Len() int {
	return len(s.topics)
}

// Topics returns the topics in first-encountered order.
func (s *Set) Topics() []*Topic {
	return s.topics
}

// Get returns the topic for key.
func (s *Set) Get(key string) (*Topic, bool) {
	i, ok := s.index[key]
	if !ok {
		return nil, false
	}
	return s.topics[i], true
}

// Embedded returns the topics carrying an embedding, in set order.
func (s *Set) Embedded() []*Topic {
	var out []*Topic
	for _, t := range s.topics {
		if t.HasEmbedding() {
			out = append(out, t)
		}
	}
	return out
}

func (s *Set) findOrCreate(key string) *Topic {
	if i, ok := s.index[key]; ok {
		return s.topics[i]
	}
	t := &Topic{Key: key}
	s.index[key] = len(s.topics)
	s.topics = append(s.topics, t)
	return t
}

// normalizeLabels trims labels and drops blanks and per-item duplicates.
// Labels are otherwise case sensitive.
func normalizeLabels(labels []string) []string {
	if len(labels) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
