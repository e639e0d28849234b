package atlas

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/atlas/plugin/ai/topic"
	"github.com/hrygo/atlas/store"
)

// loadItems reads every item of userID, one query per kind, and merges them
// into a deterministic order: created ts, then kind, then uid.
func (s *Service) loadItems(ctx context.Context, userID string) ([]*store.Item, error) {
	perKind := make([][]*store.Item, len(store.ItemKinds))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range store.ItemKinds {
		g.Go(func() error {
			list, err := s.store.ListItems(gctx, &store.FindItem{
				Creator: &userID,
				Kind:    &kind,
			})
			if err != nil {
				return errors.Wrapf(err, "list %s items", kind)
			}
			perKind[i] = list
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var items []*store.Item
	for _, list := range perKind {
		items = append(items, list...)
	}
	slices.SortFunc(items, compareItems)
	return items, nil
}

func compareItems(a, b *store.Item) int {
	if a.CreatedTs != b.CreatedTs {
		if a.CreatedTs < b.CreatedTs {
			return -1
		}
		return 1
	}
	if c := strings.Compare(string(a.Kind), string(b.Kind)); c != 0 {
		return c
	}
	return strings.Compare(a.UID, b.UID)
}

func toTopicItems(items []*store.Item) []topic.Item {
	result := make([]topic.Item, 0, len(items))
	for _, item := range items {
		result = append(result, toTopicItem(item))
	}
	return result
}

func toTopicItem(item *store.Item) topic.Item {
	return topic.Item{
		ID:         item.UID,
		Kind:       topic.Kind(item.Kind),
		CreatedAt:  unixOrZero(item.CreatedTs),
		LastActive: unixOrZero(item.LastActiveTs),
		Labels:     item.Tags,
		Embedding:  item.Embedding,
	}
}

// unixOrZero maps a non-positive timestamp to the zero time, which the
// aggregator treats as missing.
func unixOrZero(ts int64) time.Time {
	if ts <= 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
