package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/atlas/store"
)

// UpsertItem inserts or updates an item keyed by (creator, kind, uid).
func (d *DB) UpsertItem(ctx context.Context, upsert *store.Item) (*store.Item, error) {
	stmt := `
		INSERT INTO item (uid, creator, kind, created_ts, last_active_ts, tags, embedding)
		VALUES (` + placeholders(7) + `)
		ON CONFLICT (creator, kind, uid)
		DO UPDATE SET
			created_ts = EXCLUDED.created_ts,
			last_active_ts = EXCLUDED.last_active_ts,
			tags = EXCLUDED.tags,
			embedding = EXCLUDED.embedding
		RETURNING id`

	var embedding *pgvector.Vector
	if len(upsert.Embedding) > 0 {
		v := pgvector.NewVector(upsert.Embedding)
		embedding = &v
	}
	tags := upsert.Tags
	if tags == nil {
		tags = []string{}
	}

	if err := d.db.QueryRowContext(ctx, stmt,
		upsert.UID,
		upsert.Creator,
		upsert.Kind,
		upsert.CreatedTs,
		upsert.LastActiveTs,
		pq.Array(tags),
		embedding,
	).Scan(&upsert.ID); err != nil {
		return nil, errors.Wrap(err, "failed to upsert item")
	}
	return upsert, nil
}

// ListItems lists items ordered by created_ts then id.
func (d *DB) ListItems(ctx context.Context, find *store.FindItem) ([]*store.Item, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.Creator != nil {
		where, args = append(where, "creator = "+placeholder(len(args)+1)), append(args, *find.Creator)
	}
	if find.Kind != nil {
		where, args = append(where, "kind = "+placeholder(len(args)+1)), append(args, *find.Kind)
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}

	query := `
		SELECT id, uid, creator, kind, created_ts, last_active_ts, tags, embedding
		FROM item
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts ASC, id ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list items")
	}
	defer rows.Close()

	list := []*store.Item{}
	for rows.Next() {
		var item store.Item
		var embedding *pgvector.Vector
		if err := rows.Scan(
			&item.ID,
			&item.UID,
			&item.Creator,
			&item.Kind,
			&item.CreatedTs,
			&item.LastActiveTs,
			pq.Array(&item.Tags),
			&embedding,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan item")
		}
		if embedding != nil {
			item.Embedding = embedding.Slice()
		}
		list = append(list, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// DeleteItem deletes one item.
func (d *DB) DeleteItem(ctx context.Context, delete *store.DeleteItem) error {
	stmt := `DELETE FROM item WHERE creator = ` + placeholder(1) + ` AND kind = ` + placeholder(2) + ` AND uid = ` + placeholder(3)
	result, err := d.db.ExecContext(ctx, stmt, delete.Creator, delete.Kind, delete.UID)
	if err != nil {
		return errors.Wrap(err, "failed to delete item")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("item %s/%s of %s not found", delete.Kind, delete.UID, delete.Creator)
	}
	return nil
}
