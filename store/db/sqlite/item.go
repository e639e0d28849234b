package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/atlas/store"
)

func (d *DB) UpsertItem(ctx context.Context, upsert *store.Item) (*store.Item, error) {
	tags := upsert.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := encodeJSON(tags)
	if err != nil {
		return nil, err
	}
	var embedding sql.NullString
	if len(upsert.Embedding) > 0 {
		s, err := encodeJSON(upsert.Embedding)
		if err != nil {
			return nil, err
		}
		embedding = sql.NullString{String: s, Valid: true}
	}

	stmt := `
		INSERT INTO item (uid, creator, kind, created_ts, last_active_ts, tags, embedding)
		VALUES (` + placeholders(7) + `)
		ON CONFLICT(creator, kind, uid) DO UPDATE SET
			created_ts = EXCLUDED.created_ts,
			last_active_ts = EXCLUDED.last_active_ts,
			tags = EXCLUDED.tags,
			embedding = EXCLUDED.embedding
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt,
		upsert.UID,
		upsert.Creator,
		string(upsert.Kind),
		upsert.CreatedTs,
		upsert.LastActiveTs,
		tagsJSON,
		embedding,
	).Scan(&upsert.ID); err != nil {
		return nil, errors.Wrap(err, "failed to upsert item")
	}
	return upsert, nil
}

func (d *DB) ListItems(ctx context.Context, find *store.FindItem) ([]*store.Item, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.Creator != nil {
		where, args = append(where, "creator = ?"), append(args, *find.Creator)
	}
	if find.Kind != nil {
		where, args = append(where, "kind = ?"), append(args, string(*find.Kind))
	}
	if find.UID != nil {
		where, args = append(where, "uid = ?"), append(args, *find.UID)
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
		var kind, tags string
		var embedding sql.NullString
		if err := rows.Scan(
			&item.ID,
			&item.UID,
			&item.Creator,
			&kind,
			&item.CreatedTs,
			&item.LastActiveTs,
			&tags,
			&embedding,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan item")
		}
		item.Kind = store.ItemKind(kind)
		if err := decodeJSON(tags, &item.Tags); err != nil {
			return nil, err
		}
		if embedding.Valid {
			if err := decodeJSON(embedding.String, &item.Embedding); err != nil {
				return nil, err
			}
		}
		list = append(list, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) DeleteItem(ctx context.Context, delete *store.DeleteItem) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM item WHERE creator = ? AND kind = ? AND uid = ?`,
		delete.Creator, string(delete.Kind), delete.UID)
	if err != nil {
		return errors.Wrap(err, "failed to delete item")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("item %s/%s of %s not found", delete.Kind, delete.UID, delete.Creator)
	}
	return nil
}
