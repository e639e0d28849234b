package sqlite

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/atlas/store"
)

func (d *DB) CreateMapSnapshot(ctx context.Context, create *store.MapSnapshot) (*store.MapSnapshot, error) {
	fields := []string{"uid", "creator", "version", "item_count", "payload"}
	args := []any{create.UID, create.Creator, create.Version, create.ItemCount, string(create.Payload)}
	// A zero created_ts takes the column default.
	if create.CreatedTs != 0 {
		fields, args = append(fields, "created_ts"), append(args, create.CreatedTs)
	}

	stmt := `
		INSERT INTO map_snapshot (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id, created_ts`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID, &create.CreatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to create map snapshot")
	}
	return create, nil
}

func (d *DB) ListMapSnapshots(ctx context.Context, find *store.FindMapSnapshot) ([]*store.MapSnapshot, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.Creator != nil {
		where, args = append(where, "creator = ?"), append(args, *find.Creator)
	}
	if find.UID != nil {
		where, args = append(where, "uid = ?"), append(args, *find.UID)
	}

	query := `
		SELECT id, uid, creator, version, item_count, payload, created_ts
		FROM map_snapshot
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY version DESC, id DESC`
	if find.Limit != nil {
		query += ` LIMIT ?`
		args = append(args, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list map snapshots")
	}
	defer rows.Close()

	list := []*store.MapSnapshot{}
	for rows.Next() {
		var snapshot store.MapSnapshot
		var payload string
		if err := rows.Scan(
			&snapshot.ID,
			&snapshot.UID,
			&snapshot.Creator,
			&snapshot.Version,
			&snapshot.ItemCount,
			&payload,
			&snapshot.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan map snapshot")
		}
		snapshot.Payload = []byte(payload)
		list = append(list, &snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
