// SPDX-License-Identifier: ice License 1.0

package cache

import (
	"context"

	"github.com/cockroachdb/errors"
)

// SaveRelay upserts a relay record with its routing attributes. Re-adding
// a soft-deleted relay clears the tombstone.
func (db *dbClient) SaveRelay(ctx context.Context, relay *RelayRecord) error {
	if relay.Url == "" {
		return errors.New("relay url is required")
	}

	const stmt = `insert into relays (url, active, global_feed, paid, resilient, deleted_at)
values (:url, :active, :global_feed, :paid, :resilient, 0)
on conflict (url) do update set
	active      = excluded.active,
	global_feed = excluded.global_feed,
	paid        = excluded.paid,
	resilient   = excluded.resilient,
	deleted_at  = 0`

	_, err := db.exec(ctx, stmt, relay)

	return errors.Wrapf(err, "failed to upsert relay %v", relay.Url)
}

// DeleteRelay tombstones the record; relay rows are never removed so
// historical routing decisions stay auditable.
func (db *dbClient) DeleteRelay(ctx context.Context, url string, deletedAt int64) error {
	_, err := db.exec(ctx,
		`update relays set deleted_at = :deleted_at, active = 0 where url = :url and deleted_at = 0`,
		map[string]any{"url": url, "deleted_at": deletedAt})

	return errors.Wrapf(err, "failed to delete relay %v", url)
}

func (db *dbClient) GetRelay(ctx context.Context, url string) (*RelayRecord, error) {
	var relay RelayRecord
	found, err := db.getOne(ctx, &relay, `select * from relays where url = :url`, map[string]any{"url": url})
	if err != nil || !found {
		return nil, errors.Wrapf(err, "failed to select relay %v", url)
	}

	return &relay, nil
}

func (db *dbClient) ListRelays(ctx context.Context, includeDeleted bool) ([]*RelayRecord, error) {
	sql := `select * from relays`
	if !includeDeleted {
		sql += ` where deleted_at = 0`
	}

	stmt, err := db.prepare(ctx, sql, hashSQL(sql))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to prepare list relays sql: `%v`", sql)
	}
	rows, err := stmt.QueryxContext(ctx, map[string]any{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to query relays")
	}
	defer rows.Close()

	var relays []*RelayRecord
	for rows.Next() {
		var relay RelayRecord
		if err = rows.StructScan(&relay); err != nil {
			return nil, errors.Wrap(err, "failed to scan relay row")
		}
		relays = append(relays, &relay)
	}

	return relays, errors.Wrap(rows.Err(), "failed to iterate relay rows")
}
