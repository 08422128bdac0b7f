// SPDX-License-Identifier: ice License 1.0

package cache

import (
	"context"

	"github.com/cockroachdb/errors"
)

// SaveZap persists a zap receipt only when a profile advertising the
// receipt author's pubkey as its zapper key exists; receipts signed by
// unknown zapper services are dropped as spoofed. Returns whether the
// receipt was accepted.
func (db *dbClient) SaveZap(ctx context.Context, zap *Zap) (bool, error) {
	const stmt = `insert into zaps
	(id, amount, content, created_at, pubkey, sig, tags, zapper_user_id, zapped_event_id, zapped_user_id)
select
	:id, :amount, :content, :created_at, :pubkey, :sig, :tags, :zapper_user_id, :zapped_event_id, :zapped_user_id
where exists (select 1 from profiles where zap_pubkey = :pubkey)
on conflict (id) do nothing`

	rowsAffected, err := db.exec(ctx, stmt, zap)
	if err != nil {
		return false, errors.Wrap(err, "failed to insert zap")
	}

	return rowsAffected > 0, nil
}

func (db *dbClient) GetZap(ctx context.Context, id string) (*Zap, error) {
	var zap Zap
	found, err := db.getOne(ctx, &zap, `select * from zaps where id = :id`, map[string]any{"id": id})
	if err != nil || !found {
		return nil, errors.Wrapf(err, "failed to select zap %v", id)
	}

	return &zap, nil
}
