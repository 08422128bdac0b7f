// SPDX-License-Identifier: ice License 1.0

package cache

import (
	"context"

	"github.com/cockroachdb/errors"
)

// UpsertList stores mute/pin/bookmark list events keyed by
// (author, kind, d-tag), newest created_at wins.
func (db *dbClient) UpsertList(ctx context.Context, list *ListRecord) error {
	const stmt = `insert into lists (pubkey, kind, list_tag, content, tags, created_at)
values (:pubkey, :kind, :list_tag, :content, :tags, :created_at)
on conflict (pubkey, kind, list_tag) do update set
	content    = excluded.content,
	tags       = excluded.tags,
	created_at = excluded.created_at
where excluded.created_at > lists.created_at`

	_, err := db.exec(ctx, stmt, list)

	return errors.Wrapf(err, "failed to upsert list %v/%v/%v", list.Pubkey, list.Kind, list.ListTag)
}

func (db *dbClient) GetList(ctx context.Context, pubkey string, kind int, listTag string) (*ListRecord, error) {
	var list ListRecord
	found, err := db.getOne(ctx, &list,
		`select * from lists where pubkey = :pubkey and kind = :kind and list_tag = :list_tag`,
		map[string]any{"pubkey": pubkey, "kind": kind, "list_tag": listTag})
	if err != nil || !found {
		return nil, errors.Wrapf(err, "failed to select list %v/%v/%v", pubkey, kind, listTag)
	}

	return &list, nil
}

// UpsertRelayMetadata keeps the latest relay-list event per author.
func (db *dbClient) UpsertRelayMetadata(ctx context.Context, metadata *RelayMetadata) error {
	const stmt = `insert into relay_metadata (pubkey, id, created_at, content, tags, sig)
values (:pubkey, :id, :created_at, :content, :tags, :sig)
on conflict (pubkey) do update set
	id         = excluded.id,
	created_at = excluded.created_at,
	content    = excluded.content,
	tags       = excluded.tags,
	sig        = excluded.sig
where excluded.created_at > relay_metadata.created_at`

	_, err := db.exec(ctx, stmt, metadata)

	return errors.Wrapf(err, "failed to upsert relay metadata for %v", metadata.Pubkey)
}

func (db *dbClient) GetRelayMetadata(ctx context.Context, pubkey string) (*RelayMetadata, error) {
	var metadata RelayMetadata
	found, err := db.getOne(ctx, &metadata,
		`select * from relay_metadata where pubkey = :pubkey`, map[string]any{"pubkey": pubkey})
	if err != nil || !found {
		return nil, errors.Wrapf(err, "failed to select relay metadata for %v", pubkey)
	}

	return &metadata, nil
}
