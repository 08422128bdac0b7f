// SPDX-License-Identifier: ice License 1.0

package cache

import (
	"context"

	"github.com/cockroachdb/errors"
)

// UpsertGroup handles both group creation (kind 40) and metadata updates
// (kind 41) with the same last-writer-wins rule as profiles. An update
// arriving before its create event seeds the row, the older create then
// cannot overwrite it. The hidden/muted flags are monotonic and never
// touched by metadata writes.
func (db *dbClient) UpsertGroup(ctx context.Context, group *Group) error {
	const stmt = `insert into chat_groups (id, name, about, picture, created_at, pubkey)
values (:id, :name, :about, :picture, :created_at, :pubkey)
on conflict (id) do update set
	name       = excluded.name,
	about      = excluded.about,
	picture    = excluded.picture,
	created_at = excluded.created_at,
	pubkey     = case when chat_groups.pubkey = '' then excluded.pubkey else chat_groups.pubkey end
where excluded.created_at > chat_groups.created_at`

	_, err := db.exec(ctx, stmt, group)

	return errors.Wrapf(err, "failed to upsert group %v", group.ID)
}

func (db *dbClient) GetGroup(ctx context.Context, id string) (*Group, error) {
	var group Group
	found, err := db.getOne(ctx, &group, `select * from chat_groups where id = :id`, map[string]any{"id": id})
	if err != nil || !found {
		return nil, errors.Wrapf(err, "failed to select group %v", id)
	}

	return &group, nil
}

func (db *dbClient) HideGroup(ctx context.Context, id string) error {
	_, err := db.exec(ctx, `update chat_groups set hidden = 1 where id = :id`, map[string]any{"id": id})

	return errors.Wrapf(err, "failed to hide group %v", id)
}

func (db *dbClient) MuteGroup(ctx context.Context, id string) error {
	_, err := db.exec(ctx, `update chat_groups set muted = 1 where id = :id`, map[string]any{"id": id})

	return errors.Wrapf(err, "failed to mute group %v", id)
}

func (db *dbClient) SaveGroupMessage(ctx context.Context, message *GroupMessage) error {
	const stmt = `insert into group_messages
	(id, group_id, content, created_at, pubkey, sig, tags)
values
	(:id, :group_id, :content, :created_at, :pubkey, :sig, :tags)
on conflict (id) do nothing`

	_, err := db.exec(ctx, stmt, message)

	return errors.Wrap(err, "failed to insert group message")
}

func (db *dbClient) GetGroupMessage(ctx context.Context, id string) (*GroupMessage, error) {
	var message GroupMessage
	found, err := db.getOne(ctx, &message, `select * from group_messages where id = :id`, map[string]any{"id": id})
	if err != nil || !found {
		return nil, errors.Wrapf(err, "failed to select group message %v", id)
	}

	return &message, nil
}

// HideGroupMessage is one-way: an older event cannot clear the flag.
func (db *dbClient) HideGroupMessage(ctx context.Context, id string) error {
	_, err := db.exec(ctx, `update group_messages set hidden = 1 where id = :id`, map[string]any{"id": id})

	return errors.Wrapf(err, "failed to hide group message %v", id)
}

// MuteGroupUser flags every stored group message of the muted user and the
// profile itself; both flags are monotonic.
func (db *dbClient) MuteGroupUser(ctx context.Context, pubkey string) error {
	if _, err := db.exec(ctx,
		`update group_messages set user_muted = 1 where pubkey = :pubkey`,
		map[string]any{"pubkey": pubkey}); err != nil {
		return errors.Wrapf(err, "failed to mute group messages of %v", pubkey)
	}

	return db.SetMutedGroups(ctx, pubkey)
}
