// SPDX-License-Identifier: ice License 1.0

package cache

import (
	"context"

	"github.com/cockroachdb/errors"
)

// SaveDirectMessage inserts a DM exactly once; the read flag of an
// already-stored message survives re-delivery from another relay.
func (db *dbClient) SaveDirectMessage(ctx context.Context, message *DirectMessage) error {
	const stmt = `insert into direct_messages
	(id, content, created_at, kind, pubkey, sig, tags, conversation_id, read)
values
	(:id, :content, :created_at, :kind, :pubkey, :sig, :tags, :conversation_id, 0)
on conflict (id) do nothing`

	_, err := db.exec(ctx, stmt, message)

	return errors.Wrap(err, "failed to insert direct message")
}

func (db *dbClient) GetDirectMessage(ctx context.Context, id string) (*DirectMessage, error) {
	var message DirectMessage
	found, err := db.getOne(ctx, &message, `select * from direct_messages where id = :id`, map[string]any{"id": id})
	if err != nil || !found {
		return nil, errors.Wrapf(err, "failed to select direct message %v", id)
	}

	return &message, nil
}

func (db *dbClient) MarkDirectMessageRead(ctx context.Context, id string) error {
	_, err := db.exec(ctx, `update direct_messages set read = 1 where id = :id`, map[string]any{"id": id})

	return errors.Wrapf(err, "failed to mark direct message %v read", id)
}

func (db *dbClient) MarkConversationRead(ctx context.Context, conversationID string) error {
	_, err := db.exec(ctx,
		`update direct_messages set read = 1 where conversation_id = :conversation_id`,
		map[string]any{"conversation_id": conversationID})

	return errors.Wrapf(err, "failed to mark conversation %v read", conversationID)
}

func (db *dbClient) SaveReaction(ctx context.Context, reaction *Reaction) error {
	const stmt = `insert into reactions
	(id, content, created_at, kind, pubkey, sig, tags, positive, reacted_event_id, reacted_user_id)
values
	(:id, :content, :created_at, :kind, :pubkey, :sig, :tags, :positive, :reacted_event_id, :reacted_user_id)
on conflict (id) do nothing`

	_, err := db.exec(ctx, stmt, reaction)

	return errors.Wrap(err, "failed to insert reaction")
}

func (db *dbClient) GetReaction(ctx context.Context, id string) (*Reaction, error) {
	var reaction Reaction
	found, err := db.getOne(ctx, &reaction, `select * from reactions where id = :id`, map[string]any{"id": id})
	if err != nil || !found {
		return nil, errors.Wrapf(err, "failed to select reaction %v", id)
	}

	return &reaction, nil
}
