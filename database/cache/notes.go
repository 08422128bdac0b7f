// SPDX-License-Identifier: ice License 1.0

package cache

import (
	"context"

	"github.com/cockroachdb/errors"
)

// SaveNote inserts a note exactly once. Kind 1/2 content is immutable once
// signed, so a conflicting id means a replay and the row stays untouched.
func (db *dbClient) SaveNote(ctx context.Context, note *Note) error {
	const stmt = `insert into notes
	(id, content, created_at, kind, pubkey, sig, tags, main_event_id, reply_event_id, user_mentioned, repost_id)
values
	(:id, :content, :created_at, :kind, :pubkey, :sig, :tags, :main_event_id, :reply_event_id, :user_mentioned, :repost_id)
on conflict (id) do nothing`

	_, err := db.exec(ctx, stmt, note)

	return errors.Wrap(err, "failed to insert note")
}

func (db *dbClient) GetNote(ctx context.Context, id string) (*Note, error) {
	var note Note
	found, err := db.getOne(ctx, &note, `select * from notes where id = :id`, map[string]any{"id": id})
	if err != nil || !found {
		return nil, errors.Wrapf(err, "failed to select note %v", id)
	}

	return &note, nil
}

// SaveEventRelay records per-relay provenance: which relay delivered which
// event. Replace-style, last delivery wins.
func (db *dbClient) SaveEventRelay(ctx context.Context, eventID, pubkey, relayURL string) error {
	const stmt = `insert or replace into event_relays (event_id, pubkey, relay_url) values (:event_id, :pubkey, :relay_url)`

	_, err := db.exec(ctx, stmt, map[string]any{"event_id": eventID, "pubkey": pubkey, "relay_url": relayURL})

	return errors.Wrap(err, "failed to insert event relay")
}

func (db *dbClient) SaveNotification(ctx context.Context, notification *Notification) error {
	const stmt = `insert into notifications (event_id, kind, pubkey, created_at)
values (:event_id, :kind, :pubkey, :created_at)
on conflict (event_id) do nothing`

	_, err := db.exec(ctx, stmt, notification)

	return errors.Wrap(err, "failed to insert notification")
}
