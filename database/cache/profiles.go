// SPDX-License-Identifier: ice License 1.0

package cache

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
)

// UpsertProfile folds a kind-0 update in with last-writer-wins semantics:
// metadata columns change only when the incoming created_at is strictly
// newer than the stored one. Contact/follower/blocked flags are owned by
// other handlers and are never touched here.
func (db *dbClient) UpsertProfile(ctx context.Context, profile *Profile) error {
	const stmt = `insert into profiles
	(id, name, picture, about, lnurl, ln_address, nip05, zap_pubkey, valid_nip05, main_relay, created_at)
values
	(:id, :name, :picture, :about, :lnurl, :ln_address, :nip05, :zap_pubkey, :valid_nip05, :main_relay, :created_at)
on conflict (id) do update set
	name        = excluded.name,
	picture     = excluded.picture,
	about       = excluded.about,
	lnurl       = excluded.lnurl,
	ln_address  = excluded.ln_address,
	nip05       = excluded.nip05,
	zap_pubkey  = excluded.zap_pubkey,
	valid_nip05 = excluded.valid_nip05,
	main_relay  = excluded.main_relay,
	created_at  = excluded.created_at
where excluded.created_at > profiles.created_at`

	_, err := db.exec(ctx, stmt, profile)

	return errors.Wrapf(err, "failed to upsert profile %v", profile.ID)
}

func (db *dbClient) GetProfile(ctx context.Context, pubkey string) (*Profile, error) {
	var profile Profile
	found, err := db.getOne(ctx, &profile, `select * from profiles where id = :id`, map[string]any{"id": pubkey})
	if err != nil || !found {
		return nil, errors.Wrapf(err, "failed to select profile %v", pubkey)
	}

	return &profile, nil
}

// ReplaceContacts applies a self-authored kind-3 contact list. The list
// replaces the stored contact set only when it is newer than the freshness
// watermark (the newest pet_at across all stored contacts); an older
// replay leaves everything untouched. Watermark check, flag clearing and
// member upserts run in one transaction so two concurrent lists cannot
// interleave into a merged set.
func (db *dbClient) ReplaceContacts(ctx context.Context, createdAt int64, contacts []Contact) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin contact list replacement")
	}
	defer tx.Rollback()

	var row struct{ PetAt int64 }
	if err = tx.GetContext(ctx, &row, `select coalesce(max(pet_at), 0) as pet_at from profiles`); err != nil {
		return errors.Wrap(err, "failed to select max pet_at")
	}
	if createdAt <= row.PetAt {
		return nil
	}

	if _, err = tx.ExecContext(ctx, `update profiles set contact = 0 where contact = 1`); err != nil {
		return errors.Wrap(err, "failed to clear contact flags")
	}

	const stmt = `insert into profiles (id, name, main_relay, contact, pet_at)
values (:id, :name, :main_relay, 1, :pet_at)
on conflict (id) do update set
	contact    = 1,
	pet_at     = excluded.pet_at,
	name       = case when profiles.name = '' then excluded.name else profiles.name end,
	main_relay = case when profiles.main_relay = '' then excluded.main_relay else profiles.main_relay end`

	var mErr *multierror.Error
	for i := range contacts {
		contacts[i].PetAt = createdAt
		if _, err = tx.NamedExecContext(ctx, stmt, &contacts[i]); err != nil {
			mErr = multierror.Append(mErr, errors.Wrapf(err, "failed to upsert contact %v", contacts[i].ID))
		}
	}
	if err = mErr.ErrorOrNil(); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(), "failed to commit contact list replacement")
}

// SetFollower marks the author of a foreign kind-3 that tags the local
// user as a follower.
func (db *dbClient) SetFollower(ctx context.Context, pubkey string, followerAt int64) error {
	const stmt = `insert into profiles (id, follower, follower_at)
values (:id, 1, :follower_at)
on conflict (id) do update set follower = 1, follower_at = excluded.follower_at`

	_, err := db.exec(ctx, stmt, map[string]any{"id": pubkey, "follower_at": followerAt})

	return errors.Wrapf(err, "failed to set follower %v", pubkey)
}

// SetMutedGroups is monotonic: once a user's group messages are muted an
// older event cannot unmute them.
func (db *dbClient) SetMutedGroups(ctx context.Context, pubkey string) error {
	const stmt = `insert into profiles (id, muted_groups)
values (:id, 1)
on conflict (id) do update set muted_groups = 1`

	_, err := db.exec(ctx, stmt, map[string]any{"id": pubkey})

	return errors.Wrapf(err, "failed to set muted_groups for %v", pubkey)
}

// SetBlocked records that the local user blocked a profile. Monotonic
// like the other moderation flags: no later event or metadata update can
// clear it.
func (db *dbClient) SetBlocked(ctx context.Context, pubkey string) error {
	const stmt = `insert into profiles (id, blocked)
values (:id, 1)
on conflict (id) do update set blocked = 1`

	_, err := db.exec(ctx, stmt, map[string]any{"id": pubkey})

	return errors.Wrapf(err, "failed to set blocked for %v", pubkey)
}
