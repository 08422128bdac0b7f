// SPDX-License-Identifier: ice License 1.0

package cache

import (
	"context"
	"sync"
)

var (
	globalDB struct {
		Client *dbClient
		Once   sync.Once
	}
)

// MustInit opens the cache once per process. Without an explicit target
// the cache lives in memory, which is what tests and ephemeral sessions
// want.
func MustInit(url ...string) {
	target := ":memory:"

	if len(url) > 0 {
		target = url[0]
	}

	globalDB.Once.Do(func() {
		globalDB.Client = openCache(target)
	})
}

func SaveNote(ctx context.Context, note *Note) error {
	return globalDB.Client.SaveNote(ctx, note)
}

func GetNote(ctx context.Context, id string) (*Note, error) {
	return globalDB.Client.GetNote(ctx, id)
}

func SaveEventRelay(ctx context.Context, eventID, pubkey, relayURL string) error {
	return globalDB.Client.SaveEventRelay(ctx, eventID, pubkey, relayURL)
}

func SaveNotification(ctx context.Context, notification *Notification) error {
	return globalDB.Client.SaveNotification(ctx, notification)
}

func UpsertProfile(ctx context.Context, profile *Profile) error {
	return globalDB.Client.UpsertProfile(ctx, profile)
}

func GetProfile(ctx context.Context, pubkey string) (*Profile, error) {
	return globalDB.Client.GetProfile(ctx, pubkey)
}

func ReplaceContacts(ctx context.Context, createdAt int64, contacts []Contact) error {
	return globalDB.Client.ReplaceContacts(ctx, createdAt, contacts)
}

func SetFollower(ctx context.Context, pubkey string, followerAt int64) error {
	return globalDB.Client.SetFollower(ctx, pubkey, followerAt)
}

func SetBlocked(ctx context.Context, pubkey string) error {
	return globalDB.Client.SetBlocked(ctx, pubkey)
}

func SaveDirectMessage(ctx context.Context, message *DirectMessage) error {
	return globalDB.Client.SaveDirectMessage(ctx, message)
}

func GetDirectMessage(ctx context.Context, id string) (*DirectMessage, error) {
	return globalDB.Client.GetDirectMessage(ctx, id)
}

func MarkDirectMessageRead(ctx context.Context, id string) error {
	return globalDB.Client.MarkDirectMessageRead(ctx, id)
}

func MarkConversationRead(ctx context.Context, conversationID string) error {
	return globalDB.Client.MarkConversationRead(ctx, conversationID)
}

func SaveReaction(ctx context.Context, reaction *Reaction) error {
	return globalDB.Client.SaveReaction(ctx, reaction)
}

func GetReaction(ctx context.Context, id string) (*Reaction, error) {
	return globalDB.Client.GetReaction(ctx, id)
}

func UpsertGroup(ctx context.Context, group *Group) error {
	return globalDB.Client.UpsertGroup(ctx, group)
}

func GetGroup(ctx context.Context, id string) (*Group, error) {
	return globalDB.Client.GetGroup(ctx, id)
}

func HideGroup(ctx context.Context, id string) error {
	return globalDB.Client.HideGroup(ctx, id)
}

func MuteGroup(ctx context.Context, id string) error {
	return globalDB.Client.MuteGroup(ctx, id)
}

func SaveGroupMessage(ctx context.Context, message *GroupMessage) error {
	return globalDB.Client.SaveGroupMessage(ctx, message)
}

func GetGroupMessage(ctx context.Context, id string) (*GroupMessage, error) {
	return globalDB.Client.GetGroupMessage(ctx, id)
}

func HideGroupMessage(ctx context.Context, id string) error {
	return globalDB.Client.HideGroupMessage(ctx, id)
}

func MuteGroupUser(ctx context.Context, pubkey string) error {
	return globalDB.Client.MuteGroupUser(ctx, pubkey)
}

func SaveZap(ctx context.Context, zap *Zap) (bool, error) {
	return globalDB.Client.SaveZap(ctx, zap)
}

func GetZap(ctx context.Context, id string) (*Zap, error) {
	return globalDB.Client.GetZap(ctx, id)
}

func UpsertList(ctx context.Context, list *ListRecord) error {
	return globalDB.Client.UpsertList(ctx, list)
}

func GetList(ctx context.Context, pubkey string, kind int, listTag string) (*ListRecord, error) {
	return globalDB.Client.GetList(ctx, pubkey, kind, listTag)
}

func UpsertRelayMetadata(ctx context.Context, metadata *RelayMetadata) error {
	return globalDB.Client.UpsertRelayMetadata(ctx, metadata)
}

func GetRelayMetadata(ctx context.Context, pubkey string) (*RelayMetadata, error) {
	return globalDB.Client.GetRelayMetadata(ctx, pubkey)
}

func SaveRelay(ctx context.Context, relay *RelayRecord) error {
	return globalDB.Client.SaveRelay(ctx, relay)
}

func DeleteRelay(ctx context.Context, url string, deletedAt int64) error {
	return globalDB.Client.DeleteRelay(ctx, url, deletedAt)
}

func GetRelay(ctx context.Context, url string) (*RelayRecord, error) {
	return globalDB.Client.GetRelay(ctx, url)
}

func ListRelays(ctx context.Context, includeDeleted bool) ([]*RelayRecord, error) {
	return globalDB.Client.ListRelays(ctx, includeDeleted)
}
