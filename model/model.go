// SPDX-License-Identifier: ice License 1.0

package model

import (
	"errors"

	"github.com/nbd-wtf/go-nostr"
)

type (
	Tag       = nostr.Tag
	Tags      = nostr.Tags
	Timestamp = nostr.Timestamp
	Kind      = int
)

// Kinds this client folds into the local cache. Anything else is accepted on
// the wire but produces no mutation.
const (
	KindMetadata            Kind = 0
	KindTextNote            Kind = 1
	KindRecommendServer     Kind = 2
	KindContactList         Kind = 3
	KindDirectMessage       Kind = 4
	KindReaction            Kind = 7
	KindGroupCreation       Kind = 40
	KindGroupMetadata       Kind = 41
	KindGroupMessage        Kind = 42
	KindGroupHideMessage    Kind = 43
	KindGroupMuteUser       Kind = 44
	KindRelayListMetadata   Kind = 1002
	KindZapReceipt          Kind = 9735
	KindMuteList            Kind = 10000
	KindPinList             Kind = 10001
	KindCategorizedBookmark Kind = 30001
)

var (
	ErrUnknownMessage = errors.New("unknown message")
	ErrParseMessage   = errors.New("parse message")
)
