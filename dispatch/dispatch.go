// SPDX-License-Identifier: ice License 1.0

package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"

	"github.com/nostrich-app/nostrich/database/cache"
	"github.com/nostrich-app/nostrich/model"
)

type (
	// Resolver performs the opportunistic external lookups during profile
	// ingestion. Both calls fail closed and must never panic into the
	// ingestion path.
	Resolver interface {
		VerifyNip05(ctx context.Context, identifier, expectedPubkey string) bool
		ResolveZapPubkey(ctx context.Context, lnurlOrAddress string) string
	}

	handler func(ctx context.Context, event *model.Event) error

	// Dispatcher routes validated events by kind into the cache. One
	// instance serves all relay connections; per-row conflicts resolve
	// inside the cache's conditional statements.
	Dispatcher struct {
		identity       string
		resolver       Resolver
		handlers       map[model.Kind]handler
		onNotification func(eventID string, kind model.Kind)
	}
)

var ErrInvalidEvent = errors.New("invalid event")

func New(identity string, resolver Resolver) *Dispatcher {
	d := &Dispatcher{identity: identity, resolver: resolver}
	d.handlers = map[model.Kind]handler{
		model.KindMetadata:            d.handleUserMetadata,
		model.KindTextNote:            d.handleNote,
		model.KindRecommendServer:     d.handleNote,
		model.KindContactList:         d.handleContactList,
		model.KindDirectMessage:       d.handleDirectMessage,
		model.KindReaction:            d.handleReaction,
		model.KindGroupCreation:       d.handleGroupCreate,
		model.KindGroupMetadata:       d.handleGroupUpdate,
		model.KindGroupMessage:        d.handleGroupMessage,
		model.KindGroupHideMessage:    d.handleGroupHide,
		model.KindGroupMuteUser:       d.handleGroupMute,
		model.KindRelayListMetadata:   d.handleRelayMetadata,
		model.KindZapReceipt:          d.handleZap,
		model.KindMuteList:            d.handleList,
		model.KindPinList:             d.handleList,
		model.KindCategorizedBookmark: d.handleList,
	}

	return d
}

// Dispatch folds one decoded event into the cache. Unknown kinds are
// recorded for provenance but produce no mutation.
func (d *Dispatcher) Dispatch(ctx context.Context, event *model.Event, relayURL string) error {
	if !event.Validate(time.Now()) {
		return errors.Wrapf(ErrInvalidEvent, "id: %q", event.ID)
	}

	if err := cache.SaveEventRelay(ctx, event.ID, event.PubKey, relayURL); err != nil {
		return errors.Wrapf(err, "failed to record provenance for %v", event.ID)
	}

	hdl, found := d.handlers[event.Kind]
	if !found {
		return nil
	}

	return hdl(ctx, event)
}

func (d *Dispatcher) handleNote(ctx context.Context, event *model.Event) error {
	mentioned := d.identity != "" && event.Mentions(d.identity)
	note := &cache.Note{
		ID:            event.ID,
		Content:       event.Content,
		CreatedAt:     int64(event.CreatedAt),
		Kind:          event.Kind,
		Pubkey:        event.PubKey,
		Sig:           event.Sig,
		Tags:          tagsJSON(event),
		MainEventID:   event.MainEventID(),
		ReplyEventID:  event.ReplyEventID(),
		UserMentioned: mentioned,
		RepostID:      event.RepostID(),
	}
	if err := cache.SaveNote(ctx, note); err != nil {
		return err
	}
	if mentioned && event.PubKey != d.identity {
		return d.notify(ctx, event)
	}

	return nil
}

func (d *Dispatcher) handleUserMetadata(ctx context.Context, event *model.Event) error {
	stored, err := cache.GetProfile(ctx, event.PubKey)
	if err != nil {
		return err
	}
	if stored != nil && stored.CreatedAt >= int64(event.CreatedAt) {
		// Stale update, skip the resolver round-trips as well.
		return nil
	}

	metadata := event.Profile()

	validNip05 := stored != nil && stored.ValidNip05
	if metadata.Nip05 != "" && (stored == nil || stored.Nip05 != metadata.Nip05 || !stored.ValidNip05) {
		validNip05 = d.resolver.VerifyNip05(ctx, metadata.Nip05, event.PubKey)
	}

	zapPubkey := ""
	if stored != nil {
		zapPubkey = stored.ZapPubkey
	}
	lightningAddress := metadata.LnAddress
	if lightningAddress == "" {
		lightningAddress = metadata.Lnurl
	}
	if lightningAddress != "" && (stored == nil || stored.LnAddress != metadata.LnAddress || zapPubkey == "") {
		zapPubkey = d.resolver.ResolveZapPubkey(ctx, lightningAddress)
	}

	return cache.UpsertProfile(ctx, &cache.Profile{
		ID:         event.PubKey,
		Name:       metadata.Name,
		Picture:    metadata.Picture,
		About:      metadata.About,
		Lnurl:      metadata.Lnurl,
		LnAddress:  metadata.LnAddress,
		Nip05:      metadata.Nip05,
		ZapPubkey:  zapPubkey,
		ValidNip05: validNip05,
		MainRelay:  metadata.MainRelay,
		CreatedAt:  int64(event.CreatedAt),
	})
}

func (d *Dispatcher) handleContactList(ctx context.Context, event *model.Event) error {
	if event.PubKey == d.identity {
		pTags := event.FilterTags("p")
		contacts := make([]cache.Contact, 0, len(pTags))
		for _, tag := range pTags {
			contact := cache.Contact{ID: tag.Value()}
			if len(tag) > 2 {
				contact.MainRelay = tag[2]
			}
			if len(tag) > 3 {
				contact.Name = tag[3]
			}
			contacts = append(contacts, contact)
		}

		return cache.ReplaceContacts(ctx, int64(event.CreatedAt), contacts)
	}

	if d.identity != "" && event.Mentions(d.identity) {
		return cache.SetFollower(ctx, event.PubKey, int64(event.CreatedAt))
	}

	return nil
}

func (d *Dispatcher) handleDirectMessage(ctx context.Context, event *model.Event) error {
	return cache.SaveDirectMessage(ctx, &cache.DirectMessage{
		ID:             event.ID,
		Content:        event.Content,
		CreatedAt:      int64(event.CreatedAt),
		Kind:           event.Kind,
		Pubkey:         event.PubKey,
		Sig:            event.Sig,
		Tags:           tagsJSON(event),
		ConversationID: model.ConversationID(event.PubKey, event.FirstTaggedPubkey()),
	})
}

func (d *Dispatcher) handleReaction(ctx context.Context, event *model.Event) error {
	reaction := &cache.Reaction{
		ID:             event.ID,
		Content:        event.Content,
		CreatedAt:      int64(event.CreatedAt),
		Kind:           event.Kind,
		Pubkey:         event.PubKey,
		Sig:            event.Sig,
		Tags:           tagsJSON(event),
		Positive:       event.Content != "-",
		ReactedEventID: event.LastTaggedEvent(),
		ReactedUserID:  event.LastTaggedPubkey(),
	}
	if err := cache.SaveReaction(ctx, reaction); err != nil {
		return err
	}
	if d.identity != "" && reaction.ReactedUserID == d.identity && event.PubKey != d.identity {
		return d.notify(ctx, event)
	}

	return nil
}

func (d *Dispatcher) handleGroupCreate(ctx context.Context, event *model.Event) error {
	return cache.UpsertGroup(ctx, groupFromEvent(event, event.ID))
}

func (d *Dispatcher) handleGroupUpdate(ctx context.Context, event *model.Event) error {
	groupID := event.LastTaggedEvent()
	if groupID == "" {
		return nil
	}

	return cache.UpsertGroup(ctx, groupFromEvent(event, groupID))
}

func (d *Dispatcher) handleGroupMessage(ctx context.Context, event *model.Event) error {
	message := &cache.GroupMessage{
		ID:        event.ID,
		GroupID:   event.MainEventID(),
		Content:   event.Content,
		CreatedAt: int64(event.CreatedAt),
		Pubkey:    event.PubKey,
		Sig:       event.Sig,
		Tags:      tagsJSON(event),
	}
	if err := cache.SaveGroupMessage(ctx, message); err != nil {
		return err
	}
	if d.identity != "" && event.Mentions(d.identity) && event.PubKey != d.identity {
		return d.notify(ctx, event)
	}

	return nil
}

func (d *Dispatcher) handleGroupHide(ctx context.Context, event *model.Event) error {
	messageID := event.LastTaggedEvent()
	if messageID == "" {
		return nil
	}

	return cache.HideGroupMessage(ctx, messageID)
}

func (d *Dispatcher) handleGroupMute(ctx context.Context, event *model.Event) error {
	pubkey := event.LastTaggedPubkey()
	if pubkey == "" {
		return nil
	}

	return cache.MuteGroupUser(ctx, pubkey)
}

func (d *Dispatcher) handleRelayMetadata(ctx context.Context, event *model.Event) error {
	return cache.UpsertRelayMetadata(ctx, &cache.RelayMetadata{
		Pubkey:    event.PubKey,
		ID:        event.ID,
		CreatedAt: int64(event.CreatedAt),
		Content:   event.Content,
		Tags:      tagsJSON(event),
		Sig:       event.Sig,
	})
}

func (d *Dispatcher) handleZap(ctx context.Context, event *model.Event) error {
	invoice := ""
	if tag := event.Tags.GetFirst([]string{"bolt11"}); tag != nil {
		invoice = tag.Value()
	}
	zapperUserID := ""
	if tag := event.Tags.GetFirst([]string{"description"}); tag != nil {
		// The description tag embeds the signed zap request; its author
		// is the actual sender of the zap.
		zapperUserID = gjson.Get(tag.Value(), "pubkey").String()
	}

	zap := &cache.Zap{
		ID:            event.ID,
		Amount:        model.InvoiceAmount(invoice),
		Content:       event.Content,
		CreatedAt:     int64(event.CreatedAt),
		Pubkey:        event.PubKey,
		Sig:           event.Sig,
		Tags:          tagsJSON(event),
		ZapperUserID:  zapperUserID,
		ZappedEventID: event.LastTaggedEvent(),
		ZappedUserID:  event.LastTaggedPubkey(),
	}
	accepted, err := cache.SaveZap(ctx, zap)
	if err != nil {
		return err
	}
	if accepted && d.identity != "" && zap.ZappedUserID == d.identity {
		return d.notify(ctx, event)
	}

	return nil
}

func (d *Dispatcher) handleList(ctx context.Context, event *model.Event) error {
	return cache.UpsertList(ctx, &cache.ListRecord{
		Pubkey:    event.PubKey,
		Kind:      event.Kind,
		ListTag:   event.ListTag(),
		Content:   event.Content,
		Tags:      tagsJSON(event),
		CreatedAt: int64(event.CreatedAt),
	})
}

// RegisterNotificationListener surfaces notification rows to the host as
// they are written. Must be called before the first Dispatch.
func (d *Dispatcher) RegisterNotificationListener(listener func(eventID string, kind model.Kind)) {
	d.onNotification = listener
}

func (d *Dispatcher) notify(ctx context.Context, event *model.Event) error {
	if err := cache.SaveNotification(ctx, &cache.Notification{
		EventID:   event.ID,
		Kind:      event.Kind,
		Pubkey:    event.PubKey,
		CreatedAt: int64(event.CreatedAt),
	}); err != nil {
		return err
	}
	if d.onNotification != nil {
		d.onNotification(event.ID, event.Kind)
	}

	return nil
}

func groupFromEvent(event *model.Event, groupID string) *cache.Group {
	content := gjson.Parse(event.Content)

	return &cache.Group{
		ID:        groupID,
		Name:      content.Get("name").String(),
		About:     content.Get("about").String(),
		Picture:   content.Get("picture").String(),
		CreatedAt: int64(event.CreatedAt),
		Pubkey:    event.PubKey,
	}
}

func tagsJSON(event *model.Event) string {
	if len(event.Tags) == 0 {
		return "[]"
	}
	data, err := json.Marshal(event.Tags)
	if err != nil {
		return "[]"
	}

	return string(data)
}
