// SPDX-License-Identifier: ice License 1.0

package relay

import (
	"context"
	"log"
	"sync"
	stdlibtime "time"

	"github.com/cockroachdb/errors"
	"github.com/nbd-wtf/go-nostr"
	"github.com/puzpuzpuz/xsync/v2"

	"github.com/nostrich-app/nostrich/database/cache"
	"github.com/nostrich-app/nostrich/dispatch"
	"github.com/nostrich-app/nostrich/model"
)

type (
	// Notifier surfaces per-relay protocol moments to the host application.
	// Implementations must be cheap; they run on the read loop goroutines.
	Notifier interface {
		EventReceived(relayURL, eventID string)
		PublishConfirmed(relayURL, eventID string, ok bool, reason string)
		AuthChallenge(relayURL, challenge string)
		PayRequest(relayURL, invoice, description, url string)
	}

	// NopNotifier discards every notification.
	NopNotifier struct{}

	// Pool maintains one Connection per configured relay and funnels every
	// inbound EVENT through the dedup gate into the dispatcher.
	Pool struct {
		cfg        *Config
		dispatcher *dispatch.Dispatcher
		dedup      *dispatch.DedupCache
		notifier   Notifier
		relays     *xsync.MapOf[string, *poolEntry]

		identityMx sync.Mutex
		identity   string
	}

	// Attributes are the per-relay routing flags kept alongside the live
	// connection and mirrored into the relays table.
	Attributes struct {
		Active     bool
		GlobalFeed bool
		Paid       bool
		Resilient  bool
	}

	// poolEntry pairs a live connection with its routing flags. The flags
	// are written by AddRelay/UpdateRelay and read on the send paths from
	// other goroutines, hence the lock.
	poolEntry struct {
		conn *Connection

		attrsMx sync.Mutex
		attrs   Attributes
	}
)

func (e *poolEntry) attributes() Attributes {
	e.attrsMx.Lock()
	defer e.attrsMx.Unlock()

	return e.attrs
}

func (e *poolEntry) setAttributes(attrs Attributes) {
	e.attrsMx.Lock()
	e.attrs = attrs
	e.attrsMx.Unlock()
}

func (NopNotifier) EventReceived(_, _ string)                      {}
func (NopNotifier) PublishConfirmed(_, _ string, _ bool, _ string) {}
func (NopNotifier) AuthChallenge(_, _ string)                      {}
func (NopNotifier) PayRequest(_, _, _, _ string)                   {}

func NewPool(cfg *Config, dispatcher *dispatch.Dispatcher, notifier Notifier) *Pool {
	if notifier == nil {
		notifier = NopNotifier{}
	}

	return &Pool{
		cfg:        cfg,
		dispatcher: dispatcher,
		dedup:      dispatch.NewDedupCache(cfg.DedupCacheSize),
		notifier:   notifier,
		relays:     xsync.NewMapOf[*poolEntry](),
	}
}

// AddRelay registers a relay, persists it and connects right away when an
// identity is already bound. Re-adding a known relay only updates its
// attributes.
func (p *Pool) AddRelay(ctx context.Context, url string, attrs Attributes) error {
	if url == "" {
		return errors.New("empty relay url")
	}

	if err := cache.SaveRelay(ctx, &cache.RelayRecord{
		Url:        url,
		Active:     attrs.Active,
		GlobalFeed: attrs.GlobalFeed,
		Paid:       attrs.Paid,
		Resilient:  attrs.Resilient,
	}); err != nil {
		return errors.Wrapf(err, "failed to persist relay %v", url)
	}

	entry, loaded := p.relays.LoadOrStore(url, &poolEntry{
		conn:  newConnection(url, p.cfg, p.handleMessage, p.logConnectivity),
		attrs: attrs,
	})
	if loaded {
		entry.setAttributes(attrs)
	}

	if identity := p.boundIdentity(); identity != "" && attrs.Active {
		entry.conn.Connect(ctx, identity)
	}

	return nil
}

// RemoveRelay disconnects the relay and tombstones its row. The id stays
// reserved so a re-add resurrects the same row.
func (p *Pool) RemoveRelay(ctx context.Context, url string) error {
	if entry, found := p.relays.LoadAndDelete(url); found {
		entry.conn.Disconnect()
	}

	return errors.Wrapf(cache.DeleteRelay(ctx, url, stdlibtime.Now().Unix()), "failed to tombstone relay %v", url)
}

// UpdateRelay changes the routing flags of a known relay, registering it
// when it is new. Deactivating a relay closes its connection.
func (p *Pool) UpdateRelay(ctx context.Context, url string, attrs Attributes) error {
	entry, found := p.relays.Load(url)
	if !found {
		return p.AddRelay(ctx, url, attrs)
	}

	wasActive := entry.attributes().Active
	entry.setAttributes(attrs)
	if err := cache.SaveRelay(ctx, &cache.RelayRecord{
		Url:        url,
		Active:     attrs.Active,
		GlobalFeed: attrs.GlobalFeed,
		Paid:       attrs.Paid,
		Resilient:  attrs.Resilient,
	}); err != nil {
		return errors.Wrapf(err, "failed to persist relay %v", url)
	}

	if wasActive && !attrs.Active {
		entry.conn.Disconnect()
	}
	if !wasActive && attrs.Active {
		if identity := p.boundIdentity(); identity != "" {
			entry.conn.Connect(ctx, identity)
		}
	}

	return nil
}

// ConnectAll binds the local identity and brings up every active relay
// from the persisted set. A failure on one relay never blocks the others;
// handshakes run asynchronously per connection.
func (p *Pool) ConnectAll(ctx context.Context, identity string) error {
	p.identityMx.Lock()
	p.identity = identity
	p.identityMx.Unlock()

	records, err := cache.ListRelays(ctx, false)
	if err != nil {
		return errors.Wrap(err, "failed to load persisted relays")
	}
	for _, record := range records {
		attrs := Attributes{
			Active:     record.Active,
			GlobalFeed: record.GlobalFeed,
			Paid:       record.Paid,
			Resilient:  record.Resilient,
		}
		entry, loaded := p.relays.LoadOrStore(record.Url, &poolEntry{
			conn:  newConnection(record.Url, p.cfg, p.handleMessage, p.logConnectivity),
			attrs: attrs,
		})
		if loaded {
			entry.setAttributes(attrs)
		}
		if entry.attributes().Active {
			entry.conn.Connect(ctx, identity)
		}
	}

	return nil
}

// SendAll fans a client message out to every active relay. With
// globalFeedOnly set, only relays flagged for the global feed receive it.
func (p *Pool) SendAll(ctx context.Context, message string, globalFeedOnly bool) {
	p.relays.Range(func(_ string, entry *poolEntry) bool {
		if attrs := entry.attributes(); attrs.Active && (!globalFeedOnly || attrs.GlobalFeed) {
			entry.conn.Send(ctx, message)
		}

		return true
	})
}

// SendOne targets a single relay by url; unknown or inactive relays are a
// silent no-op, matching the fan-out semantics.
func (p *Pool) SendOne(ctx context.Context, message, url string) {
	if entry, found := p.relays.Load(url); found && entry.attributes().Active {
		entry.conn.Send(ctx, message)
	}
}

// Close disconnects every relay. Connections stay registered so a later
// ConnectAll can revive the pool.
func (p *Pool) Close() {
	p.relays.Range(func(_ string, entry *poolEntry) bool {
		entry.conn.Disconnect()

		return true
	})
}

func (p *Pool) handleMessage(envelope nostr.Envelope, relayURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.dispatchTimeout())
	defer cancel()

	switch env := envelope.(type) {
	case *nostr.EventEnvelope:
		event := &model.Event{Event: env.Event}
		p.notifier.EventReceived(relayURL, event.ID)
		if !p.dedup.ShouldProcess(event.ID) {
			return
		}
		if err := p.dispatcher.Dispatch(ctx, event, relayURL); err != nil {
			log.Printf("WARN: failed to dispatch event %v from %v: %v", event.ID, relayURL, err)
		}
	case *nostr.OKEnvelope:
		p.notifier.PublishConfirmed(relayURL, env.EventID, env.OK, env.Reason)
	case *nostr.AuthEnvelope:
		challenge := ""
		if env.Challenge != nil {
			challenge = *env.Challenge
		}
		p.notifier.AuthChallenge(relayURL, challenge)
	case *model.PayEnvelope:
		p.notifier.PayRequest(relayURL, env.Invoice, env.Description, env.Url)
	case *nostr.NoticeEnvelope:
		log.Printf("notice from %v: %v", relayURL, string(*env))
	default:
		log.Printf("WARN: ignoring %v envelope from %v", envelope.Label(), relayURL)
	}
}

func (p *Pool) boundIdentity() string {
	p.identityMx.Lock()
	defer p.identityMx.Unlock()

	return p.identity
}

func (p *Pool) logConnectivity(url string, state State) {
	log.Printf("relay %v is %v", url, state)
}
