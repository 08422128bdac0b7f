// SPDX-License-Identifier: ice License 1.0

package relay

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"

	"github.com/nostrich-app/nostrich/database/cache"
	"github.com/nostrich-app/nostrich/dispatch"
)

const testIdentity = "localuserpubkey"

type stubResolver struct{}

func (stubResolver) VerifyNip05(_ context.Context, _, _ string) bool     { return false }
func (stubResolver) ResolveZapPubkey(_ context.Context, _ string) string { return "" }

type recordingNotifier struct {
	mx        sync.Mutex
	received  []string
	confirmed []string
}

func (n *recordingNotifier) EventReceived(_, eventID string) {
	n.mx.Lock()
	defer n.mx.Unlock()
	n.received = append(n.received, eventID)
}

func (n *recordingNotifier) PublishConfirmed(_, eventID string, _ bool, _ string) {
	n.mx.Lock()
	defer n.mx.Unlock()
	n.confirmed = append(n.confirmed, eventID)
}

func (n *recordingNotifier) AuthChallenge(_, _ string)    {}
func (n *recordingNotifier) PayRequest(_, _, _, _ string) {}

func (n *recordingNotifier) receivedCount() int {
	n.mx.Lock()
	defer n.mx.Unlock()

	return len(n.received)
}

func (n *recordingNotifier) confirmedCount() int {
	n.mx.Lock()
	defer n.mx.Unlock()

	return len(n.confirmed)
}

func eventMessage(t *testing.T, event *nostr.Event) string {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)

	return `["EVENT","sub1",` + string(data) + `]`
}

func TestPoolDedupAcrossRelays(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), testDeadline)
	defer cancel()
	cache.MustInit()
	first, second := newTestRelay(t), newTestRelay(t)
	notifier := new(recordingNotifier)
	pool := NewPool(testConfig(), dispatch.New(testIdentity, stubResolver{}), notifier)
	defer pool.Close()

	require.NoError(t, pool.AddRelay(ctx, first.url(), Attributes{Active: true, GlobalFeed: true}))
	require.NoError(t, pool.AddRelay(ctx, second.url(), Attributes{Active: true}))
	require.NoError(t, pool.ConnectAll(ctx, testIdentity))
	require.Eventually(t, func() bool {
		return first.connects.Load() == 1 && second.connects.Load() == 1
	}, testDeadline, 10*time.Millisecond)

	event := &nostr.Event{
		ID:        "event" + uuid.NewString(),
		PubKey:    "author" + uuid.NewString(),
		CreatedAt: nostr.Timestamp(time.Now().Unix()),
		Kind:      1,
		Content:   "seen on two relays",
		Sig:       "sig" + uuid.NewString(),
	}
	first.broadcast(t, eventMessage(t, event))
	second.broadcast(t, eventMessage(t, event))

	// Both deliveries surface, the dispatcher runs once.
	require.Eventually(t, func() bool {
		return notifier.receivedCount() == 2
	}, testDeadline, 10*time.Millisecond)
	note, err := cache.GetNote(ctx, event.ID)
	require.NoError(t, err)
	require.NotNil(t, note)
	require.Equal(t, "seen on two relays", note.Content)
}

func TestPoolSendRouting(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), testDeadline)
	defer cancel()
	cache.MustInit()
	global, private := newTestRelay(t), newTestRelay(t)
	pool := NewPool(testConfig(), dispatch.New(testIdentity, stubResolver{}), nil)
	defer pool.Close()

	require.NoError(t, pool.AddRelay(ctx, global.url(), Attributes{Active: true, GlobalFeed: true}))
	require.NoError(t, pool.AddRelay(ctx, private.url(), Attributes{Active: true}))
	require.NoError(t, pool.ConnectAll(ctx, testIdentity))
	require.Eventually(t, func() bool {
		return global.connects.Load() == 1 && private.connects.Load() == 1
	}, testDeadline, 10*time.Millisecond)

	pool.SendAll(ctx, `["REQ","global",{"kinds":[1]}]`, true)
	require.Eventually(t, func() bool {
		return len(global.messages()) == 1
	}, testDeadline, 10*time.Millisecond)
	require.Empty(t, private.messages(), "non-global relay must not receive global feed requests")

	pool.SendAll(ctx, `["REQ","all",{"kinds":[0]}]`, false)
	require.Eventually(t, func() bool {
		return len(global.messages()) == 2 && len(private.messages()) == 1
	}, testDeadline, 10*time.Millisecond)

	pool.SendOne(ctx, `["CLOSE","all"]`, private.url())
	require.Eventually(t, func() bool {
		return len(private.messages()) == 2
	}, testDeadline, 10*time.Millisecond)
}

func TestPoolSurfacesPublishConfirmations(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), testDeadline)
	defer cancel()
	cache.MustInit()
	server := newTestRelay(t)
	notifier := new(recordingNotifier)
	pool := NewPool(testConfig(), dispatch.New(testIdentity, stubResolver{}), notifier)
	defer pool.Close()

	require.NoError(t, pool.AddRelay(ctx, server.url(), Attributes{Active: true}))
	require.NoError(t, pool.ConnectAll(ctx, testIdentity))
	require.Eventually(t, func() bool {
		return server.connects.Load() == 1
	}, testDeadline, 10*time.Millisecond)

	server.broadcast(t, `["OK","event123",true,""]`)
	require.Eventually(t, func() bool {
		return notifier.confirmedCount() == 1
	}, testDeadline, 10*time.Millisecond)
}

func TestPoolRejectsEmptyRelayURL(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), testDeadline)
	defer cancel()
	cache.MustInit()
	pool := NewPool(testConfig(), dispatch.New(testIdentity, stubResolver{}), nil)

	require.Error(t, pool.AddRelay(ctx, "", Attributes{Active: true}))
}

func TestPoolAttributeUpdatesDuringFanout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), testDeadline)
	defer cancel()
	cache.MustInit()
	server := newTestRelay(t)
	pool := NewPool(testConfig(), dispatch.New(testIdentity, stubResolver{}), nil)
	defer pool.Close()

	require.NoError(t, pool.AddRelay(ctx, server.url(), Attributes{Active: true, GlobalFeed: true}))
	require.NoError(t, pool.ConnectAll(ctx, testIdentity))
	require.Eventually(t, func() bool {
		return server.connects.Load() == 1
	}, testDeadline, 10*time.Millisecond)

	// Routing flags get rewritten while the send paths read them.
	const sends = 200
	updateErrs := make(chan error, sends)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < sends; i++ {
			updateErrs <- pool.UpdateRelay(ctx, server.url(), Attributes{Active: true, GlobalFeed: i%2 == 0})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < sends; i++ {
			pool.SendOne(ctx, `["CLOSE","load"]`, server.url())
		}
	}()
	wg.Wait()
	close(updateErrs)
	for err := range updateErrs {
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool {
		return len(server.messages()) == sends
	}, testDeadline, 10*time.Millisecond)

	// The last written flags decide the routing afterwards.
	require.NoError(t, pool.UpdateRelay(ctx, server.url(), Attributes{Active: true}))
	pool.SendAll(ctx, `["REQ","closedfeed",{"kinds":[1]}]`, true)
	require.NoError(t, pool.UpdateRelay(ctx, server.url(), Attributes{Active: true, GlobalFeed: true}))
	pool.SendAll(ctx, `["REQ","openfeed",{"kinds":[1]}]`, true)
	require.Eventually(t, func() bool {
		return len(server.messages()) == sends+1
	}, testDeadline, 10*time.Millisecond)
	received := server.messages()
	require.Contains(t, received[len(received)-1], "openfeed")
}

func TestPoolRemoveRelayTombstones(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), testDeadline)
	defer cancel()
	cache.MustInit()
	server := newTestRelay(t)
	pool := NewPool(testConfig(), dispatch.New(testIdentity, stubResolver{}), nil)
	defer pool.Close()

	require.NoError(t, pool.AddRelay(ctx, server.url(), Attributes{Active: true}))
	require.NoError(t, pool.ConnectAll(ctx, testIdentity))
	require.Eventually(t, func() bool {
		return server.connects.Load() == 1
	}, testDeadline, 10*time.Millisecond)

	require.NoError(t, pool.RemoveRelay(ctx, server.url()))
	record, err := cache.GetRelay(ctx, server.url())
	require.NoError(t, err)
	require.NotNil(t, record)
	require.NotZero(t, record.DeletedAt)

	active, err := cache.ListRelays(ctx, false)
	require.NoError(t, err)
	for _, rec := range active {
		require.NotEqual(t, server.url(), rec.Url)
	}
}
