// SPDX-License-Identifier: ice License 1.0

package model

import (
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	now := time.Now()
	ev := Event{Event: nostr.Event{
		ID:        "bogus",
		Sig:       "bogus",
		CreatedAt: nostr.Timestamp(now.Unix()),
	}}
	require.True(t, ev.Validate(now))

	t.Run("missing id", func(t *testing.T) {
		e := ev
		e.ID = ""
		require.False(t, e.Validate(now))
	})
	t.Run("missing sig", func(t *testing.T) {
		e := ev
		e.Sig = ""
		require.False(t, e.Validate(now))
	})
	t.Run("future created_at", func(t *testing.T) {
		e := ev
		e.CreatedAt = nostr.Timestamp(now.Add(time.Hour).Unix())
		require.False(t, e.Validate(now))
	})
}

func TestThreadLinkage(t *testing.T) {
	t.Run("root marker wins", func(t *testing.T) {
		ev := Event{Event: nostr.Event{Tags: Tags{
			{"e", "first1"},
			{"e", "root1", "", "root"},
			{"e", "parent1"},
		}}}
		require.Equal(t, "root1", ev.MainEventID())
		require.Equal(t, "parent1", ev.ReplyEventID())
	})
	t.Run("first e-tag fallback", func(t *testing.T) {
		ev := Event{Event: nostr.Event{Tags: Tags{
			{"e", "root1"},
			{"e", "parent1"},
		}}}
		require.Equal(t, "root1", ev.MainEventID())
		require.Equal(t, "parent1", ev.ReplyEventID())
	})
	t.Run("no e-tags means root-level note", func(t *testing.T) {
		ev := Event{Event: nostr.Event{Tags: Tags{{"p", "somebody"}}}}
		require.Empty(t, ev.MainEventID())
		require.Empty(t, ev.ReplyEventID())
	})
}

func TestMentions(t *testing.T) {
	ev := Event{Event: nostr.Event{Tags: Tags{
		{"e", "note1"},
		{"p", "alice"},
		{"p", "bob"},
	}}}
	require.True(t, ev.Mentions("bob"))
	require.False(t, ev.Mentions("carol"))
}

func TestRepostID(t *testing.T) {
	tags := Tags{{"p", "alice"}, {"e", "reposted1"}, {"e", "reposted2"}}

	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"single reference", "look at this #[1]", "reposted1"},
		{"last match wins", "#[1] and #[2]", "reposted2"},
		{"p-tag reference ignored", "#[0]", ""},
		{"out of range", "#[9]", ""},
		{"no reference", "plain note", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev := Event{Event: nostr.Event{Content: tc.content, Tags: tags}}
			require.Equal(t, tc.want, ev.RepostID())
		})
	}
}

func TestConversationIDSymmetry(t *testing.T) {
	ab := ConversationID("alicepubkey", "bobpubkey")
	ba := ConversationID("bobpubkey", "alicepubkey")
	require.Equal(t, ab, ba)
	require.NotEmpty(t, ab)
	require.NotEqual(t, ab, ConversationID("alicepubkey", "carolpubkey"))
}

func TestProfileContent(t *testing.T) {
	ev := Event{Event: nostr.Event{
		Content: `{"name":"alice","picture":"https://example.com/a.png","about":"hi","lud06":"lnurl1...","lud16":"alice@wallet.example.com","nip05":"alice@example.com"}`,
	}}
	profile := ev.Profile()
	require.Equal(t, "alice", profile.Name)
	require.Equal(t, "https://example.com/a.png", profile.Picture)
	require.Equal(t, "hi", profile.About)
	require.Equal(t, "lnurl1...", profile.Lnurl)
	require.Equal(t, "alice@wallet.example.com", profile.LnAddress)
	require.Equal(t, "alice@example.com", profile.Nip05)

	t.Run("malformed content", func(t *testing.T) {
		broken := Event{Event: nostr.Event{Content: "not json"}}
		require.Empty(t, broken.Profile().Name)
	})
}
