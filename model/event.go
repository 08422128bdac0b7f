// SPDX-License-Identifier: ice License 1.0

package model

import (
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/nbd-wtf/go-nostr"
	"github.com/tidwall/gjson"
)

type (
	Event struct {
		nostr.Event
	}

	// ProfileMetadata is the decoded content of a kind-0 event.
	ProfileMetadata struct {
		Name      string
		Picture   string
		About     string
		Lnurl     string
		LnAddress string
		Nip05     string
		MainRelay string
	}
)

var repostRefRx = regexp.MustCompile(`#\[(\d+)\]`)

// Validate reports whether the event is worth dispatching at all: it must
// carry an id and a signature, and created_at must not be in the future
// (author timestamps are untrusted, the skew guard stops obvious garbage).
func (e *Event) Validate(now time.Time) bool {
	return e.ID != "" && e.Sig != "" && int64(e.CreatedAt) <= now.Unix()
}

func (e *Event) FilterTags(name string) Tags {
	filtered := make(Tags, 0, len(e.Tags))
	for _, tag := range e.Tags {
		if tag.Key() == name {
			filtered = append(filtered, tag)
		}
	}

	return filtered
}

// MainEventID resolves the thread root: the e-tag marked "root", else the
// first e-tag. Empty for root-level notes.
func (e *Event) MainEventID() string {
	eTags := e.FilterTags("e")
	mainEventID := ""
	for _, tag := range eTags {
		if len(tag) > 3 && tag[3] == "root" {
			mainEventID = tag.Value()
		}
	}
	if mainEventID == "" && len(eTags) > 0 {
		mainEventID = eTags[0].Value()
	}

	return mainEventID
}

// ReplyEventID is the nearest parent in the thread: the last e-tag.
func (e *Event) ReplyEventID() string {
	eTags := e.FilterTags("e")
	if len(eTags) == 0 {
		return ""
	}

	return eTags[len(eTags)-1].Value()
}

func (e *Event) Mentions(pubkey string) bool {
	for _, tag := range e.FilterTags("p") {
		if tag.Value() == pubkey {
			return true
		}
	}

	return false
}

// RepostID scans the content for positional back-references of the form
// "#[n]" and returns the value of the referenced tag when it is an e-tag.
// The last matching reference wins.
func (e *Event) RepostID() string {
	match := ""
	for _, m := range repostRefRx.FindAllStringSubmatch(e.Content, -1) {
		position, err := strconv.Atoi(m[1])
		if err != nil || position < 0 || position >= len(e.Tags) {
			continue
		}
		if tag := e.Tags[position]; tag.Key() == "e" {
			match = tag.Value()
		}
	}

	return match
}

func (e *Event) FirstTaggedPubkey() string {
	if tag := e.Tags.GetFirst([]string{"p"}); tag != nil {
		return tag.Value()
	}

	return ""
}

func (e *Event) LastTaggedEvent() string {
	if tag := e.Tags.GetLast([]string{"e"}); tag != nil {
		return tag.Value()
	}

	return ""
}

func (e *Event) LastTaggedPubkey() string {
	if tag := e.Tags.GetLast([]string{"p"}); tag != nil {
		return tag.Value()
	}

	return ""
}

func (e *Event) ListTag() string {
	if tag := e.Tags.GetFirst([]string{"d"}); tag != nil {
		return tag.Value()
	}

	return ""
}

// Profile decodes the kind-0 content. Unknown or malformed fields are
// simply empty, a profile update never fails to parse as a whole.
func (e *Event) Profile() ProfileMetadata {
	content := gjson.Parse(e.Content)

	return ProfileMetadata{
		Name:      content.Get("name").String(),
		Picture:   content.Get("picture").String(),
		About:     content.Get("about").String(),
		Lnurl:     content.Get("lud06").String(),
		LnAddress: content.Get("lud16").String(),
		Nip05:     content.Get("nip05").String(),
		MainRelay: content.Get("main_relay").String(),
	}
}

// ConversationID derives a stable direct-message conversation identifier
// from the two participants. The pair is sorted first so both ends compute
// the same id no matter who sent the first message.
func ConversationID(a, b string) string {
	participants := []string{a, b}
	sort.Strings(participants)

	return uuid.NewMD5(uuid.NameSpaceOID, []byte("["+participants[0]+", "+participants[1]+"]")).String()
}
