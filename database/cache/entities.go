// SPDX-License-Identifier: ice License 1.0

package cache

type (
	// Note is a kind 1/2 event folded into the cache. Immutable once
	// signed, so re-delivery of the same id is a no-op.
	Note struct {
		ID            string
		Content       string
		CreatedAt     int64
		Kind          int
		Pubkey        string
		Sig           string
		Tags          string
		MainEventID   string
		ReplyEventID  string
		UserMentioned bool
		RepostID      string
	}

	Profile struct {
		ID          string
		Name        string
		Picture     string
		About       string
		Lnurl       string
		LnAddress   string
		Nip05       string
		ZapPubkey   string
		ValidNip05  bool
		MainRelay   string
		CreatedAt   int64
		Contact     bool
		PetAt       int64
		Follower    bool
		FollowerAt  int64
		Blocked     bool
		MutedGroups bool
	}

	// Contact is one member of a kind-3 contact list tag.
	Contact struct {
		ID        string
		Name      string
		MainRelay string
		PetAt     int64
	}

	DirectMessage struct {
		ID             string
		Content        string
		CreatedAt      int64
		Kind           int
		Pubkey         string
		Sig            string
		Tags           string
		ConversationID string
		Read           bool
	}

	Reaction struct {
		ID             string
		Content        string
		CreatedAt      int64
		Kind           int
		Pubkey         string
		Sig            string
		Tags           string
		Positive       bool
		ReactedEventID string
		ReactedUserID  string
	}

	Group struct {
		ID        string
		Name      string
		About     string
		Picture   string
		CreatedAt int64
		Pubkey    string
		Hidden    bool
		Muted     bool
	}

	GroupMessage struct {
		ID        string
		GroupID   string
		Content   string
		CreatedAt int64
		Pubkey    string
		Sig       string
		Tags      string
		Hidden    bool
		UserMuted bool
	}

	Zap struct {
		ID            string
		Amount        int64
		Content       string
		CreatedAt     int64
		Pubkey        string
		Sig           string
		Tags          string
		ZapperUserID  string
		ZappedEventID string
		ZappedUserID  string
	}

	ListRecord struct {
		Pubkey    string
		Kind      int
		ListTag   string
		Content   string
		Tags      string
		CreatedAt int64
	}

	RelayRecord struct {
		Url        string
		Active     bool
		GlobalFeed bool
		Paid       bool
		Resilient  bool
		DeletedAt  int64
	}

	RelayMetadata struct {
		Pubkey    string
		ID        string
		CreatedAt int64
		Content   string
		Tags      string
		Sig       string
	}

	Notification struct {
		EventID   string
		Kind      int
		Pubkey    string
		CreatedAt int64
	}
)
