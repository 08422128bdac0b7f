// SPDX-License-Identifier: ice License 1.0

package dispatch

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v2"
)

// DedupCache is a bounded set of event ids already seen in this process.
// The same event routinely arrives from several relays; the cache stops
// the duplicates before they reach the dispatcher. It is an optimization
// only: store upserts stay idempotent on their own, so a cold cache after
// restart is harmless.
type DedupCache struct {
	capacity int
	seen     *xsync.MapOf[string, struct{}]

	mx    sync.Mutex
	order []string
	head  int
}

func NewDedupCache(capacity int) *DedupCache {
	if capacity <= 0 {
		capacity = 1024
	}

	return &DedupCache{
		capacity: capacity,
		seen:     xsync.NewMapOf[struct{}](),
		order:    make([]string, 0, capacity),
	}
}

// ShouldProcess records the id on first sight and reports whether the
// caller owns processing it. Concurrent calls for the same id from two
// relay connections resolve through LoadOrStore, exactly one wins.
func (c *DedupCache) ShouldProcess(id string) bool {
	if _, loaded := c.seen.LoadOrStore(id, struct{}{}); loaded {
		return false
	}

	c.mx.Lock()
	if len(c.order) < c.capacity {
		c.order = append(c.order, id)
	} else {
		oldest := c.order[c.head]
		c.order[c.head] = id
		c.head = (c.head + 1) % c.capacity
		c.seen.Delete(oldest)
	}
	c.mx.Unlock()

	return true
}
