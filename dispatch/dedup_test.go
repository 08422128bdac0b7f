// SPDX-License-Identifier: ice License 1.0

package dispatch

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDedupCache(t *testing.T) {
	dedup := NewDedupCache(4)

	require.True(t, dedup.ShouldProcess("event1"))
	require.False(t, dedup.ShouldProcess("event1"))

	t.Run("eviction forgets the oldest id", func(t *testing.T) {
		for i := 0; i < 4; i++ {
			require.True(t, dedup.ShouldProcess(fmt.Sprintf("filler%d", i)))
		}
		// event1 was evicted, so it counts as new again.
		require.True(t, dedup.ShouldProcess("event1"))
	})
}

func TestDedupCacheConcurrent(t *testing.T) {
	dedup := NewDedupCache(1024)

	const workers = 16
	var wg sync.WaitGroup
	won := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if dedup.ShouldProcess("contested") {
				won <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(won)

	count := 0
	for range won {
		count++
	}
	require.Equal(t, 1, count, "exactly one relay delivery may win")
}
