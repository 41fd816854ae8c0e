// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// batcher collects paths and hands them to flush once no new path arrived
// for delay. A flush that is still running when the timer fires again
// postpones the next one, so paths are never dropped or delivered twice.
type batcher struct {
	delay time.Duration
	flush func(paths []string)

	mu       sync.Mutex
	pending  map[string]struct{}
	timer    *time.Timer
	stopped  bool
	flushing atomic.Bool
}

func newBatcher(delay time.Duration, flush func([]string)) *batcher {
	return &batcher{delay: delay, flush: flush, pending: make(map[string]struct{})}
}

// add records path and restarts the quiet period.
func (b *batcher) add(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.pending[path] = struct{}{}
	b.resetLocked()
}

func (b *batcher) resetLocked() {
	if b.timer == nil {
		b.timer = time.AfterFunc(b.delay, b.fire)
		return
	}
	b.timer.Reset(b.delay)
}

func (b *batcher) fire() {
	if !b.flushing.CompareAndSwap(false, true) {
		b.mu.Lock()
		if !b.stopped {
			b.resetLocked()
		}
		b.mu.Unlock()
		return
	}
	defer b.flushing.Store(false)

	b.mu.Lock()
	if b.stopped || len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	paths := slices.Sorted(maps.Keys(b.pending))
	clear(b.pending)
	b.mu.Unlock()

	b.flush(paths)
}

// stop cancels a pending flush. Paths added afterwards are ignored.
func (b *batcher) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	if b.timer != nil {
		b.timer.Stop()
	}
}
