package hub

import (
	"sync"
	"time"

	"github.com/user/termcore/internal/parser"
)

// RateLimiter merges batches arriving within one interval into a single
// batch. Flushes and barriers run under the same lock, so a message emitted
// through Barrier is never overtaken by a batch added before it.
type RateLimiter struct {
	mu       sync.Mutex
	pending  parser.Batch
	interval time.Duration
	onFlush  func(batch parser.Batch)
	timer    *time.Timer
}

func NewRateLimiter(interval time.Duration, onFlush func(parser.Batch)) *RateLimiter {
	return &RateLimiter{
		interval: interval,
		onFlush:  onFlush,
	}
}

func (r *RateLimiter) Add(batch parser.Batch) {
	if len(batch) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending = append(r.pending, batch...)
	if r.timer == nil {
		r.timer = time.AfterFunc(r.interval, r.FlushAll)
	}
}

func (r *RateLimiter) FlushAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushLocked()
}

// Barrier flushes pending output and then runs fn before any later batch
// can be flushed.
func (r *RateLimiter) Barrier(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushLocked()
	fn()
}

func (r *RateLimiter) flushLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if len(r.pending) == 0 {
		return
	}
	batch := r.pending
	r.pending = nil
	if r.onFlush != nil {
		r.onFlush(batch)
	}
}
