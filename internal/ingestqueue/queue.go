// Package ingestqueue absorbs a live, bursty, possibly-duplicated alert
// stream into a bounded working set a consumer can render safely. Arrivals
// go into an unbounded pending buffer; a periodic flush merges a bounded
// batch into the deduplicated, recency-ordered working set. Updating the
// consumer on every message is deliberately avoided: it would thrash any
// downstream renderer under burst load.
package ingestqueue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"alertd/internal/logger"
	"alertd/internal/models"
)

// Defaults mirror the consumption discipline the rendering layer expects.
const (
	DefaultMaxRows       = 200
	DefaultMaxBatch      = 200
	DefaultFlushInterval = time.Second
	DefaultNotifyMinGap  = 1200 * time.Millisecond
)

// Options configures a Queue. Zero values take the defaults above.
type Options struct {
	// MaxRows bounds the working set.
	MaxRows int
	// MaxBatch bounds how many pending alerts one flush drains.
	MaxBatch int
	// FlushInterval is the Run ticker period.
	FlushInterval time.Duration
	// Notify, when set, is called at most once per NotifyMinGap regardless
	// of burst size. Suppressed notifications never drop data.
	Notify       func(models.Alert)
	NotifyMinGap time.Duration
	// OnChange, when set, is called after a flush that altered the working
	// set. Never called for no-op ticks.
	OnChange func()
}

// Queue is the two-stage buffer. Safe for concurrent use; the flush itself
// never overlaps a prior unfinished flush.
type Queue struct {
	opts Options
	log  zerolog.Logger

	mu         sync.Mutex
	pending    []models.Alert
	working    []models.Alert
	lastNotify time.Time

	flushing atomic.Bool
}

// New creates a queue.
func New(opts Options) *Queue {
	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultMaxRows
	}
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = DefaultMaxBatch
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.NotifyMinGap <= 0 {
		opts.NotifyMinGap = DefaultNotifyMinGap
	}
	return &Queue{opts: opts, log: logger.WithComponent("ingestqueue")}
}

// Offer appends an inbound alert to the pending buffer. Arrivals are never
// dropped here; duplicates are resolved at flush time.
func (q *Queue) Offer(alert models.Alert) {
	var notify bool
	q.mu.Lock()
	q.pending = append(q.pending, alert)
	if q.opts.Notify != nil {
		now := time.Now()
		if now.Sub(q.lastNotify) >= q.opts.NotifyMinGap {
			q.lastNotify = now
			notify = true
		}
	}
	q.mu.Unlock()

	if notify {
		q.opts.Notify(alert)
	}
}

// Run flushes on a fixed period until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) {
	ticker := time.NewTicker(q.opts.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.Flush()
		}
	}
}

// Flush drains up to MaxBatch pending alerts (oldest first) and merges them
// into the working set: duplicates dropped, survivors prepended newest
// first, result truncated to MaxRows discarding the oldest. Returns whether
// the working set changed. A tick that fires while a flush is still in
// flight is skipped, never run in parallel.
func (q *Queue) Flush() bool {
	if !q.flushing.CompareAndSwap(false, true) {
		return false
	}
	defer q.flushing.Store(false)

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return false
	}

	n := len(q.pending)
	if n > q.opts.MaxBatch {
		n = q.opts.MaxBatch
	}
	batch := q.pending[:n]
	q.pending = append([]models.Alert(nil), q.pending[n:]...)

	seen := make(map[string]struct{}, len(q.working)+len(batch))
	for _, a := range q.working {
		seen[a.ID] = struct{}{}
	}
	fresh := make([]models.Alert, 0, len(batch))
	for _, a := range batch {
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}
		fresh = append(fresh, a)
	}
	if len(fresh) == 0 {
		return false
	}

	// Most recent arrival first, ahead of everything already held.
	merged := make([]models.Alert, 0, len(fresh)+len(q.working))
	for i := len(fresh) - 1; i >= 0; i-- {
		merged = append(merged, fresh[i])
	}
	merged = append(merged, q.working...)
	if len(merged) > q.opts.MaxRows {
		merged = merged[:q.opts.MaxRows]
	}
	q.working = merged

	if q.opts.OnChange != nil {
		go q.opts.OnChange()
	}
	return true
}

// Snapshot returns a copy of the working set, most recent first.
func (q *Queue) Snapshot() []models.Alert {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.Alert, len(q.working))
	copy(out, q.working)
	return out
}

// PendingLen reports how many alerts await the next flush.
func (q *Queue) PendingLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Seed replaces the working set from a query catch-up, truncated to the
// bound. Pending arrivals are kept and merge on the next flush.
func (q *Queue) Seed(alerts []models.Alert) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(alerts) > q.opts.MaxRows {
		alerts = alerts[:q.opts.MaxRows]
	}
	q.working = append([]models.Alert(nil), alerts...)
}

// Update replaces a working-set entry in place, e.g. after an acknowledge.
// Unknown ids are ignored.
func (q *Queue) Update(alert models.Alert) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.working {
		if q.working[i].ID == alert.ID {
			q.working[i] = alert
			return
		}
	}
}
