package ratelimit

import (
	"sync"
	"time"

	"github.com/emirpasic/gods/queues/circularbuffer"

	"github.com/GuilhermeSoares009/signal-filter/internal/clock"
)

// BoundedQueueFilter records admitted timestamps in a FIFO of capacity limit.
//
// Admission is a non-blocking offer into the queue. When the queue is full a
// single caller at a time may drain expired timestamps from the front; any
// other caller that finds the cleanup in progress is rejected immediately.
// Timestamps may land slightly out of order under concurrent offers, so the
// front of the queue is a conservative estimate of the oldest admission.
type BoundedQueueFilter struct {
	limit    int
	windowMs int64
	clock    clock.Clock

	timestamps *timestampQueue
	// Only ever acquired with TryLock.
	cleanupMu sync.Mutex
}

// NewBoundedQueueFilter creates a filter admitting limit signals per window.
func NewBoundedQueueFilter(limit int, window time.Duration, opts ...Option) (*BoundedQueueFilter, error) {
	windowMs, err := validate(limit, window)
	if err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &BoundedQueueFilter{
		limit:      limit,
		windowMs:   windowMs,
		clock:      o.clock,
		timestamps: newTimestampQueue(limit),
	}, nil
}

// NewBoundedQueueFilterPerMinute creates a filter admitting limit signals per minute.
func NewBoundedQueueFilterPerMinute(limit int, opts ...Option) (*BoundedQueueFilter, error) {
	return NewBoundedQueueFilter(limit, time.Minute, opts...)
}

func (f *BoundedQueueFilter) Limit() int { return f.limit }

func (f *BoundedQueueFilter) Window() time.Duration {
	return time.Duration(f.windowMs) * time.Millisecond
}

// IsSignalAllowed reports whether a signal arriving now may pass, recording it if so.
func (f *BoundedQueueFilter) IsSignalAllowed() bool {
	now := clock.Millis(f.clock)
	if f.timestamps.offer(now) {
		return true
	}

	if !f.tryCleanup(now) {
		return false
	}
	return f.timestamps.offer(clock.Millis(f.clock))
}

// tryCleanup drops timestamps older than now-window from the front of the
// queue. It returns false without waiting when another caller is cleaning,
// and otherwise reports whether at least one slot was freed.
func (f *BoundedQueueFilter) tryCleanup(now int64) bool {
	if !f.cleanupMu.TryLock() {
		return false
	}
	defer f.cleanupMu.Unlock()

	cutoff := now - f.windowMs
	freed := false
	for {
		oldest, ok := f.timestamps.peek()
		if !ok {
			return true
		}
		if oldest >= cutoff {
			return freed
		}
		f.timestamps.poll()
		freed = true
	}
}

// timestampQueue is a bounded FIFO safe for concurrent use. Offers fail
// instead of overwriting when the queue is full.
type timestampQueue struct {
	mu  sync.Mutex
	buf *circularbuffer.Queue
}

func newTimestampQueue(capacity int) *timestampQueue {
	return &timestampQueue{buf: circularbuffer.New(capacity)}
}

func (q *timestampQueue) offer(ts int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.buf.Full() {
		return false
	}
	q.buf.Enqueue(ts)
	return true
}

func (q *timestampQueue) peek() (int64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	v, ok := q.buf.Peek()
	if !ok {
		return 0, false
	}
	return v.(int64), true
}

func (q *timestampQueue) poll() (int64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	v, ok := q.buf.Dequeue()
	if !ok {
		return 0, false
	}
	return v.(int64), true
}

func (q *timestampQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.buf.Size()
}
