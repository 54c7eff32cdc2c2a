// Package queue is the bounded in-memory queue between the HTTP handlers
// and the ingest workers.
package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/bytebufferpool"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/telemetry"
)

type Queue struct {
	ch              chan *Item
	capacity        int
	maxPooledBuffer int

	// mu guards closed and the close of ch against in-progress sends
	mu        sync.RWMutex
	closed    bool
	closing   chan struct{}
	closeOnce sync.Once

	seq      atomic.Uint64
	dropped  atomic.Uint64
	inFlight atomic.Int64
}

// New creates a bounded queue. capacity must be > 0; config.ValidateConfig
// fills the default.
func New(capacity, maxPooledBuffer int) *Queue {
	if capacity <= 0 {
		panic("queue.New: capacity must be > 0; ensure config.ValidateConfig() applied defaults")
	}
	if maxPooledBuffer <= 0 {
		maxPooledBuffer = DefaultMaxPooledBuffer
	}
	return &Queue{
		ch:              make(chan *Item, capacity),
		capacity:        capacity,
		maxPooledBuffer: maxPooledBuffer,
		closing:         make(chan struct{}),
	}
}

// prepare copies op into a pooled Op whose payload lives in a pooled buffer.
func (q *Queue) prepare(op *Op) *Item {
	n := opPool.Get().(*Op)
	*n = *op
	if op.Extras != nil {
		n.Extras = make(map[string]string, len(op.Extras))
		for k, v := range op.Extras {
			n.Extras[k] = v
		}
	}
	if n.TS == 0 {
		n.TS = time.Now().UnixNano()
	}
	it := &Item{Op: n, q: q}
	if op.Payload != nil {
		bb := bytebufferpool.Get()
		_, _ = bb.Write(op.Payload)
		it.buf = bb
		n.Payload = bb.B
	}
	return it
}

// Enqueue adds op without blocking. It returns ErrQueueFull when the queue
// is at capacity. The payload is copied; the caller keeps ownership of op.
func (q *Queue) Enqueue(op *Op) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		telemetry.IngestRejected("closed")
		return ErrQueueClosed
	}
	it := q.prepare(op)
	it.Op.EnqSeq = q.seq.Add(1)
	q.inFlight.Add(1)
	select {
	case q.ch <- it:
		telemetry.SetQueueDepth(len(q.ch))
		return nil
	default:
		q.dropped.Add(1)
		telemetry.IngestRejected("queue_full")
		it.Done()
		return ErrQueueFull
	}
}

// EnqueueCtx adds op, waiting for space until ctx ends or the queue closes.
func (q *Queue) EnqueueCtx(ctx context.Context, op *Op) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		telemetry.IngestRejected("closed")
		return ErrQueueClosed
	}
	it := q.prepare(op)
	it.Op.EnqSeq = q.seq.Add(1)
	q.inFlight.Add(1)
	select {
	case q.ch <- it:
		telemetry.SetQueueDepth(len(q.ch))
		return nil
	case <-ctx.Done():
		it.Done()
		return ctx.Err()
	case <-q.closing:
		it.Done()
		telemetry.IngestRejected("closed")
		return ErrQueueClosed
	}
}

// Close stops accepting ops. Items already queued stay readable from Out
// until drained.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() {
		close(q.closing)
		q.mu.Lock()
		q.closed = true
		close(q.ch)
		q.mu.Unlock()
	})
	return nil
}

// Drain waits until every accepted item has been marked done or ctx ends.
func (q *Queue) Drain(ctx context.Context) error {
	const pollInterval = 10 * time.Millisecond
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for q.inFlight.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Out is the consumer side of the queue.
func (q *Queue) Out() <-chan *Item { return q.ch }

func (q *Queue) Len() int { return len(q.ch) }

func (q *Queue) Cap() int { return q.capacity }

// Dropped counts ops rejected with ErrQueueFull.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }

// InFlight counts accepted items not yet marked done.
func (q *Queue) InFlight() int64 { return q.inFlight.Load() }

// Done releases the item's pooled resources. The Op and its payload must
// not be used afterwards. Safe to call more than once.
func (it *Item) Done() {
	it.once.Do(func() {
		if it.q != nil {
			it.q.inFlight.Add(-1)
			telemetry.SetQueueDepth(len(it.q.ch))
		}
		if it.buf != nil {
			if it.q == nil || cap(it.buf.B) <= it.q.maxPooledBuffer {
				bytebufferpool.Put(it.buf)
			}
			it.buf = nil
		}
		if it.Op != nil {
			*it.Op = Op{}
			opPool.Put(it.Op)
			it.Op = nil
		}
		it.q = nil
	})
}

// CopyPayload returns a copy of the payload that outlives Done.
func (it *Item) CopyPayload() []byte {
	if it == nil || it.Op == nil || it.Op.Payload == nil {
		return nil
	}
	dst := make([]byte, len(it.Op.Payload))
	copy(dst, it.Op.Payload)
	return dst
}
