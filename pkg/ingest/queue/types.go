package queue

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"
)

// HandlerID names the operation a queued Op performs.
type HandlerID string

const (
	HandlerMessageCreate HandlerID = "message.create"
	HandlerReactionAdd   HandlerID = "reaction.add"
)

// Op is one queued write.
type Op struct {
	Handler HandlerID // handler to invoke
	Channel string    // channel the write belongs to
	ID      string    // message id
	Payload []byte    // msgpack payload; points into a pooled buffer
	TS      int64     // enqueue time (nanoseconds)
	EnqSeq  uint64    // assigned sequence at enqueue
	Extras  map[string]string
}

// Item wraps an Op together with the pooled buffer backing its payload.
type Item struct {
	Op   *Op
	buf  *bytebufferpool.ByteBuffer
	once sync.Once
	q    *Queue
}

// DefaultMaxPooledBuffer is the largest buffer returned to the pool.
const DefaultMaxPooledBuffer = 256 * 1024

var opPool = sync.Pool{New: func() any { return &Op{} }}

var (
	ErrQueueFull   = errors.New("ingest queue full")
	ErrQueueClosed = errors.New("ingest queue closed")
)
