// Package ingest applies queued writes to storage and publishes the stored
// result to the live feed.
package ingest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/ingest/queue"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/logger"
)

// ProcessorFunc applies one op. A returned error is logged; the op is not
// retried.
type ProcessorFunc func(ctx context.Context, op *queue.Op) error

// Processor runs workers that consume the queue, invoke the registered
// handlers and release every item back to the pool.
type Processor struct {
	q        *queue.Queue
	workers  int
	handlers map[queue.HandlerID]ProcessorFunc

	ctx     context.Context
	cancel  context.CancelFunc
	stop    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// NewProcessor expects workers > 0 (config.ValidateConfig fills the default).
func NewProcessor(q *queue.Queue, workers int) *Processor {
	if workers <= 0 {
		panic("ingest.NewProcessor: workers must be > 0; ensure config.ValidateConfig() applied defaults")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Processor{
		q:        q,
		workers:  workers,
		handlers: make(map[queue.HandlerID]ProcessorFunc),
		ctx:      ctx,
		cancel:   cancel,
		stop:     make(chan struct{}),
	}
}

// RegisterHandler must be called before Start.
func (p *Processor) RegisterHandler(h queue.HandlerID, fn ProcessorFunc) {
	p.handlers[h] = fn
}

func (p *Processor) Start() {
	if !p.running.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.q.RunWorker(p.stop, p.dispatch)
		}()
	}
	logger.Info("ingest_processor_started", "workers", p.workers)
}

func (p *Processor) dispatch(op *queue.Op) error {
	fn, ok := p.handlers[op.Handler]
	if !ok || fn == nil {
		logger.Warn("no_ingest_handler", "handler", string(op.Handler))
		return nil
	}
	if err := fn(p.ctx, op); err != nil {
		logger.Error("ingest_handler_error", "handler", string(op.Handler), "channel", op.Channel, "id", op.ID, "error", err)
		return err
	}
	return nil
}

// Stop closes the queue, lets the workers drain what was accepted and
// waits for them until ctx ends. Work still running at that point is
// cancelled.
func (p *Processor) Stop(ctx context.Context) {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	_ = p.q.Close()
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("ingest_processor_stopped")
	case <-ctx.Done():
		close(p.stop)
		p.cancel()
		logger.Warn("ingest_processor_stop_timeout", "pending", p.q.InFlight())
		return
	}
	p.cancel()
}
