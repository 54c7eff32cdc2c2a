// Package ticker periodically ranks every public channel's history and
// caches the result for the /v1/ticker endpoint.
package ticker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adhocore/gronx"
	"github.com/pkg/errors"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/channel"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/logger"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/ranking"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/store/db"
)

type Options struct {
	Cron         string
	TopN         int
	HistoryLimit int
	Now          func() time.Time
}

const (
	DefaultCron         = "* * * * *"
	defaultTopN         = 3
	defaultHistoryLimit = 200
)

type Ticker struct {
	cat  *channel.Catalogue
	opts Options

	snap atomic.Pointer[models.TickerSnapshot]

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(cat *channel.Catalogue, opts Options) (*Ticker, error) {
	if opts.Cron == "" {
		opts.Cron = DefaultCron
	}
	if !gronx.IsValid(opts.Cron) {
		return nil, errors.Errorf("invalid ticker cron %q", opts.Cron)
	}
	if opts.TopN <= 0 {
		opts.TopN = defaultTopN
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Ticker{cat: cat, opts: opts}, nil
}

// Start builds a first snapshot and then refreshes it on the cron schedule
// until ctx is done or Stop is called.
func (t *Ticker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	t.done = make(chan struct{})
	t.mu.Unlock()

	logger.Info("ticker_enabled", "cron", t.opts.Cron, "top_n", t.opts.TopN)
	go func() {
		defer close(t.done)
		t.runJob()
		t.scheduleLoop(ctx)
	}()
}

// Stop ends the schedule and waits for a running job.
func (t *Ticker) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (t *Ticker) scheduleLoop(ctx context.Context) {
	for {
		now := t.opts.Now()
		next, err := gronx.NextTickAfter(t.opts.Cron, now, false)
		if err != nil {
			logger.Error("ticker_nexttick_failed", "cron", t.opts.Cron, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := next.Sub(now)
		if wait <= 0 {
			wait = time.Second
		}
		select {
		case <-time.After(wait):
			t.runJob()
		case <-ctx.Done():
			return
		}
	}
}

// runJob skips a tick when the previous run is still going.
func (t *Ticker) runJob() {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
	}()

	if err := t.RunImmediate(); err != nil {
		logger.Error("ticker_run_error", "error", err)
	}
}

// RunImmediate rebuilds the snapshot now.
func (t *Ticker) RunImmediate() error {
	start := time.Now()
	snap, err := t.build()
	if err != nil {
		return err
	}
	t.snap.Store(&snap)
	logger.Debug("ticker_run_done", "channels", len(snap.Channels), "took", time.Since(start).String())
	return nil
}

// build ranks public channels only; direct conversations never leave
// their participants.
func (t *Ticker) build() (models.TickerSnapshot, error) {
	metas, err := db.ListChannels()
	if err != nil {
		return models.TickerSnapshot{}, errors.Wrap(err, "list channels")
	}
	snap := models.TickerSnapshot{GeneratedAt: t.opts.Now().UnixNano(), Channels: []models.ChannelHighlights{}}
	for _, meta := range metas {
		if meta.Kind != models.ChannelPublic {
			continue
		}
		msgs, err := db.ListMessages(meta.ID, t.opts.HistoryLimit)
		if err != nil {
			return models.TickerSnapshot{}, errors.Wrapf(err, "list messages of %s", meta.ID)
		}
		ids := make([]string, len(msgs))
		for i, m := range msgs {
			ids[i] = m.ID
		}
		tallies, err := db.Tallies(ids)
		if err != nil {
			return models.TickerSnapshot{}, errors.Wrapf(err, "tallies of %s", meta.ID)
		}
		hl := ranking.FromHistory(meta.ID, msgs, tallies, t.opts.TopN)
		if len(hl) == 0 {
			continue
		}
		entry := models.ChannelHighlights{Channel: meta.ID, Highlights: hl}
		if info, ok := t.cat.Describe(meta.ID); ok {
			entry.Name = info.Name
		}
		snap.Channels = append(snap.Channels, entry)
	}
	return snap, nil
}

// Snapshot returns the latest snapshot, or an empty one before the first
// run finished.
func (t *Ticker) Snapshot() models.TickerSnapshot {
	if s := t.snap.Load(); s != nil {
		return *s
	}
	return models.TickerSnapshot{Channels: []models.ChannelHighlights{}}
}
