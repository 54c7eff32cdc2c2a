// Package subscription runs the live update lifecycle of one channel view.
//
// Every input (feed events, local optimistic appends, history fetch
// completion, close) becomes a command on the subscription's queue and is
// applied by a single goroutine, so per-channel ordering and cancellation
// never depend on callback nesting.
package subscription

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/chaterr"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/reactions"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/store"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/telemetry"
)

var (
	// ErrClosed is returned for operations on a closed subscription.
	ErrClosed = errors.New("subscription closed")
	// ErrNotOpen is returned by AppendLocal before Open was called.
	ErrNotOpen = errors.New("subscription not open")
)

// History is the storage side used for the initial load.
type History interface {
	FetchHistory(ctx context.Context, channelID string) ([]models.Message, error)
	FetchReactions(ctx context.Context, messageIDs []string) (map[string]models.ReactionTally, error)
}

// Feed delivers live events for a channel until unsubscribed.
type Feed interface {
	Subscribe(channelID string, onEvent func(models.Event)) (models.Handle, error)
	Unsubscribe(h models.Handle)
}

type Options struct {
	// FetchTimeout bounds the history and reaction fetch together.
	FetchTimeout time.Duration
	// QueueSize is the capacity of the command queue.
	QueueSize int
	// OnChange is called from the event goroutine after every applied change.
	OnChange func(channelID string)
}

const (
	defaultFetchTimeout = 10 * time.Second
	defaultQueueSize    = 256
)

type cmdKind int

const (
	cmdBegin cmdKind = iota
	cmdEvent
	cmdLocal
	cmdLoaded
	cmdFlush
	cmdClose
)

type command struct {
	kind    cmdKind
	gen     uint64
	event   models.Event
	handle  models.Handle
	history []models.Message
	tallies map[string]models.ReactionTally
	err     error
	reply   chan result
}

// pending is an event held back while the subscription is Opening.
type pending struct {
	ev    models.Event
	local bool
}

type result struct {
	gen uint64
	err error
}

// Subscription owns one channel's view inside the shared store and
// aggregator. It is single use: once closed it stays closed.
type Subscription struct {
	channel string
	history History
	feed    Feed
	store   *store.MessageStore
	agg     *reactions.Aggregator
	opts    Options

	state    atomic.Int32
	inbox    chan command
	stopping chan struct{}
	done     chan struct{}

	openMu    sync.Mutex
	closeOnce sync.Once

	mu          sync.Mutex
	cancelFetch context.CancelFunc

	// owned by the run goroutine
	gen        uint64
	buffer     []pending
	handle     models.Handle
	subscribed bool
}

// New creates a Closed subscription for channelID and starts its event
// goroutine. Call Close to release it.
func New(channelID string, h History, f Feed, s *store.MessageStore, agg *reactions.Aggregator, opts Options) *Subscription {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	sub := &Subscription{
		channel:  channelID,
		history:  h,
		feed:     f,
		store:    s,
		agg:      agg,
		opts:     opts,
		inbox:    make(chan command, opts.QueueSize),
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go sub.run()
	return sub
}

func (s *Subscription) Channel() string { return s.channel }

func (s *Subscription) State() State { return State(s.state.Load()) }

// Open moves the subscription to Opening, attaches the live listener and
// loads history. It returns once the view is Open, or with a
// TransportError when the fetch fails; in that case the subscription stays
// Opening and Open may be called again. Optimistic appends made while
// Opening survive a failed attempt.
func (s *Subscription) Open(ctx context.Context) error {
	s.openMu.Lock()
	defer s.openMu.Unlock()

	begin, err := s.request(command{kind: cmdBegin})
	if err != nil {
		return err
	}
	if begin.gen == 0 {
		// already open
		return nil
	}
	gen := begin.gen

	h, err := s.feed.Subscribe(s.channel, func(ev models.Event) { s.deliver(gen, ev) })
	if err != nil {
		err = chaterr.Transport(chaterr.OpSubscribe, s.channel, err)
		_, _ = s.request(command{kind: cmdLoaded, gen: gen, err: err})
		return err
	}

	msgs, tallies, err := s.fetch(ctx)
	select {
	case <-s.stopping:
		s.feed.Unsubscribe(h)
		return ErrClosed
	default:
	}
	loaded, reqErr := s.request(command{kind: cmdLoaded, gen: gen, handle: h, history: msgs, tallies: tallies, err: err})
	if reqErr == nil {
		reqErr = loaded.err
	}
	if reqErr != nil {
		// the run loop only takes ownership of the handle on success
		s.feed.Unsubscribe(h)
		return reqErr
	}
	return nil
}

func (s *Subscription) fetch(parent context.Context) ([]models.Message, map[string]models.ReactionTally, error) {
	ctx, cancel := context.WithTimeout(parent, s.opts.FetchTimeout)
	defer cancel()

	s.mu.Lock()
	select {
	case <-s.stopping:
		s.mu.Unlock()
		return nil, nil, ErrClosed
	default:
	}
	s.cancelFetch = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancelFetch = nil
		s.mu.Unlock()
	}()

	start := time.Now()
	msgs, err := s.history.FetchHistory(ctx, s.channel)
	if err != nil {
		telemetry.ObserveFetch(time.Since(start), err)
		return nil, nil, chaterr.Transport(chaterr.OpFetch, s.channel, err)
	}
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	var tallies map[string]models.ReactionTally
	if len(ids) > 0 {
		tallies, err = s.history.FetchReactions(ctx, ids)
		if err != nil {
			telemetry.ObserveFetch(time.Since(start), err)
			return nil, nil, chaterr.Transport(chaterr.OpFetch, s.channel, errors.Wrap(err, "reactions"))
		}
	}
	telemetry.ObserveFetch(time.Since(start), nil)
	return msgs, tallies, nil
}

// AppendLocal queues an optimistic copy of a message the local participant
// just submitted. It goes through the same queue as feed events.
func (s *Subscription) AppendLocal(m models.Message) error {
	res, err := s.request(command{kind: cmdLocal, event: models.MessageEvent(m)})
	if err != nil {
		return err
	}
	return res.err
}

// Flush waits until every command queued before the call has been applied.
func (s *Subscription) Flush() error {
	res, err := s.request(command{kind: cmdFlush})
	if err != nil {
		return err
	}
	return res.err
}

// Close tears the listener down, cancels an in-flight fetch and discards
// the channel's view. Events that arrive afterwards are dropped.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		close(s.stopping)
		if s.cancelFetch != nil {
			s.cancelFetch()
		}
		s.mu.Unlock()

		reply := make(chan result, 1)
		select {
		case s.inbox <- command{kind: cmdClose, reply: reply}:
			<-reply
		case <-s.done:
		}
		<-s.done
	})
}

// deliver is the feed callback. It never blocks past Close.
func (s *Subscription) deliver(gen uint64, ev models.Event) {
	select {
	case s.inbox <- command{kind: cmdEvent, gen: gen, event: ev}:
	case <-s.stopping:
		telemetry.EventDropped("closed")
	}
}

func (s *Subscription) request(c command) (result, error) {
	c.reply = make(chan result, 1)
	select {
	case s.inbox <- c:
	case <-s.stopping:
		return result{}, ErrClosed
	}
	select {
	case r := <-c.reply:
		return r, nil
	case <-s.done:
		return result{}, ErrClosed
	}
}
