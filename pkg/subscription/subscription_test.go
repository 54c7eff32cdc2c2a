package subscription

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/chaterr"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/reactions"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/store"
)

// fakeFeed records listeners and lets tests push events synchronously.
type fakeFeed struct {
	mu        sync.Mutex
	next      models.Handle
	listeners map[models.Handle]listener
	failSub   error
}

type listener struct {
	channel string
	fn      func(models.Event)
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{listeners: make(map[models.Handle]listener)}
}

func (f *fakeFeed) Subscribe(ch string, fn func(models.Event)) (models.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSub != nil {
		return 0, f.failSub
	}
	f.next++
	f.listeners[f.next] = listener{channel: ch, fn: fn}
	return f.next, nil
}

func (f *fakeFeed) Unsubscribe(h models.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.listeners, h)
}

func (f *fakeFeed) active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

// publish delivers ev to every listener of its channel. Stale listeners
// captured by a test are invoked directly through their fn.
func (f *fakeFeed) publish(ev models.Event) {
	f.mu.Lock()
	var fns []func(models.Event)
	for _, l := range f.listeners {
		if l.channel == ev.Channel {
			fns = append(fns, l.fn)
		}
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (f *fakeFeed) listenersFor(ch string) []func(models.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var fns []func(models.Event)
	for _, l := range f.listeners {
		if l.channel == ch {
			fns = append(fns, l.fn)
		}
	}
	return fns
}

// fakeHistory serves canned history; gate, when set, blocks the fetch
// until closed or the context ends.
type fakeHistory struct {
	mu      sync.Mutex
	msgs    map[string][]models.Message
	tallies map[string]models.ReactionTally
	err     error
	gate    chan struct{}
	started chan struct{}
	calls   int
}

func (h *fakeHistory) FetchHistory(ctx context.Context, ch string) ([]models.Message, error) {
	h.mu.Lock()
	h.calls++
	gate, started, err := h.gate, h.started, h.err
	msgs := append([]models.Message(nil), h.msgs[ch]...)
	h.mu.Unlock()

	if started != nil {
		close(started)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (h *fakeHistory) FetchReactions(_ context.Context, ids []string) (map[string]models.ReactionTally, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]models.ReactionTally)
	for _, id := range ids {
		if t, ok := h.tallies[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

func m(id string, ts int64, ch string) models.Message {
	return models.Message{ID: id, Channel: ch, Body: id, TS: ts}
}

func listIDs(s *store.MessageStore, ch string) []string {
	var out []string
	for msg := range s.List(ch).All() {
		out = append(out, msg.ID)
	}
	return out
}

type fixture struct {
	feed    *fakeFeed
	history *fakeHistory
	store   *store.MessageStore
	agg     *reactions.Aggregator
	changes chan string
}

func newFixture() *fixture {
	return &fixture{
		feed:    newFakeFeed(),
		history: &fakeHistory{msgs: map[string][]models.Message{}, tallies: map[string]models.ReactionTally{}},
		store:   store.New(),
		agg:     reactions.New(),
		changes: make(chan string, 64),
	}
}

func (f *fixture) sub(ch string) *Subscription {
	return New(ch, f.history, f.feed, f.store, f.agg, Options{
		FetchTimeout: time.Second,
		OnChange:     func(c string) { f.changes <- c },
	})
}

func TestHistoryThenLive(t *testing.T) {
	f := newFixture()
	f.history.msgs["general"] = []models.Message{m("m1", 1, "general"), m("m2", 2, "general")}

	s := f.sub("general")
	defer s.Close()
	require.Equal(t, Closed, s.State())
	require.NoError(t, s.Open(context.Background()))
	assert.Equal(t, Open, s.State())

	f.feed.publish(models.MessageEvent(m("m3", 3, "general")))
	require.NoError(t, s.Flush())

	assert.Equal(t, []string{"m1", "m2", "m3"}, listIDs(f.store, "general"))
}

func TestEventsBufferedWhileOpening(t *testing.T) {
	f := newFixture()
	f.history.msgs["general"] = []models.Message{m("m1", 1, "general"), m("m2", 2, "general")}
	f.history.tallies["m1"] = models.ReactionTally{Likes: 2}
	f.history.gate = make(chan struct{})
	f.history.started = make(chan struct{})

	s := f.sub("general")
	defer s.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Open(context.Background()) }()
	<-f.history.started
	assert.Equal(t, Opening, s.State())

	// arrives mid-fetch, and also echoes one history message
	f.feed.publish(models.MessageEvent(m("m3", 3, "general")))
	f.feed.publish(models.MessageEvent(m("m2", 2, "general")))
	f.feed.publish(models.ReactionEvent("general", models.Reaction{MessageID: "m3", Kind: models.Like}))
	assert.Equal(t, 0, f.store.Len("general"))

	close(f.history.gate)
	require.NoError(t, <-errCh)

	assert.Equal(t, []string{"m1", "m2", "m3"}, listIDs(f.store, "general"))
	assert.Equal(t, models.ReactionTally{Likes: 1}, f.agg.Tally("m3"))
	assert.Equal(t, models.ReactionTally{Likes: 2}, f.agg.Tally("m1"))
}

func TestBufferedReactionsAfterSnapshotCounted(t *testing.T) {
	f := newFixture()
	f.history.msgs["general"] = []models.Message{m("m1", 1, "general"), m("m2", 2, "general")}
	f.history.tallies["m1"] = models.ReactionTally{Likes: 3, Seq: 3}
	f.history.gate = make(chan struct{})
	f.history.started = make(chan struct{})

	s := f.sub("general")
	defer s.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Open(context.Background()) }()
	<-f.history.started

	// seq 3 is already in the snapshot, seq 4 landed after it
	f.feed.publish(models.ReactionEvent("general", models.Reaction{MessageID: "m1", Kind: models.Like, Seq: 3}))
	f.feed.publish(models.ReactionEvent("general", models.Reaction{MessageID: "m1", Kind: models.Like, Seq: 4}))
	f.feed.publish(models.ReactionEvent("general", models.Reaction{MessageID: "m2", Kind: models.Dislike, Seq: 1}))

	close(f.history.gate)
	require.NoError(t, <-errCh)

	assert.Equal(t, models.ReactionTally{Likes: 4}, f.agg.Tally("m1"))
	assert.Equal(t, models.ReactionTally{Dislikes: 1}, f.agg.Tally("m2"))
}

func TestReactionEventsRecorded(t *testing.T) {
	f := newFixture()
	f.history.msgs["general"] = []models.Message{m("m1", 1, "general")}
	s := f.sub("general")
	defer s.Close()
	require.NoError(t, s.Open(context.Background()))

	for i := 0; i < 3; i++ {
		f.feed.publish(models.ReactionEvent("general", models.Reaction{MessageID: "m1", Kind: models.Like}))
	}
	f.feed.publish(models.ReactionEvent("general", models.Reaction{MessageID: "m1", Kind: "meh"}))
	require.NoError(t, s.Flush())

	assert.Equal(t, models.ReactionTally{Likes: 3}, f.agg.Tally("m1"))
}

func TestFetchFailureStaysOpeningAndRetries(t *testing.T) {
	f := newFixture()
	f.history.msgs["general"] = []models.Message{m("m1", 1, "general")}
	f.history.err = errors.New("storage down")
	f.history.gate = make(chan struct{})
	f.history.started = make(chan struct{})

	s := f.sub("general")
	defer s.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Open(context.Background()) }()
	<-f.history.started
	f.feed.publish(models.MessageEvent(m("partial", 5, "general")))
	close(f.history.gate)

	err := <-errCh
	require.Error(t, err)
	assert.True(t, chaterr.IsTransport(err))
	assert.Equal(t, Opening, s.State())
	assert.Equal(t, 0, f.store.Len("general"))
	assert.Equal(t, 0, f.feed.active())

	// retry succeeds and the partial event is gone
	f.history.mu.Lock()
	f.history.err, f.history.gate, f.history.started = nil, nil, nil
	f.history.mu.Unlock()
	require.NoError(t, s.Open(context.Background()))
	assert.Equal(t, Open, s.State())
	assert.Equal(t, []string{"m1"}, listIDs(f.store, "general"))
	assert.Equal(t, 1, f.feed.active())
}

func TestLocalAppendSurvivesFetchFailure(t *testing.T) {
	f := newFixture()
	f.history.msgs["general"] = []models.Message{m("m1", 1, "general")}
	f.history.err = errors.New("storage down")
	f.history.gate = make(chan struct{})
	f.history.started = make(chan struct{})

	s := f.sub("general")
	defer s.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Open(context.Background()) }()
	<-f.history.started
	require.NoError(t, s.AppendLocal(m("mine", 7, "general")))
	f.feed.publish(models.MessageEvent(m("partial", 5, "general")))
	close(f.history.gate)
	require.Error(t, <-errCh)

	f.history.mu.Lock()
	f.history.err, f.history.gate, f.history.started = nil, nil, nil
	f.history.mu.Unlock()
	require.NoError(t, s.Open(context.Background()))
	assert.Equal(t, []string{"m1", "mine"}, listIDs(f.store, "general"))
}

func TestFetchTimeout(t *testing.T) {
	f := newFixture()
	f.history.gate = make(chan struct{})
	s := New("general", f.history, f.feed, f.store, f.agg, Options{FetchTimeout: 20 * time.Millisecond})
	defer s.Close()

	err := s.Open(context.Background())
	var te *chaterr.TransportError
	require.True(t, errors.As(err, &te))
	assert.True(t, te.Timeout())
	assert.Equal(t, Opening, s.State())
}

func TestSubscribeFailure(t *testing.T) {
	f := newFixture()
	f.feed.failSub = errors.New("no socket")
	s := f.sub("general")
	defer s.Close()

	err := s.Open(context.Background())
	assert.True(t, chaterr.IsTransport(err))
	assert.Equal(t, Opening, s.State())
}

func TestCloseCancelsInflightFetch(t *testing.T) {
	f := newFixture()
	f.history.gate = make(chan struct{})
	f.history.started = make(chan struct{})
	s := f.sub("general")

	errCh := make(chan error, 1)
	go func() { errCh <- s.Open(context.Background()) }()
	<-f.history.started

	s.Close()
	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("open did not return after close")
	}
	assert.Equal(t, Closed, s.State())
	assert.Equal(t, 0, f.feed.active())
}

func TestCloseDropsLateEvents(t *testing.T) {
	f := newFixture()
	f.history.msgs["general"] = []models.Message{m("m1", 1, "general")}
	s := f.sub("general")
	require.NoError(t, s.Open(context.Background()))
	_ = f.agg.Record("m1", models.Like)

	stale := f.feed.listenersFor("general")
	require.Len(t, stale, 1)

	s.Close()
	assert.Equal(t, Closed, s.State())
	assert.Equal(t, 0, f.store.Len("general"))
	assert.Equal(t, models.ReactionTally{}, f.agg.Tally("m1"))

	// a feed still draining in-flight events must not resurrect the view
	stale[0](models.MessageEvent(m("late", 9, "general")))
	assert.Equal(t, 0, f.store.Len("general"))

	assert.ErrorIs(t, s.Open(context.Background()), ErrClosed)
	assert.ErrorIs(t, s.AppendLocal(m("x", 1, "general")), ErrClosed)
	s.Close()
}

func TestAppendLocalIdempotentWithEcho(t *testing.T) {
	f := newFixture()
	s := f.sub("general")
	defer s.Close()

	assert.ErrorIs(t, s.AppendLocal(m("mine", 1, "general")), ErrNotOpen)
	require.NoError(t, s.Open(context.Background()))

	mine := m("mine", 10, "general")
	require.NoError(t, s.AppendLocal(mine))
	f.feed.publish(models.MessageEvent(mine))
	require.NoError(t, s.Flush())
	assert.Equal(t, []string{"mine"}, listIDs(f.store, "general"))

	// echo first, optimistic copy second
	other := m("other", 11, "general")
	f.feed.publish(models.MessageEvent(other))
	require.NoError(t, s.AppendLocal(other))
	assert.Equal(t, []string{"mine", "other"}, listIDs(f.store, "general"))
}

func TestForeignChannelEventsIgnored(t *testing.T) {
	f := newFixture()
	s := f.sub("general")
	defer s.Close()
	require.NoError(t, s.Open(context.Background()))

	stale := f.feed.listenersFor("general")
	stale[0](models.MessageEvent(m("r1", 1, "random")))
	require.NoError(t, s.Flush())
	assert.Equal(t, 0, f.store.Len("general"))
	assert.Equal(t, 0, f.store.Len("random"))
}

func TestOnChangeNotified(t *testing.T) {
	f := newFixture()
	s := f.sub("general")
	defer s.Close()
	require.NoError(t, s.Open(context.Background()))
	assert.Equal(t, "general", <-f.changes)

	f.feed.publish(models.MessageEvent(m("m1", 1, "general")))
	select {
	case ch := <-f.changes:
		assert.Equal(t, "general", ch)
	case <-time.After(time.Second):
		t.Fatal("no change notification")
	}
}

func TestOpenTwiceIsNoop(t *testing.T) {
	f := newFixture()
	s := f.sub("general")
	defer s.Close()
	require.NoError(t, s.Open(context.Background()))
	require.NoError(t, s.Open(context.Background()))
	assert.Equal(t, 1, f.feed.active())
	f.history.mu.Lock()
	assert.Equal(t, 1, f.history.calls)
	f.history.mu.Unlock()
}
