package live

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/feed"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
)

type inbox struct {
	mu     sync.Mutex
	events []models.Event
	ch     chan struct{}
}

func newInbox() *inbox { return &inbox{ch: make(chan struct{}, 64)} }

func (in *inbox) add(ev models.Event) {
	in.mu.Lock()
	in.events = append(in.events, ev)
	in.mu.Unlock()
	in.ch <- struct{}{}
}

func (in *inbox) wait(t *testing.T, n int) []models.Event {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-in.ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("received %d of %d events", i, n)
		}
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]models.Event(nil), in.events...)
}

func setup(t *testing.T) (*feed.Hub, *Server, *httptest.Server) {
	t.Helper()
	hub := feed.NewHub(16)
	srv := NewServer(hub, Options{PingInterval: time.Second})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
		hub.Close()
	})
	return hub, srv, ts
}

// waitSubscribers waits until the hub sees n listeners on ch.
func waitSubscribers(t *testing.T, hub *feed.Hub, ch string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Subscribers(ch) == n }, 2*time.Second, 5*time.Millisecond)
}

func TestClientReceivesPublishedEvents(t *testing.T) {
	hub, _, ts := setup(t)
	c, err := NewClient(ts.URL, ClientOptions{})
	require.NoError(t, err)
	defer c.Close()

	in := newInbox()
	_, err = c.Subscribe("general", in.add)
	require.NoError(t, err)
	waitSubscribers(t, hub, "general", 1)

	m := models.Message{ID: "m1", Channel: "general", Body: "hello", TS: 1}
	hub.Publish(models.MessageEvent(m))
	hub.Publish(models.ReactionEvent("general", models.Reaction{MessageID: "m1", Kind: models.Like}))
	hub.Publish(models.MessageEvent(models.Message{ID: "x", Channel: "random", TS: 2}))

	got := in.wait(t, 2)
	require.Len(t, got, 2)
	assert.Equal(t, models.EventMessageCreated, got[0].Kind)
	assert.Equal(t, m, *got[0].Message)
	assert.Equal(t, models.Like, got[1].Reaction.Kind)
}

func TestDirectChannelPath(t *testing.T) {
	hub, _, ts := setup(t)
	c, err := NewClient(ts.URL, ClientOptions{})
	require.NoError(t, err)
	defer c.Close()

	in := newInbox()
	_, err = c.Subscribe("dm_u1_u%5F2", in.add)
	require.NoError(t, err)
	waitSubscribers(t, hub, "dm_u1_u%5F2", 1)
}

func TestUnsubscribeReleasesHub(t *testing.T) {
	hub, srv, ts := setup(t)
	c, err := NewClient(ts.URL, ClientOptions{})
	require.NoError(t, err)
	defer c.Close()

	h, err := c.Subscribe("fans", func(models.Event) {})
	require.NoError(t, err)
	waitSubscribers(t, hub, "fans", 1)

	c.Unsubscribe(h)
	waitSubscribers(t, hub, "fans", 0)
	require.Eventually(t, func() bool { return srv.Connections() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestInvalidChannelRejected(t *testing.T) {
	_, _, ts := setup(t)
	c, err := NewClient(ts.URL, ClientOptions{})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Subscribe("Bad Room", func(models.Event) {})
	assert.Error(t, err)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClientReconnects(t *testing.T) {
	hub, srv, ts := setup(t)
	reconnected := make(chan string, 1)
	c, err := NewClient(ts.URL, ClientOptions{
		ReconnectMin: 10 * time.Millisecond,
		OnReconnect:  func(ch string) { reconnected <- ch },
	})
	require.NoError(t, err)
	defer c.Close()

	in := newInbox()
	_, err = c.Subscribe("sports1", in.add)
	require.NoError(t, err)
	waitSubscribers(t, hub, "sports1", 1)

	srv.disconnectAll()
	select {
	case ch := <-reconnected:
		assert.Equal(t, "sports1", ch)
	case <-time.After(3 * time.Second):
		t.Fatal("client did not reconnect")
	}

	// the old socket's listener may linger briefly, so publish until the
	// new one picks it up
	ev := models.MessageEvent(models.Message{ID: "after", Channel: "sports1", TS: 3})
	require.Eventually(t, func() bool {
		hub.Publish(ev)
		select {
		case <-in.ch:
			return true
		default:
			return false
		}
	}, 3*time.Second, 20*time.Millisecond)
}

func TestServerCloseRejectsNewSockets(t *testing.T) {
	_, srv, ts := setup(t)
	srv.Close()

	c, err := NewClient(ts.URL, ClientOptions{})
	require.NoError(t, err)
	defer c.Close()
	_, err = c.Subscribe("general", func(models.Event) {})
	assert.Error(t, err)
}

func TestNewClientScheme(t *testing.T) {
	_, err := NewClient("ftp://example.com", ClientOptions{})
	assert.Error(t, err)

	c, err := NewClient("https://example.com/base/", ClientOptions{})
	require.NoError(t, err)
	assert.Equal(t, "wss://example.com/base/v1/live/general", c.endpoint("general"))
}
