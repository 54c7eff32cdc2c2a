package feed

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
)

type sink struct {
	mu  sync.Mutex
	got []string
}

func (s *sink) add(ev models.Event) {
	s.mu.Lock()
	s.got = append(s.got, ev.Message.ID)
	s.mu.Unlock()
}

func (s *sink) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.got...)
}

func ev(ch, id string) models.Event {
	return models.MessageEvent(models.Message{ID: id, Channel: ch})
}

func TestPublishInOrderPerChannel(t *testing.T) {
	h := NewHub(16)
	defer h.Close()
	var general, random sink
	_, err := h.Subscribe("general", general.add)
	require.NoError(t, err)
	_, err = h.Subscribe("random", random.add)
	require.NoError(t, err)

	for _, id := range []string{"a", "b", "c"} {
		assert.Equal(t, 1, h.Publish(ev("general", id)))
	}
	h.Publish(ev("random", "r"))

	assert.Eventually(t, func() bool { return len(general.ids()) == 3 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, general.ids())
	assert.Eventually(t, func() bool { return len(random.ids()) == 1 }, time.Second, time.Millisecond)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub(4)
	defer h.Close()
	var s sink
	handle, err := h.Subscribe("general", s.add)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Subscribers("general"))

	h.Unsubscribe(handle)
	h.Unsubscribe(handle)
	assert.Equal(t, 0, h.Subscribers("general"))
	assert.Equal(t, 0, h.Publish(ev("general", "late")))
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, s.ids())
}

func TestSlowSubscriberDropsOnlyItsOwn(t *testing.T) {
	h := NewHub(1)
	defer h.Close()
	block := make(chan struct{})
	_, err := h.Subscribe("general", func(models.Event) { <-block })
	require.NoError(t, err)
	var fast sink
	_, err = h.Subscribe("general", fast.add)
	require.NoError(t, err)

	// first event occupies the slow fn, second fills its mailbox, third drops
	h.Publish(ev("general", "1"))
	assert.Eventually(t, func() bool { return len(fast.ids()) == 1 }, time.Second, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	h.Publish(ev("general", "2"))
	assert.Eventually(t, func() bool { return len(fast.ids()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, h.Publish(ev("general", "3")))
	close(block)
}

func TestUnsubscribeFromCallback(t *testing.T) {
	h := NewHub(4)
	defer h.Close()
	var handle models.Handle
	done := make(chan struct{})
	var once sync.Once
	handle, err := h.Subscribe("general", func(models.Event) {
		h.Unsubscribe(handle)
		once.Do(func() { close(done) })
	})
	require.NoError(t, err)
	h.Publish(ev("general", "x"))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback never ran")
	}
	assert.Equal(t, 0, h.Subscribers("general"))
}

func TestClosedHubRejects(t *testing.T) {
	h := NewHub(0)
	h.Close()
	_, err := h.Subscribe("general", func(models.Event) {})
	assert.ErrorIs(t, err, ErrHubClosed)
}
