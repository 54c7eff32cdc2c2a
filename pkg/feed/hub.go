// Package feed fans stored events out to live subscribers of a channel.
package feed

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/logger"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/telemetry"
)

var ErrHubClosed = errors.New("feed hub closed")

const DefaultMailboxSize = 64

type subscriber struct {
	channel string
	fn      func(models.Event)
	mailbox chan models.Event
	stop    chan struct{}
}

// Hub delivers events per channel. Every subscriber gets its own mailbox
// and goroutine, so a slow listener only loses its own events; delivery
// order per subscriber follows publish order.
type Hub struct {
	mailboxSize int

	mu        sync.RWMutex
	next      models.Handle
	subs      map[models.Handle]*subscriber
	byChannel map[string]map[models.Handle]*subscriber
	closed    bool
}

func NewHub(mailboxSize int) *Hub {
	if mailboxSize <= 0 {
		mailboxSize = DefaultMailboxSize
	}
	return &Hub{
		mailboxSize: mailboxSize,
		subs:        make(map[models.Handle]*subscriber),
		byChannel:   make(map[string]map[models.Handle]*subscriber),
	}
}

// Subscribe registers fn for events of channelID. fn runs on the
// subscriber's own goroutine.
func (h *Hub) Subscribe(channelID string, fn func(models.Event)) (models.Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, ErrHubClosed
	}
	h.next++
	s := &subscriber{
		channel: channelID,
		fn:      fn,
		mailbox: make(chan models.Event, h.mailboxSize),
		stop:    make(chan struct{}),
	}
	h.subs[h.next] = s
	if h.byChannel[channelID] == nil {
		h.byChannel[channelID] = make(map[models.Handle]*subscriber)
	}
	h.byChannel[channelID][h.next] = s
	go s.loop()
	logger.Debug("feed_subscribed", "channel", channelID, "handle", uint64(h.next))
	return h.next, nil
}

// Unsubscribe stops delivery to h. It does not wait for an fn call that is
// already running, so it is safe to call from inside fn.
func (h *Hub) Unsubscribe(handle models.Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(handle)
}

func (h *Hub) removeLocked(handle models.Handle) {
	s, ok := h.subs[handle]
	if !ok {
		return
	}
	delete(h.subs, handle)
	if m := h.byChannel[s.channel]; m != nil {
		delete(m, handle)
		if len(m) == 0 {
			delete(h.byChannel, s.channel)
		}
	}
	close(s.stop)
}

// Publish queues ev for every subscriber of ev.Channel and returns how
// many accepted it. A full mailbox drops the event for that subscriber.
func (h *Hub) Publish(ev models.Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for handle, s := range h.byChannel[ev.Channel] {
		select {
		case s.mailbox <- ev:
			n++
		default:
			telemetry.EventDropped("mailbox_full")
			logger.Warn("feed_mailbox_full", "channel", ev.Channel, "handle", uint64(handle))
		}
	}
	return n
}

// Subscribers returns the number of listeners on channelID.
func (h *Hub) Subscribers(channelID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byChannel[channelID])
}

// Close unsubscribes everyone and rejects further subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for handle := range h.subs {
		h.removeLocked(handle)
	}
}

func (s *subscriber) loop() {
	for {
		select {
		case ev := <-s.mailbox:
			// stop wins over a pending event
			select {
			case <-s.stop:
				return
			default:
			}
			s.fn(ev)
		case <-s.stop:
			return
		}
	}
}
