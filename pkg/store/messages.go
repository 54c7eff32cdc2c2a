// Package store keeps the per-channel ordered message logs a session has
// seen. Persistence lives in store/db; this package is memory only.
package store

import (
	"sort"
	"sync"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
)

type channelLog struct {
	msgs []models.Message
	ids  map[string]struct{}
}

// MessageStore holds one ordered log per channel. Channels are created on
// first append. It is safe for concurrent use, though each channel is
// expected to have a single writer.
type MessageStore struct {
	mu       sync.RWMutex
	channels map[string]*channelLog
	index    map[string]string // message id -> channel id
}

func New() *MessageStore {
	return &MessageStore{
		channels: make(map[string]*channelLog),
		index:    make(map[string]string),
	}
}

// Append inserts msg into channelID's log in (ts, id) order. It returns
// false when a message with the same id is already present.
func (s *MessageStore) Append(channelID string, msg models.Message) bool {
	if msg.Channel == "" {
		msg.Channel = channelID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log, ok := s.channels[channelID]
	if !ok {
		log = &channelLog{ids: make(map[string]struct{})}
		s.channels[channelID] = log
	}
	if _, dup := log.ids[msg.ID]; dup {
		return false
	}

	// fast path: live traffic almost always lands at the tail
	n := len(log.msgs)
	if n == 0 || log.msgs[n-1].Before(msg) {
		log.msgs = append(log.msgs, msg)
	} else {
		i := sort.Search(n, func(i int) bool { return msg.Before(log.msgs[i]) })
		log.msgs = append(log.msgs, models.Message{})
		copy(log.msgs[i+1:], log.msgs[i:])
		log.msgs[i] = msg
	}
	log.ids[msg.ID] = struct{}{}
	s.index[msg.ID] = channelID
	return true
}

// Get looks a message up by id across all channels.
func (s *MessageStore) Get(messageID string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch, ok := s.index[messageID]
	if !ok {
		return models.Message{}, false
	}
	log := s.channels[ch]
	for i := len(log.msgs) - 1; i >= 0; i-- {
		if log.msgs[i].ID == messageID {
			return log.msgs[i], true
		}
	}
	return models.Message{}, false
}

// List returns a lazy view over channelID. Nothing is copied until the view
// is iterated, and every iteration sees the log as it is at that moment.
func (s *MessageStore) List(channelID string) View {
	return View{store: s, channel: channelID}
}

func (s *MessageStore) Len(channelID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if log, ok := s.channels[channelID]; ok {
		return len(log.msgs)
	}
	return 0
}

// Channels returns the ids of all channels with a log, sorted.
func (s *MessageStore) Channels() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.channels))
	for id := range s.channels {
		out = append(out, id)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Drop discards a channel's log and returns the message ids it held.
func (s *MessageStore) Drop(channelID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	log, ok := s.channels[channelID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(log.msgs))
	for _, m := range log.msgs {
		ids = append(ids, m.ID)
		delete(s.index, m.ID)
	}
	delete(s.channels, channelID)
	return ids
}

// snapshot copies the current log so iteration never holds the lock.
func (s *MessageStore) snapshot(channelID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log, ok := s.channels[channelID]
	if !ok {
		return nil
	}
	out := make([]models.Message, len(log.msgs))
	copy(out, log.msgs)
	return out
}
