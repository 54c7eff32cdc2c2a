package reactions

import (
	"sync"
	"sync/atomic"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/chaterr"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
)

type counter struct {
	likes    atomic.Int64
	dislikes atomic.Int64
}

// Aggregator keeps like/dislike counters per message. Counters are created
// lazily and only ever grow; every Record is counted, repeats included.
type Aggregator struct {
	mu       sync.RWMutex
	counters map[string]*counter
}

func New() *Aggregator {
	return &Aggregator{counters: make(map[string]*counter)}
}

func (a *Aggregator) get(messageID string) *counter {
	a.mu.RLock()
	c, ok := a.counters[messageID]
	a.mu.RUnlock()
	if ok {
		return c
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok = a.counters[messageID]; !ok {
		c = &counter{}
		a.counters[messageID] = c
	}
	return c
}

// Record counts one reaction against messageID.
func (a *Aggregator) Record(messageID string, kind models.ReactionKind) error {
	switch kind {
	case models.Like:
		a.get(messageID).likes.Add(1)
	case models.Dislike:
		a.get(messageID).dislikes.Add(1)
	default:
		return chaterr.Validation(chaterr.UnknownReaction, string(kind))
	}
	return nil
}

// Tally returns the counts for messageID; unknown ids report {0,0}.
func (a *Aggregator) Tally(messageID string) models.ReactionTally {
	a.mu.RLock()
	c, ok := a.counters[messageID]
	a.mu.RUnlock()
	if !ok {
		return models.ReactionTally{}
	}
	return models.ReactionTally{Likes: c.likes.Load(), Dislikes: c.dislikes.Load()}
}

// Merge raises messageID's counters to at least t. It is used to seed
// counts from a storage snapshot without double counting reactions the live
// feed already delivered.
func (a *Aggregator) Merge(messageID string, t models.ReactionTally) {
	if t.Likes == 0 && t.Dislikes == 0 {
		return
	}
	c := a.get(messageID)
	raise(&c.likes, t.Likes)
	raise(&c.dislikes, t.Dislikes)
}

func raise(v *atomic.Int64, to int64) {
	for {
		cur := v.Load()
		if cur >= to || v.CompareAndSwap(cur, to) {
			return
		}
	}
}

// Forget drops the counters for the given messages.
func (a *Aggregator) Forget(messageIDs ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range messageIDs {
		delete(a.counters, id)
	}
}

// Snapshot returns the tallies for ids that have any reactions.
func (a *Aggregator) Snapshot(ids []string) map[string]models.ReactionTally {
	out := make(map[string]models.ReactionTally, len(ids))
	for _, id := range ids {
		if t := a.Tally(id); t.Likes > 0 || t.Dislikes > 0 {
			out[id] = t
		}
	}
	return out
}
