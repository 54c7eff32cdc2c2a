// Package ranking picks the highlighted message of a channel from the
// reaction counts. Ranking is pull based: nothing is cached between calls.
package ranking

import (
	"sort"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/store"
)

// Tallier is satisfied by *reactions.Aggregator.
type Tallier interface {
	Tally(messageID string) models.ReactionTally
}

type Ranker struct {
	store   *store.MessageStore
	tallies Tallier
}

func New(s *store.MessageStore, t Tallier) *Ranker {
	return &Ranker{store: s, tallies: t}
}

// Top returns the message with the most likes in channelID. Messages with
// no likes never qualify. Among equal counts the most recently created one
// wins; the store's (ts, id) order settles equal timestamps.
func (r *Ranker) Top(channelID string) (models.Message, bool) {
	var (
		best  models.Message
		likes int64
		found bool
	)
	// the log is ascending, so >= lets the later of two equals win
	for m := range r.store.List(channelID).All() {
		l := r.tallies.Tally(m.ID).Likes
		if l > 0 && l >= likes {
			best, likes, found = m, l, true
		}
	}
	return best, found
}

// TopN returns up to n liked messages, best first, using the same ordering
// as Top.
func (r *Ranker) TopN(channelID string, n int) []models.Highlight {
	if n <= 0 {
		return nil
	}
	var out []models.Highlight
	for m := range r.store.List(channelID).All() {
		t := r.tallies.Tally(m.ID)
		if t.Likes > 0 {
			out = append(out, models.Highlight{Message: m, Tally: t})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Tally.Likes != out[j].Tally.Likes {
			return out[i].Tally.Likes > out[j].Tally.Likes
		}
		return out[j].Message.Before(out[i].Message)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
