package ranking

import (
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/reactions"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/store"
)

// FromHistory ranks a loaded page of history without a live view: it fills
// a throwaway store and aggregator and returns the top n highlights.
func FromHistory(channelID string, msgs []models.Message, tallies map[string]models.ReactionTally, n int) []models.Highlight {
	s := store.New()
	agg := reactions.New()
	for _, m := range msgs {
		s.Append(channelID, m)
	}
	for id, t := range tallies {
		agg.Merge(id, t)
	}
	return New(s, agg).TopN(channelID, n)
}
