package db

import (
	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/logger"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/store/keys"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/store/locks"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/telemetry"
)

// AddReaction appends one reaction row for r.MessageID. Every call counts,
// repeats included. It returns the row's sequence number.
func AddReaction(r models.Reaction) (uint64, error) {
	if Client == nil {
		return 0, ErrNotOpen
	}
	if !r.Kind.Valid() {
		return 0, errors.Errorf("unknown reaction %q", r.Kind)
	}
	exists, err := has(keys.GenMessageIdx(r.MessageID))
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrNotFound
	}

	tr := telemetry.Track("store.add_reaction")
	defer tr.Finish()

	lock := locks.Message(r.MessageID)
	lock.Lock()
	defer lock.Unlock()

	seq, err := maxReactionSeq(r.MessageID)
	if err != nil {
		return 0, err
	}
	seq++
	r.Seq = seq
	tr.Mark("compute_seq")

	data, err := encode(r)
	if err != nil {
		return 0, errors.Wrap(err, "encode reaction")
	}
	key := keys.GenReactionKey(r.MessageID, seq)
	if err := Client.Set([]byte(key), data, writeOpt()); err != nil {
		logger.Error("save_reaction_failed", "key", key, "error", err)
		return 0, err
	}
	logger.Debug("reaction_saved", "key", key, "kind", string(r.Kind))
	return seq, nil
}

// maxReactionSeq returns the highest sequence stored for messageID.
func maxReactionSeq(messageID string) (uint64, error) {
	prefix := keys.ReactionsPrefix(messageID)
	iter, err := Client.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: keys.UpperBound(prefix),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	if !iter.Last() {
		return 0, iter.Error()
	}
	p, err := keys.ParseReactionKey(string(iter.Key()))
	if err != nil {
		return 0, err
	}
	return p.Seq, nil
}

// Tallies counts the stored reactions of each id. Each tally carries the
// highest seq it counted, read from the same snapshot as the counts, so a
// live reaction with a greater seq is not part of it. Ids without reactions
// are omitted.
func Tallies(ids []string) (map[string]models.ReactionTally, error) {
	if Client == nil {
		return nil, ErrNotOpen
	}
	out := make(map[string]models.ReactionTally, len(ids))
	for _, id := range ids {
		if keys.ValidateID(id) != nil {
			continue
		}
		t, err := tally(id)
		if err != nil {
			return nil, err
		}
		if t.Likes > 0 || t.Dislikes > 0 {
			out[id] = t
		}
	}
	return out, nil
}

func tally(id string) (models.ReactionTally, error) {
	var t models.ReactionTally
	prefix := keys.ReactionsPrefix(id)
	iter, err := Client.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: keys.UpperBound(prefix),
	})
	if err != nil {
		return t, err
	}
	defer iter.Close()
	for ok := iter.First(); ok; ok = iter.Next() {
		if p, err := keys.ParseReactionKey(string(iter.Key())); err == nil && p.Seq > t.Seq {
			t.Seq = p.Seq
		}
		var r models.Reaction
		if err := decode(iter.Value(), &r); err != nil {
			continue
		}
		switch r.Kind {
		case models.Like:
			t.Likes++
		case models.Dislike:
			t.Dislikes++
		}
	}
	return t, iter.Error()
}
