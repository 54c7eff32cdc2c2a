package models

import "strings"

type ReactionKind string

const (
	Like    ReactionKind = "like"
	Dislike ReactionKind = "dislike"
)

// ParseReaction accepts "like" or "dislike" in any case.
func ParseReaction(s string) (ReactionKind, bool) {
	switch ReactionKind(strings.ToLower(strings.TrimSpace(s))) {
	case Like:
		return Like, true
	case Dislike:
		return Dislike, true
	}
	return "", false
}

func (k ReactionKind) Valid() bool {
	return k == Like || k == Dislike
}

type ReactionTally struct {
	Likes    int64 `json:"likes" msgpack:"likes"`
	Dislikes int64 `json:"dislikes" msgpack:"dislikes"`
	// Seq is the highest stored reaction seq counted here. Zero when the
	// tally was not read from storage.
	Seq uint64 `json:"seq,omitempty" msgpack:"seq,omitempty"`
}

// Reaction is one reaction event against a message.
type Reaction struct {
	MessageID string       `json:"message_id" msgpack:"message_id"`
	Kind      ReactionKind `json:"kind" msgpack:"kind"`
	// Reporter is optional and informational; repeat reactions are counted.
	Reporter string `json:"reporter,omitempty" msgpack:"reporter,omitempty"`
	TS       int64  `json:"ts,omitempty" msgpack:"ts,omitempty"`
	// Seq is assigned by storage, per message, starting at 1.
	Seq uint64 `json:"seq,omitempty" msgpack:"seq,omitempty"`
}
