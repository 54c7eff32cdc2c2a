package models

type EventKind string

const (
	EventMessageCreated  EventKind = "message.created"
	EventReactionCreated EventKind = "reaction.created"
)

// Event is the payload a live feed delivers to subscribers. Exactly one of
// Message or Reaction is set, matching Kind.
type Event struct {
	Kind     EventKind `json:"kind" msgpack:"kind"`
	Channel  string    `json:"channel" msgpack:"channel"`
	Message  *Message  `json:"message,omitempty" msgpack:"message,omitempty"`
	Reaction *Reaction `json:"reaction,omitempty" msgpack:"reaction,omitempty"`
}

func MessageEvent(m Message) Event {
	return Event{Kind: EventMessageCreated, Channel: m.Channel, Message: &m}
}

func ReactionEvent(channel string, r Reaction) Event {
	return Event{Kind: EventReactionCreated, Channel: channel, Reaction: &r}
}

// Handle identifies one live feed subscription.
type Handle uint64
