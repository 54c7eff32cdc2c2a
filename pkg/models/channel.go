package models

type ChannelKind string

const (
	ChannelPublic ChannelKind = "public"
	ChannelDirect ChannelKind = "direct"
)

// ChannelInfo describes a channel in the public catalogue.
type ChannelInfo struct {
	ID       string      `json:"id" yaml:"id"`
	Name     string      `json:"name" yaml:"name"`
	Category string      `json:"category,omitempty" yaml:"category"`
	Kind     ChannelKind `json:"kind" yaml:"-"`
}

// ChannelView is what the presentation layer renders for one channel.
type ChannelView struct {
	Channel  string                   `json:"channel"`
	Messages []Message                `json:"messages"`
	Tallies  map[string]ReactionTally `json:"tallies"`
	Top      *Message                 `json:"top,omitempty"`
}

// Highlight is a ranked message together with its tally, used by the ticker.
type Highlight struct {
	Message Message       `json:"message"`
	Tally   ReactionTally `json:"tally"`
}

// ChannelHighlights is the ranked slice of one channel in a ticker snapshot.
type ChannelHighlights struct {
	Channel    string      `json:"channel"`
	Name       string      `json:"name,omitempty"`
	Highlights []Highlight `json:"highlights"`
}

// TickerSnapshot is the cached cross-channel highlight list.
type TickerSnapshot struct {
	GeneratedAt int64               `json:"generated_at"`
	Channels    []ChannelHighlights `json:"channels"`
}
