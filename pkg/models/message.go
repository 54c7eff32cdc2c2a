package models

// Style carries the text presentation a sender had selected when posting.
type Style struct {
	Font      string `json:"font" msgpack:"font"`
	Color     string `json:"color" msgpack:"color"`
	Size      string `json:"size,omitempty" msgpack:"size,omitempty"`
	Bold      bool   `json:"bold,omitempty" msgpack:"bold,omitempty"`
	Italic    bool   `json:"italic,omitempty" msgpack:"italic,omitempty"`
	Underline bool   `json:"underline,omitempty" msgpack:"underline,omitempty"`
}

// SenderIdentity is the author block stamped onto every message. It is
// passed explicitly rather than read from ambient session state.
type SenderIdentity struct {
	// ID is the participant's stable identifier (not shown to other users)
	ID    string `json:"id" msgpack:"id"`
	Name  string `json:"name" msgpack:"name"`
	Style Style  `json:"style" msgpack:"style"`
}

type Message struct {
	ID      string         `json:"id" msgpack:"id"`
	Channel string         `json:"channel" msgpack:"channel"`
	Sender  SenderIdentity `json:"sender" msgpack:"sender"`
	Body    string         `json:"body" msgpack:"body"`
	// TS is the creation time in unix nanoseconds
	TS int64 `json:"ts" msgpack:"ts"`
}

// Before reports whether m sorts ahead of o in a channel log: creation
// time ascending, then id.
func (m Message) Before(o Message) bool {
	if m.TS != o.TS {
		return m.TS < o.TS
	}
	return m.ID < o.ID
}
