package keys

const (
	// notation dictionary for key formats:
	// c    = channel
	// m    = message
	// r    = reaction
	// meta = channel metadata
	// segments are separated by ":"; <...> is a variable segment

	// primary storage key formats
	MessageKey  = "c:%s:m:%s:%s" // c:<channel>:m:<ts>:<msg_id>
	MessageIdx  = "m:%s"         // m:<msg_id> → message key
	ReactionKey = "r:%s:%s"      // r:<msg_id>:<seq>
	ChannelMeta = "c:%s:meta"    // c:<channel>:meta

	// padding widths (fixed for lexicographic ordering)
	TSPadWidth  = 20 // e.g. %020d
	SeqPadWidth = 20 // e.g. %020d

	// system keys
	SystemVersionKey = "system:version"
)
