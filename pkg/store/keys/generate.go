package keys

import (
	"fmt"
)

func GenMessageKey(channelID string, ts int64, messageID string) string {
	return fmt.Sprintf(MessageKey, channelID, PadTS(ts), messageID)
}

func GenMessageIdx(messageID string) string {
	return fmt.Sprintf(MessageIdx, messageID)
}

func GenReactionKey(messageID string, seq uint64) string {
	return fmt.Sprintf(ReactionKey, messageID, PadSeq(seq))
}

func GenChannelMeta(channelID string) string {
	return fmt.Sprintf(ChannelMeta, channelID)
}

// prefixes for range scans

func ChannelMessagesPrefix(channelID string) string {
	return "c:" + channelID + ":m:"
}

func ReactionsPrefix(messageID string) string {
	return "r:" + messageID + ":"
}

const ChannelsPrefix = "c:"

// UpperBound returns the smallest key greater than every key with prefix.
func UpperBound(prefix string) []byte {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return b[:i+1]
		}
	}
	return nil
}

// helpers
func PadTS(ts int64) string {
	return fmt.Sprintf("%0*d", TSPadWidth, ts)
}

func PadSeq(seq uint64) string {
	return fmt.Sprintf("%0*d", SeqPadWidth, seq)
}
