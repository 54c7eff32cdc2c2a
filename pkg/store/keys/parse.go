package keys

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ids end up as key segments, so ":" is never allowed
	idRegexp = regexp.MustCompile(`^[A-Za-z0-9_.%-]{1,256}$`)

	messageKeyRegexp  = regexp.MustCompile(`^c:([A-Za-z0-9_.%-]{1,256}):m:([0-9]{20}):([A-Za-z0-9_.%-]{1,256})$`)
	reactionKeyRegexp = regexp.MustCompile(`^r:([A-Za-z0-9_.%-]{1,256}):([0-9]{20})$`)
	channelMetaRegexp = regexp.MustCompile(`^c:([A-Za-z0-9_.%-]{1,256}):meta$`)
)

type MessageKeyParts struct {
	ChannelID string
	TS        int64
	MessageID string
}

type ReactionKeyParts struct {
	MessageID string
	Seq       uint64
}

// ValidateID reports whether id can be embedded in a key.
func ValidateID(id string) error {
	if !idRegexp.MatchString(id) {
		return fmt.Errorf("invalid key segment: %q", id)
	}
	return nil
}

func parsePaddedInt(s string, width int) (int64, error) {
	if len(s) == 0 || len(s) > width {
		return 0, fmt.Errorf("length invalid: %s", s)
	}
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return 0, nil
	}
	return strconv.ParseInt(trimmed, 10, 64)
}

func parsePaddedUint(s string, width int) (uint64, error) {
	if len(s) == 0 || len(s) > width {
		return 0, fmt.Errorf("length invalid: %s", s)
	}
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return 0, nil
	}
	return strconv.ParseUint(trimmed, 10, 64)
}

func ParseMessageKey(key string) (*MessageKeyParts, error) {
	m := messageKeyRegexp.FindStringSubmatch(key)
	if m == nil {
		return nil, fmt.Errorf("not a message key: %s", key)
	}
	ts, err := parsePaddedInt(m[2], TSPadWidth)
	if err != nil {
		return nil, fmt.Errorf("message key ts: %w", err)
	}
	return &MessageKeyParts{ChannelID: m[1], TS: ts, MessageID: m[3]}, nil
}

func ParseReactionKey(key string) (*ReactionKeyParts, error) {
	m := reactionKeyRegexp.FindStringSubmatch(key)
	if m == nil {
		return nil, fmt.Errorf("not a reaction key: %s", key)
	}
	seq, err := parsePaddedUint(m[2], SeqPadWidth)
	if err != nil {
		return nil, fmt.Errorf("reaction key seq: %w", err)
	}
	return &ReactionKeyParts{MessageID: m[1], Seq: seq}, nil
}

// ParseChannelMeta returns the channel id of a metadata key.
func ParseChannelMeta(key string) (string, bool) {
	m := channelMetaRegexp.FindStringSubmatch(key)
	if m == nil {
		return "", false
	}
	return m[1], true
}
