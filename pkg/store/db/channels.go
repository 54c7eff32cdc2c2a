package db

import (
	"strings"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/channel"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/store/keys"
)

// ChannelMeta is the per-channel bookkeeping row.
type ChannelMeta struct {
	ID        string             `json:"id" msgpack:"id"`
	Kind      models.ChannelKind `json:"kind" msgpack:"kind"`
	Messages  int64              `json:"messages" msgpack:"messages"`
	CreatedTS int64              `json:"created_ts" msgpack:"created_ts"`
	LastTS    int64              `json:"last_ts" msgpack:"last_ts"`
}

func newMeta(id string, ts int64) ChannelMeta {
	kind, _ := channel.Kind(id)
	return ChannelMeta{ID: id, Kind: kind, CreatedTS: ts}
}

func loadMeta(channelID string) (ChannelMeta, error) {
	var m ChannelMeta
	b, err := getValue(keys.GenChannelMeta(channelID))
	if err != nil {
		return m, err
	}
	if err := decode(b, &m); err != nil {
		return m, errors.Wrapf(err, "decode meta for %s", channelID)
	}
	return m, nil
}

// GetChannel returns the metadata of a channel that has stored messages.
func GetChannel(channelID string) (ChannelMeta, error) {
	if keys.ValidateID(channelID) != nil {
		return ChannelMeta{}, ErrNotFound
	}
	return loadMeta(channelID)
}

// ListChannels returns every channel with at least one stored message, in
// key order.
func ListChannels() ([]ChannelMeta, error) {
	if Client == nil {
		return nil, ErrNotOpen
	}
	iter, err := Client.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keys.ChannelsPrefix),
		UpperBound: keys.UpperBound(keys.ChannelsPrefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []ChannelMeta
	for ok := iter.First(); ok; {
		rest := strings.TrimPrefix(string(iter.Key()), keys.ChannelsPrefix)
		i := strings.IndexByte(rest, ':')
		if i < 0 {
			ok = iter.Next()
			continue
		}
		id := rest[:i]
		if m, err := loadMeta(id); err == nil {
			out = append(out, m)
		} else if !IsNotFound(err) {
			return nil, err
		}
		// skip the rest of this channel's rows
		ok = iter.SeekGE(keys.UpperBound(keys.ChannelsPrefix + id + ":"))
	}
	return out, iter.Error()
}
