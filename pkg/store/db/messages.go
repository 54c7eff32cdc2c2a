package db

import (
	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/channel"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/logger"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/store/keys"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/store/locks"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/telemetry"
)

// SaveMessage stores msg under its channel. Saving an id that already
// exists is a no-op and reports created=false, so a resent message never
// duplicates.
func SaveMessage(msg models.Message) (bool, error) {
	if Client == nil {
		return false, ErrNotOpen
	}
	if err := keys.ValidateID(msg.ID); err != nil {
		return false, err
	}
	if err := keys.ValidateID(msg.Channel); err != nil {
		return false, err
	}

	tr := telemetry.Track("store.save_message")
	defer tr.Finish()

	lock := locks.Channel(msg.Channel)
	lock.Lock()
	defer lock.Unlock()

	idx := keys.GenMessageIdx(msg.ID)
	exists, err := has(idx)
	if err != nil {
		return false, err
	}
	if exists {
		logger.Debug("message_exists", "channel", msg.Channel, "msg_id", msg.ID)
		return false, nil
	}
	tr.Mark("check_exists")

	meta, err := loadMeta(msg.Channel)
	if err != nil && !IsNotFound(err) {
		return false, err
	}
	if meta.ID == "" {
		meta = newMeta(msg.Channel, msg.TS)
	}
	meta.Messages++
	if msg.TS > meta.LastTS {
		meta.LastTS = msg.TS
	}

	data, err := encode(msg)
	if err != nil {
		return false, errors.Wrap(err, "encode message")
	}
	mb, err := encode(meta)
	if err != nil {
		return false, errors.Wrap(err, "encode channel meta")
	}
	key := keys.GenMessageKey(msg.Channel, msg.TS, msg.ID)

	batch := Client.NewBatch()
	defer batch.Close()
	_ = batch.Set([]byte(key), data, nil)
	_ = batch.Set([]byte(idx), []byte(key), nil)
	_ = batch.Set([]byte(keys.GenChannelMeta(msg.Channel)), mb, nil)
	tr.Mark("encode")
	if err := batch.Commit(writeOpt()); err != nil {
		logger.Error("save_message_failed", "channel", msg.Channel, "key", key, "error", err)
		return false, err
	}
	logger.Debug("message_saved", "channel", msg.Channel, "key", key, "msg_id", msg.ID)
	return true, nil
}

// GetMessage loads a message by id.
func GetMessage(id string) (models.Message, error) {
	var m models.Message
	if err := keys.ValidateID(id); err != nil {
		return m, ErrNotFound
	}
	key, err := getValue(keys.GenMessageIdx(id))
	if err != nil {
		return m, err
	}
	data, err := getValue(string(key))
	if err != nil {
		return m, err
	}
	if err := decode(data, &m); err != nil {
		return m, errors.Wrapf(err, "decode message %s", id)
	}
	return m, nil
}

// ListMessages returns the newest limit messages of channelID in ascending
// (ts, id) order. limit <= 0 returns the whole channel.
func ListMessages(channelID string, limit int) ([]models.Message, error) {
	if Client == nil {
		return nil, ErrNotOpen
	}
	if !channel.Valid(channelID) || keys.ValidateID(channelID) != nil {
		return nil, errors.Errorf("invalid channel %q", channelID)
	}
	prefix := keys.ChannelMessagesPrefix(channelID)
	iter, err := Client.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: keys.UpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []models.Message
	// walk backwards from the newest row so limit keeps the tail
	for ok := iter.Last(); ok; ok = iter.Prev() {
		var m models.Message
		if err := decode(iter.Value(), &m); err != nil {
			logger.Warn("message_decode_failed", "key", string(iter.Key()), "error", err)
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
