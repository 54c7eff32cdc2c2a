package ingest

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/ingest/queue"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/ingest/tracking"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/logger"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/store/db"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/telemetry"
)

// Publisher receives every event that was stored.
type Publisher interface {
	Publish(ev models.Event) int
}

// reactionWait bounds how long a reaction waits for its message to land.
const reactionWait = 5 * time.Second

// RegisterHandlers wires the message and reaction handlers into p.
func RegisterHandlers(p *Processor, pub Publisher, tracker *tracking.InflightTracker) {
	p.RegisterHandler(queue.HandlerMessageCreate, MutMessageCreate(pub, tracker))
	p.RegisterHandler(queue.HandlerReactionAdd, MutReactionAdd(pub, tracker))
}

// MutMessageCreate stores a message and publishes it when it was new.
// Re-sent messages are already stored and are not published twice.
func MutMessageCreate(pub Publisher, tracker *tracking.InflightTracker) ProcessorFunc {
	return func(ctx context.Context, op *queue.Op) error {
		defer tracker.Remove(op.ID)
		if len(op.Payload) == 0 {
			return errors.New("empty payload for message create")
		}
		var m models.Message
		if err := msgpack.Unmarshal(op.Payload, &m); err != nil {
			return errors.Wrap(err, "invalid message payload")
		}
		if m.ID == "" {
			m.ID = op.ID
		}
		if m.Channel == "" {
			m.Channel = op.Channel
		}
		if m.TS == 0 {
			m.TS = op.TS
		}
		created, err := db.SaveMessage(m)
		if err != nil {
			return errors.Wrapf(err, "save message %s", m.ID)
		}
		if !created {
			logger.Debug("ingest_message_duplicate", "channel", m.Channel, "msg_id", m.ID)
			return nil
		}
		telemetry.MessageAppended("ingest")
		pub.Publish(models.MessageEvent(m))
		return nil
	}
}

// MutReactionAdd records one reaction row and publishes it. A reaction to a
// message that is still queued waits for that message first.
func MutReactionAdd(pub Publisher, tracker *tracking.InflightTracker) ProcessorFunc {
	return func(ctx context.Context, op *queue.Op) error {
		var r models.Reaction
		if err := msgpack.Unmarshal(op.Payload, &r); err != nil {
			return errors.Wrap(err, "invalid reaction payload")
		}
		if r.MessageID == "" {
			r.MessageID = op.ID
		}
		if r.TS == 0 {
			r.TS = op.TS
		}
		seq, err := db.AddReaction(r)
		if db.IsNotFound(err) {
			wctx, cancel := context.WithTimeout(ctx, reactionWait)
			// retry even when nothing was in flight: the message may have
			// landed between the lookup and the wait
			_, werr := tracker.Wait(wctx, r.MessageID)
			cancel()
			if werr == nil {
				seq, err = db.AddReaction(r)
			}
		}
		if err != nil {
			return errors.Wrapf(err, "add reaction to %s", r.MessageID)
		}
		r.Seq = seq
		telemetry.ReactionRecorded(string(r.Kind))
		pub.Publish(models.ReactionEvent(op.Channel, r))
		return nil
	}
}
