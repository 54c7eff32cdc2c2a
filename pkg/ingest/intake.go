package ingest

import (
	"context"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/ingest/queue"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/ingest/tracking"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/logger"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
)

// Intake turns API writes into queue ops.
type Intake struct {
	q       *queue.Queue
	tracker *tracking.InflightTracker
	// Blocking makes submits wait for queue space instead of failing fast.
	Blocking bool
}

func NewIntake(q *queue.Queue, tracker *tracking.InflightTracker) *Intake {
	return &Intake{q: q, tracker: tracker}
}

func (in *Intake) enqueue(ctx context.Context, op *queue.Op) error {
	if in.Blocking {
		return in.q.EnqueueCtx(ctx, op)
	}
	return in.q.Enqueue(op)
}

// SubmitMessage queues m for storage. The id is marked in flight until the
// worker has applied it.
func (in *Intake) SubmitMessage(ctx context.Context, m models.Message) error {
	payload, err := msgpack.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "encode message")
	}
	in.tracker.Add(m.ID)
	op := &queue.Op{Handler: queue.HandlerMessageCreate, Channel: m.Channel, ID: m.ID, Payload: payload, TS: m.TS}
	if err := in.enqueue(ctx, op); err != nil {
		in.tracker.Remove(m.ID)
		logger.Warn("ingest_enqueue_failed", "handler", string(op.Handler), "channel", m.Channel, "error", err)
		return err
	}
	return nil
}

// SubmitReaction queues one reaction against a message of channelID.
func (in *Intake) SubmitReaction(ctx context.Context, channelID string, r models.Reaction) error {
	payload, err := msgpack.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "encode reaction")
	}
	op := &queue.Op{Handler: queue.HandlerReactionAdd, Channel: channelID, ID: r.MessageID, Payload: payload, TS: r.TS}
	if err := in.enqueue(ctx, op); err != nil {
		logger.Warn("ingest_enqueue_failed", "handler", string(op.Handler), "channel", channelID, "error", err)
		return err
	}
	return nil
}

// Tracker exposes the in-flight set for readers.
func (in *Intake) Tracker() *tracking.InflightTracker { return in.tracker }
