package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/ingest/queue"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/ingest/tracking"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/store/db"
)

type recorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recorder) Publish(ev models.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return 1
}

func (r *recorder) kinds() []models.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.EventKind
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

type fixture struct {
	intake *Intake
	proc   *Processor
	pub    *recorder
}

func setup(t *testing.T, workers int) *fixture {
	t.Helper()
	require.NoError(t, db.Open(t.TempDir()))
	t.Cleanup(func() { _ = db.Close() })

	q := queue.New(64, 0)
	tracker := tracking.NewInflightTracker()
	pub := &recorder{}
	p := NewProcessor(q, workers)
	RegisterHandlers(p, pub, tracker)
	p.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		p.Stop(ctx)
	})
	return &fixture{intake: NewIntake(q, tracker), proc: p, pub: pub}
}

func message(id string, ts int64) models.Message {
	return models.Message{ID: id, Channel: "general", Body: "hi " + id, TS: ts, Sender: models.SenderIdentity{ID: "u1", Name: "one"}}
}

func TestMessageStoredAndPublishedOnce(t *testing.T) {
	f := setup(t, 2)
	ctx := context.Background()
	m := message("m1", 100)

	require.NoError(t, f.intake.SubmitMessage(ctx, m))
	_, err := f.intake.Tracker().Wait(ctx, "m1")
	require.NoError(t, err)

	got, err := db.GetMessage("m1")
	require.NoError(t, err)
	assert.Equal(t, m, got)

	// a resend is stored idempotently and not announced again
	require.NoError(t, f.intake.SubmitMessage(ctx, m))
	_, err = f.intake.Tracker().Wait(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []models.EventKind{models.EventMessageCreated}, f.pub.kinds())
}

func TestReactionWaitsForQueuedMessage(t *testing.T) {
	f := setup(t, 4)
	ctx := context.Background()

	require.NoError(t, f.intake.SubmitMessage(ctx, message("m1", 1)))
	require.NoError(t, f.intake.SubmitReaction(ctx, "general", models.Reaction{MessageID: "m1", Kind: models.Like}))
	require.NoError(t, f.intake.SubmitReaction(ctx, "general", models.Reaction{MessageID: "m1", Kind: models.Like}))

	assert.Eventually(t, func() bool {
		tallies, err := db.Tallies([]string{"m1"})
		return err == nil && tallies["m1"].Likes == 2
	}, 2*time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool { return len(f.pub.kinds()) == 3 }, time.Second, time.Millisecond)
	assert.ElementsMatch(t,
		[]models.EventKind{models.EventMessageCreated, models.EventReactionCreated, models.EventReactionCreated},
		f.pub.kinds())
}

func TestStopDrainsAcceptedWork(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, f.intake.SubmitMessage(ctx, message(id, int64(i+1))))
	}
	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	f.proc.Stop(stopCtx)

	list, err := db.ListMessages("general", 0)
	require.NoError(t, err)
	assert.Len(t, list, 4)

	assert.ErrorIs(t, f.intake.SubmitMessage(ctx, message("late", 9)), queue.ErrQueueClosed)
	assert.False(t, f.intake.Tracker().IsInflight("late"))
}

func TestUnknownReactionTargetIsDropped(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()
	require.NoError(t, f.intake.SubmitReaction(ctx, "general", models.Reaction{MessageID: "ghost", Kind: models.Like}))
	require.NoError(t, f.intake.SubmitMessage(ctx, message("m1", 1)))
	_, err := f.intake.Tracker().Wait(ctx, "m1")
	require.NoError(t, err)

	tallies, err := db.Tallies([]string{"ghost"})
	require.NoError(t, err)
	assert.Empty(t, tallies)
}
