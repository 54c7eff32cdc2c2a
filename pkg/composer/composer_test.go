package composer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/chaterr"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
)

type recorder struct {
	mu    sync.Mutex
	sent  []models.Message
	err   error
	block bool
}

func (r *recorder) Persist(ctx context.Context, m models.Message) error {
	if r.block {
		<-ctx.Done()
		return ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, m)
	return nil
}

var alice = models.SenderIdentity{
	ID:    "u1",
	Name:  "TrashQueen",
	Style: models.Style{Font: "comic", Color: "#ff0000", Bold: true},
}

func TestSubmitRejectsEmptyBody(t *testing.T) {
	rec := &recorder{}
	c := New(rec, Options{})

	for _, body := range []string{"", "   ", "\n\t"} {
		msg, err := c.Submit(context.Background(), "general", alice, body)
		assert.True(t, errors.Is(err, chaterr.ErrEmptyMessage), "body %q", body)
		assert.Equal(t, models.Message{}, msg)
	}
	assert.Empty(t, rec.sent)
}

func TestSubmitRequiresChannel(t *testing.T) {
	c := New(&recorder{}, Options{})
	_, err := c.Submit(context.Background(), "", alice, "hi")
	assert.True(t, errors.Is(err, chaterr.ErrNoActiveChannel))

	_, err = c.Submit(context.Background(), "Not A Channel", alice, "hi")
	assert.True(t, errors.Is(err, chaterr.ErrInvalidChannel))
	assert.True(t, chaterr.IsValidation(err))
}

func TestSubmitTooLong(t *testing.T) {
	c := New(&recorder{}, Options{MaxBodyBytes: 4})
	_, err := c.Submit(context.Background(), "general", alice, "hello")
	assert.True(t, errors.Is(err, chaterr.ErrMessageTooLong))
}

func TestSubmitBuildsAndDispatches(t *testing.T) {
	rec := &recorder{}
	now := time.Unix(1700000000, 42)
	c := New(rec, Options{Now: func() time.Time { return now }})

	msg, err := c.Submit(context.Background(), "sports1", alice, " what a dunk ")
	require.NoError(t, err)

	parsed, err := uuid.Parse(msg.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	assert.Equal(t, "sports1", msg.Channel)
	assert.Equal(t, " what a dunk ", msg.Body)
	assert.Equal(t, now.UnixNano(), msg.TS)
	assert.Equal(t, "TrashQueen", msg.Sender.Name)
	assert.Equal(t, models.Style{Font: "comic", Color: "#FF0000", Size: "regular", Bold: true}, msg.Sender.Style)

	require.Len(t, rec.sent, 1)
	assert.Equal(t, msg, rec.sent[0])
}

func TestSubmitDispatchFailure(t *testing.T) {
	rec := &recorder{err: errors.New("connection refused")}
	c := New(rec, Options{})

	msg, err := c.Submit(context.Background(), "general", alice, "hi")
	require.Error(t, err)
	assert.True(t, chaterr.Retryable(err))
	assert.NotEmpty(t, msg.ID)

	rec.err = nil
	require.NoError(t, c.Resend(context.Background(), msg))
	assert.Equal(t, msg.ID, rec.sent[0].ID)
}

func TestSubmitDispatchTimeout(t *testing.T) {
	c := New(&recorder{block: true}, Options{DispatchTimeout: 10 * time.Millisecond})
	_, err := c.Submit(context.Background(), "general", alice, "hi")

	var te *chaterr.TransportError
	require.True(t, errors.As(err, &te))
	assert.True(t, te.Timeout())
	assert.Equal(t, chaterr.OpDispatch, te.Op)
}

func TestNormalizeStyle(t *testing.T) {
	got := NormalizeStyle(models.Style{Font: "Papyrus", Color: "red", Size: "LARGE", Italic: true})
	assert.Equal(t, models.Style{Font: DefaultFont, Color: DefaultColor, Size: "large", Italic: true}, got)

	anon := Stamp(models.SenderIdentity{ID: "u9", Name: "  "})
	assert.Equal(t, "u9", anon.Name)
}

func TestMessageIDsAreTimeOrdered(t *testing.T) {
	a := NewMessageID()
	time.Sleep(2 * time.Millisecond)
	b := NewMessageID()
	assert.Less(t, a, b)
}
