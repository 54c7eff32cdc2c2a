// Package composer validates outbound messages and hands them to the
// delivery side.
package composer

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/channel"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/chaterr"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/logger"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
)

// Dispatcher persists a message. Persist must be idempotent by message id.
type Dispatcher interface {
	Persist(ctx context.Context, msg models.Message) error
}

type Options struct {
	DispatchTimeout time.Duration
	// MaxBodyBytes limits the body length; zero disables the check.
	MaxBodyBytes int
	// Now and NewID are replaced in tests.
	Now   func() time.Time
	NewID func() string
}

const defaultDispatchTimeout = 10 * time.Second

type Composer struct {
	dispatcher Dispatcher
	opts       Options
}

func New(d Dispatcher, opts Options) *Composer {
	if opts.DispatchTimeout <= 0 {
		opts.DispatchTimeout = defaultDispatchTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = NewMessageID
	}
	return &Composer{dispatcher: d, opts: opts}
}

// NewMessageID returns a time-ordered UUIDv7. The same id travels to
// storage and comes back on the live feed, which is what lets the
// optimistic copy and the echo collapse into one entry.
func NewMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Validate checks a submission without side effects.
func (c *Composer) Validate(channelID, body string) error {
	if channelID == "" {
		return chaterr.ErrNoActiveChannel
	}
	if !channel.Valid(channelID) {
		return chaterr.Validation(chaterr.InvalidChannel, channelID)
	}
	if strings.TrimSpace(body) == "" {
		return chaterr.ErrEmptyMessage
	}
	if c.opts.MaxBodyBytes > 0 && len(body) > c.opts.MaxBodyBytes {
		return chaterr.ErrMessageTooLong
	}
	return nil
}

// Submit builds a message from the sender's current identity and dispatches
// it. Validation failures return a zero Message. On a dispatch failure the
// built message is still returned with a TransportError, so the caller can
// keep its optimistic copy and Resend it later.
func (c *Composer) Submit(ctx context.Context, channelID string, sender models.SenderIdentity, body string) (models.Message, error) {
	if err := c.Validate(channelID, body); err != nil {
		return models.Message{}, err
	}
	msg := models.Message{
		ID:      c.opts.NewID(),
		Channel: channelID,
		Sender:  Stamp(sender),
		Body:    body,
		TS:      c.opts.Now().UnixNano(),
	}
	return msg, c.Resend(ctx, msg)
}

// Resend dispatches an already built message again.
func (c *Composer) Resend(ctx context.Context, msg models.Message) error {
	dctx, cancel := context.WithTimeout(ctx, c.opts.DispatchTimeout)
	defer cancel()

	if err := c.dispatcher.Persist(dctx, msg); err != nil {
		logger.Warn("composer_dispatch_failed", "channel", msg.Channel, "message_id", msg.ID, "error", err)
		return chaterr.Transport(chaterr.OpDispatch, msg.Channel, err)
	}
	logger.Debug("composer_dispatched", "channel", msg.Channel, "message_id", msg.ID)
	return nil
}
