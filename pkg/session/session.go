// Package session ties one participant's identity to the channel they are
// looking at. It owns the shared message store, the reaction aggregator and
// at most one live subscription.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/channel"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/chaterr"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/composer"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/logger"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/ranking"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/reactions"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/store"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/store/keys"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/subscription"
)

// Storage is the remote side of a session.
type Storage interface {
	subscription.History
	composer.Dispatcher
	React(ctx context.Context, channelID, messageID string, kind models.ReactionKind) error
}

// Presenter receives a fresh view after every applied change to the active
// channel. Render is called from the subscription's event goroutine and
// must not call back into Switch.
type Presenter interface {
	Render(view models.ChannelView)
}

type PresenterFunc func(models.ChannelView)

func (f PresenterFunc) Render(v models.ChannelView) { f(v) }

type Options struct {
	Subscription subscription.Options
	Composer     composer.Options
	ReactTimeout time.Duration
}

type Session struct {
	storage   Storage
	feed      subscription.Feed
	presenter Presenter
	opts      Options

	store    *store.MessageStore
	agg      *reactions.Aggregator
	ranker   *ranking.Ranker
	composer *composer.Composer

	idMu     sync.RWMutex
	identity models.SenderIdentity

	switchMu sync.Mutex
	active   atomic.Pointer[subscription.Subscription]
}

func New(id models.SenderIdentity, st Storage, feed subscription.Feed, p Presenter, opts Options) *Session {
	if opts.ReactTimeout <= 0 {
		opts.ReactTimeout = 10 * time.Second
	}
	ms := store.New()
	agg := reactions.New()
	s := &Session{
		storage:   st,
		feed:      feed,
		presenter: p,
		opts:      opts,
		store:     ms,
		agg:       agg,
		ranker:    ranking.New(ms, agg),
		composer:  composer.New(st, opts.Composer),
		identity:  id,
	}
	s.opts.Subscription.OnChange = s.notify
	return s
}

func (s *Session) Identity() models.SenderIdentity {
	s.idMu.RLock()
	defer s.idMu.RUnlock()
	return s.identity
}

// SetIdentity replaces the identity stamped on future messages.
func (s *Session) SetIdentity(id models.SenderIdentity) {
	s.idMu.Lock()
	s.identity = id
	s.idMu.Unlock()
}

// Channel returns the active channel id or "".
func (s *Session) Channel() string {
	if sub := s.active.Load(); sub != nil {
		return sub.Channel()
	}
	return ""
}

// State returns the state of the active subscription.
func (s *Session) State() subscription.State {
	if sub := s.active.Load(); sub != nil {
		return sub.State()
	}
	return subscription.Closed
}

// Switch closes the current subscription and opens channelID. When the
// initial load fails the new subscription stays active in Opening and
// Reopen retries it. A Switch or Close issued while the load is pending
// cancels it, and this call returns subscription.ErrClosed.
func (s *Session) Switch(ctx context.Context, channelID string) error {
	return s.open(ctx, channelID, false)
}

// Resync replaces the active subscription with a fresh one on the same
// channel. Use it after the live feed reconnects, since events sent while
// it was down never arrive.
func (s *Session) Resync(ctx context.Context) error {
	ch := s.Channel()
	if ch == "" {
		return chaterr.ErrNoActiveChannel
	}
	return s.open(ctx, ch, true)
}

func (s *Session) open(ctx context.Context, channelID string, force bool) error {
	if !channel.Valid(channelID) || keys.ValidateID(channelID) != nil {
		return chaterr.Validation(chaterr.InvalidChannel, channelID)
	}
	sub, ok := s.swap(channelID, force)
	if !ok {
		return nil
	}
	logger.Info("session_switch", "channel", channelID, "participant", s.Identity().ID)
	return sub.Open(ctx)
}

// swap closes the active subscription and installs a fresh one for
// channelID. The lock covers only the swap; a later swap closes the
// subscription and its pending Open returns subscription.ErrClosed.
func (s *Session) swap(channelID string, force bool) (*subscription.Subscription, bool) {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	if old := s.active.Load(); old != nil {
		if !force && old.Channel() == channelID && old.State() == subscription.Open {
			return nil, false
		}
		s.active.Store(nil)
		old.Close()
	}
	sub := subscription.New(channelID, s.storage, s.feed, s.store, s.agg, s.opts.Subscription)
	s.active.Store(sub)
	return sub, true
}

// SwitchDirect opens the direct channel between this participant and peerID.
func (s *Session) SwitchDirect(ctx context.Context, peerID string) error {
	me := s.Identity().ID
	if me == "" || peerID == "" || me == peerID {
		return chaterr.Validation(chaterr.InvalidChannel, peerID)
	}
	return s.Switch(ctx, channel.Resolve(me, peerID))
}

// Reopen retries the initial load of the active subscription.
func (s *Session) Reopen(ctx context.Context) error {
	sub := s.active.Load()
	if sub == nil {
		return chaterr.ErrNoActiveChannel
	}
	return sub.Open(ctx)
}

// Send submits body to the active channel and appends the optimistic copy.
// A TransportError means the copy is shown but not yet stored; pass the
// returned message to Resend.
func (s *Session) Send(ctx context.Context, body string) (models.Message, error) {
	sub := s.active.Load()
	ch := ""
	if sub != nil {
		ch = sub.Channel()
	}
	msg, err := s.composer.Submit(ctx, ch, s.Identity(), body)
	if msg.ID == "" {
		return msg, err
	}
	if aerr := sub.AppendLocal(msg); aerr != nil {
		logger.Warn("session_local_append_failed", "channel", ch, "message_id", msg.ID, "error", aerr)
	}
	return msg, err
}

// Resend dispatches a message that failed to send. The live echo and the
// existing optimistic copy share the id, so nothing is duplicated.
func (s *Session) Resend(ctx context.Context, msg models.Message) error {
	return s.composer.Resend(ctx, msg)
}

// React sends a reaction to storage. The tally moves when the live feed
// echoes the reaction back.
func (s *Session) React(ctx context.Context, messageID string, kind models.ReactionKind) error {
	if !kind.Valid() {
		return chaterr.Validation(chaterr.UnknownReaction, string(kind))
	}
	ch := s.Channel()
	if ch == "" {
		return chaterr.ErrNoActiveChannel
	}
	rctx, cancel := context.WithTimeout(ctx, s.opts.ReactTimeout)
	defer cancel()
	if err := s.storage.React(rctx, ch, messageID, kind); err != nil {
		return chaterr.Transport(chaterr.OpReact, ch, err)
	}
	return nil
}

// View returns the active channel's messages in order, their tallies and
// the top message.
func (s *Session) View() models.ChannelView {
	return s.viewOf(s.Channel())
}

func (s *Session) viewOf(ch string) models.ChannelView {
	v := models.ChannelView{Channel: ch, Messages: []models.Message{}, Tallies: map[string]models.ReactionTally{}}
	if ch == "" {
		return v
	}
	v.Messages = s.store.List(ch).Messages()
	ids := make([]string, len(v.Messages))
	for i, m := range v.Messages {
		ids[i] = m.ID
	}
	v.Tallies = s.agg.Snapshot(ids)
	if top, ok := s.ranker.Top(ch); ok {
		v.Top = &top
	}
	return v
}

func (s *Session) notify(ch string) {
	if s.presenter == nil || s.Channel() != ch {
		return
	}
	s.presenter.Render(s.viewOf(ch))
}

// Close releases the active subscription.
func (s *Session) Close() {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()
	if sub := s.active.Swap(nil); sub != nil {
		sub.Close()
	}
}
