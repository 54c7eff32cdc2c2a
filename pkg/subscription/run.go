package subscription

import (
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/logger"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/telemetry"
)

// run is the only goroutine that mutates this channel's view.
func (s *Subscription) run() {
	defer close(s.done)
	for c := range s.inbox {
		switch c.kind {
		case cmdBegin:
			c.reply <- s.begin()
		case cmdEvent:
			s.onEvent(c.gen, c.event)
		case cmdLocal:
			c.reply <- result{err: s.onLocal(c.event)}
		case cmdLoaded:
			c.reply <- result{err: s.onLoaded(c)}
		case cmdFlush:
			c.reply <- result{}
		case cmdClose:
			s.shutdown()
			c.reply <- result{}
			s.drainAfterClose()
			return
		}
	}
}

func (s *Subscription) begin() result {
	switch s.State() {
	case Open:
		return result{}
	case Closing:
		return result{err: ErrClosed}
	}
	// Closed or a retry from Opening: any previous attempt is abandoned
	s.gen++
	s.buffer = keepLocal(s.buffer)
	s.transition(Opening)
	return result{gen: s.gen}
}

func (s *Subscription) onEvent(gen uint64, ev models.Event) {
	if gen != s.gen || ev.Channel != s.channel {
		telemetry.EventDropped("stale")
		return
	}
	switch s.State() {
	case Opening:
		s.buffer = append(s.buffer, pending{ev: ev})
	case Open:
		if s.apply(ev) {
			s.changed()
		}
	default:
		telemetry.EventDropped("closed")
	}
}

func (s *Subscription) onLocal(ev models.Event) error {
	switch s.State() {
	case Opening:
		s.buffer = append(s.buffer, pending{ev: ev, local: true})
		return nil
	case Open:
		if s.apply(ev) {
			s.changed()
		}
		return nil
	case Closed:
		return ErrNotOpen
	}
	return ErrClosed
}

func (s *Subscription) onLoaded(c command) error {
	if c.gen != s.gen || s.State() != Opening {
		return ErrClosed
	}
	if c.err != nil {
		// keep Opening so the caller can retry; never show a view with a gap.
		// Feed events are refetched on retry, local copies are not.
		s.buffer = keepLocal(s.buffer)
		logger.Warn("subscription_fetch_failed", "channel", s.channel, "error", c.err)
		return c.err
	}

	// A sequenced reaction is already counted by the snapshot when its seq
	// is at or below the message's high-water mark.
	var late []models.Event
	for _, p := range s.buffer {
		if r := p.ev.Reaction; p.ev.Kind == models.EventReactionCreated && r != nil && r.Seq != 0 {
			if r.Seq > c.tallies[r.MessageID].Seq {
				late = append(late, p.ev)
			} else {
				telemetry.EventDropped("in_snapshot")
			}
			continue
		}
		s.apply(p.ev)
	}
	s.buffer = s.buffer[:0]

	for _, m := range c.history {
		if m.Channel != "" && m.Channel != s.channel {
			continue
		}
		if s.store.Append(s.channel, m) {
			telemetry.MessageAppended("history")
		}
	}
	for id, t := range c.tallies {
		s.agg.Merge(id, t)
	}
	for _, ev := range late {
		s.apply(ev)
	}

	s.handle, s.subscribed = c.handle, true
	s.transition(Open)
	logger.Debug("subscription_open", "channel", s.channel, "history", len(c.history))
	s.changed()
	return nil
}

// apply routes one event into the store or the aggregator.
func (s *Subscription) apply(ev models.Event) bool {
	switch ev.Kind {
	case models.EventMessageCreated:
		if ev.Message == nil {
			return false
		}
		if !s.store.Append(s.channel, *ev.Message) {
			return false
		}
		telemetry.MessageAppended("live")
		return true
	case models.EventReactionCreated:
		if ev.Reaction == nil {
			return false
		}
		if err := s.agg.Record(ev.Reaction.MessageID, ev.Reaction.Kind); err != nil {
			logger.Warn("subscription_reaction_rejected", "channel", s.channel, "message_id", ev.Reaction.MessageID, "error", err)
			return false
		}
		telemetry.ReactionRecorded(string(ev.Reaction.Kind))
		return true
	}
	telemetry.EventDropped("unknown_kind")
	return false
}

func keepLocal(buf []pending) []pending {
	out := buf[:0]
	for _, p := range buf {
		if p.local {
			out = append(out, p)
		}
	}
	return out
}

func (s *Subscription) shutdown() {
	s.transition(Closing)
	if s.subscribed {
		s.feed.Unsubscribe(s.handle)
		s.subscribed = false
	}
	s.buffer = nil
	s.agg.Forget(s.store.Drop(s.channel)...)
	s.transition(Closed)
	logger.Debug("subscription_closed", "channel", s.channel)
}

// drainAfterClose answers requests that were queued behind the close.
func (s *Subscription) drainAfterClose() {
	for {
		select {
		case c := <-s.inbox:
			if c.reply != nil {
				c.reply <- result{err: ErrClosed}
			}
		default:
			return
		}
	}
}

func (s *Subscription) transition(to State) {
	from := State(s.state.Swap(int32(to)))
	if from != to {
		telemetry.SubscriptionTransition(to.String())
	}
}

func (s *Subscription) changed() {
	if s.opts.OnChange != nil {
		s.opts.OnChange(s.channel)
	}
}
