package api

import (
	"context"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/api/router"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/chaterr"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/composer"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/store/keys"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/telemetry"
)

// enqueueWait bounds a blocking enqueue when the intake is configured to
// wait for queue space.
const enqueueWait = 2 * time.Second

// PostMessage accepts a message for storage and answers 202 once it is
// queued. The echo arrives on the live feed after it is stored.
func (s *Server) PostMessage(ctx *fasthttp.RequestCtx) {
	tr := telemetry.Track("api.post_message")
	defer tr.Finish()

	ch, err := channelParam(ctx)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	var req PostMessageRequest
	if err := router.DecodeJSON(ctx, &req); err != nil {
		router.WriteError(ctx, err)
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		router.WriteError(ctx, chaterr.ErrEmptyMessage)
		return
	}
	if s.opts.MaxBodyBytes > 0 && len(req.Body) > s.opts.MaxBodyBytes {
		router.WriteError(ctx, chaterr.ErrMessageTooLong)
		return
	}
	if req.ID == "" {
		req.ID = composer.NewMessageID()
	} else if err := keys.ValidateID(req.ID); err != nil {
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	if req.TS <= 0 {
		req.TS = time.Now().UnixNano()
	}
	if strings.TrimSpace(req.Sender.ID) == "" {
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, "sender id missing")
		return
	}
	m := models.Message{
		ID:      req.ID,
		Channel: ch,
		Sender:  composer.Stamp(req.Sender),
		Body:    req.Body,
		TS:      req.TS,
	}
	tr.Mark("validate")

	ectx, cancel := context.WithTimeout(context.Background(), enqueueWait)
	defer cancel()
	if err := s.intake.SubmitMessage(ectx, m); err != nil {
		router.WriteError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, fasthttp.StatusAccepted, AcceptedResponse{ID: m.ID, Channel: ch, TS: m.TS})
}

// React records one like or dislike against a message. Repeats count.
func (s *Server) React(ctx *fasthttp.RequestCtx) {
	var req ReactRequest
	if err := router.DecodeJSON(ctx, &req); err != nil {
		router.WriteError(ctx, err)
		return
	}
	kind, ok := models.ParseReaction(req.Kind)
	if !ok {
		router.WriteError(ctx, chaterr.Validation(chaterr.UnknownReaction, req.Kind))
		return
	}
	m, err := s.loadMessage(router.PathParam(ctx, "id"))
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	r := models.Reaction{MessageID: m.ID, Kind: kind, Reporter: req.Reporter, TS: time.Now().UnixNano()}

	ectx, cancel := context.WithTimeout(context.Background(), enqueueWait)
	defer cancel()
	if err := s.intake.SubmitReaction(ectx, m.Channel, r); err != nil {
		router.WriteError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, fasthttp.StatusAccepted, AcceptedResponse{ID: m.ID, Channel: m.Channel})
}
