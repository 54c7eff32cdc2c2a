package api

import (
	"context"

	"github.com/valyala/fasthttp"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/api/router"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/channel"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/chaterr"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/ranking"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/store/db"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/store/keys"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/telemetry"
)

// channelParam validates the {channel} path segment.
func channelParam(ctx *fasthttp.RequestCtx) (string, error) {
	ch := router.PathParam(ctx, "channel")
	if !channel.Valid(ch) || keys.ValidateID(ch) != nil {
		return "", chaterr.Validation(chaterr.InvalidChannel, ch)
	}
	return ch, nil
}

// ListChannels returns the catalogue followed by every other channel that
// has stored messages.
func (s *Server) ListChannels(ctx *fasthttp.RequestCtx) {
	metas, err := db.ListChannels()
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	stored := make(map[string]db.ChannelMeta, len(metas))
	for _, m := range metas {
		stored[m.ID] = m
	}

	out := ChannelsResponse{Channels: []ChannelSummary{}}
	for _, info := range s.catalogue.All() {
		sum := ChannelSummary{ChannelInfo: info}
		if m, ok := stored[info.ID]; ok {
			sum.Messages, sum.LastTS = m.Messages, m.LastTS
			delete(stored, info.ID)
		}
		out.Channels = append(out.Channels, sum)
	}
	for _, m := range metas {
		if _, ok := stored[m.ID]; !ok {
			continue
		}
		info, _ := s.catalogue.Describe(m.ID)
		out.Channels = append(out.Channels, ChannelSummary{ChannelInfo: info, Messages: m.Messages, LastTS: m.LastTS})
	}
	_ = router.WriteJSON(ctx, fasthttp.StatusOK, out)
}

func (s *Server) ListMessages(ctx *fasthttp.RequestCtx) {
	tr := telemetry.Track("api.list_messages")
	defer tr.Finish()

	ch, err := channelParam(ctx)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	limit := router.QueryInt(ctx, "limit", s.opts.HistoryLimit, maxHistoryLimit)
	msgs, err := db.ListMessages(ch, limit)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	tr.Mark("list")
	if msgs == nil {
		msgs = []models.Message{}
	}
	_ = router.WriteJSON(ctx, fasthttp.StatusOK, HistoryResponse{Channel: ch, Messages: msgs})
}

// loadMessage reads a message, first waiting for it if it is still queued.
func (s *Server) loadMessage(id string) (models.Message, error) {
	wctx, cancel := context.WithTimeout(context.Background(), s.opts.InflightWait)
	defer cancel()
	if _, err := s.intake.Tracker().Wait(wctx, id); err != nil {
		return models.Message{}, err
	}
	return db.GetMessage(id)
}

func (s *Server) GetMessage(ctx *fasthttp.RequestCtx) {
	m, err := s.loadMessage(router.PathParam(ctx, "id"))
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, fasthttp.StatusOK, m)
}

func (s *Server) Tallies(ctx *fasthttp.RequestCtx) {
	var req TalliesRequest
	if err := router.DecodeJSON(ctx, &req); err != nil {
		router.WriteError(ctx, err)
		return
	}
	if len(req.IDs) > maxTallyIDs {
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, "too many ids")
		return
	}
	tallies, err := db.Tallies(req.IDs)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, fasthttp.StatusOK, TalliesResponse{Tallies: tallies})
}

// Top ranks the channel's recent history with the same rules the client
// uses for its highlighted message.
func (s *Server) Top(ctx *fasthttp.RequestCtx) {
	ch, err := channelParam(ctx)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	n := router.QueryInt(ctx, "n", 1, maxTopN)
	msgs, err := db.ListMessages(ch, s.opts.HistoryLimit)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	tallies, err := db.Tallies(ids)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	hl := ranking.FromHistory(ch, msgs, tallies, n)
	if hl == nil {
		hl = []models.Highlight{}
	}
	_ = router.WriteJSON(ctx, fasthttp.StatusOK, TopResponse{Channel: ch, Highlights: hl})
}

func (s *Server) Direct(ctx *fasthttp.RequestCtx) {
	a, b := router.PathParam(ctx, "a"), router.PathParam(ctx, "b")
	if a == b {
		router.WriteError(ctx, chaterr.Validation(chaterr.InvalidChannel, "direct channel needs two participants"))
		return
	}
	id := channel.Resolve(a, b)
	if keys.ValidateID(id) != nil {
		router.WriteError(ctx, chaterr.Validation(chaterr.InvalidChannel, id))
		return
	}
	_ = router.WriteJSON(ctx, fasthttp.StatusOK, DirectResponse{Channel: id})
}

func (s *Server) Ticker(ctx *fasthttp.RequestCtx) {
	if s.ticker == nil {
		router.WriteJSONError(ctx, fasthttp.StatusNotFound, "ticker disabled")
		return
	}
	_ = router.WriteJSON(ctx, fasthttp.StatusOK, s.ticker.Snapshot())
}
