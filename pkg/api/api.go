// Package api serves the storage side of chatterbox over HTTP.
package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/api/router"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/channel"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/ingest"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/store/db"
)

// TickerSource returns the latest highlight snapshot.
type TickerSource interface {
	Snapshot() models.TickerSnapshot
}

type Options struct {
	HistoryLimit int
	MaxBodyBytes int
	// InflightWait bounds how long a read waits for a queued write.
	InflightWait time.Duration
	RateRPS      float64
	RateBurst    int
}

type Server struct {
	intake    *ingest.Intake
	catalogue *channel.Catalogue
	ticker    TickerSource
	opts      Options
	limiter   *limiterPool
}

const (
	defaultHistoryLimit = 200
	maxHistoryLimit     = 1000
	maxTallyIDs         = 500
	maxTopN             = 50
)

func New(in *ingest.Intake, cat *channel.Catalogue, ticker TickerSource, opts Options) *Server {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	if opts.InflightWait <= 0 {
		opts.InflightWait = 5 * time.Second
	}
	s := &Server{intake: in, catalogue: cat, ticker: ticker, opts: opts}
	if opts.RateRPS > 0 {
		s.limiter = newLimiterPool(opts.RateRPS, opts.RateBurst, 0)
	}
	return s
}

// RegisterRoutes wires all API routes onto r.
func (s *Server) RegisterRoutes(r *router.Router) {
	r.GET("/healthz", s.Health)
	r.GET("/readyz", s.Ready)
	r.GET("/admin/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))

	if s.limiter != nil {
		r.Use(s.limiter.middleware)
	}
	r.GET("/v1/channels", s.ListChannels)
	r.GET("/v1/channels/{channel}/messages", s.ListMessages)
	r.POST("/v1/channels/{channel}/messages", s.PostMessage)
	r.GET("/v1/channels/{channel}/top", s.Top)
	r.GET("/v1/messages/{id}", s.GetMessage)
	r.POST("/v1/messages/{id}/reactions", s.React)
	r.POST("/v1/reactions/tallies", s.Tallies)
	r.GET("/v1/direct/{a}/{b}", s.Direct)
	r.GET("/v1/ticker", s.Ticker)
}

// Handler returns the fasthttp handler for the API.
func (s *Server) Handler() fasthttp.RequestHandler {
	r := router.New()
	s.RegisterRoutes(r)
	return r.Handler
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Close()
	}
}

func (s *Server) Health(ctx *fasthttp.RequestCtx) {
	_ = router.WriteJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) Ready(ctx *fasthttp.RequestCtx) {
	if !db.Ready() {
		router.WriteJSONError(ctx, fasthttp.StatusServiceUnavailable, "storage not ready")
		return
	}
	_ = router.WriteJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "ready"})
}
