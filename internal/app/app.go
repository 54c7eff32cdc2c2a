package app

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"

	"github.com/newprojectblitz/chat-chrome-chatterbox/internal/ticker"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/api"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/channel"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/config"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/feed"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/ingest"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/ingest/queue"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/ingest/tracking"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/live"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/logger"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/store/db"
)

// App groups server state and components.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	queue     *queue.Queue
	tracker   *tracking.InflightTracker
	hub       *feed.Hub
	proc      *ingest.Processor
	intake    *ingest.Intake
	catalogue *channel.Catalogue
	ticker    *ticker.Ticker
	api       *api.Server
	live      *live.Server

	srvFast *fasthttp.Server
	srvLive *http.Server
	apiLn   net.Listener
	liveLn  net.Listener
	ready   chan struct{}
}

// New opens the store and builds every component. Nothing is started
// until Run. eff must already have passed config.ValidateConfig.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	cfg := eff.Config
	if cfg == nil {
		return nil, errors.New("effective config is nil")
	}

	cat, err := channel.NewCatalogue(cfg.Channels)
	if err != nil {
		return nil, errors.Wrap(err, "build channel catalogue")
	}

	var tk *ticker.Ticker
	if cfg.Ticker.Enabled {
		tk, err = ticker.New(cat, ticker.Options{
			Cron:         cfg.Ticker.Cron,
			TopN:         cfg.Ticker.TopN,
			HistoryLimit: cfg.Session.HistoryLimit,
		})
		if err != nil {
			return nil, errors.Wrap(err, "ticker")
		}
	}

	logConfigSummary(cfg)

	if err := db.Open(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}

	a := &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		catalogue: cat,
		ticker:    tk,
		ready:     make(chan struct{}),
	}

	a.queue = queue.New(cfg.Ingest.QueueCapacity, int(cfg.Ingest.MaxPooledBufferBytes.Int64()))
	a.tracker = tracking.NewInflightTracker()
	a.hub = feed.NewHub(cfg.Feed.MailboxSize)
	a.proc = ingest.NewProcessor(a.queue, cfg.Ingest.Workers)
	ingest.RegisterHandlers(a.proc, a.hub, a.tracker)
	a.intake = ingest.NewIntake(a.queue, a.tracker)
	a.intake.Blocking = cfg.Ingest.BlockingEnqueue
	logger.Info("ingest_ready", "queue_capacity", a.queue.Cap(), "workers", cfg.Ingest.Workers, "blocking", a.intake.Blocking)

	// a nil *Ticker must not become a non-nil interface
	var src api.TickerSource
	if tk != nil {
		src = tk
	}
	a.api = api.New(a.intake, cat, src, api.Options{
		HistoryLimit: cfg.Session.HistoryLimit,
		MaxBodyBytes: int(cfg.Session.MaxBodyBytes.Int64()),
		InflightWait: cfg.Session.InflightWait.Duration(),
		RateRPS:      cfg.Security.RateLimit.RPS,
		RateBurst:    cfg.Security.RateLimit.Burst,
	})
	a.live = live.NewServer(a.hub, live.Options{
		SendBuffer:     cfg.Feed.SendBuffer,
		PingInterval:   cfg.Feed.PingInterval.Duration(),
		WriteTimeout:   cfg.Feed.WriteTimeout.Duration(),
		AllowedOrigins: append([]string{}, cfg.Security.CORS.AllowedOrigins...),
	})
	return a, nil
}

// Run starts the ingest workers, the ticker and both listeners, then blocks
// until ctx is cancelled or a listener fails. Teardown is left to Shutdown.
func (a *App) Run(ctx context.Context) error {
	a.printBanner()

	a.proc.Start()
	if a.ticker != nil {
		a.ticker.Start(ctx)
	}

	errCh, err := a.startHTTP()
	if err != nil {
		return err
	}
	close(a.ready)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Ready is closed once both listeners are bound.
func (a *App) Ready() <-chan struct{} { return a.ready }

// Addrs returns the bound API and live addresses. Valid after Ready.
func (a *App) Addrs() (apiAddr, liveAddr string) {
	if a.apiLn != nil {
		apiAddr = a.apiLn.Addr().String()
	}
	if a.liveLn != nil {
		liveAddr = a.liveLn.Addr().String()
	}
	return apiAddr, liveAddr
}

func logConfigSummary(cfg *config.Config) {
	tickerDesc := "disabled"
	if cfg.Ticker.Enabled {
		tickerDesc = fmt.Sprintf("%q top %d", cfg.Ticker.Cron, cfg.Ticker.TopN)
	}
	logger.LogConfigSummary("config_runtime_summary", []string{
		fmt.Sprintf("queue_capacity: %s", humanize.Comma(int64(cfg.Ingest.QueueCapacity))),
		fmt.Sprintf("queue_blocking: %t", cfg.Ingest.BlockingEnqueue),
		fmt.Sprintf("queue_max_pooled_buffer: %s", humanize.IBytes(uint64(cfg.Ingest.MaxPooledBufferBytes.Int64()))),
		fmt.Sprintf("ingest_workers: %d", cfg.Ingest.Workers),
		fmt.Sprintf("feed_mailbox: %s", humanize.Comma(int64(cfg.Feed.MailboxSize))),
		fmt.Sprintf("socket_send_buffer: %s", humanize.Comma(int64(cfg.Feed.SendBuffer))),
		fmt.Sprintf("max_body: %s", humanize.IBytes(uint64(cfg.Session.MaxBodyBytes.Int64()))),
		fmt.Sprintf("history_limit: %d", cfg.Session.HistoryLimit),
		fmt.Sprintf("rate_limit: %.1f rps burst %d", cfg.Security.RateLimit.RPS, cfg.Security.RateLimit.Burst),
		fmt.Sprintf("channels: %d", len(cfg.Channels)),
		fmt.Sprintf("ticker: %s", tickerDesc),
	})
}
