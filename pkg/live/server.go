// Package live carries feed events over websockets: Server bridges the
// in-process hub to remote sockets and Client turns those sockets back into
// a feed for remote sessions.
package live

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/channel"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/feed"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/logger"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/telemetry"
)

type Options struct {
	// SendBuffer is the number of encoded events queued per socket.
	SendBuffer   int
	PingInterval time.Duration
	WriteTimeout time.Duration
	// AllowedOrigins restricts browser origins; empty allows all.
	AllowedOrigins []string
}

const (
	defaultSendBuffer   = 256
	defaultPingInterval = 30 * time.Second
	defaultWriteTimeout = 5 * time.Second
	maxInboundBytes     = 512
)

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = defaultSendBuffer
	}
	if o.PingInterval <= 0 {
		o.PingInterval = defaultPingInterval
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	return o
}

// pongWait is how long a socket may stay silent before it is dropped.
func (o Options) pongWait() time.Duration { return o.PingInterval * 2 }

type Server struct {
	hub      *feed.Hub
	opts     Options
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

func NewServer(hub *feed.Hub, opts Options) *Server {
	opts = opts.withDefaults()
	s := &Server{hub: hub, opts: opts, conns: make(map[*conn]struct{})}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.opts.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

// Router returns the routes served by the live listener.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/v1/live/{channel}", s.ServeLive).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)
	return r
}

// ServeLive upgrades the request and streams the channel's events until
// either side goes away.
func (s *Server) ServeLive(w http.ResponseWriter, r *http.Request) {
	ch := mux.Vars(r)["channel"]
	if !channel.Valid(ch) {
		http.Error(w, "invalid channel", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already answered the request
		logger.Warn("live_upgrade_failed", "channel", ch, "remote", r.RemoteAddr, "error", err)
		return
	}
	c := newConn(ws, ch, s.opts)
	if !s.track(c) {
		c.beginClosing()
		c.writeLoop()
		return
	}
	defer s.untrack(c)

	h, err := s.hub.Subscribe(ch, c.deliver)
	if err != nil {
		logger.Warn("live_subscribe_failed", "channel", ch, "error", err)
		c.beginClosing()
		c.writeLoop()
		return
	}
	defer s.hub.Unsubscribe(h)

	logger.Debug("live_socket_open", "channel", ch, "remote", r.RemoteAddr)
	go c.writeLoop()
	c.readLoop()
	<-c.writeDone
	logger.Debug("live_socket_closed", "channel", ch, "remote", r.RemoteAddr)
}

func (s *Server) track(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// Connections returns the number of open sockets.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// disconnectAll closes every open socket but keeps accepting new ones.
func (s *Server) disconnectAll() {
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.beginClosing()
	}
}

// Close rejects new sockets, closes the open ones and waits for their
// handlers to return.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.disconnectAll()
	s.wg.Wait()
}

type conn struct {
	ws      *websocket.Conn
	channel string
	opts    Options

	out       chan *websocket.PreparedMessage
	closing   chan struct{}
	closeOnce sync.Once
	writeDone chan struct{}
}

func newConn(ws *websocket.Conn, ch string, opts Options) *conn {
	return &conn{
		ws:        ws,
		channel:   ch,
		opts:      opts,
		out:       make(chan *websocket.PreparedMessage, opts.SendBuffer),
		closing:   make(chan struct{}),
		writeDone: make(chan struct{}),
	}
}

func (c *conn) beginClosing() {
	c.closeOnce.Do(func() { close(c.closing) })
}

// deliver runs on the hub's subscriber goroutine and never blocks it.
func (c *conn) deliver(ev models.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Error("live_encode_failed", "channel", c.channel, "error", err)
		return
	}
	pm, err := websocket.NewPreparedMessage(websocket.TextMessage, data)
	if err != nil {
		logger.Error("live_prepare_failed", "channel", c.channel, "error", err)
		return
	}
	select {
	case <-c.closing:
	case c.out <- pm:
	default:
		telemetry.EventDropped("socket_full")
		logger.Warn("live_socket_full", "channel", c.channel)
	}
}

// readLoop only services control frames; clients never send data.
func (c *conn) readLoop() {
	defer c.beginClosing()
	c.ws.SetReadLimit(maxInboundBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.pongWait()))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.pongWait()))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				select {
				case <-c.closing:
				default:
					logger.Debug("live_read_failed", "channel", c.channel, "error", err)
				}
			}
			return
		}
	}
}

func (c *conn) writeLoop() {
	defer close(c.writeDone)
	defer c.ws.Close()

	ping := time.NewTicker(c.opts.PingInterval)
	defer ping.Stop()

	for {
		select {
		case pm := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.ws.WritePreparedMessage(pm); err != nil {
				logger.Debug("live_write_failed", "channel", c.channel, "error", err)
				c.beginClosing()
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(c.opts.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.beginClosing()
				return
			}
		case <-c.closing:
			deadline := time.Now().Add(c.opts.WriteTimeout)
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "closing"), deadline)
			return
		}
	}
}
