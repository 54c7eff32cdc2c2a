package live

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/logger"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
)

// ErrClientClosed is returned by Subscribe after Close.
var ErrClientClosed = errors.New("live client closed")

type ClientOptions struct {
	Dialer *websocket.Dialer
	Header http.Header
	// ReconnectMin and ReconnectMax bound the backoff between dials after
	// a dropped socket.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	// PingInterval must match the server; the socket is considered dead
	// after two intervals without traffic.
	PingInterval time.Duration
	WriteTimeout time.Duration
	// OnReconnect is called on its own goroutine after a dropped socket
	// was re-established. Events sent while it was down are lost, so
	// callers typically reload the channel.
	OnReconnect func(channelID string)
}

// Client is a Feed backed by one websocket per subscription.
type Client struct {
	base *url.URL
	opts ClientOptions

	mu     sync.Mutex
	next   models.Handle
	subs   map[models.Handle]*remoteSub
	closed bool
}

// NewClient accepts an http(s) or ws(s) base URL of the live listener.
func NewClient(baseURL string, opts ClientOptions) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse live url")
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, errors.Errorf("unsupported live url scheme %q", u.Scheme)
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	if opts.ReconnectMin <= 0 {
		opts.ReconnectMin = 250 * time.Millisecond
	}
	if opts.ReconnectMax < opts.ReconnectMin {
		opts.ReconnectMax = 30 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	return &Client{base: u, opts: opts, subs: make(map[models.Handle]*remoteSub)}, nil
}

func (c *Client) endpoint(channelID string) string {
	u := *c.base
	u.RawPath = ""
	u.Path = u.Path + "/v1/live/" + channelID
	return u.String()
}

func (c *Client) dial(channelID string) (*websocket.Conn, error) {
	ws, resp, err := c.opts.Dialer.Dial(c.endpoint(channelID), c.opts.Header)
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "dial live feed for %s: status %d", channelID, resp.StatusCode)
		}
		return nil, errors.Wrapf(err, "dial live feed for %s", channelID)
	}
	return ws, nil
}

// Subscribe dials the channel's socket and delivers its events to onEvent
// until Unsubscribe. The first dial is synchronous so an unreachable feed
// surfaces as an error.
func (c *Client) Subscribe(channelID string, onEvent func(models.Event)) (models.Handle, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrClientClosed
	}
	c.mu.Unlock()

	ws, err := c.dial(channelID)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		ws.Close()
		return 0, ErrClientClosed
	}
	c.next++
	rs := &remoteSub{client: c, channel: channelID, fn: onEvent, stop: make(chan struct{}), done: make(chan struct{})}
	rs.setConn(ws)
	c.subs[c.next] = rs
	go rs.run()
	return c.next, nil
}

// Unsubscribe stops delivery. It does not wait for the socket goroutine,
// so it is safe to call from inside onEvent.
func (c *Client) Unsubscribe(h models.Handle) {
	c.mu.Lock()
	rs, ok := c.subs[h]
	delete(c.subs, h)
	c.mu.Unlock()
	if ok {
		rs.shutdown()
	}
}

// Close stops every subscription and waits for their goroutines.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	subs := c.subs
	c.subs = make(map[models.Handle]*remoteSub)
	c.mu.Unlock()
	for _, rs := range subs {
		rs.shutdown()
	}
	for _, rs := range subs {
		<-rs.done
	}
}

type remoteSub struct {
	client  *Client
	channel string
	fn      func(models.Event)

	mu       sync.Mutex
	ws       *websocket.Conn
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func (rs *remoteSub) setConn(ws *websocket.Conn) {
	rs.mu.Lock()
	rs.ws = ws
	rs.mu.Unlock()
}

func (rs *remoteSub) stopped() bool {
	select {
	case <-rs.stop:
		return true
	default:
		return false
	}
}

func (rs *remoteSub) shutdown() {
	rs.stopOnce.Do(func() {
		close(rs.stop)
		rs.mu.Lock()
		ws := rs.ws
		rs.mu.Unlock()
		if ws != nil {
			deadline := time.Now().Add(rs.client.opts.WriteTimeout)
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			ws.Close()
		}
	})
}

func (rs *remoteSub) run() {
	defer close(rs.done)
	for {
		rs.mu.Lock()
		ws := rs.ws
		rs.mu.Unlock()

		err := rs.read(ws)
		ws.Close()
		if rs.stopped() {
			return
		}
		logger.Warn("live_feed_disconnected", "channel", rs.channel, "error", err)
		if !rs.reconnect() {
			return
		}
		if cb := rs.client.opts.OnReconnect; cb != nil {
			go cb(rs.channel)
		}
	}
}

// read delivers events from ws until it fails.
func (rs *remoteSub) read(ws *websocket.Conn) error {
	wait := rs.client.opts.PingInterval * 2
	_ = ws.SetReadDeadline(time.Now().Add(wait))
	ws.SetPingHandler(func(data string) error {
		_ = ws.SetReadDeadline(time.Now().Add(wait))
		err := ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(rs.client.opts.WriteTimeout))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		_ = ws.SetReadDeadline(time.Now().Add(wait))
		var ev models.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			logger.Warn("live_feed_bad_event", "channel", rs.channel, "error", err)
			continue
		}
		if rs.stopped() {
			return nil
		}
		rs.fn(ev)
	}
}

// reconnect dials with exponential backoff until it succeeds or the
// subscription is stopped.
func (rs *remoteSub) reconnect() bool {
	delay := rs.client.opts.ReconnectMin
	for {
		select {
		case <-rs.stop:
			return false
		case <-time.After(delay):
		}
		ws, err := rs.client.dial(rs.channel)
		if err == nil {
			rs.mu.Lock()
			if rs.stopped() {
				rs.mu.Unlock()
				ws.Close()
				return false
			}
			rs.ws = ws
			rs.mu.Unlock()
			logger.Info("live_feed_reconnected", "channel", rs.channel)
			return true
		}
		logger.Debug("live_feed_redial_failed", "channel", rs.channel, "error", err, "retry_in", delay.String())
		delay *= 2
		if delay > rs.client.opts.ReconnectMax {
			delay = rs.client.opts.ReconnectMax
		}
	}
}
