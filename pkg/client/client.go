// Package client talks to a chatterbox server over its HTTP API. Client
// satisfies the storage side of a session; pair it with live.Client for
// the feed.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/api"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/api/router"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/chaterr"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
)

// ErrNotFound is returned for 404 answers.
var ErrNotFound = errors.New("not found")

// StatusError is a non-2xx answer that is not a validation failure.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server answered %d: %s", e.Status, e.Message)
}

// Temporary reports whether retrying the same request may succeed.
func (e *StatusError) Temporary() bool {
	return e.Status == fasthttp.StatusTooManyRequests || e.Status >= 500
}

type Options struct {
	// Timeout bounds each request when the context has no earlier deadline.
	Timeout      time.Duration
	HistoryLimit int
	// HTTP replaces the default fasthttp client, mostly in tests.
	HTTP *fasthttp.Client
}

const (
	defaultTimeout = 10 * time.Second
	tallyBatch     = 500
)

type Client struct {
	base string
	http *fasthttp.Client
	opts Options
}

func New(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.HTTP == nil {
		opts.HTTP = &fasthttp.Client{
			Name:                "chatterctl",
			MaxConnsPerHost:     64,
			MaxIdleConnDuration: time.Minute,
			ReadTimeout:         opts.Timeout,
			WriteTimeout:        opts.Timeout,
		}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: opts.HTTP, opts: opts}
}

func channelPath(ch string) string {
	return "/v1/channels/" + url.PathEscape(ch)
}

// do sends one JSON request. fasthttp has no context support, so only the
// context's deadline is honoured.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.base + path)
	req.Header.SetMethod(method)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		req.Header.SetContentType("application/json")
		req.SetBodyRaw(body)
	}

	deadline := time.Now().Add(c.opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) {
			return errors.Wrapf(context.DeadlineExceeded, "%s %s", method, path)
		}
		return errors.Wrapf(err, "%s %s", method, path)
	}

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		return decodeError(status, resp.Body())
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return errors.Wrapf(err, "decode %s %s", method, path)
	}
	return nil
}

// decodeError turns an error body back into the error the server mapped.
func decodeError(status int, body []byte) error {
	var eb router.ErrorBody
	if err := json.Unmarshal(body, &eb); err != nil || eb.Error == "" {
		eb.Error = strings.TrimSpace(string(body))
	}
	switch {
	case eb.Code != "":
		return chaterr.Validation(eb.Code, eb.Error)
	case status == fasthttp.StatusNotFound:
		return ErrNotFound
	}
	return &StatusError{Status: status, Message: eb.Error}
}

// IsNotFound reports whether err is a 404 answer.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// FetchHistory returns the channel's newest messages, oldest first.
func (c *Client) FetchHistory(ctx context.Context, channelID string) ([]models.Message, error) {
	path := channelPath(channelID) + "/messages"
	if c.opts.HistoryLimit > 0 {
		path += "?limit=" + strconv.Itoa(c.opts.HistoryLimit)
	}
	var out api.HistoryResponse
	if err := c.do(ctx, fasthttp.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// FetchReactions returns tallies for ids, batching large requests.
func (c *Client) FetchReactions(ctx context.Context, ids []string) (map[string]models.ReactionTally, error) {
	out := make(map[string]models.ReactionTally, len(ids))
	for start := 0; start < len(ids); start += tallyBatch {
		end := start + tallyBatch
		if end > len(ids) {
			end = len(ids)
		}
		var resp api.TalliesResponse
		if err := c.do(ctx, fasthttp.MethodPost, "/v1/reactions/tallies", api.TalliesRequest{IDs: ids[start:end]}, &resp); err != nil {
			return nil, err
		}
		for id, t := range resp.Tallies {
			out[id] = t
		}
	}
	return out, nil
}

// Persist submits a message. The server stores it idempotently by id, so
// retrying after a timeout never duplicates it.
func (c *Client) Persist(ctx context.Context, m models.Message) error {
	req := api.PostMessageRequest{ID: m.ID, Sender: m.Sender, Body: m.Body, TS: m.TS}
	return c.do(ctx, fasthttp.MethodPost, channelPath(m.Channel)+"/messages", req, nil)
}

// React records a reaction. channelID is implied by the message on the
// server side and only kept to satisfy the session storage contract.
func (c *Client) React(ctx context.Context, _ string, messageID string, kind models.ReactionKind) error {
	return c.ReactAs(ctx, messageID, kind, "")
}

func (c *Client) ReactAs(ctx context.Context, messageID string, kind models.ReactionKind, reporter string) error {
	path := "/v1/messages/" + url.PathEscape(messageID) + "/reactions"
	return c.do(ctx, fasthttp.MethodPost, path, api.ReactRequest{Kind: string(kind), Reporter: reporter}, nil)
}

func (c *Client) GetMessage(ctx context.Context, id string) (models.Message, error) {
	var m models.Message
	err := c.do(ctx, fasthttp.MethodGet, "/v1/messages/"+url.PathEscape(id), nil, &m)
	return m, err
}

func (c *Client) Channels(ctx context.Context) ([]api.ChannelSummary, error) {
	var out api.ChannelsResponse
	if err := c.do(ctx, fasthttp.MethodGet, "/v1/channels", nil, &out); err != nil {
		return nil, err
	}
	return out.Channels, nil
}

func (c *Client) Top(ctx context.Context, channelID string, n int) ([]models.Highlight, error) {
	var out api.TopResponse
	path := channelPath(channelID) + "/top?n=" + strconv.Itoa(n)
	if err := c.do(ctx, fasthttp.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Highlights, nil
}

// Direct asks the server for the direct channel id of a and b.
func (c *Client) Direct(ctx context.Context, a, b string) (string, error) {
	var out api.DirectResponse
	path := "/v1/direct/" + url.PathEscape(a) + "/" + url.PathEscape(b)
	if err := c.do(ctx, fasthttp.MethodGet, path, nil, &out); err != nil {
		return "", err
	}
	return out.Channel, nil
}

func (c *Client) Ticker(ctx context.Context) (models.TickerSnapshot, error) {
	var out models.TickerSnapshot
	err := c.do(ctx, fasthttp.MethodGet, "/v1/ticker", nil, &out)
	return out, err
}

// Health checks the server's readiness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, fasthttp.MethodGet, "/readyz", nil, nil)
}
