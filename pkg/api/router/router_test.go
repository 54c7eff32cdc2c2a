package router

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/chaterr"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/ingest/queue"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/store/db"
)

func request(r *Router, method, uri string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	r.Handler(&ctx)
	return &ctx
}

func TestRouteParams(t *testing.T) {
	r := New()
	r.GET("/v1/channels/{channel}/messages", func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString(PathParam(ctx, "channel"))
	})
	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) { ctx.SetBodyString("ok") })

	ctx := request(r, "GET", "/v1/channels/sports1/messages")
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "sports1", string(ctx.Response.Body()))

	ctx = request(r, "GET", "/v1/channels/dm_a%255Fx_b/messages")
	assert.Equal(t, "dm_a%5Fx_b", string(ctx.Response.Body()))

	ctx = request(r, "HEAD", "/healthz")
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

	ctx = request(r, "GET", "/v1/channels//messages")
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
}

func TestMethodNotAllowed(t *testing.T) {
	r := New()
	r.GET("/v1/ticker", func(*fasthttp.RequestCtx) {})
	ctx := request(r, "POST", "/v1/ticker")
	assert.Equal(t, fasthttp.StatusMethodNotAllowed, ctx.Response.StatusCode())
	assert.Equal(t, "GET", string(ctx.Response.Header.Peek("Allow")))
}

func TestMiddlewareOrder(t *testing.T) {
	r := New()
	var order []string
	mw := func(name string) Middleware {
		return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
			return func(ctx *fasthttp.RequestCtx) {
				order = append(order, name)
				next(ctx)
			}
		}
	}
	r.Use(mw("outer"), mw("inner"))
	r.GET("/x", func(*fasthttp.RequestCtx) { order = append(order, "handler") })
	request(r, "GET", "/x")
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestWriteErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{chaterr.Validation(chaterr.EmptyMessage, ""), fasthttp.StatusBadRequest},
		{ErrBadRequest, fasthttp.StatusBadRequest},
		{queue.ErrQueueFull, fasthttp.StatusTooManyRequests},
		{queue.ErrQueueClosed, fasthttp.StatusServiceUnavailable},
		{db.ErrNotFound, fasthttp.StatusNotFound},
		{assert.AnError, fasthttp.StatusInternalServerError},
	}
	for _, tc := range cases {
		var ctx fasthttp.RequestCtx
		WriteError(&ctx, tc.err)
		assert.Equal(t, tc.status, ctx.Response.StatusCode(), tc.err.Error())
	}

	var ctx fasthttp.RequestCtx
	WriteError(&ctx, chaterr.Validation(chaterr.UnknownReaction, "love"))
	var body ErrorBody
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	assert.Equal(t, chaterr.UnknownReaction, body.Code)
}

func TestQueryInt(t *testing.T) {
	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI("/x?limit=50&bad=zz&huge=99999")
	assert.Equal(t, 50, QueryInt(&ctx, "limit", 10, 100))
	assert.Equal(t, 10, QueryInt(&ctx, "bad", 10, 100))
	assert.Equal(t, 100, QueryInt(&ctx, "huge", 10, 100))
	assert.Equal(t, 7, QueryInt(&ctx, "missing", 7, 100))
}
