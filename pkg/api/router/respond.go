package router

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/chaterr"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/ingest/queue"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/logger"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/store/db"
)

// ErrBadRequest marks malformed requests that are not domain validation
// failures.
var ErrBadRequest = errors.New("bad request")

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string       `json:"error"`
	Code  chaterr.Code `json:"code,omitempty"`
}

// WriteJSON writes v with the given status (0 keeps the current one).
func WriteJSON(ctx *fasthttp.RequestCtx, status int, v interface{}) error {
	ctx.SetContentType("application/json")
	if status != 0 {
		ctx.SetStatusCode(status)
	}
	return json.NewEncoder(ctx).Encode(v)
}

func WriteJSONError(ctx *fasthttp.RequestCtx, status int, message string) {
	_ = WriteJSON(ctx, status, ErrorBody{Error: message})
}

// WriteError maps err onto a status code:
// validation or bad request → 400, queue full → 429, queue closed → 503, not found → 404,
// deadline → 504, anything else → 500.
func WriteError(ctx *fasthttp.RequestCtx, err error) {
	var ve *chaterr.ValidationError
	switch {
	case errors.As(err, &ve):
		_ = WriteJSON(ctx, fasthttp.StatusBadRequest, ErrorBody{Error: ve.Error(), Code: ve.Code})
	case errors.Is(err, ErrBadRequest):
		WriteJSONError(ctx, fasthttp.StatusBadRequest, err.Error())
	case errors.Is(err, queue.ErrQueueFull):
		ctx.Response.Header.Set("Retry-After", "1")
		WriteJSONError(ctx, fasthttp.StatusTooManyRequests, err.Error())
	case errors.Is(err, queue.ErrQueueClosed):
		WriteJSONError(ctx, fasthttp.StatusServiceUnavailable, err.Error())
	case db.IsNotFound(err):
		WriteJSONError(ctx, fasthttp.StatusNotFound, "not found")
	case errors.Is(err, context.DeadlineExceeded):
		WriteJSONError(ctx, fasthttp.StatusGatewayTimeout, err.Error())
	default:
		logger.Error("api_internal_error", "path", string(ctx.Path()), "error", err)
		WriteJSONError(ctx, fasthttp.StatusInternalServerError, "internal error")
	}
}

// DecodeJSON reads the request body into dest.
func DecodeJSON(ctx *fasthttp.RequestCtx, dest interface{}) error {
	if err := json.Unmarshal(ctx.PostBody(), dest); err != nil {
		return errors.Wrapf(ErrBadRequest, "invalid json body: %v", err)
	}
	return nil
}
