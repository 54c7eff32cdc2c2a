package router

import (
	"fmt"
	"strconv"

	"github.com/valyala/fasthttp"
)

func PathParam(ctx *fasthttp.RequestCtx, param string) string {
	if v := ctx.UserValue(param); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}

// QueryInt returns the integer query value clamped to [1, max], or def
// when missing or malformed.
func QueryInt(ctx *fasthttp.RequestCtx, key string, def, max int) int {
	raw := ctx.QueryArgs().Peek(key)
	if len(raw) == 0 {
		return def
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil || n < 1 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}
