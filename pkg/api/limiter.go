package api

import (
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/api/router"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/telemetry"
)

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// limiterPool holds one token bucket per client IP. Entries idle for
// longer than ttl are evicted by a background loop.
type limiterPool struct {
	rps   float64
	burst int
	ttl   time.Duration

	mu sync.Mutex
	m  map[string]*limiterEntry

	stop     chan struct{}
	stopOnce sync.Once
}

func newLimiterPool(rps float64, burst int, ttl time.Duration) *limiterPool {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	p := &limiterPool{rps: rps, burst: burst, ttl: ttl, m: make(map[string]*limiterEntry), stop: make(chan struct{})}
	go p.cleanupLoop(ttl / 10)
	return p
}

func (p *limiterPool) Allow(key string) bool {
	p.mu.Lock()
	e, ok := p.m[key]
	if !ok {
		e = &limiterEntry{l: rate.NewLimiter(rate.Limit(p.rps), p.burst)}
		p.m[key] = e
	}
	e.lastSeen = time.Now()
	p.mu.Unlock()
	return e.l.Allow()
}

func (p *limiterPool) cleanupLoop(period time.Duration) {
	if period < time.Second {
		period = time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
		}
		cutoff := time.Now().Add(-p.ttl)
		p.mu.Lock()
		for k, e := range p.m {
			if e.lastSeen.Before(cutoff) {
				delete(p.m, k)
			}
		}
		p.mu.Unlock()
	}
}

func (p *limiterPool) Close() {
	p.stopOnce.Do(func() { close(p.stop) })
}

// middleware rejects clients over their budget with 429.
func (p *limiterPool) middleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if !p.Allow(ctx.RemoteIP().String()) {
			telemetry.IngestRejected("rate_limited")
			ctx.Response.Header.Set("Retry-After", "1")
			router.WriteJSONError(ctx, fasthttp.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(ctx)
	}
}
