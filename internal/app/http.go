package app

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
)

// printBanner prints the startup banner and build info.
func (a *App) printBanner() {
	verStr := a.version
	if a.commit != "none" && a.commit != "" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "unknown" && a.buildDate != "" {
		verStr += " @ " + a.buildDate
	}
	cfg := a.eff.Config
	fmt.Println("== chatterbox ==================================================")
	fmt.Printf("API:      %s\n", cfg.Addr())
	fmt.Printf("Live:     %s\n", cfg.LiveAddr())
	fmt.Printf("DB Path:  %s\n", a.eff.DBPath)
	fmt.Printf("Version:  %s\n", verStr)
	fmt.Printf("Config:   %v\n", a.eff.Sources)
	fmt.Printf("Channels: %d public\n", len(a.catalogue.All()))
}

// startHTTP binds both listeners and serves them in the background. The
// returned channel delivers the first serve error.
func (a *App) startHTTP() (<-chan error, error) {
	cfg := a.eff.Config

	const (
		readBufferSize       = 64 * 1024        // 64 KiB read buffer per connection
		maxRequestBodySize   = 5 * 1024 * 1024  // 5 MiB max request body
		concurrency          = 0                // unlimited concurrency (0 means unlimited in fasthttp)
		readTimeout          = 10 * time.Second // timeout for reading request
		writeTimeout         = 10 * time.Second // timeout for writing response
		idleTimeout          = 30 * time.Second // max keep-alive idle duration per connection
		maxKeepaliveDuration = 2 * time.Minute  // max duration for keep-alive connection
	)
	a.srvFast = &fasthttp.Server{
		Name:                 "chatterbox",
		Handler:              a.api.Handler(),
		ReadBufferSize:       readBufferSize,
		MaxRequestBodySize:   maxRequestBodySize,
		Concurrency:          concurrency,
		ReduceMemoryUsage:    true,
		ReadTimeout:          readTimeout,
		WriteTimeout:         writeTimeout,
		IdleTimeout:          idleTimeout,
		MaxKeepaliveDuration: maxKeepaliveDuration,
	}
	// websocket handlers hijack their connections, so the timeouts here
	// only cover the upgrade request
	a.srvLive = &http.Server{
		Handler:           a.live.Router(),
		ReadHeaderTimeout: readTimeout,
		IdleTimeout:       idleTimeout,
	}

	apiLn, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return nil, fmt.Errorf("listen api on %s: %w", cfg.Addr(), err)
	}
	liveLn, err := net.Listen("tcp", cfg.LiveAddr())
	if err != nil {
		_ = apiLn.Close()
		return nil, fmt.Errorf("listen live on %s: %w", cfg.LiveAddr(), err)
	}
	a.apiLn, a.liveLn = apiLn, liveLn

	errCh := make(chan error, 2)
	go func() {
		if err := a.srvFast.Serve(apiLn); err != nil {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()
	go func() {
		if err := a.srvLive.Serve(liveLn); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("live server: %w", err)
		}
	}()
	return errCh, nil
}
