package app

import (
	"context"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/logger"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/store/db"
)

// Shutdown stops the listeners first so accepted writes can drain into the
// store before it is closed.
func (a *App) Shutdown(ctx context.Context) error {
	logger.Info("shutdown_requested")

	if a.srvFast != nil {
		logger.Info("shutdown_stopping_api")
		if err := a.srvFast.Shutdown(); err != nil {
			logger.Error("shutdown_api_error", "error", err)
		}
	}
	if a.live != nil {
		logger.Info("shutdown_stopping_live")
		a.live.Close()
	}
	if a.srvLive != nil {
		if err := a.srvLive.Shutdown(ctx); err != nil {
			logger.Error("shutdown_live_error", "error", err)
		}
	}

	if a.ticker != nil {
		logger.Info("shutdown_stopping_ticker")
		a.ticker.Stop()
	}

	if a.proc != nil {
		logger.Info("shutdown_draining_ingest", "pending", a.queue.InFlight())
		drainCtx, cancel := context.WithTimeout(ctx, a.eff.Config.Ingest.DrainTimeout.Duration())
		a.proc.Stop(drainCtx)
		cancel()
	}
	if a.api != nil {
		a.api.Close()
	}
	if a.hub != nil {
		a.hub.Close()
	}

	logger.Info("shutdown_closing_store")
	if err := db.Close(); err != nil {
		logger.Error("shutdown_store_close_error", "error", err)
		return err
	}
	logger.Info("shutdown_complete")
	return nil
}
