package main

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"

	"github.com/newprojectblitz/chat-chrome-chatterbox/internal/app"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/config"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/logger"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/shutdown"
)

// set build metadata
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// load .env file if present
	_ = godotenv.Load(".env")

	// parse config flags
	flags, err := config.ParseConfigFlags(os.Args[1:])
	if err != nil {
		shutdown.Abort("failed to parse flags", err, "")
	}

	// layer config file, env and flags over the defaults
	eff, err := config.LoadEffectiveConfig(flags, os.Getenv)
	if err != nil {
		shutdown.Abort("failed to build effective config", err, flags.DB)
	}

	// validate config
	if err := config.ValidateConfig(eff); err != nil {
		shutdown.Abort("invalid configuration", err, eff.DBPath)
	}

	// initialize logger after config is fully loaded
	logger.Init(eff.Config.Logging.Level)
	defer logger.Sync()

	logger.Info("effective_config_loaded", "sources", eff.Sources, "addr", eff.Addr, "live_addr", eff.Config.LiveAddr(), "db_path", eff.DBPath)
	logger.Info("config_validation_passed")

	numCPU := runtime.NumCPU()
	runtime.GOMAXPROCS(numCPU)
	logger.Info("system_logical_cores", "logical_cores", numCPU)

	// initialize app
	a, err := app.New(eff, version, commit, buildDate)
	if err != nil {
		shutdown.Abort("failed to initialize app", err, eff.DBPath)
	}

	// set up context and signal handling for graceful shutdown
	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	runErr := a.Run(ctx)
	if runErr != nil {
		logger.Error("app_run_failed", "error", runErr)
	}

	// shutdown the app with a bounded timeout so teardown cannot hang forever
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer shutdownCancel()
	_ = a.Shutdown(shutdownCtx)

	if runErr != nil {
		logger.Sync()
		os.Exit(1)
	}
}
