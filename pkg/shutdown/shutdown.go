// Package shutdown holds the process level exit paths: signal driven
// cancellation for a graceful stop and Abort for startup failures.
package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/logger"
)

// SetupSignalHandler returns a context that is cancelled on SIGINT or
// SIGTERM. SIGPIPE dumps goroutine stacks before cancelling. Call the
// returned cancel function to release the watcher.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	sigpipe := make(chan os.Signal, 1)
	signal.Notify(sigpipe, syscall.SIGPIPE)

	go func() {
		defer signal.Stop(sigc)
		defer signal.Stop(sigpipe)
		select {
		case s := <-sigc:
			logger.Info("signal_received", "signal", s.String(), "msg", "shutdown requested")
		case s := <-sigpipe:
			logger.Info("signal_received", "signal", s.String(), "msg", "SIGPIPE - dumping goroutine stacks")
			buf := make([]byte, 1<<20)
			n := runtime.Stack(buf, true)
			logger.Info("goroutine_stack_dump", "dump", string(buf[:n]))
		case <-ctx.Done():
			return
		}
		cancel()
	}()

	return ctx, cancel
}

var exit = os.Exit

// Abort logs a fatal startup error, prints it to stderr and exits with
// status 1.
func Abort(msg string, err error, dbPath string) {
	logger.Error("startup_aborted", "msg", msg, "error", err, "db_path", dbPath)
	logger.Sync()
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	exit(1)
}
