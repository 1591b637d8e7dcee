package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"imgtutu/pkg/logger"
)

func main() {
	app := NewApplication()

	if err := app.Initialize(); err != nil {
		logger.FatalCtx(nil, "imgtutu failed to initialize: %v", err)
	}

	if err := app.Start(); err != nil {
		logger.FatalCtx(app.ctx, "imgtutu failed to start: %v", err)
	}

	// Block until the process is asked to stop.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.InfoCtx(app.ctx, "shutting down on signal: %v", sig)

	// In-flight generations get 30 seconds to drain.
	if err := app.Shutdown(30 * time.Second); err != nil {
		logger.ErrorCtx(app.ctx, "shutdown did not complete cleanly: %v", err)
		os.Exit(1)
	}

	logger.InfoCtx(app.ctx, "imgtutu stopped")
}
