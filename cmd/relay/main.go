package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/NitinDabar/e2ee-chat/internal/app"
)

func main() {
	cfg, err := app.LoadRelayConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "relay config:", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg.LogConfig(), os.Stdout)
	srv := app.NewRelayServer(cfg, logger)

	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("starting relay")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("relay failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down relay...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("relay forced to shutdown")
	}
	logger.Info().Msg("relay stopped")
}
