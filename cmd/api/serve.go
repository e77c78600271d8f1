package main

import (
	"context"
	"errors"
	"fmt"
	"mpesa-checkout-service/internal/logger"
	"mpesa-checkout-service/internal/server"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the notification relay",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	stopRelay := a.relay.Start()

	srv := server.NewServer(a.cfg, server.Services{
		Checkout: a.checkout,
		Orders:   a.orders,
		Status:   a.status,
		Callback: a.callback,
	})

	serverAddr := a.cfg.HTTP.Host + ":" + a.cfg.HTTP.Port

	logger.Info("starting HTTP server", zap.String("addr", serverAddr))
	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case <-sigChan:
		logger.Info("signal received, starting graceful shutdown")
	case err := <-serverErr:
		logger.Error("HTTP server error", zap.Error(err))
		_ = stopRelay(context.Background())
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := stopRelay(shutdownCtx); err != nil {
		logger.Warn("notification relay did not stop cleanly", zap.Error(err))
	}

	return nil
}
