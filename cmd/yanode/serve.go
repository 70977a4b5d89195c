package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/api"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/logging"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and metrics servers",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	logging.Info("yanode server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr))

	// Warm the index; a failure here is retried by the first request.
	if outcome, err := a.index.Refresh(ctx); err != nil {
		logging.Warn("initial index build failed", zap.Error(err))
	} else {
		logging.Info("initial index ready", zap.String("outcome", string(outcome)))
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return err
	}

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	srv := api.NewServer(a.index, a.engine, a.history, a.formatter)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.Info("server listening", zap.String("addr", cfg.ListenAddr))
	err = serveHTTP(ctx, httpServer, ln, shutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	metricsServer.Shutdown(shutdownCtx)
	if err != nil {
		return err
	}
	logging.Info("server stopped")
	return nil
}

const shutdownTimeout = 15 * time.Second

// serveHTTP serves on ln until ctx is done. It returns only after in-flight
// requests have drained or timeout passed.
func serveHTTP(ctx context.Context, srv *http.Server, ln net.Listener, timeout time.Duration) error {
	serveCtx, stop := context.WithCancel(ctx)
	defer stop()

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-serveCtx.Done()
		logging.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Warn("http shutdown", zap.Error(err))
		}
	}()

	err := srv.Serve(ln)
	stop()
	<-drained
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
