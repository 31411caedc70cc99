package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielpatrickdp/coherence-tracker/internal/metrics"
	"github.com/danielpatrickdp/coherence-tracker/internal/rpc"
	"github.com/danielpatrickdp/coherence-tracker/internal/tracker"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

// #region serve
func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve trackers over gRPC with Prometheus metrics over HTTP.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	stats := metrics.NewStats()
	sink := stats.Wrap(store)
	hub := rpc.NewHub(func(dyad string) *tracker.Tracker {
		cfg := a.trackerConfig(sink)
		cfg.Dyad = dyad
		return tracker.New(cfg)
	}, store, a.cfg.InitialScore)

	lis, err := net.Listen("tcp", a.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.Listen, err)
	}
	grpcSrv := rpc.NewServer(hub, a.logger)
	httpSrv := &http.Server{
		Addr:              a.cfg.MetricsListen,
		Handler:           metrics.NewRouter(stats, hub.Lookup),
		ReadHeaderTimeout: shutdownTimeout,
	}

	errc := make(chan error, 2)
	go func() {
		a.logger.Info("starting gRPC tracker service", slog.String("addr", lis.Addr().String()))
		errc <- grpcSrv.Serve(lis)
	}()
	go func() {
		a.logger.Info("starting metrics endpoint", slog.String("addr", a.cfg.MetricsListen))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down", slog.Any("cause", context.Cause(ctx)))
	case err = <-errc:
		a.logger.Error("server stopped", slog.Any("error", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if herr := httpSrv.Shutdown(shutdownCtx); herr != nil {
		a.logger.Warn("metrics shutdown", slog.Any("error", herr))
	}
	grpcSrv.GracefulStop()
	return err
}

// #endregion serve
