package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/modelscout/internal/adapters/http/api"
	"github.com/okian/modelscout/internal/adapters/http/site"
	"github.com/okian/modelscout/internal/adapters/http/swagger"
	service "github.com/okian/modelscout/internal/app"
	"github.com/okian/modelscout/internal/app/scheduler"
	"github.com/okian/modelscout/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout          = 10 * time.Second
	writeTimeout         = 2 * time.Minute
	idleTimeout          = 60 * time.Second
	readHeaderTimeout    = 5 * time.Second
	shutdownTimeout      = 30 * time.Second
	statsRefreshInterval = 30 * time.Second
)

func newServeCommand() *cobra.Command {
	var (
		addr            string
		refreshInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the recommender API and UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFrom(cmd)
			if addr != "" {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("refresh-interval") {
				cfg.RefreshIntervalMS = int(refreshInterval.Milliseconds())
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := newService(cfg)
			if err != nil {
				return err
			}
			if err := svc.Start(ctx); err != nil {
				return fmt.Errorf("start service: %w", err)
			}
			defer svc.Stop()

			go startStatsUpdater(ctx, svc)

			if interval := cfg.RefreshInterval(); interval > 0 {
				sched := scheduler.New(svc,
					scheduler.WithInterval(interval),
					scheduler.WithRunOnStart(true),
					scheduler.WithLogger(logger.Named("scheduler")),
				)
				go sched.Run(ctx)
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
					defer cancel()
					_ = sched.Shutdown(shutdownCtx)
				}()
			}

			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           newMux(ctx, svc),
				ReadTimeout:       readTimeout,
				WriteTimeout:      writeTimeout,
				IdleTimeout:       idleTimeout,
				ReadHeaderTimeout: readHeaderTimeout,
			}
			return serve(ctx, srv)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides the configured addr")
	cmd.Flags().DurationVar(&refreshInterval, "refresh-interval", 0, "Background freshness check interval, 0 disables it")
	return cmd
}

// newMux registers the API routes, the API docs and the UI on one mux.
func newMux(ctx context.Context, svc *service.Service) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(ctx, mux)
	swagger.Register(ctx, mux)
	site.Register(ctx, mux)
	return mux
}

// serve runs srv until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server) error {
	log := logger.Get()
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info(ctx, "server stopped")
	return nil
}

// startStatsUpdater refreshes store-derived gauges until ctx is done.
func startStatsUpdater(ctx context.Context, svc api.StatsProvider) {
	ticker := time.NewTicker(statsRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.GetStats(ctx)
		}
	}
}
