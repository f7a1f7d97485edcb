package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	httpadapter "github.com/couchcryptid/nyc-pickups-dashboard/internal/adapter/http"
	"github.com/couchcryptid/nyc-pickups-dashboard/internal/adapter/supabase"
	"github.com/couchcryptid/nyc-pickups-dashboard/internal/adapter/tripcsv"
	"github.com/couchcryptid/nyc-pickups-dashboard/internal/config"
	"github.com/couchcryptid/nyc-pickups-dashboard/internal/dashboard"
	"github.com/couchcryptid/nyc-pickups-dashboard/internal/observability"
	"github.com/couchcryptid/nyc-pickups-dashboard/internal/views"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Credentials are checked before anything is served or queried.
	remote, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseTable,
		cfg.SupabaseRowLimit, cfg.SupabaseTimeout, logger, metrics)
	if err != nil {
		logger.Error("failed to create supabase client", "error", err)
		os.Exit(1)
	}

	if err := views.LoadTemplates(); err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	client := tripcsv.NewClient(cfg.DataURL, cfg.DateColumn, cfg.FetchTimeout, logger)
	loader := tripcsv.NewCachedLoader(client, cfg.LoaderCacheSize, metrics)
	logger.Info("dataset loader configured",
		"data_url", cfg.DataURL,
		"row_limit", cfg.RowLimit,
		"cache_size", cfg.LoaderCacheSize,
	)

	svc := dashboard.NewService(loader, remote, dashboard.Options{
		RowLimit:    cfg.RowLimit,
		DateColumn:  cfg.DateColumn,
		RemoteTable: cfg.SupabaseTable,
		RemoteLimit: cfg.SupabaseRowLimit,
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, loader, cfg.DefaultHour, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Warm the memo so the first page view does not wait on the download.
	// A failure here is not fatal; page requests retry the load.
	g.Go(func() error {
		ds, err := loader.Load(gctx, cfg.RowLimit)
		if err != nil {
			logger.Warn("dataset warm-up failed", "error", err)
			return nil
		}
		logger.Info("dataset loaded", "rows", ds.Len(), "columns", ds.Columns)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("dashboard stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
