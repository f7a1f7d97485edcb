// Command export loads the pickup dataset once and publishes every trip (or
// one hour's subset, see EXPORT_HOUR) to a Kafka topic, then exits.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/couchcryptid/nyc-pickups-dashboard/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/nyc-pickups-dashboard/internal/adapter/kafka"
	"github.com/couchcryptid/nyc-pickups-dashboard/internal/adapter/tripcsv"
	"github.com/couchcryptid/nyc-pickups-dashboard/internal/config"
	"github.com/couchcryptid/nyc-pickups-dashboard/internal/observability"
	"github.com/couchcryptid/nyc-pickups-dashboard/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Every line of one export run shares a run_id.
	logger := observability.NewLogger(cfg).With("run_id", uuid.NewString())
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := tripcsv.NewClient(cfg.DataURL, cfg.DateColumn, cfg.FetchTimeout, logger)
	ds, err := client.Load(ctx, cfg.RowLimit)
	if err != nil {
		logger.Error("failed to load dataset", "error", err)
		os.Exit(1)
	}
	logger.Info("dataset loaded", "rows", ds.Len(), "source", ds.Source)

	writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	p := pipeline.New(
		pipeline.NewDatasetExtractor(ds, cfg.ExportHour),
		pipeline.NewTransformer(),
		writer,
		logger,
		metrics,
		cfg.BatchSize,
	)

	// Metrics stay scrapeable while the export runs.
	srv := httpadapter.NewServer(cfg.HTTPAddr, nil, p, cfg.DefaultHour, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
		return p.Run(gctx)
	})

	runErr := g.Wait()
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
	if runErr != nil {
		logger.Error("export failed", "error", runErr, "produced", p.Produced())
		os.Exit(1)
	}
	logger.Info("export complete", "produced", p.Produced(), "topic", cfg.KafkaTopic)
}
