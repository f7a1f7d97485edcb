package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/nyc-pickups-dashboard/internal/domain"
	"github.com/couchcryptid/nyc-pickups-dashboard/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// BatchExtractor reads up to batchSize trips from the source. It returns
// io.EOF once the source is drained.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.Trip, error)
}

// Transformer converts a trip into an output event.
type Transformer interface {
	Transform(ctx context.Context, trip domain.Trip) (domain.OutputEvent, error)
}

// BatchLoader writes multiple output events to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.OutputEvent) error
}

// Pipeline orchestrates the extract-transform-load loop of the trip export.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	batchSize   int
	produced    atomic.Int64
	ready       atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil once the pipeline has loaded at least one batch.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("export has not loaded any trips yet")
	}
	return nil
}

// Produced returns the number of events successfully loaded so far.
func (p *Pipeline) Produced() int64 {
	return p.produced.Load()
}

// Run executes the batch loop until the source is drained or the context is
// cancelled. Neither is an error. Extract errors other than io.EOF are
// returned as-is; load errors are retried with capped exponential backoff.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("export started", "batch_size", p.batchSize)
	p.metrics.ExportRunning.Set(1)
	defer p.metrics.ExportRunning.Set(0)

	for {
		if ctx.Err() != nil {
			p.logger.Info("export stopping", "reason", ctx.Err(), "produced", p.Produced())
			return nil
		}

		batch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
		if errors.Is(err, io.EOF) {
			p.logger.Info("export drained", "produced", p.Produced())
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if len(batch) == 0 {
			continue
		}

		if !p.processBatch(ctx, batch) {
			p.logger.Info("export stopping", "reason", ctx.Err(), "produced", p.Produced())
			return nil
		}
	}
}

// processBatch transforms and loads one batch. Returns false if the context
// was cancelled before the batch could be loaded.
func (p *Pipeline) processBatch(ctx context.Context, batch []domain.Trip) bool {
	p.metrics.TripsConsumed.Add(float64(len(batch)))
	p.metrics.BatchSize.Observe(float64(len(batch)))

	out := make([]domain.OutputEvent, 0, len(batch))
	for _, trip := range batch {
		event, err := p.transformer.Transform(ctx, trip)
		if err != nil {
			p.logger.Warn("transform failed, skipping trip",
				"error", err,
				"pickup_time", trip.PickupTime,
			)
			p.metrics.TransformErrors.Inc()
			continue
		}
		out = append(out, event)
	}
	if len(out) == 0 {
		return true
	}

	backoff := initialBackoff
	for {
		err := p.loader.LoadBatch(ctx, out)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("load batch failed", "error", err, "batch_size", len(out), "retry_in", backoff)
		if !retry.SleepWithContext(ctx, backoff) {
			return false
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}

	p.metrics.TripsProduced.Add(float64(len(out)))
	p.produced.Add(int64(len(out)))
	p.ready.Store(true)
	return true
}
