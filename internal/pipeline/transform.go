package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/couchcryptid/nyc-pickups-dashboard/internal/domain"
)

// DatasetExtractor hands out a loaded dataset's trips in file order.
type DatasetExtractor struct {
	mu    sync.Mutex
	trips []domain.Trip
	next  int
}

// NewDatasetExtractor creates an extractor over the dataset's trips. When
// hour is non-nil only pickups in that hour are exported.
func NewDatasetExtractor(ds domain.Dataset, hour *int) *DatasetExtractor {
	trips := ds.Trips
	if hour != nil {
		trips = domain.FilterByHour(trips, *hour)
	}
	return &DatasetExtractor{trips: trips}
}

func (e *DatasetExtractor) ExtractBatch(ctx context.Context, batchSize int) ([]domain.Trip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size %d", domain.ErrInvalidLimit, batchSize)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.next >= len(e.trips) {
		return nil, io.EOF
	}
	end := min(e.next+batchSize, len(e.trips))
	batch := e.trips[e.next:end:end]
	e.next = end
	return batch, nil
}

// TripTransformer implements Transformer using the domain serializer.
type TripTransformer struct{}

// NewTransformer creates a TripTransformer.
func NewTransformer() *TripTransformer {
	return &TripTransformer{}
}

func (t *TripTransformer) Transform(_ context.Context, trip domain.Trip) (domain.OutputEvent, error) {
	if trip.PickupTime.IsZero() {
		return domain.OutputEvent{}, fmt.Errorf("trip at (%f, %f) has no pickup time", trip.Lat, trip.Lon)
	}
	return domain.SerializeTrip(trip)
}
