package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidLimit is returned when a loader is asked for fewer than one row.
	ErrInvalidLimit = errors.New("row limit must be positive")

	// ErrInvalidHour is returned for an hour outside 0..23.
	ErrInvalidHour = errors.New("hour must be between 0 and 23")

	// ErrEmptySubset is returned when a computation needs at least one trip.
	ErrEmptySubset = errors.New("no trips in subset")
)

// Point is a WGS-84 latitude/longitude coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Trip is a single pickup event.
type Trip struct {
	PickupTime time.Time `json:"pickup_time"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	Base       string    `json:"base,omitempty"` // TLC dispatch base code, e.g. "B02512"
}

// Point returns the trip's pickup coordinates.
func (t Trip) Point() Point {
	return Point{Lat: t.Lat, Lon: t.Lon}
}

// Hour returns the pickup hour of day (0-23).
func (t Trip) Hour() int {
	return t.PickupTime.Hour()
}

// Dataset is a loaded table of trips together with its provenance.
type Dataset struct {
	Columns  []string  `json:"columns"` // lowercased header names in file order
	Trips    []Trip    `json:"trips"`
	Source   string    `json:"source"`
	Limit    int       `json:"limit"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Len returns the number of trips in the dataset.
func (d Dataset) Len() int {
	return len(d.Trips)
}

// Loader fetches at most nrows trips from a data source.
type Loader interface {
	Load(ctx context.Context, nrows int) (Dataset, error)
}

// RemoteTable is a schema-less record set fetched from the remote table store.
type RemoteTable struct {
	Columns []string         `json:"columns"` // in order of first appearance
	Rows    []map[string]any `json:"rows"`
}

// Empty reports whether the table has no rows.
func (t RemoteTable) Empty() bool {
	return len(t.Rows) == 0
}

// RowFetcher reads a small fixed row set from the remote table store.
type RowFetcher interface {
	FetchRows(ctx context.Context) (RemoteTable, error)
}

// OutputEvent is the serialized form of a trip destined for the export topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
