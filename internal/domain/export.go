package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// exportedTrip is the JSON payload written to the export topic.
type exportedTrip struct {
	ID          string    `json:"id"`
	PickupTime  time.Time `json:"pickup_time"`
	PickupHour  int       `json:"pickup_hour"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	Base        string    `json:"base,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// TripID produces a deterministic ID from the trip's key fields, so
// re-exporting the same dataset yields the same message keys.
func TripID(t Trip) string {
	input := fmt.Sprintf("%s|%.6f|%.6f|%s", t.PickupTime.UTC().Format(time.RFC3339), t.Lat, t.Lon, t.Base)
	hash := sha256.Sum256([]byte(input))
	return "trip-" + hex.EncodeToString(hash[:8])
}

// SerializeTrip converts a trip into an OutputEvent stamped with the current
// package clock time.
func SerializeTrip(t Trip) (OutputEvent, error) {
	processedAt := Now()
	id := TripID(t)
	data, err := json.Marshal(exportedTrip{
		ID:          id,
		PickupTime:  t.PickupTime,
		PickupHour:  t.Hour(),
		Lat:         t.Lat,
		Lon:         t.Lon,
		Base:        t.Base,
		ProcessedAt: processedAt,
	})
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize trip: %w", err)
	}
	return OutputEvent{
		Key:   []byte(id),
		Value: data,
		Headers: map[string]string{
			"pickup_hour":  strconv.Itoa(t.Hour()),
			"processed_at": processedAt.Format(time.RFC3339),
		},
	}, nil
}
