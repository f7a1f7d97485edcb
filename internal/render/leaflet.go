package render

import (
	"github.com/couchcryptid/nyc-pickups-dashboard/internal/domain"
)

const (
	MarkerZoom   = 12
	MarkerWidth  = 700
	MarkerHeight = 500

	// popupTimeLayout matches how pickup timestamps are shown in the raw table.
	popupTimeLayout = "2006-01-02 15:04:05"
)

// Marker is a Leaflet circleMarker.
type Marker struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Radius      int     `json:"radius"`
	Color       string  `json:"color"`
	Fill        bool    `json:"fill"`
	FillOpacity float64 `json:"fillOpacity"`
	Popup       string  `json:"popup"`
}

// LeafletSpec is serialized into the page and drawn by Leaflet. Clicks on the
// map are sent back to the server as the clicked query parameter.
type LeafletSpec struct {
	Center  domain.Point `json:"center"`
	Zoom    int          `json:"zoom"`
	Width   int          `json:"width"`
	Height  int          `json:"height"`
	Markers []Marker     `json:"markers"`
}

// Markers places one red circle marker per trip, centered on the centroid.
func Markers(trips []domain.Trip) (LeafletSpec, error) {
	center, err := domain.Centroid(trips)
	if err != nil {
		return LeafletSpec{}, err
	}

	markers := make([]Marker, len(trips))
	for i, t := range trips {
		markers[i] = Marker{
			Lat:         t.Lat,
			Lon:         t.Lon,
			Radius:      3,
			Color:       "red",
			Fill:        true,
			FillOpacity: 0.6,
			Popup:       "Pickup at " + t.PickupTime.Format(popupTimeLayout),
		}
	}

	return LeafletSpec{
		Center:  center,
		Zoom:    MarkerZoom,
		Width:   MarkerWidth,
		Height:  MarkerHeight,
		Markers: markers,
	}, nil
}
