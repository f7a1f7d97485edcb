package render

import (
	"github.com/couchcryptid/nyc-pickups-dashboard/internal/domain"
)

// Scatter layer styling.
const (
	ScatterZoom   = 11
	ScatterPitch  = 50
	ScatterRadius = 100
	ScatterTip    = "Pickup at ({lat}, {lon})"
)

// ScatterColor is RGBA.
var ScatterColor = [4]int{200, 30, 0, 160}

// ViewState is the initial camera of a deck.gl map.
type ViewState struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Zoom      float64 `json:"zoom"`
	Pitch     float64 `json:"pitch"`
}

// ScatterPoint is one datum of the scatter layer.
type ScatterPoint struct {
	Position [2]float64 `json:"position"` // [lon, lat]
	Lat      float64    `json:"lat"`
	Lon      float64    `json:"lon"`
}

// ScatterLayer mirrors the deck.gl ScatterplotLayer props used by the page.
type ScatterLayer struct {
	Type      string         `json:"type"`
	ID        string         `json:"id"`
	Data      []ScatterPoint `json:"data"`
	FillColor [4]int         `json:"getFillColor"`
	Radius    int            `json:"getRadius"`
	Pickable  bool           `json:"pickable"`
}

// DeckSpec is serialized into the page and instantiated by deck.gl.
type DeckSpec struct {
	InitialViewState ViewState      `json:"initialViewState"`
	Layers           []ScatterLayer `json:"layers"`
	Tooltip          string         `json:"tooltip"`
}

// Scatter builds a pickable scatter layer centered on the subset's centroid.
func Scatter(trips []domain.Trip) (DeckSpec, error) {
	center, err := domain.Centroid(trips)
	if err != nil {
		return DeckSpec{}, err
	}

	data := make([]ScatterPoint, len(trips))
	for i, t := range trips {
		data[i] = ScatterPoint{
			Position: [2]float64{t.Lon, t.Lat},
			Lat:      t.Lat,
			Lon:      t.Lon,
		}
	}

	return DeckSpec{
		InitialViewState: ViewState{
			Latitude:  center.Lat,
			Longitude: center.Lon,
			Zoom:      ScatterZoom,
			Pitch:     ScatterPitch,
		},
		Layers: []ScatterLayer{{
			Type:      "ScatterplotLayer",
			ID:        "pickups",
			Data:      data,
			FillColor: ScatterColor,
			Radius:    ScatterRadius,
			Pickable:  true,
		}},
		Tooltip: ScatterTip,
	}, nil
}
