package render

import (
	"math"

	"github.com/couchcryptid/nyc-pickups-dashboard/internal/domain"
)

const (
	PointMapWidth  = 700
	PointMapHeight = 500
	pointMapPad    = 12
)

// Pixel is a projected trip position in the point map viewport.
type Pixel struct {
	X float64
	Y float64
}

// PointMapView is the simple built-in map: every pickup drawn as a dot on an
// equirectangular projection fitted to the subset's bounding box.
type PointMapView struct {
	Width  int
	Height int
	SW     domain.Point
	NE     domain.Point
	Points []Pixel
}

// PointMap projects trips into a fixed viewport. Longitude is scaled by the
// cosine of the mid latitude so the map keeps its aspect ratio.
func PointMap(trips []domain.Trip) (PointMapView, error) {
	sw, ne, err := domain.Bounds(trips)
	if err != nil {
		return PointMapView{}, err
	}

	midLat := (sw.Lat + ne.Lat) / 2
	kx := math.Cos(midLat * math.Pi / 180)
	spanX := (ne.Lon - sw.Lon) * kx
	spanY := ne.Lat - sw.Lat

	innerW := float64(PointMapWidth - 2*pointMapPad)
	innerH := float64(PointMapHeight - 2*pointMapPad)

	// A single location (or a perfectly straight line) has no span on at
	// least one axis; center along that axis.
	scale := math.Inf(1)
	if spanX > 0 {
		scale = innerW / spanX
	}
	if spanY > 0 {
		scale = math.Min(scale, innerH/spanY)
	}
	if math.IsInf(scale, 1) {
		scale = 0
	}

	offX := pointMapPad + (innerW-spanX*scale)/2
	offY := pointMapPad + (innerH-spanY*scale)/2

	view := PointMapView{
		Width:  PointMapWidth,
		Height: PointMapHeight,
		SW:     sw,
		NE:     ne,
		Points: make([]Pixel, len(trips)),
	}
	for i, t := range trips {
		view.Points[i] = Pixel{
			X: offX + (t.Lon-sw.Lon)*kx*scale,
			Y: offY + (ne.Lat-t.Lat)*scale,
		}
	}
	return view, nil
}
