package dashboard

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/nyc-pickups-dashboard/internal/domain"
)

// ErrInvalidClick is returned for a malformed clicked query parameter.
var ErrInvalidClick = errors.New("clicked must be <lat>,<lon>")

// Params are the widget values of one page run.
type Params struct {
	Hour    int
	ShowRaw bool
	Clicked *domain.Point
}

// ParseParams reads the widget state from a query string. A missing hour
// falls back to defaultHour.
func ParseParams(q url.Values, defaultHour int) (Params, error) {
	p := Params{Hour: defaultHour}

	if v := strings.TrimSpace(q.Get("hour")); v != "" {
		h, err := strconv.Atoi(v)
		if err != nil {
			return Params{}, fmt.Errorf("%w: %q", domain.ErrInvalidHour, v)
		}
		p.Hour = h
	}
	if err := domain.ValidateHour(p.Hour); err != nil {
		return Params{}, err
	}

	p.ShowRaw = parseBool(q.Get("raw"))

	if v := strings.TrimSpace(q.Get("clicked")); v != "" {
		pt, err := parsePoint(v)
		if err != nil {
			return Params{}, err
		}
		p.Clicked = &pt
	}
	return p, nil
}

// Query encodes the params back into a query string for links and forms.
func (p Params) Query() url.Values {
	q := url.Values{"hour": {strconv.Itoa(p.Hour)}}
	if p.ShowRaw {
		q.Set("raw", "1")
	}
	if p.Clicked != nil {
		q.Set("clicked", formatPoint(*p.Clicked))
	}
	return q
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func parsePoint(v string) (domain.Point, error) {
	latStr, lonStr, ok := strings.Cut(v, ",")
	if !ok {
		return domain.Point{}, fmt.Errorf("%w: %q", ErrInvalidClick, v)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil || lat < -90 || lat > 90 {
		return domain.Point{}, fmt.Errorf("%w: %q", ErrInvalidClick, v)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return domain.Point{}, fmt.Errorf("%w: %q", ErrInvalidClick, v)
	}
	return domain.Point{Lat: lat, Lon: wrapLongitude(lon)}, nil
}

// wrapLongitude folds a longitude from a map panned past the antimeridian
// back into [-180, 180].
func wrapLongitude(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

func formatPoint(p domain.Point) string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lon, 'f', -1, 64)
}
