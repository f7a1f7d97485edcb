package dashboard

import (
	"github.com/couchcryptid/nyc-pickups-dashboard/internal/domain"
	"github.com/couchcryptid/nyc-pickups-dashboard/internal/render"
)

// Page title and the informational messages shown in place of widgets.
const (
	Title            = "Uber pickups in NYC!"
	LoadStatus       = "Done! (memoized by row limit)"
	NoPointsNotice   = "No pickups available for this hour to display on the map."
	NoScatterNotice  = "No data available for this hour to display on the deck.gl map."
	NoMarkersNotice  = "No pickups available for this hour to display on the Leaflet map."
	NoRemoteRowsInfo = "No data found in Supabase table."
)

// Table is a tabular widget with stringified cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// RemoteSection is the remote table preview at the bottom of the page.
type RemoteSection struct {
	Table  string
	Limit  int
	Data   Table
	Notice string
}

// Page is everything one run of the dashboard produces, top to bottom.
type Page struct {
	Title      string
	LoadStatus string
	Params     Params
	Hours      []int

	Source   string
	RowCount int
	Raw      *Table

	Histogram render.Chart

	SubsetCount int
	PointMap    *render.PointMapView
	Scatter     *render.DeckSpec
	Markers     *render.LeafletSpec
	MapNotices  MapNotices
	Clicked     *domain.Point

	Remote RemoteSection
}

// MapNotices hold the placeholder text for each map when the subset is empty.
type MapNotices struct {
	Points  string
	Scatter string
	Markers string
}

// MapsSkipped reports whether the hour has no pickups to draw.
func (p Page) MapsSkipped() bool {
	return p.SubsetCount == 0
}

// ClickedLabel formats the last clicked marker map location.
func (p Page) ClickedLabel() string {
	if p.Clicked == nil {
		return ""
	}
	return formatPoint(*p.Clicked)
}
