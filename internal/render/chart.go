package render

import (
	"strconv"

	"github.com/couchcryptid/nyc-pickups-dashboard/internal/domain"
)

// Chart geometry in SVG user units.
const (
	ChartWidth  = 720
	ChartHeight = 240
	chartPadTop = 10
	chartAxis   = 20
)

// Bar is one hour bucket, already scaled to the chart viewport.
type Bar struct {
	Hour   int
	Count  int
	Label  string
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Chart is a 24-bar histogram of pickups by hour.
type Chart struct {
	Width  int
	Height int
	Max    int
	Total  int
	Bars   []Bar
}

// BarChart lays out one bar per hour, scaled so the tallest bucket fills the
// plot area. An all-zero histogram yields flat bars.
func BarChart(counts domain.HourlyCounts) Chart {
	c := Chart{
		Width:  ChartWidth,
		Height: ChartHeight,
		Max:    counts.Max(),
		Total:  counts.Total(),
		Bars:   make([]Bar, 0, domain.HoursPerDay),
	}

	plot := float64(ChartHeight - chartPadTop - chartAxis)
	slot := float64(ChartWidth) / domain.HoursPerDay
	for h, n := range counts {
		var height float64
		if c.Max > 0 {
			height = plot * float64(n) / float64(c.Max)
		}
		c.Bars = append(c.Bars, Bar{
			Hour:   h,
			Count:  n,
			Label:  strconv.Itoa(h),
			X:      float64(h)*slot + 1,
			Y:      float64(chartPadTop) + plot - height,
			Width:  slot - 2,
			Height: height,
		})
	}
	return c
}

// Baseline is the y coordinate of the x axis.
func (c Chart) Baseline() int {
	return c.Height - chartAxis
}
