package domain

import "fmt"

// HoursPerDay is the number of hour buckets.
const HoursPerDay = 24

// HourlyCounts holds the number of trips per hour of day, indexed 0-23.
type HourlyCounts [HoursPerDay]int

// Total returns the sum of all buckets.
func (c HourlyCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Max returns the largest bucket value.
func (c HourlyCounts) Max() int {
	m := 0
	for _, n := range c {
		if n > m {
			m = n
		}
	}
	return m
}

// ValidateHour returns ErrInvalidHour unless 0 <= hour <= 23.
func ValidateHour(hour int) error {
	if hour < 0 || hour >= HoursPerDay {
		return fmt.Errorf("%w: got %d", ErrInvalidHour, hour)
	}
	return nil
}

// CountByHour bins trips by pickup hour. Equivalent to a 24-bin histogram
// over [0, 24).
func CountByHour(trips []Trip) HourlyCounts {
	var counts HourlyCounts
	for i := range trips {
		counts[trips[i].Hour()]++
	}
	return counts
}

// FilterByHour returns the trips picked up during the given hour, preserving
// input order. The input slice is not modified.
func FilterByHour(trips []Trip, hour int) []Trip {
	out := make([]Trip, 0, len(trips)/HoursPerDay+1)
	for i := range trips {
		if trips[i].Hour() == hour {
			out = append(out, trips[i])
		}
	}
	return out
}

// Centroid returns the mean latitude and longitude of the trips.
func Centroid(trips []Trip) (Point, error) {
	if len(trips) == 0 {
		return Point{}, ErrEmptySubset
	}
	var sumLat, sumLon float64
	for i := range trips {
		sumLat += trips[i].Lat
		sumLon += trips[i].Lon
	}
	n := float64(len(trips))
	return Point{Lat: sumLat / n, Lon: sumLon / n}, nil
}

// Bounds returns the south-west and north-east corners enclosing the trips.
func Bounds(trips []Trip) (sw, ne Point, err error) {
	if len(trips) == 0 {
		return Point{}, Point{}, ErrEmptySubset
	}
	sw = trips[0].Point()
	ne = sw
	for i := 1; i < len(trips); i++ {
		t := trips[i]
		sw.Lat = min(sw.Lat, t.Lat)
		sw.Lon = min(sw.Lon, t.Lon)
		ne.Lat = max(ne.Lat, t.Lat)
		ne.Lon = max(ne.Lon, t.Lon)
	}
	return sw, ne, nil
}
