// Package domain models Uber pickup records and the aggregations the
// dashboard derives from them.
//
// # Data Source
//
// The default dataset is the public "uber-raw-data-sep14" sample: a gzipped
// CSV with one row per pickup in New York City during September 2014.
// Columns, before normalization:
//
//	Date/Time,Lat,Lon,Base
//	9/1/2014 0:01:00,40.2201,-74.0021,B02512
//
// Column names are lowercased by the loader, so the timestamp column is
// addressed as "date/time". Timestamps carry no zone and are kept as UTC
// wall-clock values; the hour-of-day used for bucketing is the hour as
// written in the file.
//
// # Hour Buckets
//
// [CountByHour] bins every trip into one of 24 buckets indexed by hour of
// day. [FilterByHour] returns the trips of a single bucket. Together they
// partition the table: the buckets sum to the row count and the union of the
// 24 filtered subsets is the full table.
//
// # Centroids
//
// Map views anchor on the arithmetic mean of the subset's coordinates (see
// [Centroid]). An empty subset has no centroid; callers render a placeholder
// instead of a map.
package domain
