package tripcsv

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/nyc-pickups-dashboard/internal/domain"
)

// ErrMissingColumn is returned when the CSV header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

const (
	latColumn  = "lat"
	lonColumn  = "lon"
	baseColumn = "base"
)

// timeLayouts are tried in order. The first matches the Uber sample files.
var timeLayouts = []string{
	"1/2/2006 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"1/2/2006 15:04",
}

// Client implements domain.Loader by downloading a CSV over HTTP.
type Client struct {
	url        string
	dateColumn string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a loader for the CSV at url. dateColumn names the
// timestamp column after lowercasing, e.g. "date/time".
func NewClient(url, dateColumn string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		url:        url,
		dateColumn: strings.ToLower(dateColumn),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Load downloads the CSV and parses at most nrows trips.
func (c *Client) Load(ctx context.Context, nrows int) (domain.Dataset, error) {
	if nrows <= 0 {
		return domain.Dataset{}, fmt.Errorf("%w: got %d", domain.ErrInvalidLimit, nrows)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("fetch dataset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Dataset{}, fmt.Errorf("fetch dataset: status %d: %s", resp.StatusCode, body)
	}

	body, err := decompress(resp.Body)
	if err != nil {
		return domain.Dataset{}, err
	}

	columns, trips, err := parse(body, c.dateColumn, nrows)
	if err != nil {
		return domain.Dataset{}, err
	}

	c.logger.Debug("dataset parsed", "url", c.url, "rows", len(trips), "row_limit", nrows)

	return domain.Dataset{
		Columns:  columns,
		Trips:    trips,
		Source:   c.url,
		Limit:    nrows,
		LoadedAt: domain.Now(),
	}, nil
}

// decompress wraps r in a gzip reader when the stream starts with the gzip
// magic bytes, so both .csv and .csv.gz sources are accepted.
func decompress(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		return gz, nil
	}
	return br, nil
}

// parse reads the header and up to nrows records. Header names are lowercased.
func parse(r io.Reader, dateColumn string, nrows int) ([]string, []domain.Trip, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, errors.New("parse header: empty dataset")
		}
		return nil, nil, fmt.Errorf("parse header: %w", err)
	}

	columns := make([]string, len(header))
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		columns[i] = name
		index[name] = i
	}

	dateIdx, ok := index[dateColumn]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrMissingColumn, dateColumn)
	}
	latIdx, ok := index[latColumn]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrMissingColumn, latColumn)
	}
	lonIdx, ok := index[lonColumn]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrMissingColumn, lonColumn)
	}
	baseIdx, hasBase := index[baseColumn]

	trips := make([]domain.Trip, 0, min(nrows, 1<<16))
	for row := 1; len(trips) < nrows; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("parse row %d: %w", row, err)
		}

		pickup, err := parseTime(rec[dateIdx])
		if err != nil {
			return nil, nil, fmt.Errorf("parse row %d: column %q: %w", row, dateColumn, err)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(rec[latIdx]), 64)
		if err != nil {
			return nil, nil, fmt.Errorf("parse row %d: column %q: %w", row, latColumn, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(rec[lonIdx]), 64)
		if err != nil {
			return nil, nil, fmt.Errorf("parse row %d: column %q: %w", row, lonColumn, err)
		}

		trip := domain.Trip{PickupTime: pickup, Lat: lat, Lon: lon}
		if hasBase {
			trip.Base = strings.TrimSpace(rec[baseIdx])
		}
		trips = append(trips, trip)
	}

	return columns, trips, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
