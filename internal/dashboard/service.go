package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/nyc-pickups-dashboard/internal/domain"
	"github.com/couchcryptid/nyc-pickups-dashboard/internal/observability"
	"github.com/couchcryptid/nyc-pickups-dashboard/internal/render"
)

const rawTimeLayout = "2006-01-02 15:04:05"

// Service runs the dashboard top to bottom for one set of widget values.
type Service struct {
	loader     domain.Loader
	remote     domain.RowFetcher
	rowLimit   int
	dateColumn string
	table      string
	remoteRows int
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// Options configure the service.
type Options struct {
	RowLimit    int
	DateColumn  string
	RemoteTable string
	RemoteLimit int
}

// NewService wires the page pipeline to its data sources.
func NewService(loader domain.Loader, remote domain.RowFetcher, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		loader:     loader,
		remote:     remote,
		rowLimit:   opts.RowLimit,
		dateColumn: opts.DateColumn,
		table:      opts.RemoteTable,
		remoteRows: opts.RemoteLimit,
		logger:     logger,
		metrics:    metrics,
	}
}

// Build loads the (memoized) dataset, aggregates it, renders the maps for the
// selected hour and reads the remote table. Any load or query error aborts
// the whole page.
func (s *Service) Build(ctx context.Context, p Params) (Page, error) {
	start := time.Now()
	page, err := s.build(ctx, p)
	s.metrics.PageRenderDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.PageRenders.WithLabelValues("error").Inc()
		return Page{}, err
	}
	s.metrics.PageRenders.WithLabelValues("success").Inc()
	return page, nil
}

func (s *Service) build(ctx context.Context, p Params) (Page, error) {
	if err := domain.ValidateHour(p.Hour); err != nil {
		return Page{}, err
	}

	ds, err := s.Dataset(ctx)
	if err != nil {
		return Page{}, err
	}

	page := Page{
		Title:      Title,
		LoadStatus: LoadStatus,
		Params:     p,
		Hours:      hours(),
		Source:     ds.Source,
		RowCount:   ds.Len(),
		Histogram:  render.BarChart(domain.CountByHour(ds.Trips)),
	}
	if p.ShowRaw {
		raw := s.rawTable(ds)
		page.Raw = &raw
	}

	subset := domain.FilterByHour(ds.Trips, p.Hour)
	page.SubsetCount = len(subset)
	if len(subset) == 0 {
		page.MapNotices = MapNotices{
			Points:  NoPointsNotice,
			Scatter: NoScatterNotice,
			Markers: NoMarkersNotice,
		}
	} else {
		if err := s.renderMaps(&page, subset); err != nil {
			return Page{}, err
		}
		page.Clicked = p.Clicked
	}

	remote, err := s.RemoteRows(ctx)
	if err != nil {
		return Page{}, err
	}
	page.Remote = RemoteSection{
		Table: s.table,
		Limit: s.remoteRows,
		Data:  remoteTable(remote),
	}
	if remote.Empty() {
		page.Remote.Notice = NoRemoteRowsInfo
	}

	s.logger.Debug("page built",
		"hour", p.Hour,
		"row_count", page.RowCount,
		"subset_count", page.SubsetCount,
		"remote_rows", len(remote.Rows),
	)
	return page, nil
}

func (s *Service) renderMaps(page *Page, subset []domain.Trip) error {
	points, err := render.PointMap(subset)
	if err != nil {
		return fmt.Errorf("render point map: %w", err)
	}
	scatter, err := render.Scatter(subset)
	if err != nil {
		return fmt.Errorf("render scatter layer: %w", err)
	}
	markers, err := render.Markers(subset)
	if err != nil {
		return fmt.Errorf("render marker map: %w", err)
	}
	page.PointMap = &points
	page.Scatter = &scatter
	page.Markers = &markers
	return nil
}

// Dataset returns the memoized dataset at the configured row limit.
func (s *Service) Dataset(ctx context.Context) (domain.Dataset, error) {
	ds, err := s.loader.Load(ctx, s.rowLimit)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("load data: %w", err)
	}
	return ds, nil
}

// Histogram returns the pickup counts per hour over the whole dataset.
func (s *Service) Histogram(ctx context.Context) (domain.HourlyCounts, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return domain.HourlyCounts{}, err
	}
	return domain.CountByHour(ds.Trips), nil
}

// TripsAt returns the trips picked up during hour and, when there are any,
// their centroid.
func (s *Service) TripsAt(ctx context.Context, hour int) ([]domain.Trip, *domain.Point, error) {
	if err := domain.ValidateHour(hour); err != nil {
		return nil, nil, err
	}
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, nil, err
	}
	subset := domain.FilterByHour(ds.Trips, hour)
	if len(subset) == 0 {
		return subset, nil, nil
	}
	center, err := domain.Centroid(subset)
	if err != nil {
		return nil, nil, err
	}
	return subset, &center, nil
}

// RemoteRows reads the configured remote table.
func (s *Service) RemoteRows(ctx context.Context) (domain.RemoteTable, error) {
	table, err := s.remote.FetchRows(ctx)
	if err != nil {
		return domain.RemoteTable{}, fmt.Errorf("query remote table %s: %w", s.table, err)
	}
	return table, nil
}

func (s *Service) rawTable(ds domain.Dataset) Table {
	t := Table{Rows: make([][]string, 0, len(ds.Trips))}

	type getter func(domain.Trip) string
	var getters []getter
	for _, col := range ds.Columns {
		switch col {
		case s.dateColumn:
			getters = append(getters, func(tr domain.Trip) string { return tr.PickupTime.Format(rawTimeLayout) })
		case "lat":
			getters = append(getters, func(tr domain.Trip) string { return formatFloat(tr.Lat) })
		case "lon":
			getters = append(getters, func(tr domain.Trip) string { return formatFloat(tr.Lon) })
		case "base":
			getters = append(getters, func(tr domain.Trip) string { return tr.Base })
		default:
			continue
		}
		t.Columns = append(t.Columns, col)
	}

	for _, tr := range ds.Trips {
		row := make([]string, len(getters))
		for i, get := range getters {
			row[i] = get(tr)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func remoteTable(rt domain.RemoteTable) Table {
	t := Table{
		Columns: rt.Columns,
		Rows:    make([][]string, 0, len(rt.Rows)),
	}
	for _, r := range rt.Rows {
		row := make([]string, len(rt.Columns))
		for i, col := range rt.Columns {
			row[i] = formatCell(r[col])
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return formatFloat(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func hours() []int {
	hs := make([]int, domain.HoursPerDay)
	for i := range hs {
		hs[i] = i
	}
	return hs
}
