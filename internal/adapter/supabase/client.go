package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/supabase-community/postgrest-go"

	"github.com/couchcryptid/nyc-pickups-dashboard/internal/domain"
	"github.com/couchcryptid/nyc-pickups-dashboard/internal/observability"
)

// ErrMissingCredentials is returned when the project URL or API key is unset.
var ErrMissingCredentials = errors.New("missing SUPABASE_URL or SUPABASE_KEY")

// Client implements domain.RowFetcher against the Supabase REST (PostgREST) API.
type Client struct {
	restURL   string
	key       string
	table     string
	limit     int
	timeout   time.Duration
	transport http.RoundTripper
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewClient creates a read-only client for a single table. Both credentials
// are required; nothing is sent over the network until FetchRows.
func NewClient(baseURL, key, table string, limit int, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	key = strings.TrimSpace(key)
	if baseURL == "" || key == "" {
		return nil, ErrMissingCredentials
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid SUPABASE_URL: %w", err)
	}
	if table == "" {
		return nil, errors.New("table name is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidLimit, limit)
	}
	return &Client{
		restURL:   baseURL + "/rest/v1",
		key:       key,
		table:     table,
		limit:     limit,
		timeout:   timeout,
		transport: http.DefaultTransport,
		logger:    logger,
		metrics:   metrics,
	}, nil
}

// FetchRows selects all columns of the configured table, limited to the
// configured row count. Equivalent to `SELECT * FROM table LIMIT n`.
func (c *Client) FetchRows(ctx context.Context) (domain.RemoteTable, error) {
	start := time.Now()
	table, err := c.fetch(ctx)
	c.metrics.RemoteQueryDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		c.metrics.RemoteQueries.WithLabelValues("error").Inc()
		return domain.RemoteTable{}, err
	case table.Empty():
		c.metrics.RemoteQueries.WithLabelValues("empty").Inc()
	default:
		c.metrics.RemoteQueries.WithLabelValues("success").Inc()
	}
	c.logger.Debug("remote rows fetched", "table", c.table, "rows", len(table.Rows))
	return table, nil
}

func (c *Client) fetch(ctx context.Context) (domain.RemoteTable, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	// postgrest-go builds requests without a context, so each query gets a
	// client whose transport carries this call's context.
	pg := postgrest.NewClient(c.restURL, "", map[string]string{
		"apikey":        c.key,
		"Authorization": "Bearer " + c.key,
	})
	if pg.ClientError != nil {
		return domain.RemoteTable{}, fmt.Errorf("create client: %w", pg.ClientError)
	}
	pg.Transport.Parent = contextTransport{ctx: ctx, next: c.transport}

	body, _, err := pg.From(c.table).Select("*", "", false).Limit(c.limit, "").Execute()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.RemoteTable{}, fmt.Errorf("query %s: %w", c.table, ctxErr)
		}
		return domain.RemoteTable{}, fmt.Errorf("query %s: %w", c.table, err)
	}

	table, err := decodeRows(body)
	if err != nil {
		return domain.RemoteTable{}, fmt.Errorf("decode response: %w", err)
	}
	return table, nil
}

type contextTransport struct {
	ctx  context.Context
	next http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.next.RoundTrip(req.WithContext(t.ctx))
}

// decodeRows parses a JSON array of objects, keeping column names in order of
// first appearance. encoding/json maps do not preserve key order, so each
// object is walked token by token.
func decodeRows(body []byte) (domain.RemoteTable, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		return domain.RemoteTable{}, err
	}

	table := domain.RemoteTable{
		Columns: []string{},
		Rows:    make([]map[string]any, 0, len(raws)),
	}
	seen := make(map[string]bool)

	for i, raw := range raws {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()

		tok, err := dec.Token()
		if err != nil {
			return domain.RemoteTable{}, fmt.Errorf("row %d: %w", i, err)
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '{' {
			return domain.RemoteTable{}, fmt.Errorf("row %d: expected object", i)
		}

		row := make(map[string]any)
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return domain.RemoteTable{}, fmt.Errorf("row %d: %w", i, err)
			}
			key, _ := keyTok.(string)

			var v any
			if err := dec.Decode(&v); err != nil {
				return domain.RemoteTable{}, fmt.Errorf("row %d column %q: %w", i, key, err)
			}
			row[key] = v
			if !seen[key] {
				seen[key] = true
				table.Columns = append(table.Columns, key)
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
