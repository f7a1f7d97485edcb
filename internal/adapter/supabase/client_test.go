package supabase

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/nyc-pickups-dashboard/internal/domain"
	"github.com/couchcryptid/nyc-pickups-dashboard/internal/observability"
)

const (
	testKey           = "anon-test-key"
	testTable         = "eagles_offense"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(t *testing.T, baseURL string, metrics *observability.Metrics) *Client {
	t.Helper()
	c, err := NewClient(baseURL, testKey, testTable, 5, 5*time.Second, discardLogger(), metrics)
	require.NoError(t, err)
	return c
}

func TestNewClient_MissingCredentials(t *testing.T) {
	cases := []struct {
		name string
		url  string
		key  string
	}{
		{name: "both missing"},
		{name: "missing url", key: testKey},
		{name: "missing key", url: "https://example.supabase.co"},
		{name: "blank key", url: "https://example.supabase.co", key: "   "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewClient(tc.url, tc.key, testTable, 5, time.Second, discardLogger(), observability.NewMetricsForTesting())
			assert.ErrorIs(t, err, ErrMissingCredentials)
		})
	}
}

func TestNewClient_MissingCredentialsSendsNoRequest(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", testTable, 5, time.Second, discardLogger(), observability.NewMetricsForTesting())
	require.ErrorIs(t, err, ErrMissingCredentials)
	assert.Zero(t, hits.Load())
}

func TestNewClient_InvalidArguments(t *testing.T) {
	m := observability.NewMetricsForTesting()

	_, err := NewClient("not a url", testKey, testTable, 5, time.Second, discardLogger(), m)
	assert.Error(t, err)

	_, err = NewClient("https://example.supabase.co", testKey, "", 5, time.Second, discardLogger(), m)
	assert.Error(t, err)

	_, err = NewClient("https://example.supabase.co", testKey, testTable, 0, time.Second, discardLogger(), m)
	assert.ErrorIs(t, err, domain.ErrInvalidLimit)
}

func TestClient_FetchRows_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/"+testTable, r.URL.Path)
		assert.Equal(t, "*", r.URL.Query().Get("select"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, testKey, r.Header.Get("apikey"))
		assert.Equal(t, "Bearer "+testKey, r.Header.Get("Authorization"))
		assert.Equal(t, "public", r.Header.Get("Accept-Profile"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`[
			{"player":"Hurts","yards":3858,"position":"QB"},
			{"player":"Barkley","yards":2005,"position":"RB","rookie":false}
		]`))
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	table, err := testClient(t, srv.URL+"/", metrics).FetchRows(context.Background())
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"player", "yards", "position", "rookie"}, table.Columns); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "Hurts", table.Rows[0]["player"])
	assert.Equal(t, json.Number("3858"), table.Rows[0]["yards"])
	assert.Equal(t, false, table.Rows[1]["rookie"])
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RemoteQueries.WithLabelValues("success")), 0)
}

func TestClient_FetchRows_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	table, err := testClient(t, srv.URL, metrics).FetchRows(context.Background())
	require.NoError(t, err)
	assert.True(t, table.Empty())
	assert.Empty(t, table.Columns)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RemoteQueries.WithLabelValues("empty")), 0)
}

func TestClient_FetchRows_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"42P01","message":"relation \"public.eagles_offense\" does not exist"}`))
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	_, err := testClient(t, srv.URL, metrics).FetchRows(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query "+testTable)
	assert.Contains(t, err.Error(), "42P01")
	assert.Contains(t, err.Error(), "does not exist")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RemoteQueries.WithLabelValues("error")), 0)
}

func TestClient_FetchRows_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := testClient(t, srv.URL, observability.NewMetricsForTesting()).FetchRows(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_FetchRows_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL, observability.NewMetricsForTesting()).FetchRows(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestDecodeRows_RejectsNonObjectRows(t *testing.T) {
	_, err := decodeRows([]byte(`[1, 2]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected object")
}

func TestDecodeRows_NestedValues(t *testing.T) {
	table, err := decodeRows([]byte(`[{"id":1,"meta":{"team":"PHI"},"tags":["a","b"],"note":null}]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "meta", "tags", "note"}, table.Columns)
	assert.Equal(t, map[string]any{"team": "PHI"}, table.Rows[0]["meta"])
	assert.Equal(t, []any{"a", "b"}, table.Rows[0]["tags"])
	assert.Nil(t, table.Rows[0]["note"])
}
