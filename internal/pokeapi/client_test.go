package pokeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/catalogmirror/internal/metrics"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(Config{
		BaseURL:        server.URL,
		Concurrency:    4,
		BatchDelay:     time.Millisecond,
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
		MaxRetryDelay:  5 * time.Millisecond,
	}, nil)
	return client, server
}

func gatheredValue(t *testing.T, m *metrics.Collectors, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func TestIDFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want int
	}{
		{"https://pokeapi.co/api/v2/pokemon/25/", 25},
		{"https://pokeapi.co/api/v2/type/3", 3},
		{"https://pokeapi.co/api/v2/pokemon/", 0},
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, IDFromURL(tt.url))
		})
	}
}

func TestRefID(t *testing.T) {
	assert.Nil(t, RefID(nil))
	assert.Nil(t, RefID(&NamedResource{Name: "x", URL: "https://pokeapi.co/api/v2/type/"}))

	id := RefID(&NamedResource{Name: "fire", URL: "https://pokeapi.co/api/v2/type/10/"})
	require.NotNil(t, id)
	assert.Equal(t, 10, *id)
}

func TestClient_ListPage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/type/", r.URL.Path)
		assert.Equal(t, "20", r.URL.Query().Get("offset"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		assert.Equal(t, "catalogmirror/1.0", r.Header.Get("User-Agent"))

		_ = json.NewEncoder(w).Encode(ResourceList{
			Count: 22,
			Results: []NamedResource{
				{Name: "shadow", URL: "https://pokeapi.co/api/v2/type/10002/"},
				{Name: "stellar", URL: "https://pokeapi.co/api/v2/type/10003/"},
			},
		})
	}))

	list, err := client.ListPage(context.Background(), "type", 20, 2)
	require.NoError(t, err)
	assert.Equal(t, 22, list.Count)
	require.Len(t, list.Results, 2)
	assert.Equal(t, 10003, list.Results[1].ID())
}

func TestClient_Count(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{"count": 1302, "results": [{"name": "bulbasaur", "url": "x/1/"}]}`)
	}))

	count, err := client.Count(context.Background(), "pokemon")
	require.NoError(t, err)
	assert.Equal(t, 1302, count)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"id": 1, "name": "normal"}`)
	}))
	m := metrics.New()
	client.metrics = m

	body, err := client.FetchDetail(context.Background(), "/type/1/")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": 1, "name": "normal"}`, string(body))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 2.0, gatheredValue(t, m, "catalogmirror_upstream_retries_total"))
	assert.Equal(t, 1.0, gatheredValue(t, m, "catalogmirror_upstream_requests_total"))
}

func TestClient_ExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.FetchDetail(context.Background(), "/move/99999/")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, int32(4), calls.Load(), "one attempt plus three retries")
}

func TestClient_RateLimited(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	client.cfg.MaxRetries = 0

	_, err := client.FetchDetail(context.Background(), "/pokemon/1/")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
}

func TestClient_CancelledContext(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchDetail(ctx, "/pokemon/1/")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, ErrUpstreamUnavailable))
}

func TestClient_FetchDetails_KeepsOrderAndIsolatesFailures(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		defer func() {
			mu.Lock()
			inFlight--
			mu.Unlock()
		}()

		time.Sleep(2 * time.Millisecond)
		if strings.HasSuffix(r.URL.Path, "/7/") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		id := IDFromURL(r.URL.Path)
		fmt.Fprintf(w, `{"id": %d}`, id)
	}))
	client.cfg.MaxRetries = 0

	urls := make([]string, 10)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s/pokemon/%d/", server.URL, i+1)
	}

	details := client.FetchDetails(context.Background(), urls)
	require.Len(t, details, 10)

	for i, d := range details {
		assert.Equal(t, i+1, d.ID)
		assert.Equal(t, urls[i], d.URL)
		if d.ID == 7 {
			assert.Error(t, d.Err)
			continue
		}
		require.NoError(t, d.Err)
		assert.JSONEq(t, fmt.Sprintf(`{"id": %d}`, d.ID), string(d.Body))
	}

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 4)
}

func TestClient_FetchDetails_CancelStopsLaunches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var requests atomic.Int32
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 4 {
			cancel()
		}
		fmt.Fprintf(w, `{"id": %d}`, IDFromURL(r.URL.Path))
	}))
	client.cfg.MaxRetries = 0
	client.cfg.BatchDelay = time.Hour

	urls := make([]string, 10)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s/pokemon/%d/", server.URL, i+1)
	}

	start := time.Now()
	details := client.FetchDetails(ctx, urls)
	assert.Less(t, time.Since(start), 5*time.Second)
	require.Len(t, details, 10)

	assert.Equal(t, int32(4), requests.Load())
	for _, d := range details[4:] {
		assert.ErrorIs(t, d.Err, context.Canceled, "item %d", d.ID)
		assert.Nil(t, d.Body)
	}
}

func TestClient_FetchDetails_Empty(t *testing.T) {
	client := NewClient(Config{}, nil)
	assert.Empty(t, client.FetchDetails(context.Background(), nil))
	assert.Equal(t, defaultConcurrency, client.Concurrency())
}
