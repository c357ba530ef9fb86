package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memory-map-backend/internal/config"
)

const okBody = `{
  "status": "OK",
  "results": [
    {
      "formatted_address": "1-1 Maihama, Urayasu, Chiba 279-0031, Japan",
      "place_id": "ChIJ-abc",
      "types": ["amusement_park", "point_of_interest"],
      "geometry": {
        "location": {"lat": 35.6329, "lng": 139.8804},
        "viewport": {
          "northeast": {"lat": 35.64, "lng": 139.89},
          "southwest": {"lat": 35.62, "lng": 139.87}
        }
      },
      "address_components": [
        {"long_name": "Tokyo Disneyland", "short_name": "TDL", "types": ["point_of_interest", "establishment"]},
        {"long_name": "Urayasu", "short_name": "Urayasu", "types": ["locality", "political"]}
      ]
    },
    {"formatted_address": "ignored", "address_components": []}
  ]
}`

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, val []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.data[key] = val
	return nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc, cache Cache) (*Client, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(config.GeocodingConfig{
		APIKey:   "test-key",
		BaseURL:  srv.URL,
		Timeout:  2 * time.Second,
		CacheTTL: time.Hour,
	}, cache)
	return c, &calls
}

func TestEnrichFirstResult(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, reversePath, r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Contains(t, r.URL.Query().Get("latlng"), "35.632900,139.880400")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okBody))
	}, nil)

	details := c.Enrich(context.Background(), 35.6329, 139.8804)
	require.NotNil(t, details)
	assert.Equal(t, "1-1 Maihama, Urayasu, Chiba 279-0031, Japan", details.FormattedAddress)
	assert.Equal(t, "Tokyo Disneyland", details.Name)
	assert.Equal(t, "ChIJ-abc", details.PlaceID)
	assert.Equal(t, 35.64, details.Geometry.Viewport.Northeast.Lat)
	assert.Equal(t, []string{"amusement_park", "point_of_interest"}, details.Types)
}

func TestEnrichWithoutPointOfInterest(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"formatted_address":"Somewhere","address_components":[{"long_name":"Town","types":["locality"]}]}]}`))
	}, nil)

	details := c.Enrich(context.Background(), 1, 2)
	require.NotNil(t, details)
	assert.Equal(t, "Somewhere", details.FormattedAddress)
	assert.Empty(t, details.Name)
}

func TestEnrichFailuresReturnNil(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"zero results", http.StatusOK, `{"status":"ZERO_RESULTS","results":[]}`},
		{"denied", http.StatusOK, `{"status":"REQUEST_DENIED","error_message":"bad key"}`},
		{"server error", http.StatusInternalServerError, `oops`},
		{"malformed", http.StatusOK, `{not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, nil)
			assert.Nil(t, c.Enrich(context.Background(), 10, 20))
		})
	}
}

func TestEnrichDisabled(t *testing.T) {
	c := NewClient(config.GeocodingConfig{BaseURL: "http://127.0.0.1:1"}, nil)
	assert.False(t, c.Enabled())
	assert.Nil(t, c.Enrich(context.Background(), 10, 20))

	var nilClient *Client
	assert.Nil(t, nilClient.Enrich(context.Background(), 10, 20))
}

func TestEnrichUsesCache(t *testing.T) {
	cache := &memCache{}
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okBody))
	}, cache)

	first := c.Enrich(context.Background(), 35.63291, 139.88041)
	second := c.Enrich(context.Background(), 35.63289, 139.88039)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, nil)

	for i := 0; i < maxFailures+3; i++ {
		assert.Nil(t, c.Enrich(context.Background(), float64(i), 0))
	}
	assert.Equal(t, int32(maxFailures), atomic.LoadInt32(calls))
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "35.6329,139.8804", CacheKey(35.63291, 139.88041))
	assert.Equal(t, "-33.8688,151.2093", CacheKey(-33.86882, 151.20930))
}
