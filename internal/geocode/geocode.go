// Package geocode resolves coordinates into human-readable place details
// using the Google reverse-geocoding API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"memory-map-backend/internal/config"
	"memory-map-backend/internal/metrics"
	"memory-map-backend/internal/models"
)

const (
	reversePath    = "/maps/api/geocode/json"
	poiType        = "point_of_interest"
	breakerTimeout = 30 * time.Second
	maxFailures    = 5
)

var errNoResult = errors.New("no geocoding result")

// Cache stores serialized lookup results
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Client performs reverse-geocoding lookups
type Client struct {
	http     *resty.Client
	cb       *gobreaker.CircuitBreaker
	cache    Cache
	apiKey   string
	language string
	cacheTTL time.Duration
}

type addressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

type geocodeResult struct {
	FormattedAddress  string             `json:"formatted_address"`
	AddressComponents []addressComponent `json:"address_components"`
	Geometry          models.Geometry    `json:"geometry"`
	PlaceID           string             `json:"place_id"`
	Types             []string           `json:"types"`
}

type geocodeResponse struct {
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message"`
	Results      []geocodeResult `json:"results"`
}

// NewClient creates a geocoding client. cache may be nil.
func NewClient(cfg config.GeocodingConfig, cache Cache) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout)

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "geocode",
		MaxRequests: 1,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errNoResult)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	})

	return &Client{
		http:     httpClient,
		cb:       cb,
		cache:    cache,
		apiKey:   cfg.APIKey,
		language: cfg.Language,
		cacheTTL: cfg.CacheTTL,
	}
}

// Enabled reports whether lookups will be attempted
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Enrich returns place details for the coordinates, or nil when none are
// available. Lookup failures are logged and never returned.
func (c *Client) Enrich(ctx context.Context, lat, lng float64) *models.PlaceDetails {
	if !c.Enabled() {
		metrics.GeocodeLookups.WithLabelValues("disabled").Inc()
		return nil
	}

	key := CacheKey(lat, lng)
	if details, ok := c.fromCache(ctx, key); ok {
		metrics.GeocodeLookups.WithLabelValues("cached").Inc()
		return details
	}

	out, err := c.cb.Execute(func() (interface{}, error) {
		return c.lookup(ctx, lat, lng)
	})
	switch {
	case errors.Is(err, errNoResult):
		metrics.GeocodeLookups.WithLabelValues("empty").Inc()
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.GeocodeLookups.WithLabelValues("open").Inc()
		return nil
	case err != nil:
		metrics.GeocodeLookups.WithLabelValues("error").Inc()
		log.Warn().Err(err).Float64("lat", lat).Float64("lng", lng).Msg("Reverse geocoding failed")
		return nil
	}

	details := out.(*models.PlaceDetails)
	metrics.GeocodeLookups.WithLabelValues("ok").Inc()
	c.toCache(ctx, key, details)
	return details
}

func (c *Client) lookup(ctx context.Context, lat, lng float64) (*models.PlaceDetails, error) {
	var body geocodeResponse
	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("latlng", fmt.Sprintf("%f,%f", lat, lng)).
		SetQueryParam("key", c.apiKey).
		SetResult(&body)
	if c.language != "" {
		req.SetQueryParam("language", c.language)
	}

	resp, err := req.Get(reversePath)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("geocode status %d", resp.StatusCode())
	}

	switch body.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, errNoResult
	default:
		return nil, fmt.Errorf("geocode status %s: %s", body.Status, body.ErrorMessage)
	}
	if len(body.Results) == 0 {
		return nil, errNoResult
	}

	return toDetails(body.Results[0]), nil
}

func toDetails(r geocodeResult) *models.PlaceDetails {
	name := ""
	for _, comp := range r.AddressComponents {
		if contains(comp.Types, poiType) {
			name = comp.LongName
			break
		}
	}
	return &models.PlaceDetails{
		FormattedAddress: r.FormattedAddress,
		Name:             name,
		Geometry:         r.Geometry,
		PlaceID:          r.PlaceID,
		Types:            r.Types,
	}
}

func (c *Client) fromCache(ctx context.Context, key string) (*models.PlaceDetails, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		log.Debug().Err(err).Msg("Geocode cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var details models.PlaceDetails
	if err := json.Unmarshal(raw, &details); err != nil {
		return nil, false
	}
	return &details, true
}

func (c *Client) toCache(ctx context.Context, key string, details *models.PlaceDetails) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, raw, c.cacheTTL); err != nil {
		log.Debug().Err(err).Msg("Geocode cache write failed")
	}
}

// CacheKey rounds coordinates to roughly 10 m so nearby pins share an entry
func CacheKey(lat, lng float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lng)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
