// Package metrics exposes Prometheus collectors for the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memorymap_http_requests_total",
		Help: "HTTP requests by route pattern, method and status code.",
	}, []string{"route", "method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "memorymap_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern and method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	GeocodeLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memorymap_geocode_lookups_total",
		Help: "Reverse-geocoding lookups by outcome.",
	}, []string{"outcome"})

	Uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memorymap_uploads_total",
		Help: "Accepted media uploads by media type.",
	}, []string{"type"})
)

// Handler returns an http.Handler for Prometheus scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
