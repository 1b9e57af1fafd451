package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the server.
type Metrics struct {
	requestsTotal prometheus.Counter
	bytesTotal    prometheus.Counter
	fallbackTotal prometheus.Counter
	reloadsTotal  prometheus.Counter
}

// NewMetrics creates and registers all metrics on the given registerer.
// The serve command passes prometheus.DefaultRegisterer; tests pass a
// fresh registry so repeated construction does not collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requestsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "stagehand_requests_total",
			Help: "Total number of HTTP requests served",
		}),
		bytesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "stagehand_response_bytes_total",
			Help: "Total response body bytes served",
		}),
		fallbackTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "stagehand_spa_fallback_total",
			Help: "Total requests answered with the index.html fallback",
		}),
		reloadsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "stagehand_bundle_reloads_total",
			Help: "Total asset cache invalidations triggered by bundle changes",
		}),
	}
}
