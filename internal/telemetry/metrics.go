package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// EventsTotal counts sensor feed frames by outcome (recorded, malformed, ignored)
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geoprobe",
			Name:      "events_total",
			Help:      "Total number of sensor feed frames by outcome",
		},
		[]string{"outcome"},
	)

	// FeedConnected is 1 while the event feed is subscribed
	FeedConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "geoprobe",
			Name:      "feed_connected",
			Help:      "Whether the sensor event feed is currently subscribed",
		},
	)

	// FeedReconnects counts reconnect attempts after a feed failure
	FeedReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "geoprobe",
			Name:      "feed_reconnects_total",
			Help:      "Total number of event feed reconnect attempts",
		},
	)

	// ProbeDevices tracks the number of live records in the probe store
	ProbeDevices = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "geoprobe",
			Name:      "probe_devices",
			Help:      "Number of live client records in the probe store",
		},
	)

	// GeoLookups counts geolocation lookups by source (cache, remote, error)
	GeoLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geoprobe",
			Name:      "geo_lookups_total",
			Help:      "Total number of geolocation lookups by source",
		},
		[]string{"source"},
	)

	// StreamSubscribers tracks connected summary subscribers per transport
	StreamSubscribers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "geoprobe",
			Name:      "stream_subscribers",
			Help:      "Number of connected summary stream subscribers",
		},
		[]string{"transport"},
	)

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "geoprobe",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry
// This function is idempotent and can be called multiple times safely
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(EventsTotal)
		prometheus.DefaultRegisterer.Register(FeedConnected)
		prometheus.DefaultRegisterer.Register(FeedReconnects)
		prometheus.DefaultRegisterer.Register(ProbeDevices)
		prometheus.DefaultRegisterer.Register(GeoLookups)
		prometheus.DefaultRegisterer.Register(StreamSubscribers)
		prometheus.DefaultRegisterer.Register(CircuitBreakerState)
	})
}
