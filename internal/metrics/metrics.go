package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)
	// UpdatesSubmitted counts accepted location reports by route
	UpdatesSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bus_updates_submitted_total", Help: "Accepted location updates by route."},
		[]string{"route"},
	)
	// EventsPublished counts broker fan-out events by type
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bus_events_published_total", Help: "Feed events published to watchers."},
		[]string{"type"},
	)
	// StoreFallbacks counts calls rerouted to the memory backend
	StoreFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "store_fallback_total", Help: "Store calls served by the in-memory fallback."},
		[]string{"op"},
	)
	// WatcherConnections tracks live push-channel connections
	WatcherConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "watcher_connections", Help: "Open websocket watcher connections."},
	)
)

// RegisterDefault registers collectors to the dedicated registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(UpdatesSubmitted)
		Registry.MustRegister(EventsPublished)
		Registry.MustRegister(StoreFallbacks)
		Registry.MustRegister(WatcherConnections)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
