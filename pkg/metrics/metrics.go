package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all freight service metrics
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Kafka metrics
	KafkaEventsPublished *prometheus.CounterVec
	KafkaPublishDuration *prometheus.HistogramVec

	// MongoDB metrics
	MongoDBOperations        *prometheus.CounterVec
	MongoDBOperationDuration *prometheus.HistogramVec
	MongoDBConnectionsOpen   prometheus.Gauge

	// Packing metrics
	PackingRuns        *prometheus.CounterVec
	PackingRunDuration *prometheus.HistogramVec
	BoxesPacked        *prometheus.CounterVec
	UnpackableLines    *prometheus.CounterVec

	// Carrier rating metrics
	CarrierRateRequests *prometheus.CounterVec
	CarrierRateDuration *prometheus.HistogramVec
	QuoteCacheLookups   *prometheus.CounterVec
	QuotesSelected      *prometheus.CounterVec

	// Session metrics
	SessionsCreated   *prometheus.CounterVec
	SessionsCompleted *prometheus.CounterVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
	Subsystem   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "wms",
		Subsystem:   serviceName,
	}
}

// New creates a new Metrics instance
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()

	// Register standard Go metrics
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}

	// HTTP metrics
	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)

	m.HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "http_requests_in_flight",
			Help:        "Number of HTTP requests currently being processed",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	// Kafka metrics
	m.KafkaEventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "kafka_events_published_total",
			Help:      "Total number of Kafka events published",
		},
		[]string{"service", "topic", "event_type", "status"},
	)

	m.KafkaPublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "kafka_publish_duration_seconds",
			Help:      "Kafka publish duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"service", "topic"},
	)

	// MongoDB metrics
	m.MongoDBOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "mongodb_operations_total",
			Help:      "Total number of MongoDB operations",
		},
		[]string{"service", "collection", "operation", "status"},
	)

	m.MongoDBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "mongodb_operation_duration_seconds",
			Help:      "MongoDB operation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"service", "collection", "operation"},
	)

	m.MongoDBConnectionsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "mongodb_connections_open",
			Help:        "Number of open MongoDB connections",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	// Packing metrics
	m.PackingRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "packing_runs_total",
			Help:      "Total number of box packing runs",
		},
		[]string{"service", "status"},
	)

	m.PackingRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "packing_run_duration_seconds",
			Help:      "Box packing run duration in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"service"},
	)

	m.BoxesPacked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "boxes_packed_total",
			Help:      "Total number of parcels produced by packing runs",
		},
		[]string{"service", "kind"},
	)

	m.UnpackableLines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "unpackable_lines_total",
			Help:      "Total number of item lines reported as unpackable",
		},
		[]string{"service"},
	)

	// Carrier rating metrics
	m.CarrierRateRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "carrier_rate_requests_total",
			Help:      "Total number of carrier rate requests",
		},
		[]string{"service", "carrier", "status"},
	)

	m.CarrierRateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "carrier_rate_duration_seconds",
			Help:      "Carrier rate request duration in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "carrier"},
	)

	m.QuoteCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "quote_cache_lookups_total",
			Help:      "Total number of quote cache lookups",
		},
		[]string{"service", "result"},
	)

	m.QuotesSelected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "quotes_selected_total",
			Help:      "Total number of freight quote selections",
		},
		[]string{"service", "carrier"},
	)

	// Session metrics
	m.SessionsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "packing_sessions_created_total",
			Help:      "Total number of packing sessions created",
		},
		[]string{"service"},
	)

	m.SessionsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "packing_sessions_completed_total",
			Help:      "Total number of packing sessions completed",
		},
		[]string{"service", "discrepancies"},
	)

	// Circuit breaker metrics
	m.CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"service", "name"},
	)

	m.CircuitBreakerTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "circuit_breaker_trips_total",
			Help:      "Total number of circuit breaker trips",
		},
		[]string{"service", "name"},
	)

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.KafkaEventsPublished,
		m.KafkaPublishDuration,
		m.MongoDBOperations,
		m.MongoDBOperationDuration,
		m.MongoDBConnectionsOpen,
		m.PackingRuns,
		m.PackingRunDuration,
		m.BoxesPacked,
		m.UnpackableLines,
		m.CarrierRateRequests,
		m.CarrierRateDuration,
		m.QuoteCacheLookups,
		m.QuotesSelected,
		m.SessionsCreated,
		m.SessionsCompleted,
		m.CircuitBreakerState,
		m.CircuitBreakerTrips,
	)

	return m
}

// Handler returns an HTTP handler for metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(m.serviceName, method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// RecordKafkaPublish records a Kafka publish operation
func (m *Metrics) RecordKafkaPublish(topic, eventType string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.KafkaEventsPublished.WithLabelValues(m.serviceName, topic, eventType, status).Inc()
	m.KafkaPublishDuration.WithLabelValues(m.serviceName, topic).Observe(duration.Seconds())
}

// RecordMongoDBOperation records a MongoDB operation
func (m *Metrics) RecordMongoDBOperation(collection, operation string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.MongoDBOperations.WithLabelValues(m.serviceName, collection, operation, status).Inc()
	m.MongoDBOperationDuration.WithLabelValues(m.serviceName, collection, operation).Observe(duration.Seconds())
}

// SetMongoDBConnections sets the number of open MongoDB connections
func (m *Metrics) SetMongoDBConnections(count int) {
	m.MongoDBConnectionsOpen.Set(float64(count))
}

// RecordPackingRun records one box packing run
func (m *Metrics) RecordPackingRun(unpackableLines int, boxCount, satchelCount int, duration time.Duration) {
	status := "clean"
	if unpackableLines > 0 {
		status = "unpackable"
	}
	m.PackingRuns.WithLabelValues(m.serviceName, status).Inc()
	m.PackingRunDuration.WithLabelValues(m.serviceName).Observe(duration.Seconds())
	m.BoxesPacked.WithLabelValues(m.serviceName, "box").Add(float64(boxCount))
	m.BoxesPacked.WithLabelValues(m.serviceName, "satchel").Add(float64(satchelCount))
	if unpackableLines > 0 {
		m.UnpackableLines.WithLabelValues(m.serviceName).Add(float64(unpackableLines))
	}
}

// RecordCarrierRateRequest records one carrier rate request
func (m *Metrics) RecordCarrierRateRequest(carrier string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.CarrierRateRequests.WithLabelValues(m.serviceName, carrier, status).Inc()
	m.CarrierRateDuration.WithLabelValues(m.serviceName, carrier).Observe(duration.Seconds())
}

// RecordQuoteCacheLookup records a quote cache hit or miss
func (m *Metrics) RecordQuoteCacheLookup(hit bool) {
	result := "hit"
	if !hit {
		result = "miss"
	}
	m.QuoteCacheLookups.WithLabelValues(m.serviceName, result).Inc()
}

// RecordQuoteSelected records a freight quote selection
func (m *Metrics) RecordQuoteSelected(carrier string) {
	m.QuotesSelected.WithLabelValues(m.serviceName, carrier).Inc()
}

// RecordSessionCreated records a new packing session
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.WithLabelValues(m.serviceName).Inc()
}

// RecordSessionCompleted records a completed packing session
func (m *Metrics) RecordSessionCompleted(withDiscrepancies bool) {
	m.SessionsCompleted.WithLabelValues(m.serviceName, strconv.FormatBool(withDiscrepancies)).Inc()
}

// SetCircuitBreakerState sets the circuit breaker state gauge
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(m.serviceName, name).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(name string) {
	m.CircuitBreakerTrips.WithLabelValues(m.serviceName, name).Inc()
}

// IncrementHTTPRequestsInFlight increments the in-flight gauge
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements the in-flight gauge
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}
