// Package metrics provides Prometheus metrics for the futsal matchmaking service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Breaker states exported by the notify_breaker_state gauge.
const (
	BreakerClosed   = 0
	BreakerHalfOpen = 1
	BreakerOpen     = 2
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	deltaBuckets     []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Matchmaking
	recommendationsServed prometheus.Counter
	matchRequests         *prometheus.CounterVec
	cooldownBlocks        prometheus.Counter
	rejectionsRecorded    prometheus.Counter
	schedules             *prometheus.CounterVec

	// Ratings
	ratingsApplied prometheus.Counter
	ratingDelta    prometheus.Histogram
	totalTeams     prometheus.Gauge

	// Operations
	operationDuration *prometheus.HistogramVec
	operationErrors   *prometheus.CounterVec

	// Notifications
	notifications     *prometheus.CounterVec
	notifyBreaker     prometheus.Gauge
	queueSize         prometheus.Gauge
	queueCapacity     prometheus.Gauge
	workerCount       prometheus.Gauge
	deliveryLatency   prometheus.Histogram
	queueEnqueueTotal prometheus.Counter
	queueDequeueTotal prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec

	// System
	memoryUsage    prometheus.Gauge
	goroutineCount prometheus.Gauge
	gcPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "futsal",
		subsystem:        "matchmaking",
		histogramBuckets: prometheus.DefBuckets,
		deltaBuckets:     []float64{-48, -32, -24, -16, -8, 0, 8, 16, 24, 32, 48},
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gauge(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	// Register on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	m.recommendationsServed = auto.NewCounter(m.counter("recommendations_served_total",
		"Total number of opponent recommendation lists served"))
	m.matchRequests = auto.NewCounterVec(m.counter("match_requests_total",
		"Match request submissions by outcome"), []string{"outcome"})
	m.cooldownBlocks = auto.NewCounter(m.counter("cooldown_blocks_total",
		"Requests refused because the target rejected the requester recently"))
	m.rejectionsRecorded = auto.NewCounter(m.counter("rejections_recorded_total",
		"Total number of rejection records created or refreshed"))
	m.schedules = auto.NewCounterVec(m.counter("schedules_total",
		"Scheduling attempts by outcome"), []string{"outcome"})

	m.ratingsApplied = auto.NewCounter(m.counter("ratings_applied_total",
		"Total number of competitive results applied to ratings"))
	m.ratingDelta = auto.NewHistogram(m.histogram("rating_delta",
		"Distribution of per-team rating changes", m.deltaBuckets))
	m.totalTeams = auto.NewGauge(m.gauge("teams_total",
		"Number of registered teams"))

	m.operationDuration = auto.NewHistogramVec(m.histogram("operation_duration_milliseconds",
		"Engine operation latency in milliseconds", m.histogramBuckets), []string{"op", "outcome"})
	m.operationErrors = auto.NewCounterVec(m.counter("operation_errors_total",
		"Engine operation failures by operation and kind"), []string{"op", "kind"})

	m.notifications = auto.NewCounterVec(m.counter("notifications_total",
		"Notifications by outcome (published, dropped, delivered, failed, duplicate, rejected)"), []string{"outcome"})
	m.notifyBreaker = auto.NewGauge(m.gauge("notify_breaker_state",
		"Notification circuit breaker state (0 closed, 1 half-open, 2 open)"))
	m.queueSize = auto.NewGauge(m.gauge("notify_queue_size",
		"Current number of queued notifications"))
	m.queueCapacity = auto.NewGauge(m.gauge("notify_queue_capacity",
		"Maximum notification queue capacity"))
	m.workerCount = auto.NewGauge(m.gauge("notify_worker_count",
		"Number of running notification workers"))
	m.deliveryLatency = auto.NewHistogram(m.histogram("notify_delivery_latency_milliseconds",
		"Notification delivery latency in milliseconds", m.histogramBuckets))
	m.queueEnqueueTotal = auto.NewCounter(m.counter("notify_queue_enqueue_total",
		"Total number of notifications enqueued"))
	m.queueDequeueTotal = auto.NewCounter(m.counter("notify_queue_dequeue_total",
		"Total number of notifications dequeued"))

	m.httpRequests = auto.NewCounterVec(m.counter("http_requests_total",
		"Total number of HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogram("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.histogramBuckets), []string{"endpoint", "method", "status_code"})
	m.httpErrors = auto.NewCounterVec(m.counter("http_errors_total",
		"HTTP responses with status >= 400 by endpoint and error type"), []string{"endpoint", "method", "error_type"})

	m.memoryUsage = auto.NewGauge(m.gauge("system_memory_bytes",
		"Heap bytes allocated by the process"))
	m.goroutineCount = auto.NewGauge(m.gauge("system_goroutines",
		"Number of running goroutines"))
	m.gcPauseTime = auto.NewHistogram(m.histogram("system_gc_pause_milliseconds",
		"Average GC pause time in milliseconds", m.histogramBuckets))
}

// RecordRecommendationServed increments the recommendations counter.
func RecordRecommendationServed() {
	globalManager.recommendationsServed.Inc()
}

// RecordMatchRequest counts a request submission with its outcome label.
func RecordMatchRequest(outcome string) {
	globalManager.matchRequests.WithLabelValues(outcome).Inc()
}

// RecordCooldownBlock counts a submission refused by the cooldown ledger.
func RecordCooldownBlock() {
	globalManager.cooldownBlocks.Inc()
}

// RecordRejection counts a rejection record upsert.
func RecordRejection() {
	globalManager.rejectionsRecorded.Inc()
}

// RecordSchedule counts a scheduling attempt with its outcome label.
func RecordSchedule(outcome string) {
	globalManager.schedules.WithLabelValues(outcome).Inc()
}

// RecordRatingApplied counts one applied result and observes both deltas.
func RecordRatingApplied(deltaA, deltaB float64) {
	globalManager.ratingsApplied.Inc()
	globalManager.ratingDelta.Observe(deltaA)
	globalManager.ratingDelta.Observe(deltaB)
}

// UpdateTotalTeams sets the registered team count.
func UpdateTotalTeams(count int) {
	globalManager.totalTeams.Set(float64(count))
}

// RecordOperation observes an engine operation latency.
func RecordOperation(op, outcome string, latencyMs float64) {
	globalManager.operationDuration.WithLabelValues(op, outcome).Observe(latencyMs)
}

// RecordOperationError counts a failed engine operation.
func RecordOperationError(op, kind string) {
	globalManager.operationErrors.WithLabelValues(op, kind).Inc()
}

// RecordNotification counts a notification lifecycle event.
func RecordNotification(outcome string) {
	globalManager.notifications.WithLabelValues(outcome).Inc()
}

// UpdateBreakerState sets the notification breaker gauge.
func UpdateBreakerState(state int) {
	globalManager.notifyBreaker.Set(float64(state))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordDeliveryLatency observes a notification delivery in milliseconds.
func RecordDeliveryLatency(latencyMs float64) {
	globalManager.deliveryLatency.Observe(latencyMs)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueTotal.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueTotal.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordHTTPError counts an HTTP error response.
func RecordHTTPError(endpoint, method, errorType string) {
	globalManager.httpErrors.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the allocated heap gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.memoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.goroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime observes an average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.gcPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
