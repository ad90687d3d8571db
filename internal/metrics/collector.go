package metrics

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gridfed/hginventory/internal/logging"
	"github.com/gridfed/hginventory/pkg/errors"
)

// Route labels
const (
	RouteLocal  = "local"
	RouteRemote = "remote"
	RouteCache  = "cache"
)

// Collector implements metrics collection for the inventory router.
// A nil or disabled Collector is a no-op.
type Collector struct {
	mu       sync.RWMutex
	config   *Config
	registry *prometheus.Registry
	logger   *zap.Logger

	// Prometheus metrics
	routeCounter          *prometheus.CounterVec
	operationDuration     *prometheus.HistogramVec
	cacheRequestCounter   *prometheus.CounterVec
	connectorConstruction prometheus.Counter
	cachedConnectors      prometheus.Gauge
	anomalyCounter        *prometheus.CounterVec
	errorCounter          *prometheus.CounterVec

	// Internal tracking
	operations map[string]*OperationMetrics
	lastReset  time.Time

	// HTTP server for metrics endpoint
	server *http.Server
}

// Config represents metrics configuration
type Config struct {
	Enabled   bool              `yaml:"enabled"`
	Port      int               `yaml:"port"`
	Path      string            `yaml:"path"`
	Labels    map[string]string `yaml:"labels"`
	Namespace string            `yaml:"namespace"`
	Subsystem string            `yaml:"subsystem"`
}

// OperationMetrics tracks metrics for a specific inventory verb
type OperationMetrics struct {
	Count         int64         `json:"count"`
	Local         int64         `json:"local"`
	Remote        int64         `json:"remote"`
	Cached        int64         `json:"cached"`
	Errors        int64         `json:"errors"`
	TotalDuration time.Duration `json:"total_duration"`
	AvgDuration   time.Duration `json:"avg_duration"`
	LastOperation time.Time     `json:"last_operation"`
}

// NewCollector creates a new metrics collector
func NewCollector(config *Config, logger *zap.Logger) (*Collector, error) {
	if config == nil {
		config = &Config{
			Enabled:   true,
			Port:      9103,
			Path:      "/metrics",
			Namespace: "hginventory",
			Labels:    make(map[string]string),
		}
	}

	if !config.Enabled {
		return &Collector{config: config, logger: logging.OrNop(logger)}, nil
	}

	// Create Prometheus registry
	registry := prometheus.NewRegistry()

	collector := &Collector{
		config:     config,
		registry:   registry,
		logger:     logging.OrNop(logger),
		operations: make(map[string]*OperationMetrics),
		lastReset:  time.Now(),
	}

	// Initialize Prometheus metrics
	if err := collector.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	// Register metrics with registry
	if err := collector.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return collector, nil
}

func (c *Collector) enabled() bool {
	return c != nil && c.config != nil && c.config.Enabled && c.registry != nil
}

// Registry returns the private registry, nil when disabled
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler returns the HTTP handler serving the metrics endpoint
func (c *Collector) Handler() http.Handler {
	mux := http.NewServeMux()
	if c.enabled() {
		mux.Handle(c.config.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
		mux.HandleFunc("/debug/operations", c.debugOperationsHandler)
	}
	mux.HandleFunc("/health", c.healthHandler)
	return mux
}

// Start starts the metrics server in the background
func (c *Collector) Start(_ context.Context) error {
	if !c.enabled() {
		return nil
	}

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           c.Handler(),
		ReadHeaderTimeout: 30 * time.Second, // Prevent Slowloris attacks
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop stops the metrics server
func (c *Collector) Stop(ctx context.Context) error {
	if c == nil || c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}

// RecordRoute records one routed verb: which way it went and how long it took
func (c *Collector) RecordRoute(operation, route string, duration time.Duration) {
	if !c.enabled() {
		return
	}

	c.mu.Lock()
	m, exists := c.operations[operation]
	if !exists {
		m = &OperationMetrics{}
		c.operations[operation] = m
	}
	m.Count++
	switch route {
	case RouteLocal:
		m.Local++
	case RouteRemote:
		m.Remote++
	case RouteCache:
		m.Cached++
	}
	m.TotalDuration += duration
	m.AvgDuration = time.Duration(int64(m.TotalDuration) / m.Count)
	m.LastOperation = time.Now()
	c.mu.Unlock()

	labels := prometheus.Labels{"operation": operation, "route": route}
	c.routeCounter.With(labels).Inc()
	c.operationDuration.With(labels).Observe(duration.Seconds())
}

// RecordCacheRequest records a hit or miss on one of the router caches
func (c *Collector) RecordCacheRequest(cache string, hit bool) {
	if !c.enabled() {
		return
	}

	c.cacheRequestCounter.With(prometheus.Labels{
		"cache": cache,
		"type":  map[bool]string{true: "hit", false: "miss"}[hit],
	}).Inc()
}

// RecordConnectorConstruction counts a newly built remote connector
func (c *Collector) RecordConnectorConstruction() {
	if !c.enabled() {
		return
	}
	c.connectorConstruction.Inc()
}

// SetCachedConnectors updates the cached connector gauge
func (c *Collector) SetCachedConnectors(n int) {
	if !c.enabled() {
		return
	}
	c.cachedConnectors.Set(float64(n))
}

// RecordAnomaly counts a diagnostics anomaly of the given kind
func (c *Collector) RecordAnomaly(kind string) {
	if !c.enabled() {
		return
	}
	c.anomalyCounter.With(prometheus.Labels{"kind": kind}).Inc()
}

// RecordError records a failed verb
func (c *Collector) RecordError(operation string, err error) {
	if !c.enabled() {
		return
	}

	c.mu.Lock()
	if m, exists := c.operations[operation]; exists {
		m.Errors++
	}
	c.mu.Unlock()

	c.errorCounter.With(prometheus.Labels{
		"operation": operation,
		"type":      classifyError(err),
	}).Inc()
}

// GetMetrics returns current metrics
func (c *Collector) GetMetrics() map[string]interface{} {
	metrics := make(map[string]interface{})
	if !c.enabled() {
		return metrics
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	operations := make(map[string]*OperationMetrics, len(c.operations))
	for k, v := range c.operations {
		cp := *v
		operations[k] = &cp
	}

	metrics["operations"] = operations
	metrics["last_reset"] = c.lastReset
	metrics["uptime"] = time.Since(c.lastReset)

	return metrics
}

// ResetMetrics resets internal tracking; Prometheus counters are monotonic and stay
func (c *Collector) ResetMetrics() {
	if !c.enabled() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.operations = make(map[string]*OperationMetrics)
	c.lastReset = time.Now()
}

// Helper methods

func (c *Collector) initMetrics() error {
	c.routeCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "route_decisions_total",
			Help:        "Total number of routed inventory operations by destination",
			ConstLabels: c.config.Labels,
		},
		[]string{"operation", "route"},
	)

	c.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "operation_duration_seconds",
			Help:        "Duration of inventory operations in seconds",
			Buckets:     prometheus.ExponentialBuckets(0.0005, 2, 16), // 0.5ms to ~16s
			ConstLabels: c.config.Labels,
		},
		[]string{"operation", "route"},
	)

	c.cacheRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "cache_requests_total",
			Help:        "Total number of router cache requests",
			ConstLabels: c.config.Labels,
		},
		[]string{"cache", "type"},
	)

	c.connectorConstruction = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "connector_constructions_total",
			Help:        "Total number of remote connectors constructed",
			ConstLabels: c.config.Labels,
		},
	)

	c.cachedConnectors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "cached_connectors",
			Help:        "Number of remote connectors currently cached",
			ConstLabels: c.config.Labels,
		},
	)

	c.anomalyCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "diagnostic_anomalies_total",
			Help:        "Total number of concurrency anomalies detected",
			ConstLabels: c.config.Labels,
		},
		[]string{"kind"},
	)

	c.errorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "errors_total",
			Help:        "Total number of failed inventory operations",
			ConstLabels: c.config.Labels,
		},
		[]string{"operation", "type"},
	)

	return nil
}

func (c *Collector) registerMetrics() error {
	metrics := []prometheus.Collector{
		c.routeCounter,
		c.operationDuration,
		c.cacheRequestCounter,
		c.connectorConstruction,
		c.cachedConnectors,
		c.anomalyCounter,
		c.errorCounter,
	}

	for _, metric := range metrics {
		if err := c.registry.Register(metric); err != nil {
			return err
		}
	}

	return nil
}

// classifyError maps an error to its category label
func classifyError(err error) string {
	if err == nil {
		return "unknown"
	}
	var ie *errors.InventoryError
	if stderrors.As(err, &ie) {
		return string(ie.Category)
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if stderrors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "other"
}

// HTTP handlers

func (c *Collector) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy","service":"hginventory-metrics"}`)) // Ignore write error for health check
}

func (c *Collector) debugOperationsHandler(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	w.Header().Set("Content-Type", "text/plain")

	// Helper to avoid errcheck issues
	writef := func(format string, args ...interface{}) { _, _ = fmt.Fprintf(w, format, args...) }

	writef("Inventory Operations Summary\n")
	writef("============================\n\n")
	writef("Uptime: %v\n", time.Since(c.lastReset))
	writef("Last Reset: %v\n\n", c.lastReset)

	if len(c.operations) == 0 {
		writef("No operations recorded.\n")
		return
	}

	writef("%-28s %8s %8s %8s %8s %8s %12s\n",
		"Operation", "Count", "Local", "Remote", "Cached", "Errors", "Avg Duration")
	writef("%-28s %8s %8s %8s %8s %8s %12s\n",
		"---------", "-----", "-----", "------", "------", "------", "------------")

	names := make([]string, 0, len(c.operations))
	for name := range c.operations {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		op := c.operations[name]
		writef("%-28s %8d %8d %8d %8d %8d %12v\n",
			name, op.Count, op.Local, op.Remote, op.Cached, op.Errors, op.AvgDuration)
	}
}
