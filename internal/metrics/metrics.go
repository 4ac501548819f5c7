package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ResistanceIsUseless/proxyjudge/internal/candidate"
	perrors "github.com/ResistanceIsUseless/proxyjudge/internal/errors"
	"github.com/ResistanceIsUseless/proxyjudge/internal/prober"
)

// Collector manages all proxyjudge metrics
type Collector struct {
	// Counters
	candidatesScanned prometheus.Counter
	proxiesDead       prometheus.Counter
	probesTerminated  prometheus.Counter
	probesTimedOut    prometheus.Counter

	// Histograms
	probeDuration prometheus.Histogram
	proxyLatency  prometheus.Histogram

	// Gauges
	workersActive  prometheus.Gauge
	queueRemaining prometheus.Gauge
	scanPaused     prometheus.Gauge

	// Labels
	proxiesAlive   *prometheus.CounterVec
	proxiesByLevel *prometheus.CounterVec
	attempts       *prometheus.CounterVec

	registry *prometheus.Registry
	server   *http.Server
	listener net.Listener
	mutex    sync.RWMutex
}

// ServerConfig describes the HTTP endpoints exposed by StartServer
type ServerConfig struct {
	Addr string
	Path string

	// Feed is mounted at FeedPath when both are set
	FeedPath string
	Feed     http.Handler
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
	}

	c.initMetrics()
	c.registerMetrics()

	return c
}

// initMetrics initializes all Prometheus metrics
func (c *Collector) initMetrics() {
	c.candidatesScanned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proxyjudge_candidates_scanned_total",
		Help: "Total number of candidates that completed a probe cycle",
	})

	c.proxiesDead = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proxyjudge_proxies_dead_total",
		Help: "Total number of candidates that failed every protocol",
	})

	c.probesTerminated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proxyjudge_probes_terminated_total",
		Help: "Probe cycles cut short by scan termination",
	})

	c.probesTimedOut = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proxyjudge_probes_timeout_exceeded_total",
		Help: "Probe cycles stopped because an attempt exceeded the timeout",
	})

	c.probeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "proxyjudge_probe_duration_seconds",
		Help:    "Wall time of a full probe cycle in seconds",
		Buckets: prometheus.DefBuckets,
	})

	c.proxyLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "proxyjudge_proxy_latency_seconds",
		Help:    "Judge round trip through working proxies in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
	})

	c.workersActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "proxyjudge_workers_active",
		Help: "Number of active worker goroutines",
	})

	c.queueRemaining = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "proxyjudge_queue_remaining",
		Help: "Number of candidates waiting to be scanned",
	})

	c.scanPaused = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "proxyjudge_scan_paused",
		Help: "1 while the scan is paused",
	})

	c.proxiesAlive = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxyjudge_proxies_alive_total",
			Help: "Total number of working proxies found per protocol",
		},
		[]string{"protocol"},
	)

	c.proxiesByLevel = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxyjudge_proxies_anonymity_total",
			Help: "Total number of working proxies per anonymity level",
		},
		[]string{"anonymity"},
	)

	c.attempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxyjudge_attempts_total",
			Help: "Protocol attempts by protocol and result",
		},
		[]string{"protocol", "result"},
	)
}

// registerMetrics registers all metrics with the Prometheus registry
func (c *Collector) registerMetrics() {
	c.registry.MustRegister(
		c.candidatesScanned,
		c.proxiesDead,
		c.probesTerminated,
		c.probesTimedOut,
		c.probeDuration,
		c.proxyLatency,
		c.workersActive,
		c.queueRemaining,
		c.scanPaused,
		c.proxiesAlive,
		c.proxiesByLevel,
		c.attempts,
	)
}

// StartServer starts the metrics HTTP server. The listen address is bound
// before returning so configuration errors surface to the caller.
func (c *Collector) StartServer(config ServerConfig) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.server != nil {
		return fmt.Errorf("metrics server already running")
	}

	path := config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, c.GetMetricsHandler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if config.Feed != nil && config.FeedPath != "" {
		mux.Handle(config.FeedPath, config.Feed)
	}

	listener, err := net.Listen("tcp", config.Addr)
	if err != nil {
		return perrors.NewNetworkError(perrors.ErrorConnectionFailed, "metrics server listen failed", config.Addr, err)
	}

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	c.server = server
	c.listener = listener

	go server.Serve(listener)

	return nil
}

// Addr returns the bound address of the running server, or ""
func (c *Collector) Addr() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if c.listener == nil {
		return ""
	}
	return c.listener.Addr().String()
}

// StopServer stops the metrics HTTP server
func (c *Collector) StopServer() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := c.server.Shutdown(ctx)
	c.server = nil
	c.listener = nil
	return err
}

// Metrics recording methods

// RecordProbe records a completed probe cycle
func (c *Collector) RecordProbe(cand *candidate.Candidate, report prober.Report, duration time.Duration) {
	c.candidatesScanned.Inc()
	c.probeDuration.Observe(duration.Seconds())

	for _, attempt := range report.Attempts {
		c.attempts.WithLabelValues(string(attempt.Protocol), string(attempt.Kind)).Inc()
	}
	if report.Terminated {
		c.probesTerminated.Inc()
	}
	if report.TimeoutExceeded {
		c.probesTimedOut.Inc()
	}

	if !cand.Alive {
		c.proxiesDead.Inc()
		return
	}

	c.proxiesAlive.WithLabelValues(string(cand.Protocol)).Inc()
	c.proxiesByLevel.WithLabelValues(string(cand.Anonymity)).Inc()
	if cand.Latency >= 0 {
		c.proxyLatency.Observe((time.Duration(cand.Latency) * time.Millisecond).Seconds())
	}
}

// Gauge update methods

// SetWorkersActive updates the active workers gauge
func (c *Collector) SetWorkersActive(count int) {
	c.workersActive.Set(float64(count))
}

// SetQueueRemaining updates the queue gauge
func (c *Collector) SetQueueRemaining(size int) {
	c.queueRemaining.Set(float64(size))
}

// SetPaused updates the pause gauge
func (c *Collector) SetPaused(paused bool) {
	if paused {
		c.scanPaused.Set(1)
		return
	}
	c.scanPaused.Set(0)
}

// GetRegistry returns the Prometheus registry for external use
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// GetMetricsHandler returns an HTTP handler for the metrics endpoint
func (c *Collector) GetMetricsHandler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
