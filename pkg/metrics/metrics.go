package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tinyhttpd"

// Collector records connection and request metrics. A nil *Collector is
// valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	connections       prometheus.Counter
	activeConnections prometheus.Gauge
	connectionErrors  *prometheus.CounterVec
	requests          *prometheus.CounterVec
	compressed        prometheus.Counter
	bytesWritten      prometheus.Counter
	duration          prometheus.Histogram
}

// New creates a collector with its own registry
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conn",
			Name:      "accepted_total",
			Help:      "Total number of accepted connections",
		}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "conn",
			Name:      "active",
			Help:      "Number of connections currently being served",
		}),
		connectionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conn",
			Name:      "errors_total",
			Help:      "Connections abandoned without a response, by kind",
		}, []string{"kind"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Responses written, by route and status code",
		}, []string{"route", "code"}),
		compressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "compressed_responses_total",
			Help:      "Responses written with Content-Encoding: gzip",
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_bytes_total",
			Help:      "Bytes written to connections",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Time from first read to last write",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	c.registry.MustRegister(
		c.connections,
		c.activeConnections,
		c.connectionErrors,
		c.requests,
		c.compressed,
		c.bytesWritten,
		c.duration,
	)
	return c
}

// Registry returns the registry holding the collectors
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ConnectionOpened records an accepted connection
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connections.Inc()
	c.activeConnections.Inc()
}

// ConnectionClosed records the end of a connection
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.activeConnections.Dec()
}

// ConnectionError records an abandoned connection
func (c *Collector) ConnectionError(kind string) {
	if c == nil {
		return
	}
	c.connectionErrors.WithLabelValues(kind).Inc()
}

// ResponseWritten records a completed request
func (c *Collector) ResponseWritten(route string, code int, bytes int64, compressed bool, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	c.bytesWritten.Add(float64(bytes))
	if compressed {
		c.compressed.Inc()
	}
	c.duration.Observe(elapsed.Seconds())
}

// Handler returns an http.Handler exposing the registry
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Serve exposes /metrics on address until ctx is cancelled
func (c *Collector) Serve(ctx context.Context, address string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	srv := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
