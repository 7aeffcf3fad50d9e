// Package metrics exposes Prometheus counters for the memo service.
//
// Every method is safe on a nil *Collector so packages can take one
// optionally.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	memoOps     *prometheus.CounterVec
	tagsCreated prometheus.Counter
	jobs        *prometheus.CounterVec
}

// New creates a collector backed by its own registry, so repeated
// construction in tests never hits duplicate registration.
func New(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		memoOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memo_operations_total",
			Help:      "Committed memo writes by operation",
		}, []string{"op"}),
		tagsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tags_created_total",
			Help:      "Tags added to the vocabulary",
		}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_processed_total",
			Help:      "Background jobs processed by type and outcome",
		}, []string{"type", "status"}),
	}

	c.registry.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.memoOps,
		c.tagsCreated,
		c.jobs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) MemoOp(op string) {
	if c == nil {
		return
	}
	c.memoOps.WithLabelValues(op).Inc()
}

func (c *Collector) TagsCreated(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.tagsCreated.Add(float64(n))
}

func (c *Collector) JobProcessed(typ, status string) {
	if c == nil {
		return
	}
	c.jobs.WithLabelValues(typ, status).Inc()
}
