// Package metrics exposes the wall's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
)

// Collector owns a private registry so tests can build as many as they like.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	Polls        *prometheus.CounterVec
	Answers      prometheus.Gauge
	Clusters     prometheus.Gauge
	Visible      *prometheus.GaugeVec
	Breaker      prometheus.Gauge
	Submissions  *prometheus.CounterVec
}

func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Backend poll ticks by loop and outcome",
		}, []string{"loop", "outcome"}),
		Answers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "answers",
			Help:      "Answers in the current wall snapshot",
		}),
		Clusters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clusters",
			Help:      "Clusters in the current wall snapshot",
		}),
		Visible: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "visible_bubbles",
			Help:      "Bubbles returned by the last wall view per season",
		}, []string{"season"}),
		Breaker: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_breaker_state",
			Help:      "Backend circuit breaker state (0 closed, 1 half-open, 2 open)",
		}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Kiosk scan and submit requests by kind and outcome",
		}, []string{"kind", "outcome"}),
	}
	c.registry.MustRegister(
		c.HTTPRequests, c.HTTPDuration, c.Polls, c.Answers, c.Clusters, c.Visible, c.Breaker, c.Submissions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) PollResult(loop string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.Polls.WithLabelValues(loop, outcome).Inc()
}

func (c *Collector) WallSize(answers, clusters int) {
	c.Answers.Set(float64(answers))
	c.Clusters.Set(float64(clusters))
}

func (c *Collector) VisibleBubbles(season, n int) {
	c.Visible.WithLabelValues(strconv.Itoa(season)).Set(float64(n))
}

func (c *Collector) BreakerState(_, to gobreaker.State) {
	c.Breaker.Set(float64(to))
}

func (c *Collector) Submission(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.Submissions.WithLabelValues(kind, outcome).Inc()
}

func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
