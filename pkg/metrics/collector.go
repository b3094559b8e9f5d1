package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"serp-go/pkg/serp"
)

// Collector holds the Prometheus metrics of the service. Each Collector has
// its own registry, so several can coexist in tests.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	KeywordsTracked *prometheus.CounterVec
	TrackDuration   prometheus.Histogram

	Volatility      prometheus.Histogram
	DomainChurn     *prometheus.CounterVec
	PositionChanges prometheus.Counter
}

func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		KeywordsTracked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "keywords_tracked_total",
				Help:      "Keywords tracked, by outcome",
			},
			[]string{"status"},
		),
		TrackDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "track_duration_seconds",
				Help:      "Time to fetch, store and compare one keyword",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
		),

		Volatility: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "serp_volatility_score",
				Help:      "Volatility score of consecutive snapshot comparisons",
				Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
		DomainChurn: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "serp_domain_churn_total",
				Help:      "Domains entering or leaving tracked SERPs",
			},
			[]string{"kind"},
		),
		PositionChanges: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "serp_position_changes_total",
				Help:      "Domains whose rank changed between snapshots",
			},
		),
	}

	c.registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.KeywordsTracked,
		c.TrackDuration,
		c.Volatility,
		c.DomainChurn,
		c.PositionChanges,
	)
	return c
}

// ObserveRequest records one handled HTTP request. route should be the route
// pattern, not the raw path, to keep label cardinality bounded.
func (c *Collector) ObserveRequest(method, route string, status int, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveTrack records the outcome of tracking one keyword
func (c *Collector) ObserveTrack(duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	c.KeywordsTracked.WithLabelValues(status).Inc()
	c.TrackDuration.Observe(duration.Seconds())
}

// ObserveComparison records the churn of one snapshot comparison
func (c *Collector) ObserveComparison(result serp.ComparisonResult) {
	c.Volatility.Observe(result.VolatilityScore)
	c.DomainChurn.WithLabelValues("new").Add(float64(len(result.NewDomains)))
	c.DomainChurn.WithLabelValues("lost").Add(float64(len(result.LostDomains)))
	c.PositionChanges.Add(float64(len(result.MovedOnly())))
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
