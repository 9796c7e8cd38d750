// Package metrics provides Prometheus instrumentation for the store resolver.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultNamespace = "basketscout"

// Scrape outcomes used as label values.
const (
	ScrapeOK      = "ok"
	ScrapeEmpty   = "empty"
	ScrapeTimeout = "timeout"
	ScrapeFailed  = "failed"
	ScrapeInvalid = "invalid_output"
)

var defaultBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Option configures a Recorder.
type Option func(*Recorder)

// WithNamespace overrides the metric namespace.
func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		if namespace != "" {
			r.namespace = namespace
		}
	}
}

// WithRegistry registers the metrics with registry instead of the default one.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(r *Recorder) {
		if registry != nil {
			r.registry = registry
		}
	}
}

// WithHistogramBuckets sets the latency buckets in seconds.
func WithHistogramBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = buckets
		}
	}
}

// Recorder holds the resolver metrics. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	namespace string
	registry  prometheus.Registerer
	buckets   []float64

	cacheLookups     *prometheus.CounterVec
	cacheWriteErrors prometheus.Counter
	scrapes          *prometheus.CounterVec
	scrapeDuration   prometheus.Histogram
	droppedOffers    prometheus.Counter
	resolveDuration  *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// NewRecorder creates and registers all metrics.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		namespace: defaultNamespace,
		registry:  prometheus.DefaultRegisterer,
		buckets:   defaultBuckets,
	}
	for _, opt := range opts {
		opt(r)
	}

	auto := promauto.With(r.registry)

	r.cacheLookups = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Price cache lookups per item, by result (hit or miss)",
	}, []string{"result"})

	r.cacheWriteErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "cache",
		Name:      "write_errors_total",
		Help:      "Price cache writes that failed after a successful scrape",
	})

	r.scrapes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "scraper",
		Name:      "runs_total",
		Help:      "Scraper process invocations by outcome",
	}, []string{"outcome"})

	r.scrapeDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Subsystem: "scraper",
		Name:      "duration_seconds",
		Help:      "Scraper process wall time",
		Buckets:   r.buckets,
	})

	r.droppedOffers = auto.NewCounter(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "geocoder",
		Name:      "dropped_offers_total",
		Help:      "Scraped offers dropped because their address could not be geocoded",
	})

	r.resolveDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Subsystem: "resolver",
		Name:      "duration_seconds",
		Help:      "End-to-end store resolve latency by status",
		Buckets:   r.buckets,
	}, []string{"status"})

	r.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "code"})

	r.httpDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route",
		Buckets:   r.buckets,
	}, []string{"route"})

	return r
}

// CacheHits records items served from the price cache.
func (r *Recorder) CacheHits(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.cacheLookups.WithLabelValues("hit").Add(float64(n))
}

// CacheMisses records items absent from the price cache.
func (r *Recorder) CacheMisses(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.cacheLookups.WithLabelValues("miss").Add(float64(n))
}

// CacheWriteError records a failed cache write.
func (r *Recorder) CacheWriteError() {
	if r == nil {
		return
	}
	r.cacheWriteErrors.Inc()
}

// Scrape records one scraper run.
func (r *Recorder) Scrape(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.scrapes.WithLabelValues(outcome).Inc()
	r.scrapeDuration.Observe(elapsed.Seconds())
}

// DroppedOffer records an offer dropped for lack of coordinates.
func (r *Recorder) DroppedOffer() {
	if r == nil {
		return
	}
	r.droppedOffers.Inc()
}

// Resolve records one resolve call.
func (r *Recorder) Resolve(status string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.resolveDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// HTTPRequest records one served HTTP request.
func (r *Recorder) HTTPRequest(route, method, code string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, method, code).Inc()
	r.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
