package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "keyauth"

// Recorder owns the service collectors and the registry they live in.
type Recorder struct {
	registry *prometheus.Registry

	keysCreated    *prometheus.CounterVec
	keysRevoked    prometheus.Counter
	keysDeleted    prometheus.Counter
	verifications  *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	httpInflight   prometheus.Gauge
	rateLimitDrops prometheus.Counter
}

// New builds a Recorder on a fresh registry, with Go and process collectors.
func New() (*Recorder, error) {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		keysCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keys_created_total",
			Help:      "Activation keys created, by plan.",
		}, []string{"plan"}),
		keysRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keys_revoked_total",
			Help:      "Activation keys revoked.",
		}),
		keysDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keys_deleted_total",
			Help:      "Activation keys deleted.",
		}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Verify calls, by outcome.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests processed.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_inflight_requests",
			Help:      "Requests currently being served.",
		}),
		rateLimitDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-IP limiter.",
		}),
	}

	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.keysCreated, r.keysRevoked, r.keysDeleted, r.verifications,
		r.httpRequests, r.httpDuration, r.httpInflight, r.rateLimitDrops,
	} {
		if err := register(r.registry, c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// RegisterStoreSize exposes the number of stored keys, read at scrape time.
func (r *Recorder) RegisterStoreSize(count func() (int64, error)) error {
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "keys_stored",
		Help:      "Activation keys currently in the store.",
	}, func() float64 {
		n, err := count()
		if err != nil {
			return -1
		}
		return float64(n)
	})
	return register(r.registry, gauge)
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) KeyCreated(plan string) {
	r.keysCreated.WithLabelValues(plan).Inc()
}

func (r *Recorder) KeyRevoked() {
	r.keysRevoked.Inc()
}

func (r *Recorder) KeyDeleted() {
	r.keysDeleted.Inc()
}

func (r *Recorder) Verified(outcome string) {
	r.verifications.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RateLimited() {
	r.rateLimitDrops.Inc()
}

// StartRequest marks a request in flight and returns its completion callback.
func (r *Recorder) StartRequest() func(method, path string, status int) {
	r.httpInflight.Inc()
	start := time.Now()
	return func(method, path string, status int) {
		r.httpInflight.Dec()
		if path == "" {
			path = "unmatched"
		}
		r.httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		r.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	}
}

func register(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return nil
		}
		return err
	}
	return nil
}
