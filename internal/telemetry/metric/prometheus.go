package metric

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "statichost"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	ResponseBytes     prometheus.Counter
	RateLimited       prometheus.Counter
	AuthDenied        *prometheus.CounterVec
	Faults            prometheus.Counter
	CertDaysRemaining prometheus.Gauge
	CertReloads       *prometheus.CounterVec
}

// NewRegistry creates a registry with Go runtime and process collectors
// plus the statichost metrics.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		ResponseBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_response_bytes_total",
			Help:      "Response body bytes written before compression.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_rejected_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		AuthDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_denied_total",
			Help:      "Requests denied by authorization, by reason.",
		}, []string{"reason"}),
		Faults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faults_total",
			Help:      "Unhandled faults converted to 500 responses.",
		}),
		CertDaysRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "certificate_days_remaining",
			Help:      "Whole days until the serving certificate expires.",
		}),
		CertReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificate_reloads_total",
			Help:      "Certificate reload attempts by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		r.RequestsTotal,
		r.RequestDuration,
		r.ResponseBytes,
		r.RateLimited,
		r.AuthDenied,
		r.Faults,
		r.CertDaysRemaining,
		r.CertReloads,
	)
	return r
}

// MustRegister registers additional collectors.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	if r == nil {
		return
	}
	r.registry.MustRegister(cs...)
}

// Handler returns the /metrics handler for this registry.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveRequest records a completed request.
func (r *Registry) ObserveRequest(method string, status int, elapsed time.Duration, bytes int64) {
	if r == nil {
		return
	}
	r.RequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	r.RequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
	if bytes > 0 {
		r.ResponseBytes.Add(float64(bytes))
	}
}

// IncRateLimited counts a rate limit rejection.
func (r *Registry) IncRateLimited() {
	if r == nil {
		return
	}
	r.RateLimited.Inc()
}

// IncAuthDenied counts an authorization denial ("unauthenticated" or
// "forbidden").
func (r *Registry) IncAuthDenied(reason string) {
	if r == nil {
		return
	}
	r.AuthDenied.WithLabelValues(reason).Inc()
}

// IncFault counts an unhandled fault.
func (r *Registry) IncFault() {
	if r == nil {
		return
	}
	r.Faults.Inc()
}

// SetCertDaysRemaining records the certificate expiry horizon.
func (r *Registry) SetCertDaysRemaining(days int) {
	if r == nil {
		return
	}
	r.CertDaysRemaining.Set(float64(days))
}

// IncCertReload counts a certificate reload attempt.
func (r *Registry) IncCertReload(ok bool) {
	if r == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	r.CertReloads.WithLabelValues(result).Inc()
}
