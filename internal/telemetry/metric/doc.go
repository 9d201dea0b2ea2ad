// Package metric provides Prometheus metrics for statichost.
//
//   - prometheus.go: Registry with request, admission and certificate metrics
//   - collector.go: collector reporting rate limiter key-space statistics
//
// Metrics are always collected; metrics.enabled only controls whether the
// /metrics endpoint is routed. All methods on a nil *Registry are no-ops so
// components can run without metrics in tests.
package metric
