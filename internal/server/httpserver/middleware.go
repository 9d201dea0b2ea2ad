package httpserver

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/statichost/internal/server/auth"
	"github.com/yndnr/statichost/internal/server/ratelimit"
	"github.com/yndnr/statichost/internal/telemetry/logger"
	"github.com/yndnr/statichost/internal/telemetry/metric"
)

// Middleware wraps an http.Handler with additional functionality.
type Middleware func(http.Handler) http.Handler

// Chain chains multiple middlewares together. The first middleware is the
// outermost.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// ErrorResponder writes 500 and 404 responses.
type ErrorResponder interface {
	Fault(w http.ResponseWriter, r *http.Request, err error, traceID string)
	NotFound(w http.ResponseWriter, r *http.Request)
}

// Limiter admits or rejects a client key.
type Limiter interface {
	Allow(key string) ratelimit.Decision
}

// HeaderRequestID carries the request id on responses.
const HeaderRequestID = "X-Request-ID"

// Recover is the exception boundary. It assigns the request id, converts
// panics and errors reported through Fail into 500 responses, and aborts
// the connection when the response had already started.
func Recover(errs ErrorResponder, log logger.Logger, metrics *metric.Registry) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := ulid.Make().String()
			w.Header().Set(HeaderRequestID, requestID)

			ctx := logger.WithRequestID(r.Context(), requestID)
			ctx, slot := withFaultSlot(ctx)
			r = r.WithContext(ctx)
			rw := newResponseWriter(w)

			fault := func(err error) {
				metrics.IncFault()
				if rw.wroteHeader {
					log.Error("fault after response started",
						"request_id", requestID,
						"path", r.URL.Path,
						"error", err,
					)
					panic(http.ErrAbortHandler)
				}
				errs.Fault(rw, r, err, requestID)
			}

			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				log.Debug("panic stack", "request_id", requestID, "stack", string(debug.Stack()))
				err, ok := v.(error)
				if !ok {
					err = fmt.Errorf("%v", v)
				}
				fault(fmt.Errorf("panic: %w", err))
			}()

			next.ServeHTTP(rw, r)

			if slot.err != nil {
				fault(slot.err)
			}
		})
	}
}

// Forwarded resolves the client address, scheme and host. Forwarding
// headers are honored only when the direct peer is a trusted proxy;
// X-Forwarded-For is scanned right to left, skipping trusted hops.
func Forwarded(trusted []netip.Prefix) Middleware {
	isTrusted := func(addr netip.Addr) bool {
		for _, p := range trusted {
			if p.Contains(addr) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme := "http"
			if r.TLS != nil {
				scheme = "https"
			}
			host := r.Host
			client, ok := peerAddr(r.RemoteAddr)

			if ok && isTrusted(client) {
				hops := headerValues(r.Header.Values("X-Forwarded-For"))
				for i := len(hops) - 1; i >= 0; i-- {
					addr, err := netip.ParseAddr(hops[i])
					if err != nil {
						break
					}
					client = addr.Unmap()
					if !isTrusted(client) {
						break
					}
				}
				if proto := lastValue(r.Header.Values("X-Forwarded-Proto")); proto != "" {
					if p := strings.ToLower(proto); p == "http" || p == "https" {
						scheme = p
					}
				}
				if h := lastValue(r.Header.Values("X-Forwarded-Host")); h != "" {
					host = h
				}
			}

			ctx := r.Context()
			if ok {
				ctx = contextWith(ctx, clientIPKey, client.String())
			}
			ctx = contextWith(ctx, schemeKey, scheme)
			ctx = contextWith(ctx, hostKey, host)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func peerAddr(remote string) (netip.Addr, bool) {
	if ap, err := netip.ParseAddrPort(remote); err == nil {
		return ap.Addr().Unmap(), true
	}
	if addr, err := netip.ParseAddr(remote); err == nil {
		return addr.Unmap(), true
	}
	return netip.Addr{}, false
}

func headerValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func lastValue(values []string) string {
	parts := headerValues(values)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// HSTSValue is the Strict-Transport-Security header value.
const HSTSValue = "max-age=31536000"

// HTTPS adds HSTS to secure responses and redirects plaintext requests with
// 308. It is a pass-through unless active.
func HTTPS(active bool, httpsPort int) Middleware {
	return func(next http.Handler) http.Handler {
		if !active {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := Host(r.Context())
			if host == "" {
				host = r.Host
			}
			if Scheme(r.Context()) != "https" {
				http.Redirect(w, r, httpsURL(host, httpsPort, r.URL.RequestURI()), http.StatusPermanentRedirect)
				return
			}
			if !isLoopbackHost(host) {
				w.Header().Set("Strict-Transport-Security", HSTSValue)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func httpsURL(host string, port int, requestURI string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	hostPort := host
	if strings.Contains(host, ":") {
		hostPort = "[" + host + "]"
	}
	if port != 443 && port != 0 {
		hostPort = net.JoinHostPort(host, strconv.Itoa(port))
	}
	return "https://" + hostPort + requestURI
}

func isLoopbackHost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	addr, err := netip.ParseAddr(host)
	return err == nil && addr.IsLoopback()
}

// Authenticate attaches the identity found by authn to the request
// context. Requests without credentials continue anonymously; rejected
// credentials are answered with 401 unless the path is exempt.
func Authenticate(authn auth.Authenticator, policy *auth.Policy, log logger.Logger, metrics *metric.Registry) Middleware {
	return func(next http.Handler) http.Handler {
		if authn == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := authn.Authenticate(r)
			switch {
			case err == nil && id != nil:
				r = r.WithContext(auth.WithIdentity(r.Context(), id))
			case err == nil, errors.Is(err, auth.ErrNoCredentials):
			case policy != nil && policy.Exempt(r.URL.Path):
			default:
				log.Debug("credentials rejected",
					"request_id", logger.RequestIDFromContext(r.Context()),
					"path", r.URL.Path,
					"client_ip", ClientIP(r.Context()),
					"error", err,
				)
				metrics.IncAuthDenied(auth.Unauthenticated.String())
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Authorize applies policy: 401 with a Bearer challenge when no identity
// is present, 403 when the identity is not allowed.
func Authorize(policy *auth.Policy, metrics *metric.Registry) Middleware {
	return func(next http.Handler) http.Handler {
		if policy == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := auth.IdentityFromContext(r.Context())
			switch d := policy.Authorize(r.URL.Path, id); d {
			case auth.Allow:
				next.ServeHTTP(w, r)
			case auth.Forbidden:
				metrics.IncAuthDenied(d.String())
				w.WriteHeader(http.StatusForbidden)
			default:
				metrics.IncAuthDenied(d.String())
				w.Header().Set("WWW-Authenticate", "Bearer")
				w.WriteHeader(http.StatusUnauthorized)
			}
		})
	}
}

// quietPrefixes are logged at debug level.
var quietPrefixes = []string{"/healthz", "/readyz", "/assets"}

// AnonymousUser is logged for requests without an identity.
const AnonymousUser = "anonymous"

// RequestLog logs every completed request and records request metrics.
// Requests that end in a panic or a Fail are recorded as 500 at error
// level, since the recover stage writes their response afterwards; the
// panic is then passed on.
func RequestLog(log logger.Logger, metrics *metric.Registry) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)

			defer func() {
				v := recover()
				faulted := v != nil || faultFromContext(r.Context()) != nil
				logRequest(log, metrics, r, rw, time.Since(start), faulted)
				if v != nil {
					panic(v)
				}
			}()

			next.ServeHTTP(rw, r)
		})
	}
}

func logRequest(log logger.Logger, metrics *metric.Registry, r *http.Request, rw *responseWriter, elapsed time.Duration, faulted bool) {
	status := rw.status
	if faulted && !rw.wroteHeader {
		status = http.StatusInternalServerError
	}
	metrics.ObserveRequest(r.Method, status, elapsed, rw.bytes)

	user := AnonymousUser
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		user = id.Subject
	}
	attrs := []any{
		"request_id", logger.RequestIDFromContext(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"elapsed_ms", float64(elapsed.Microseconds()) / 1000,
		"client_ip", ClientIP(r.Context()),
		"user", user,
		"bytes", rw.bytes,
	}
	msg := fmt.Sprintf("HTTP %s %s responded %d", r.Method, r.URL.Path, status)

	switch {
	case faulted:
		log.Error(msg, attrs...)
	case hasAnyPrefix(r.URL.Path, quietPrefixes):
		log.Debug(msg, attrs...)
	case status >= 500:
		log.Error(msg, attrs...)
	default:
		log.Info(msg, attrs...)
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// RateLimit rejects clients over their window with 429 and Retry-After.
// Rejections are logged at most once per interval.
func RateLimit(limiter Limiter, log logger.Logger, metrics *metric.Registry) Middleware {
	throttle := &rate.Sometimes{First: 1, Interval: 10 * time.Second}

	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientIP(r.Context())
			d := limiter.Allow(key)
			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			metrics.IncRateLimited()
			throttle.Do(func() {
				log.Warn("rate limit exceeded",
					"client_ip", key,
					"path", r.URL.Path,
					"limit", d.Limit,
				)
			})
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
}

func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
