package config

import (
	"fmt"
	"strings"

	"github.com/yndnr/statichost/internal/telemetry/logger"
)

// minHMACSecretLen is the shortest accepted HS256 secret, in bytes.
const minHMACSecretLen = 32

// ConfigurationError reports an invalid configuration value. It is fatal at
// startup.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Verify validates the configuration and returns the first problem found as
// a *ConfigurationError. It never touches the filesystem: missing
// certificate files are handled by falling back to HTTP at bind time.
func Verify(cfg *ServerConfig) error {
	checks := []func(*ServerConfig) error{
		verifyEnvironment,
		verifyHosting,
		verifyContent,
		verifyProxy,
		verifyAuth,
		verifyRateLimit,
		verifyServer,
		verifyLog,
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

func verifyEnvironment(cfg *ServerConfig) error {
	switch cfg.Environment {
	case EnvironmentProduction, EnvironmentDevelopment:
		return nil
	}
	return invalid("environment", "must be %q or %q, got %q",
		EnvironmentProduction, EnvironmentDevelopment, cfg.Environment)
}

func verifyPort(field string, port int) error {
	if port < 1 || port > 65535 {
		return invalid(field, "must be between 1 and 65535, got %d", port)
	}
	return nil
}

func verifyHosting(cfg *ServerConfig) error {
	h := &cfg.Hosting
	if err := verifyPort("hosting.http_port", h.HTTPPort); err != nil {
		return err
	}
	if err := verifyPort("hosting.https_port", h.HTTPSPort); err != nil {
		return err
	}

	if !h.UseHTTPS {
		switch {
		case h.RedirectHTTP:
			return invalid("hosting.redirect_http", "requires hosting.use_https")
		case h.HTTP3:
			return invalid("hosting.http3", "requires hosting.use_https")
		case h.ClientAuth.CAFile != "":
			return invalid("hosting.client_auth.ca_file", "requires hosting.use_https")
		}
		return nil
	}

	if strings.TrimSpace(h.Certificate.CrtPath) == "" {
		return invalid("hosting.certificate.crt_path", "required when hosting.use_https is true")
	}
	if strings.TrimSpace(h.Certificate.KeyPath) == "" {
		return invalid("hosting.certificate.key_path", "required when hosting.use_https is true")
	}
	if h.RedirectHTTP && h.HTTPPort == h.HTTPSPort {
		return invalid("hosting.redirect_http", "http_port and https_port must differ")
	}
	if h.ClientAuth.Require && h.ClientAuth.CAFile == "" {
		return invalid("hosting.client_auth.require", "requires hosting.client_auth.ca_file")
	}
	return nil
}

func verifyContent(cfg *ServerConfig) error {
	if strings.TrimSpace(cfg.Content.Root) == "" {
		return invalid("content.root", "is required")
	}
	for field, page := range map[string]string{
		"content.not_found_page": cfg.Content.NotFoundPage,
		"content.error_page":     cfg.Content.ErrorPage,
	} {
		if strings.ContainsAny(page, `/\`) {
			return invalid(field, "must be a file name inside content.root, got %q", page)
		}
	}
	return nil
}

func verifyProxy(cfg *ServerConfig) error {
	for _, entry := range cfg.Proxy.TrustedProxies {
		if _, err := parsePrefix(entry); err != nil {
			return invalid("proxy.trusted_proxies", "invalid IP or CIDR %q", entry)
		}
	}
	return nil
}

func verifyAuth(cfg *ServerConfig) error {
	a := &cfg.Auth
	switch a.FallbackPolicy {
	case PolicyRequireAuthenticated, PolicyAllowAll:
	default:
		return invalid("auth.fallback_policy", "must be %q or %q, got %q",
			PolicyRequireAuthenticated, PolicyAllowAll, a.FallbackPolicy)
	}

	for _, p := range a.AnonymousPaths {
		if !strings.HasPrefix(p, "/") {
			return invalid("auth.anonymous_paths", "path %q must start with /", p)
		}
	}

	if a.Bearer.Enabled() && len(a.Bearer.HMACSecret) < minHMACSecretLen {
		return invalid("auth.bearer.hmac_secret", "must be at least %d bytes", minHMACSecretLen)
	}
	if a.ClientCert.Enabled && cfg.Hosting.ClientAuth.CAFile == "" {
		return invalid("auth.client_cert.enabled", "requires hosting.client_auth.ca_file")
	}

	if a.FallbackPolicy == PolicyRequireAuthenticated && !a.Bearer.Enabled() && !a.ClientCert.Enabled {
		return invalid("auth.fallback_policy",
			"%q needs an authenticator: set auth.bearer.hmac_secret or auth.client_cert.enabled",
			PolicyRequireAuthenticated)
	}
	return nil
}

func verifyRateLimit(cfg *ServerConfig) error {
	r := &cfg.RateLimit
	switch {
	case r.Limit <= 0:
		return invalid("rate_limit.limit", "must be positive, got %d", r.Limit)
	case r.Window <= 0:
		return invalid("rate_limit.window", "must be positive, got %s", r.Window)
	case r.MaxKeys <= 0:
		return invalid("rate_limit.max_keys", "must be positive, got %d", r.MaxKeys)
	}
	return nil
}

func verifyServer(cfg *ServerConfig) error {
	s := &cfg.Server
	switch {
	case s.ReadHeaderTimeout <= 0:
		return invalid("server.read_header_timeout", "must be positive")
	case s.IdleTimeout < 0:
		return invalid("server.idle_timeout", "must not be negative")
	case s.MaxHeaderBytes <= 0:
		return invalid("server.max_header_bytes", "must be positive")
	case s.ShutdownTimeout <= 0:
		return invalid("server.shutdown_timeout", "must be positive")
	}
	return nil
}

func verifyLog(cfg *ServerConfig) error {
	l := &cfg.Log
	if !logger.ValidLevel(l.Level) {
		return invalid("log.level", "unknown level %q", l.Level)
	}
	switch l.Format {
	case "json", "text":
	default:
		return invalid("log.format", "must be json or text, got %q", l.Format)
	}
	if l.RetainDays < 0 {
		return invalid("log.retain_days", "must not be negative")
	}
	if strings.TrimSpace(l.Dir) == "" {
		return invalid("log.dir", "is required")
	}
	return nil
}
