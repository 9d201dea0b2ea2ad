package config

import (
	"strings"
	"time"
)

// Environment names.
const (
	EnvironmentProduction  = "production"
	EnvironmentDevelopment = "development"
)

// Authorization fallback policies.
const (
	PolicyRequireAuthenticated = "require_authenticated"
	PolicyAllowAll             = "allow_all"
)

// Default configuration values.
const (
	DefaultHTTPPort  = 8080
	DefaultHTTPSPort = 8443
	DefaultCrtPath   = "certs/server.crt"
	DefaultKeyPath   = "certs/server.key"

	DefaultContentRoot  = "build"
	DefaultNotFoundPage = "404.html"
	DefaultErrorPage    = "500.html"

	DefaultRateLimit   = 100
	DefaultRateWindow  = 60 * time.Second
	DefaultRateMaxKeys = 65536

	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultMaxHeaderBytes    = 1 << 20
	DefaultShutdownTimeout   = 30 * time.Second

	DefaultLogLevel      = "info"
	DefaultLogFormat     = "json"
	DefaultLogDir        = "Logs"
	DefaultLogRetainDays = 14
)

// DefaultTrustedProxies trusts only loopback peers.
var DefaultTrustedProxies = []string{"127.0.0.1/32", "::1/128"}

// DefaultAnonymousPaths are reachable without authentication.
var DefaultAnonymousPaths = []string{"/healthz", "/readyz"}

// Default returns the default server configuration.
//
// List fields are left nil so a configured list replaces the default instead
// of being merged into it; Normalize fills them in after loading.
func Default() *ServerConfig {
	return &ServerConfig{
		Environment: EnvironmentProduction,
		Hosting: HostingSection{
			HTTPPort:  DefaultHTTPPort,
			HTTPSPort: DefaultHTTPSPort,
			Certificate: CertificateFiles{
				CrtPath: DefaultCrtPath,
				KeyPath: DefaultKeyPath,
			},
		},
		Content: ContentSection{
			Root:         DefaultContentRoot,
			NotFoundPage: DefaultNotFoundPage,
			ErrorPage:    DefaultErrorPage,
		},
		Auth: AuthSection{
			FallbackPolicy: PolicyRequireAuthenticated,
		},
		RateLimit: RateLimitSection{
			Limit:   DefaultRateLimit,
			Window:  DefaultRateWindow,
			MaxKeys: DefaultRateMaxKeys,
		},
		Server: ServerSection{
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
			IdleTimeout:       DefaultIdleTimeout,
			MaxHeaderBytes:    DefaultMaxHeaderBytes,
			ShutdownTimeout:   DefaultShutdownTimeout,
		},
		Log: LogSection{
			Level:      DefaultLogLevel,
			Format:     DefaultLogFormat,
			Dir:        DefaultLogDir,
			RetainDays: DefaultLogRetainDays,
		},
	}
}

// Normalize fills unset lists with their defaults, splits comma-separated
// list entries (as produced by environment variables) and lowercases enum
// values. It is called once after loading, before Verify.
func Normalize(cfg *ServerConfig) {
	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	cfg.Auth.FallbackPolicy = strings.ToLower(strings.TrimSpace(cfg.Auth.FallbackPolicy))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))

	if cfg.Proxy.TrustedProxies == nil {
		cfg.Proxy.TrustedProxies = append([]string(nil), DefaultTrustedProxies...)
	}
	if cfg.Auth.AnonymousPaths == nil {
		cfg.Auth.AnonymousPaths = append([]string(nil), DefaultAnonymousPaths...)
	}

	cfg.Proxy.TrustedProxies = splitList(cfg.Proxy.TrustedProxies)
	cfg.Auth.AnonymousPaths = splitList(cfg.Auth.AnonymousPaths)
	cfg.Auth.RequiredRoles = splitList(cfg.Auth.RequiredRoles)
}

func splitList(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, entry := range in {
		for _, part := range strings.Split(entry, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
