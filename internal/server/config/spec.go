package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// ServerConfig is the root configuration for statichost-server.
type ServerConfig struct {
	Environment string           `koanf:"environment"`
	Hosting     HostingSection   `koanf:"hosting"`
	Content     ContentSection   `koanf:"content"`
	Proxy       ProxySection     `koanf:"proxy"`
	Auth        AuthSection      `koanf:"auth"`
	RateLimit   RateLimitSection `koanf:"rate_limit"`
	Server      ServerSection    `koanf:"server"`
	Metrics     MetricsSection   `koanf:"metrics"`
	Log         LogSection       `koanf:"log"`
}

// IsProduction reports whether production-only behavior (HSTS, HTTPS
// redirect) applies.
func (c *ServerConfig) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvironmentProduction)
}

// HostingSection configures listeners and the server certificate.
type HostingSection struct {
	UseHTTPS     bool             `koanf:"use_https"`
	HTTPPort     int              `koanf:"http_port"`
	HTTPSPort    int              `koanf:"https_port"`
	Certificate  CertificateFiles `koanf:"certificate"`
	RedirectHTTP bool             `koanf:"redirect_http"`
	HTTP3        bool             `koanf:"http3"`
	ClientAuth   ClientAuthConfig `koanf:"client_auth"`
}

// HTTPAddr returns the plaintext listen address.
func (h HostingSection) HTTPAddr() string {
	return fmt.Sprintf(":%d", h.HTTPPort)
}

// HTTPSAddr returns the TLS listen address.
func (h HostingSection) HTTPSAddr() string {
	return fmt.Sprintf(":%d", h.HTTPSPort)
}

// CertificateFiles locates the PEM-encoded server certificate and key.
type CertificateFiles struct {
	CrtPath string `koanf:"crt_path"`
	KeyPath string `koanf:"key_path"`
}

// ClientAuthConfig enables verification of client certificates.
type ClientAuthConfig struct {
	// CAFile is a PEM file or directory of PEM files with trusted client CAs.
	CAFile string `koanf:"ca_file"`
	// Require rejects TLS handshakes without a valid client certificate.
	Require bool `koanf:"require"`
}

// ContentSection locates the static bundle and its error documents.
type ContentSection struct {
	Root         string `koanf:"root"`
	NotFoundPage string `koanf:"not_found_page"`
	ErrorPage    string `koanf:"error_page"`
}

// ProxySection lists peers whose forwarding headers are honored.
type ProxySection struct {
	TrustedProxies []string `koanf:"trusted_proxies"`
}

// Prefixes parses TrustedProxies. Single addresses become host prefixes.
func (p ProxySection) Prefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(p.TrustedProxies))
	for _, entry := range p.TrustedProxies {
		prefix, err := parsePrefix(entry)
		if err != nil {
			return nil, err
		}
		out = append(out, prefix)
	}
	return out, nil
}

func parsePrefix(entry string) (netip.Prefix, error) {
	if strings.Contains(entry, "/") {
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return netip.Prefix{}, err
		}
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// AuthSection configures authentication and the authorization fallback.
type AuthSection struct {
	// FallbackPolicy applies to every path not in AnonymousPaths.
	FallbackPolicy string `koanf:"fallback_policy"`
	// AnonymousPaths bypass authorization. Matched exactly.
	AnonymousPaths []string         `koanf:"anonymous_paths"`
	Bearer         BearerConfig     `koanf:"bearer"`
	ClientCert     ClientCertConfig `koanf:"client_cert"`
	// RequiredRoles, when set, restricts require_authenticated to
	// identities holding at least one of the roles.
	RequiredRoles []string `koanf:"required_roles"`
}

// BearerConfig configures HMAC-signed JWT bearer tokens.
type BearerConfig struct {
	HMACSecret string `koanf:"hmac_secret"`
	Issuer     string `koanf:"issuer"`
	Audience   string `koanf:"audience"`
}

// Enabled reports whether bearer authentication is configured.
func (b BearerConfig) Enabled() bool {
	return b.HMACSecret != ""
}

// ClientCertConfig turns verified TLS client certificates into identities.
type ClientCertConfig struct {
	Enabled bool `koanf:"enabled"`
}

// RateLimitSection configures the fixed-window limiter.
type RateLimitSection struct {
	Limit   int           `koanf:"limit"`
	Window  time.Duration `koanf:"window"`
	MaxKeys int           `koanf:"max_keys"`
}

// ServerSection configures http.Server limits.
type ServerSection struct {
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	MaxHeaderBytes    int           `koanf:"max_header_bytes"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// MetricsSection toggles the /metrics endpoint.
type MetricsSection struct {
	Enabled bool `koanf:"enabled"`
}

// LogSection configures logging.
type LogSection struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	Dir        string `koanf:"dir"`
	RetainDays int    `koanf:"retain_days"`
}
