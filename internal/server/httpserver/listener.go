package httpserver

import (
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/yndnr/statichost/internal/infra/tlsroots"
	"github.com/yndnr/statichost/internal/server/certloader"
	"github.com/yndnr/statichost/internal/server/config"
	"github.com/yndnr/statichost/internal/telemetry/logger"
)

// Schemes.
const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
)

// LoadFunc loads certificate material.
type LoadFunc func(certPath, keyPath string) (*certloader.Material, error)

// Binding is the selected listener.
type Binding struct {
	Scheme string
	Addr   string
	// TLS is set for https bindings.
	TLS *tls.Config
	// Material is the certificate served on an https binding.
	Material *certloader.Material
	// Fallback is set when HTTPS was requested but the certificate could
	// not be loaded.
	Fallback bool
	// Err is the certificate load error behind Fallback.
	Err error
}

// IsTLS reports whether the binding serves HTTPS.
func (b Binding) IsTLS() bool {
	return b.Scheme == SchemeHTTPS
}

// SelectListener chooses between HTTPS on the https port and plaintext on
// the http port. HTTPS is used only when requested and the certificate pair
// loads; a failed load falls back to HTTP with a warning.
func SelectListener(cfg config.HostingSection, load LoadFunc, log logger.Logger) Binding {
	if log == nil {
		log = logger.Nop()
	}
	if load == nil {
		load = certloader.Load
	}

	if !cfg.UseHTTPS {
		log.Warn("serving plaintext HTTP", "addr", cfg.HTTPAddr())
		return Binding{Scheme: SchemeHTTP, Addr: cfg.HTTPAddr()}
	}

	m, err := load(cfg.Certificate.CrtPath, cfg.Certificate.KeyPath)
	if err != nil {
		log.Warn("certificate unavailable, falling back to plaintext HTTP",
			"cert_file", cfg.Certificate.CrtPath,
			"key_file", cfg.Certificate.KeyPath,
			"addr", cfg.HTTPAddr(),
			"error", err,
		)
		return Binding{Scheme: SchemeHTTP, Addr: cfg.HTTPAddr(), Fallback: true, Err: err}
	}

	return Binding{
		Scheme:   SchemeHTTPS,
		Addr:     cfg.HTTPSAddr(),
		TLS:      NewTLSConfig(m),
		Material: m,
	}
}

// NewTLSConfig returns the server TLS configuration serving m. Replace
// GetCertificate to hot-swap material.
func NewTLSConfig(m *certloader.Material) *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		NextProtos: []string{"h2", "http/1.1"},
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			return m.TLSCertificate(), nil
		},
	}
}

// EnableClientAuth verifies client certificates against the CAs in caFile.
// It is a no-op for plaintext bindings and when caFile is empty.
func (b *Binding) EnableClientAuth(caFile string, require bool) error {
	if !b.IsTLS() || caFile == "" {
		return nil
	}
	if b.TLS == nil {
		return errors.New("httpserver: https binding without TLS config")
	}
	pool, err := tlsroots.Load(caFile)
	if err != nil {
		return fmt.Errorf("httpserver: load client CA: %w", err)
	}
	pool.ApplyClientAuth(b.TLS, require)
	return nil
}
