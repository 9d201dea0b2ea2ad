package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/quic-go/quic-go/http3"

	"github.com/yndnr/statichost/internal/server/config"
	"github.com/yndnr/statichost/internal/telemetry/logger"
)

// Options configures a Server.
type Options struct {
	Binding Binding
	Handler http.Handler
	Limits  config.ServerSection

	// RedirectAddr, on an https binding, serves 308 redirects to HTTPSPort.
	RedirectAddr string
	HTTPSPort    int

	// HTTP3 serves the handler over QUIC on the https port as well.
	HTTP3 bool

	Log logger.Logger
}

// Server runs the selected listener plus the optional redirect and HTTP/3
// listeners.
type Server struct {
	opts Options
	log  logger.Logger

	main     *http.Server
	redirect *http.Server
	h3       *http3.Server

	mainLn     net.Listener
	redirectLn net.Listener
	udpConn    net.PacketConn

	errs    chan error
	closing atomic.Bool
}

// New creates a Server. Call Start to bind.
func New(opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		opts: opts,
		log:  log.With("component", "httpserver"),
		errs: make(chan error, 3),
	}
}

// Start binds every listener and serves in the background. Bind errors are
// returned; later serve errors are delivered on Errors.
func (s *Server) Start() error {
	b := s.opts.Binding

	ln, err := net.Listen("tcp", b.Addr)
	if err != nil {
		return fmt.Errorf("httpserver: listen %s: %w", b.Addr, err)
	}
	s.mainLn = ln

	handler := s.opts.Handler
	if b.IsTLS() && s.opts.HTTP3 {
		if err := s.startHTTP3(); err != nil {
			_ = ln.Close()
			return err
		}
		handler = altSvc(handler, s.udpConn.LocalAddr().(*net.UDPAddr).Port)
	}

	s.main = s.newHTTPServer(handler)
	if b.IsTLS() {
		s.main.TLSConfig = b.TLS
		go s.serve("https", func() error { return s.main.ServeTLS(ln, "", "") })
	} else {
		go s.serve("http", func() error { return s.main.Serve(ln) })
	}
	s.log.Info("listening", "scheme", b.Scheme, "addr", ln.Addr().String())

	if b.IsTLS() && s.opts.RedirectAddr != "" {
		rln, err := net.Listen("tcp", s.opts.RedirectAddr)
		if err != nil {
			_ = s.Shutdown(context.Background())
			return fmt.Errorf("httpserver: listen %s: %w", s.opts.RedirectAddr, err)
		}
		s.redirectLn = rln
		s.redirect = s.newHTTPServer(RedirectHandler(s.opts.HTTPSPort))
		go s.serve("redirect", func() error { return s.redirect.Serve(rln) })
		s.log.Info("redirecting plaintext HTTP to HTTPS", "addr", rln.Addr().String())
	}

	return nil
}

func (s *Server) startHTTP3() error {
	_, port, err := net.SplitHostPort(s.mainLn.Addr().String())
	if err != nil {
		return fmt.Errorf("httpserver: %w", err)
	}
	host, _, _ := net.SplitHostPort(s.opts.Binding.Addr)
	addr := net.JoinHostPort(host, port)

	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return fmt.Errorf("httpserver: listen udp %s: %w", addr, err)
	}
	s.udpConn = conn
	s.h3 = &http3.Server{
		Handler:   s.opts.Handler,
		TLSConfig: http3.ConfigureTLSConfig(s.opts.Binding.TLS),
	}
	go s.serve("http3", func() error { return s.h3.Serve(conn) })
	s.log.Info("listening", "scheme", "h3", "addr", conn.LocalAddr().String())
	return nil
}

func (s *Server) newHTTPServer(h http.Handler) *http.Server {
	return &http.Server{
		Handler:           h,
		ReadHeaderTimeout: s.opts.Limits.ReadHeaderTimeout,
		IdleTimeout:       s.opts.Limits.IdleTimeout,
		MaxHeaderBytes:    s.opts.Limits.MaxHeaderBytes,
		ErrorLog:          slog.NewLogLogger(s.log.Handler(), slog.LevelWarn),
	}
}

func (s *Server) serve(name string, fn func() error) {
	err := fn()
	if err == nil || errors.Is(err, http.ErrServerClosed) || s.closing.Load() {
		return
	}
	s.log.Error("listener stopped", "listener", name, "error", err)
	select {
	case s.errs <- fmt.Errorf("httpserver: %s: %w", name, err):
	default:
	}
}

// Errors delivers fatal serve errors.
func (s *Server) Errors() <-chan error {
	return s.errs
}

// Addr returns the bound address of the main listener.
func (s *Server) Addr() net.Addr {
	if s.mainLn == nil {
		return nil
	}
	return s.mainLn.Addr()
}

// RedirectAddr returns the bound address of the redirect listener.
func (s *Server) RedirectAddr() net.Addr {
	if s.redirectLn == nil {
		return nil
	}
	return s.redirectLn.Addr()
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closing.Store(true)

	var errs []error
	if s.main != nil {
		if err := s.main.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("main: %w", err))
		}
	} else if s.mainLn != nil {
		_ = s.mainLn.Close()
	}
	if s.redirect != nil {
		if err := s.redirect.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("redirect: %w", err))
		}
	}
	if s.h3 != nil {
		if err := s.h3.Close(); err != nil {
			errs = append(errs, fmt.Errorf("http3: %w", err))
		}
		_ = s.udpConn.Close()
	}
	return errors.Join(errs...)
}

// RedirectHandler answers every request with a 308 to the same host on
// httpsPort.
func RedirectHandler(httpsPort int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, httpsURL(r.Host, httpsPort, r.URL.RequestURI()), http.StatusPermanentRedirect)
	})
}

func altSvc(next http.Handler, port int) http.Handler {
	value := `h3=":` + strconv.Itoa(port) + `"; ma=86400`
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Alt-Svc", value)
		next.ServeHTTP(w, r)
	})
}
