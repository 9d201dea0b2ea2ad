package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/yndnr/statichost/internal/infra/buildinfo"
	"github.com/yndnr/statichost/internal/infra/confloader"
	"github.com/yndnr/statichost/internal/infra/shutdown"
	"github.com/yndnr/statichost/internal/server/assets"
	"github.com/yndnr/statichost/internal/server/auth"
	"github.com/yndnr/statichost/internal/server/certloader"
	"github.com/yndnr/statichost/internal/server/config"
	"github.com/yndnr/statichost/internal/server/errorpage"
	"github.com/yndnr/statichost/internal/server/health"
	"github.com/yndnr/statichost/internal/server/httpserver"
	"github.com/yndnr/statichost/internal/server/httpserver/handler"
	"github.com/yndnr/statichost/internal/server/ratelimit"
	"github.com/yndnr/statichost/internal/telemetry/logger"
	"github.com/yndnr/statichost/internal/telemetry/metric"
)

// logFileName names the active log file, <log.dir>/app.log.
const logFileName = "app"

func run(ctx context.Context, cfg *config.ServerConfig, src configSource) error {
	log, logFile, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	sh := shutdown.NewHandler(cfg.Server.ShutdownTimeout, log)
	if logFile != nil {
		sh.OnShutdown("log file", func(context.Context) error { return logFile.Close() })
	}

	// Hooks registered before a failed startup still run.
	started := false
	defer func() {
		if !started {
			sh.Trigger()
			_ = sh.Wait(context.Background())
		}
	}()

	info := buildinfo.Get()
	safe := config.Sanitize(cfg)
	log.Info("starting statichost-server",
		"version", info.Version,
		"commit", info.Commit,
		"environment", safe.Environment,
		"content_root", safe.Content.Root,
		"fallback_policy", safe.Auth.FallbackPolicy,
		"config", src.File,
		"env_prefix", src.EnvPrefix,
	)

	metrics := metric.NewRegistry()

	binding, err := selectBinding(cfg, log, metrics, sh)
	if err != nil {
		return err
	}

	h, err := buildHandler(cfg, binding, log, metrics, sh)
	if err != nil {
		return err
	}

	var redirectAddr string
	if cfg.Hosting.RedirectHTTP && binding.IsTLS() {
		redirectAddr = cfg.Hosting.HTTPAddr()
	}
	server := httpserver.New(httpserver.Options{
		Binding:      binding,
		Handler:      h,
		Limits:       cfg.Server,
		RedirectAddr: redirectAddr,
		HTTPSPort:    cfg.Hosting.HTTPSPort,
		HTTP3:        cfg.Hosting.HTTP3,
		Log:          log,
	})
	if err := server.Start(); err != nil {
		return err
	}

	if src.File != "" {
		if err := watchConfig(src, log, sh); err != nil {
			log.Warn("config watcher disabled", "error", err)
		}
	}

	// Registered last so it runs first.
	sh.OnShutdown("http server", server.Shutdown)

	started = true
	serveErr := make(chan error, 1)
	go func() {
		select {
		case err := <-server.Errors():
			serveErr <- err
			sh.Trigger()
		case <-sh.Done():
		}
	}()

	log.Info("server started", "scheme", binding.Scheme, "addr", server.Addr().String())
	waitErr := sh.Wait(ctx)
	select {
	case err = <-serveErr:
	default:
		err = nil
	}
	if waitErr != nil {
		log.Error("shutdown error", "error", waitErr)
		return errors.Join(err, waitErr)
	}
	log.Info("server stopped")
	return err
}

// initLogger writes to stdout and, when log.dir is set, to a daily file.
// A log directory that cannot be opened degrades to stdout only.
func initLogger(cfg *config.ServerConfig) (logger.Logger, *logger.DailyFile, error) {
	var out io.Writer = os.Stdout
	var file *logger.DailyFile
	var fileErr error
	if cfg.Log.Dir != "" {
		file, fileErr = logger.OpenDailyFile(cfg.Log.Dir, logFileName, cfg.Log.RetainDays)
		if fileErr == nil {
			out = io.MultiWriter(os.Stdout, file)
		}
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: out,
	})
	if err != nil {
		if file != nil {
			_ = file.Close()
		}
		return nil, nil, err
	}
	if fileErr != nil {
		log.Warn("log file unavailable, logging to stdout only", "dir", cfg.Log.Dir, "error", fileErr)
	}
	return log, file, nil
}

// selectBinding picks the listener and, for HTTPS, wires client
// certificate verification and certificate hot reload.
func selectBinding(cfg *config.ServerConfig, log logger.Logger, metrics *metric.Registry, sh *shutdown.Handler) (httpserver.Binding, error) {
	binding := httpserver.SelectListener(cfg.Hosting, certloader.Load, log)
	if !binding.IsTLS() {
		return binding, nil
	}

	if err := binding.EnableClientAuth(cfg.Hosting.ClientAuth.CAFile, cfg.Hosting.ClientAuth.Require); err != nil {
		return binding, err
	}

	metrics.SetCertDaysRemaining(binding.Material.DaysRemaining(time.Now()))
	reloader, err := certloader.NewReloader(binding.Material,
		cfg.Hosting.Certificate.CrtPath, cfg.Hosting.Certificate.KeyPath, log,
		certloader.WithLoadFunc(func(certPath, keyPath string) (*certloader.Material, error) {
			m, err := certloader.Load(certPath, keyPath)
			metrics.IncCertReload(err == nil)
			return m, err
		}),
	)
	if err != nil {
		log.Warn("certificate hot reload disabled", "error", err)
		return binding, nil
	}
	reloader.OnReload(func(m *certloader.Material) {
		metrics.SetCertDaysRemaining(m.DaysRemaining(time.Now()))
	})
	binding.TLS.GetCertificate = reloader.GetCertificate
	reloader.StartAsync()
	sh.OnShutdown("certificate reloader", func(context.Context) error { return reloader.Stop() })

	return binding, nil
}

// buildHandler assembles the pipeline and router.
func buildHandler(cfg *config.ServerConfig, binding httpserver.Binding, log logger.Logger, metrics *metric.Registry, sh *shutdown.Handler) (http.Handler, error) {
	resolver := assets.NewResolver(cfg.Content.Root)
	sh.OnShutdown("content root", func(context.Context) error { return resolver.Close() })

	errs := errorpage.New(errorpage.Config{
		Pages:        resolver,
		NotFoundPage: cfg.Content.NotFoundPage,
		ErrorPage:    cfg.Content.ErrorPage,
		Log:          log,
	})

	limiter, err := ratelimit.New(ratelimit.Config{
		Limit:   cfg.RateLimit.Limit,
		Window:  cfg.RateLimit.Window,
		MaxKeys: cfg.RateLimit.MaxKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	metrics.MustRegister(metric.NewCollector(limiter))

	chain, policy, err := auth.FromConfig(cfg.Auth)
	if err != nil {
		return nil, err
	}
	trusted, err := cfg.Proxy.Prefixes()
	if err != nil {
		return nil, err
	}

	pipeline, err := httpserver.NewPipeline(httpserver.PipelineDeps{
		Log:            log,
		Metrics:        metrics,
		Errors:         errs,
		TrustedProxies: trusted,
		EnforceHTTPS:   cfg.IsProduction() && binding.IsTLS(),
		HTTPSPort:      cfg.Hosting.HTTPSPort,
		Authenticator:  chain,
		Policy:         policy,
		Limiter:        limiter,
	})
	if err != nil {
		return nil, err
	}
	log.Debug("request pipeline", "stages", pipeline.Names())

	reporter := health.New(health.Config{
		ContentRoot: cfg.Content.Root,
		LogDir:      cfg.Log.Dir,
		TLS:         cfg.Hosting.UseHTTPS,
		CertPath:    cfg.Hosting.Certificate.CrtPath,
		KeyPath:     cfg.Hosting.Certificate.KeyPath,
		Metrics:     metrics,
	})

	metricsHandler := metrics.Handler()
	if !cfg.Metrics.Enabled {
		metricsHandler = nil
	}
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Utility: handler.New(reporter, log),
		Metrics: metricsHandler,
		Assets:  resolver,
		Errors:  errs,
	})

	return pipeline.Then(router), nil
}

// watchConfig re-applies log.level when the configuration file changes.
func watchConfig(src configSource, log logger.Logger, sh *shutdown.Handler) error {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return err
	}
	if err := w.Watch(src.File); err != nil {
		_ = w.Stop()
		return err
	}
	w.OnChange(func(path string) {
		cfg, err := src.load()
		if err != nil {
			log.Warn("ignoring invalid configuration change", "path", path, "error", err)
			return
		}
		if cfg.Log.Level == log.Level() {
			return
		}
		log.Info("log level changed", "from", log.Level(), "to", cfg.Log.Level)
		log.SetLevel(cfg.Log.Level)
	})
	w.StartAsync()
	sh.OnShutdown("config watcher", func(context.Context) error { return w.Stop() })
	return nil
}
