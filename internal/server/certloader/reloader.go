package certloader

import (
	"crypto/tls"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yndnr/statichost/internal/telemetry/logger"
)

// DefaultReloadDebounce waits for a certificate/key pair to be fully
// replaced before reloading.
const DefaultReloadDebounce = 500 * time.Millisecond

// LoadFunc loads certificate material.
type LoadFunc func(certPath, keyPath string) (*Material, error)

// Reloader serves the current certificate and reloads it when the
// certificate or key file changes. A failed reload keeps the previous
// material.
type Reloader struct {
	certPath string
	keyPath  string
	load     LoadFunc
	debounce time.Duration
	log      logger.Logger

	current atomic.Pointer[Material]
	watcher *fsnotify.Watcher

	mu        sync.Mutex
	timer     *time.Timer
	callbacks []func(*Material)

	done     chan struct{}
	stopOnce sync.Once
}

// ReloaderOption configures a Reloader.
type ReloaderOption func(*Reloader)

// WithReloadDebounce sets the quiet period before reloading.
func WithReloadDebounce(d time.Duration) ReloaderOption {
	return func(r *Reloader) {
		r.debounce = d
	}
}

// WithLoadFunc replaces Load.
func WithLoadFunc(fn LoadFunc) ReloaderOption {
	return func(r *Reloader) {
		r.load = fn
	}
}

// NewReloader starts from initial and watches the directories of certPath
// and keyPath. Call Start (or StartAsync) to process events.
func NewReloader(initial *Material, certPath, keyPath string, log logger.Logger, opts ...ReloaderOption) (*Reloader, error) {
	if initial == nil {
		return nil, errors.New("certloader: reloader needs initial material")
	}
	if log == nil {
		log = logger.Nop()
	}

	r := &Reloader{
		certPath: certPath,
		keyPath:  keyPath,
		load:     Load,
		debounce: DefaultReloadDebounce,
		log:      log.With("component", "certloader"),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.current.Store(initial)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("certloader: create watcher: %w", err)
	}
	dirs := []string{filepath.Dir(certPath)}
	if keyDir := filepath.Dir(keyPath); keyDir != dirs[0] {
		dirs = append(dirs, keyDir)
	}
	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("certloader: watch %s: %w", dir, err)
		}
	}
	r.watcher = w

	return r, nil
}

// Current returns the material being served.
func (r *Reloader) Current() *Material {
	return r.current.Load()
}

// GetCertificate implements tls.Config.GetCertificate.
func (r *Reloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return r.current.Load().TLSCertificate(), nil
}

// OnReload registers fn to run after every successful reload.
func (r *Reloader) OnReload(fn func(*Material)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, fn)
}

// Reload loads the pair now and swaps it in on success.
func (r *Reloader) Reload() error {
	m, err := r.load(r.certPath, r.keyPath)
	if err != nil {
		r.log.Error("certificate reload failed, keeping previous certificate",
			"cert_file", r.certPath,
			"key_file", r.keyPath,
			"error", err,
		)
		return err
	}
	r.current.Store(m)

	r.log.Info("certificate reloaded",
		"cert_file", r.certPath,
		"not_after", m.NotAfter().UTC().Format(time.RFC3339),
	)

	r.mu.Lock()
	callbacks := make([]func(*Material), len(r.callbacks))
	copy(callbacks, r.callbacks)
	r.mu.Unlock()
	for _, fn := range callbacks {
		fn(m)
	}
	return nil
}

// secretDataLink is the symlink a Kubernetes Secret volume swaps when the
// Secret changes; the cert and key files themselves only point through it.
const secretDataLink = "..data"

// Start processes file events until Stop is called.
func (r *Reloader) Start() {
	certBase := filepath.Base(r.certPath)
	keyBase := filepath.Base(r.keyPath)

	r.log.Info("certificate watcher started",
		"cert_file", r.certPath,
		"key_file", r.keyPath,
	)

	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			name := filepath.Base(event.Name)
			if name != certBase && name != keyBase && name != secretDataLink {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			r.log.Debug("certificate file changed",
				"file", event.Name,
				"op", event.Op.String(),
			)
			r.schedule()
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.log.Error("certificate watcher error", "error", err)
		case <-r.done:
			return
		}
	}
}

// StartAsync runs Start in a goroutine.
func (r *Reloader) StartAsync() {
	go r.Start()
}

// Stop stops watching. It is safe to call more than once.
func (r *Reloader) Stop() error {
	var err error
	r.stopOnce.Do(func() {
		close(r.done)
		r.mu.Lock()
		if r.timer != nil {
			r.timer.Stop()
		}
		r.mu.Unlock()
		err = r.watcher.Close()
	})
	return err
}

func (r *Reloader) schedule() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Reset(r.debounce)
		return
	}
	r.timer = time.AfterFunc(r.debounce, func() {
		select {
		case <-r.done:
			return
		default:
		}
		_ = r.Reload()
	})
}
