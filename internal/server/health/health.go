package health

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/yndnr/statichost/internal/infra/buildinfo"
	"github.com/yndnr/statichost/internal/server/certloader"
	"github.com/yndnr/statichost/internal/telemetry/metric"
)

// Status values.
const (
	StatusOK       = "ok"
	StatusReady    = "ready"
	StatusNotReady = "not-ready"
)

// WriteCheckPattern names the temporary file Readiness writes and removes in
// the log directory. Each call gets its own file.
const WriteCheckPattern = "write-test-*.txt"

// InspectFunc loads a certificate pair and returns its expiry.
type InspectFunc func(certPath, keyPath string) (time.Time, error)

// Config configures a Reporter.
type Config struct {
	ContentRoot string
	LogDir      string

	// TLS enables the certificate checks.
	TLS      bool
	CertPath string
	KeyPath  string

	// Now defaults to time.Now.
	Now func() time.Time
	// Inspect defaults to certloader.Inspect.
	Inspect InspectFunc
	// Metrics receives the certificate days gauge. Optional.
	Metrics *metric.Registry
}

// Liveness is the /healthz body.
type Liveness struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Checks holds the individual readiness results.
type Checks struct {
	StaticFiles    bool  `json:"staticFiles"`
	LogWritable    bool  `json:"logWritable"`
	CertNotExpired *bool `json:"certNotExpired,omitempty"`
	CertDaysLeft   *int  `json:"certDaysLeft,omitempty"`
}

// Report is the /readyz body.
type Report struct {
	Ready     bool      `json:"-"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Checks    Checks    `json:"checks"`
}

// Version is the /version body.
type Version struct {
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// Reporter evaluates health state.
type Reporter struct {
	cfg Config
}

// New creates a Reporter.
func New(cfg Config) *Reporter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Inspect == nil {
		cfg.Inspect = certloader.Inspect
	}
	return &Reporter{cfg: cfg}
}

// Liveness reports that the process is serving.
func (r *Reporter) Liveness() Liveness {
	return Liveness{Status: StatusOK, Timestamp: r.cfg.Now().UTC()}
}

// Version reports the build version.
func (r *Reporter) Version() Version {
	return Version{Version: buildinfo.Get().Version, Timestamp: r.cfg.Now().UTC()}
}

// Readiness runs every check.
func (r *Reporter) Readiness() Report {
	now := r.cfg.Now()

	checks := Checks{
		StaticFiles: isDir(r.cfg.ContentRoot),
		LogWritable: checkWritable(r.cfg.LogDir) == nil,
	}
	ready := checks.StaticFiles && checks.LogWritable

	if r.cfg.TLS {
		notExpired, days := r.certificate(now)
		checks.CertNotExpired = &notExpired
		checks.CertDaysLeft = &days
		ready = ready && notExpired
		r.cfg.Metrics.SetCertDaysRemaining(days)
	}

	status := StatusReady
	if !ready {
		status = StatusNotReady
	}
	return Report{
		Ready:     ready,
		Status:    status,
		Timestamp: now.UTC(),
		Checks:    checks,
	}
}

func (r *Reporter) certificate(now time.Time) (bool, int) {
	notAfter, err := r.cfg.Inspect(r.cfg.CertPath, r.cfg.KeyPath)
	if err != nil {
		return false, 0
	}
	return notAfter.After(now), certloader.DaysUntil(notAfter, now)
}

func isDir(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func checkWritable(dir string) error {
	if dir == "" {
		return errors.New("health: log directory not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("health: create log directory: %w", err)
	}
	f, err := os.CreateTemp(dir, WriteCheckPattern)
	if err != nil {
		return fmt.Errorf("health: create write check: %w", err)
	}
	_, werr := f.Write([]byte("ok"))
	cerr := f.Close()
	rerr := os.Remove(f.Name())
	if err := errors.Join(werr, cerr, rerr); err != nil {
		return fmt.Errorf("health: write check file: %w", err)
	}
	return nil
}
