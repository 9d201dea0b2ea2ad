package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Defaults.
const (
	DefaultLimit   = 100
	DefaultWindow  = 60 * time.Second
	DefaultMaxKeys = 65536
)

// Config configures a FixedWindow limiter.
type Config struct {
	Limit   int
	Window  time.Duration
	MaxKeys int
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Decision is the outcome of Allow.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// RetryAfter is the time until the window resets. Zero when allowed.
	RetryAfter time.Duration
}

type window struct {
	start time.Time
	count int
}

// FixedWindow is a concurrency-safe fixed-window limiter.
type FixedWindow struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows *simplelru.LRU[string, *window]

	evictions atomic.Uint64
}

// New creates a limiter. Zero fields in cfg take the package defaults.
func New(cfg Config) (*FixedWindow, error) {
	if cfg.Limit == 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Window == 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxKeys == 0 {
		cfg.MaxKeys = DefaultMaxKeys
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Limit < 0 || cfg.Window < 0 || cfg.MaxKeys < 0 {
		return nil, errors.New("ratelimit: limit, window and max keys must be positive")
	}

	f := &FixedWindow{
		limit:  cfg.Limit,
		window: cfg.Window,
		now:    cfg.Now,
	}
	lru, err := simplelru.NewLRU[string, *window](cfg.MaxKeys, func(string, *window) {
		f.evictions.Add(1)
	})
	if err != nil {
		return nil, fmt.Errorf("ratelimit: %w", err)
	}
	f.windows = lru
	return f, nil
}

// Allow records a request from key and reports whether it is admitted.
// Rejected requests do not count against the window.
func (f *FixedWindow) Allow(key string) Decision {
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()

	w, ok := f.windows.Get(key)
	if !ok || now.Sub(w.start) >= f.window {
		w = &window{start: now}
		f.windows.Add(key, w)
	}

	if w.count >= f.limit {
		return Decision{
			Allowed:    false,
			Limit:      f.limit,
			Remaining:  0,
			RetryAfter: w.start.Add(f.window).Sub(now),
		}
	}

	w.count++
	return Decision{
		Allowed:   true,
		Limit:     f.limit,
		Remaining: f.limit - w.count,
	}
}

// Len returns the number of tracked keys.
func (f *FixedWindow) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.windows.Len()
}

// Evictions returns how many keys were evicted to respect MaxKeys.
func (f *FixedWindow) Evictions() uint64 {
	return f.evictions.Load()
}

// Limit returns the per-window request limit.
func (f *FixedWindow) Limit() int {
	return f.limit
}

// Window returns the window length.
func (f *FixedWindow) Window() time.Duration {
	return f.window
}
