package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const dailyFileLayout = "20060102"

// DailyFile is an io.WriteCloser that appends to <dir>/<name>.log and
// rotates it when the date changes or the file reaches lumberjack's size
// limit. Rotated files are named <name>-<timestamp>.log and removed once
// they are older than the retention period.
type DailyFile struct {
	out *lumberjack.Logger
	now func() time.Time

	mu  sync.Mutex
	day string
}

// DailyFileOption configures a DailyFile.
type DailyFileOption func(*DailyFile)

// WithClock overrides the clock used to detect a date change.
func WithClock(now func() time.Time) DailyFileOption {
	return func(d *DailyFile) {
		d.now = now
	}
}

// OpenDailyFile creates dir if needed and returns a writer for
// <dir>/<name>.log. retainDays <= 0 keeps rotated files forever.
func OpenDailyFile(dir, name string, retainDays int, opts ...DailyFileOption) (*DailyFile, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("logger: create log dir %s: %w", dir, err)
	}

	d := &DailyFile{
		out: &lumberjack.Logger{
			Filename:  filepath.Join(dir, name+".log"),
			MaxAge:    max(retainDays, 0),
			LocalTime: true,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}

	// A file left over from an earlier day is rotated on the first write.
	d.day = d.now().Format(dailyFileLayout)
	if info, err := os.Stat(d.out.Filename); err == nil {
		d.day = info.ModTime().Format(dailyFileLayout)
	}
	return d, nil
}

// Write implements io.Writer.
func (d *DailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if day := d.now().Format(dailyFileLayout); day != d.day {
		if err := d.out.Rotate(); err != nil {
			return 0, fmt.Errorf("logger: rotate log file: %w", err)
		}
		d.day = day
	}
	return d.out.Write(p)
}

// Close closes the current file.
func (d *DailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.out.Close()
}

// Path returns the path of the file currently written to.
func (d *DailyFile) Path() string {
	return d.out.Filename
}
