package certloader

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the certificate or key file does not exist.
	ErrNotFound = errors.New("certloader: file not found")

	// ErrKeyMismatch is returned when the private key does not belong to the
	// certificate.
	ErrKeyMismatch = errors.New("certloader: private key does not match certificate")

	// ErrInvalidPEM is returned when a file holds no usable PEM block.
	ErrInvalidPEM = errors.New("certloader: invalid PEM data")
)

// LoadError describes a failed Load. Op is one of "read", "parse" or
// "reimport".
type LoadError struct {
	Op   string
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("certloader: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
