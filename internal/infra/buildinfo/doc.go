// Package buildinfo exposes version information for statichost.
//
// Values are injected at build time via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/statichost/internal/infra/buildinfo.Version=v1.2.0 \
//	  -X github.com/yndnr/statichost/internal/infra/buildinfo.Commit=abc123"
//
// When Version is not injected, the main module version recorded by the Go
// toolchain is used instead.
package buildinfo
