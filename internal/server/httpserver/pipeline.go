package httpserver

import (
	"net/http"
	"net/netip"

	"github.com/yndnr/statichost/internal/server/auth"
	"github.com/yndnr/statichost/internal/telemetry/logger"
	"github.com/yndnr/statichost/internal/telemetry/metric"
)

// Stage names in pipeline order.
const (
	StageRecover      = "recover"
	StageForwarded    = "forwarded"
	StageHTTPS        = "https"
	StageAuthenticate = "authenticate"
	StageAuthorize    = "authorize"
	StageLog          = "log"
	StageCompress     = "compress"
	StageRateLimit    = "ratelimit"
)

// Stage is a named middleware.
type Stage struct {
	Name       string
	Middleware Middleware
}

// Pipeline is the ordered list of stages. The first stage is outermost.
type Pipeline []Stage

// PipelineDeps holds everything the stages need.
type PipelineDeps struct {
	Log     logger.Logger
	Metrics *metric.Registry
	Errors  ErrorResponder

	TrustedProxies []netip.Prefix

	// EnforceHTTPS turns on HSTS and the HTTPS redirect.
	EnforceHTTPS bool
	HTTPSPort    int

	// Authenticator may be nil when no authenticator is configured.
	Authenticator auth.Authenticator
	Policy        *auth.Policy

	Limiter Limiter
}

// NewPipeline builds the request pipeline.
func NewPipeline(d PipelineDeps) (Pipeline, error) {
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}
	compress, err := Compress()
	if err != nil {
		return nil, err
	}

	return Pipeline{
		{StageRecover, Recover(d.Errors, log, d.Metrics)},
		{StageForwarded, Forwarded(d.TrustedProxies)},
		{StageHTTPS, HTTPS(d.EnforceHTTPS, d.HTTPSPort)},
		{StageAuthenticate, Authenticate(d.Authenticator, d.Policy, log, d.Metrics)},
		{StageAuthorize, Authorize(d.Policy, d.Metrics)},
		{StageLog, RequestLog(log, d.Metrics)},
		{StageCompress, compress},
		{StageRateLimit, RateLimit(d.Limiter, log, d.Metrics)},
	}, nil
}

// Names returns the stage names in order.
func (p Pipeline) Names() []string {
	names := make([]string, len(p))
	for i, s := range p {
		names[i] = s.Name
	}
	return names
}

// Then wraps h with every stage.
func (p Pipeline) Then(h http.Handler) http.Handler {
	mws := make([]Middleware, len(p))
	for i, s := range p {
		mws[i] = s.Middleware
	}
	return Chain(h, mws...)
}
