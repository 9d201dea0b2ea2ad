package handler

import (
	"encoding/json"
	"net/http"

	"github.com/yndnr/statichost/internal/server/health"
	"github.com/yndnr/statichost/internal/telemetry/logger"
)

// ContentTypeJSON is written on every utility response.
const ContentTypeJSON = "application/json; charset=utf-8"

// Reporter produces health reports.
type Reporter interface {
	Liveness() health.Liveness
	Readiness() health.Report
	Version() health.Version
}

// Handler serves the utility endpoints.
type Handler struct {
	health Reporter
	log    logger.Logger
}

// New creates a Handler.
func New(reporter Reporter, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{health: reporter, log: log}
}

// Healthz handles GET /healthz. Always 200.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.health.Liveness())
}

// Readyz handles GET /readyz: 200 when ready, 503 otherwise.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	report := h.health.Readiness()
	status := http.StatusOK
	if !report.Ready {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, r, status, report)
}

// Version handles GET /version.
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.health.Version())
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("failed to encode response",
			"request_id", logger.RequestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
}
