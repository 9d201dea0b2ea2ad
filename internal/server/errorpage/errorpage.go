// Package errorpage renders the not-found and internal-error responses.
//
// Faults are answered with the bundle's 500 document for browsers (Accept
// contains text/html) and with an RFC 9457 problem document otherwise. The
// body never carries error details beyond the request path and trace id.
package errorpage

import (
	"encoding/json"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"

	"github.com/yndnr/statichost/internal/telemetry/logger"
)

// Content types written by the responder.
const (
	ContentTypeHTML    = "text/html; charset=utf-8"
	ContentTypeProblem = "application/problem+json; charset=utf-8"
)

// Problem is the JSON body of a 500 response.
type Problem struct {
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance"`
	TraceID  string `json:"traceId"`
}

// Pages opens error documents from the content root.
type Pages interface {
	OpenFile(name string) (*os.File, fs.FileInfo, error)
}

// Config configures a Responder.
type Config struct {
	Pages        Pages
	NotFoundPage string
	ErrorPage    string
	Log          logger.Logger
}

// Responder writes error responses.
type Responder struct {
	pages        Pages
	notFoundPage string
	errorPage    string
	log          logger.Logger
}

// New creates a Responder. A nil Pages disables error documents.
func New(cfg Config) *Responder {
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Responder{
		pages:        cfg.Pages,
		notFoundPage: cfg.NotFoundPage,
		errorPage:    cfg.ErrorPage,
		log:          log,
	}
}

// entityHeaders describe a body a failed handler may have prepared. They
// are dropped before the 500 replaces it.
var entityHeaders = []string{
	"Content-Length",
	"Content-Encoding",
	"Content-Range",
	"Content-Disposition",
	"Content-Type",
	"Accept-Ranges",
	"ETag",
	"Last-Modified",
}

// Fault logs err and answers with 500.
func (e *Responder) Fault(w http.ResponseWriter, r *http.Request, err error, traceID string) {
	e.log.Error("unhandled fault",
		"path", r.URL.Path,
		"method", r.Method,
		"trace_id", traceID,
		"error", err,
	)

	h := w.Header()
	for _, name := range entityHeaders {
		h.Del(name)
	}
	h.Set("Cache-Control", "no-store")
	h.Set("Pragma", "no-cache")

	if wantsHTML(r) && e.writePage(w, r, e.errorPage, http.StatusInternalServerError) {
		return
	}

	h.Set("Content-Type", ContentTypeProblem)
	w.WriteHeader(http.StatusInternalServerError)
	if r.Method == http.MethodHead {
		return
	}
	_ = json.NewEncoder(w).Encode(Problem{
		Title:    "Internal Server Error",
		Status:   http.StatusInternalServerError,
		Detail:   "An unexpected error occurred.",
		Instance: r.URL.Path,
		TraceID:  traceID,
	})
}

// NotFound answers with 404 and the not-found document when present,
// otherwise an empty body. It does not log.
func (e *Responder) NotFound(w http.ResponseWriter, r *http.Request) {
	if e.writePage(w, r, e.notFoundPage, http.StatusNotFound) {
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

// writePage streams the named document with status. It reports false, with
// nothing written, when the document is unavailable.
func (e *Responder) writePage(w http.ResponseWriter, r *http.Request, name string, status int) bool {
	if e.pages == nil || name == "" {
		return false
	}
	f, _, err := e.pages.OpenFile(name)
	if err != nil {
		return false
	}
	defer f.Close()

	w.Header().Set("Content-Type", ContentTypeHTML)
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = io.Copy(w, f)
	}
	return true
}

func wantsHTML(r *http.Request) bool {
	for _, v := range r.Header.Values("Accept") {
		if strings.Contains(strings.ToLower(v), "text/html") {
			return true
		}
	}
	return false
}
