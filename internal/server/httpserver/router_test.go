package httpserver

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/yndnr/statichost/internal/server/assets"
	"github.com/yndnr/statichost/internal/server/errorpage"
	"github.com/yndnr/statichost/internal/server/health"
	"github.com/yndnr/statichost/internal/server/httpserver/handler"
	"github.com/yndnr/statichost/internal/telemetry/logger"
)

func newTestRouter(t *testing.T, withNotFound bool, metrics http.Handler) http.Handler {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "index.html", "<h1>home</h1>")
	writeFile(t, root, "docs/guide.txt", "guide")
	if withNotFound {
		writeFile(t, root, "404.html", "<h1>custom 404</h1>")
	}
	resolver := assets.NewResolver(root)
	t.Cleanup(func() { _ = resolver.Close() })

	reporter := health.New(health.Config{ContentRoot: root, LogDir: filepath.Join(t.TempDir(), "Logs")})
	return NewRouter(RouterConfig{
		Utility: handler.New(reporter, logger.Nop()),
		Metrics: metrics,
		Assets:  resolver,
		Errors:  errorpage.New(errorpage.Config{Pages: resolver, NotFoundPage: "404.html", Log: logger.Nop()}),
	})
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRouter_NotFound(t *testing.T) {
	tests := []struct {
		name         string
		withNotFound bool
		wantBody     string
		wantType     string
	}{
		{"custom document", true, "<h1>custom 404</h1>", errorpage.ContentTypeHTML},
		{"empty body", false, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(newTestRouter(t, tt.withNotFound, nil), http.MethodGet, "/missing.js")
			if rec.Code != http.StatusNotFound {
				t.Fatalf("status = %d, want 404", rec.Code)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
			if ct := rec.Header().Get("Content-Type"); ct != tt.wantType {
				t.Errorf("Content-Type = %q, want %q", ct, tt.wantType)
			}
		})
	}
}

func TestRouter_Routes(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	r := newTestRouter(t, false, metrics)

	tests := []struct {
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{http.MethodGet, "/", http.StatusOK, "<h1>home</h1>"},
		{http.MethodGet, "/docs/guide.txt", http.StatusOK, "guide"},
		{http.MethodHead, "/docs/guide.txt", http.StatusOK, ""},
		{http.MethodPost, "/docs/guide.txt", http.StatusNotFound, ""},
		{http.MethodGet, "/healthz", http.StatusOK, ""},
		{http.MethodHead, "/healthz", http.StatusOK, ""},
		{http.MethodPost, "/healthz", http.StatusNotFound, ""},
		{http.MethodGet, "/readyz", http.StatusOK, ""},
		{http.MethodGet, "/version", http.StatusOK, ""},
		{http.MethodGet, "/metrics", http.StatusOK, "# metrics"},
		{http.MethodGet, "/.env", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := serve(r, tt.method, tt.path)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRouter_MetricsDisabled(t *testing.T) {
	rec := serve(newTestRouter(t, false, nil), http.MethodGet, "/metrics")
	if rec.Code != http.StatusNotFound {
		t.Errorf("/metrics status = %d, want 404 when disabled", rec.Code)
	}
}
