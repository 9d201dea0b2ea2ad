package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yndnr/statichost/internal/server/health"
)

type fakeReporter struct {
	ready bool
}

var fixedTime = time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)

func (f fakeReporter) Liveness() health.Liveness {
	return health.Liveness{Status: health.StatusOK, Timestamp: fixedTime}
}

func (f fakeReporter) Readiness() health.Report {
	status := health.StatusNotReady
	if f.ready {
		status = health.StatusReady
	}
	return health.Report{
		Ready:     f.ready,
		Status:    status,
		Timestamp: fixedTime,
		Checks:    health.Checks{StaticFiles: f.ready, LogWritable: true},
	}
}

func (f fakeReporter) Version() health.Version {
	return health.Version{Version: "1.2.3", Timestamp: fixedTime}
}

func TestHandlers(t *testing.T) {
	tests := []struct {
		name       string
		reporter   fakeReporter
		handler    func(*Handler) http.HandlerFunc
		wantStatus int
		wantField  string
		wantValue  any
	}{
		{"healthz", fakeReporter{}, func(h *Handler) http.HandlerFunc { return h.Healthz }, http.StatusOK, "status", "ok"},
		{"readyz ready", fakeReporter{ready: true}, func(h *Handler) http.HandlerFunc { return h.Readyz }, http.StatusOK, "status", "ready"},
		{"readyz not ready", fakeReporter{}, func(h *Handler) http.HandlerFunc { return h.Readyz }, http.StatusServiceUnavailable, "status", "not-ready"},
		{"version", fakeReporter{}, func(h *Handler) http.HandlerFunc { return h.Version }, http.StatusOK, "version", "1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(tt.reporter, nil)
			rec := httptest.NewRecorder()
			tt.handler(h)(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); ct != ContentTypeJSON {
				t.Errorf("Content-Type = %q", ct)
			}
			if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
				t.Errorf("Cache-Control = %q", cc)
			}

			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body[tt.wantField] != tt.wantValue {
				t.Errorf("%s = %v, want %v", tt.wantField, body[tt.wantField], tt.wantValue)
			}
			if body["timestamp"] != "2026-05-01T08:30:00Z" {
				t.Errorf("timestamp = %v", body["timestamp"])
			}
		})
	}
}

func TestReadyz_Checks(t *testing.T) {
	rec := httptest.NewRecorder()
	New(fakeReporter{}, nil).Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	var body struct {
		Checks map[string]any `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Checks["staticFiles"] != false {
		t.Errorf("staticFiles = %v, want false", body.Checks["staticFiles"])
	}
	if _, ok := body.Checks["certDaysLeft"]; ok {
		t.Error("certDaysLeft should be omitted")
	}
}

func TestHead_NoBody(t *testing.T) {
	rec := httptest.NewRecorder()
	New(fakeReporter{}, nil).Healthz(rec, httptest.NewRequest(http.MethodHead, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("HEAD body = %q, want empty", rec.Body.String())
	}
}
