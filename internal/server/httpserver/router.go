package httpserver

import (
	"net/http"

	"github.com/yndnr/statichost/internal/server/assets"
	"github.com/yndnr/statichost/internal/server/httpserver/handler"
)

// RouterConfig holds the terminal handlers.
type RouterConfig struct {
	// Utility serves /healthz, /readyz and /version.
	Utility *handler.Handler
	// Metrics serves /metrics. Nil leaves the path to the asset bundle.
	Metrics http.Handler
	Assets  *assets.Resolver
	Errors  ErrorResponder
}

// NewRouter routes exact GET/HEAD utility paths first, then the asset
// bundle, then the not-found response.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Utility != nil {
		mux.HandleFunc("GET /healthz", cfg.Utility.Healthz)
		mux.HandleFunc("GET /readyz", cfg.Utility.Readyz)
		mux.HandleFunc("GET /version", cfg.Utility.Version)
	}
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}
	mux.Handle("/", &staticHandler{assets: cfg.Assets, errors: cfg.Errors})

	return mux
}

type staticHandler struct {
	assets *assets.Resolver
	errors ErrorResponder
}

func (h *staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.assets == nil || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
		h.errors.NotFound(w, r)
		return
	}

	res, err := h.assets.Resolve(r.URL.Path)
	if err != nil {
		Fail(w, r, err)
		return
	}
	switch v := res.(type) {
	case assets.Found:
		h.assets.Serve(w, r, v)
	default:
		h.errors.NotFound(w, r)
	}
}
