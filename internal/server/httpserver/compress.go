package httpserver

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzhttp"
)

// CompressibleTypes are the content types encoded by Compress.
var CompressibleTypes = []string{
	"text/plain",
	"text/css",
	"text/html",
	"text/xml",
	"text/json",
	"text/javascript",
	"application/javascript",
	"application/json",
	"application/xml",
	"application/wasm",
	"application/rss+xml",
	"application/atom+xml",
	"image/svg+xml",
}

// brotliLevel trades ratio for speed on per-request encoding.
const brotliLevel = 4

// Compress encodes responses of CompressibleTypes with Brotli when the
// client accepts br, and with gzip when it accepts only gzip.
func Compress() (Middleware, error) {
	gz, err := gzhttp.NewWrapper(gzhttp.ContentTypes(CompressibleTypes))
	if err != nil {
		return nil, fmt.Errorf("httpserver: compression: %w", err)
	}
	return func(next http.Handler) http.Handler {
		gzipped := gz(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead || !acceptsEncoding(r.Header.Values("Accept-Encoding"), "br") {
				gzipped.ServeHTTP(w, r)
				return
			}
			bw := &brotliWriter{ResponseWriter: w}
			defer bw.Close()
			next.ServeHTTP(bw, r)
		})
	}, nil
}

// acceptsEncoding reports whether the Accept-Encoding values list coding
// with a non-zero quality.
func acceptsEncoding(values []string, coding string) bool {
	for _, part := range headerValues(values) {
		name, params, _ := strings.Cut(part, ";")
		if !strings.EqualFold(strings.TrimSpace(name), coding) {
			continue
		}
		for _, p := range strings.Split(params, ";") {
			k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
			if ok && strings.EqualFold(k, "q") {
				if q, err := strconv.ParseFloat(v, 64); err == nil && q == 0 {
					return false
				}
			}
		}
		return true
	}
	return false
}

func compressibleType(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	for _, t := range CompressibleTypes {
		if mediaType == t {
			return true
		}
	}
	return false
}

// brotliWriter decides on the first WriteHeader or Write whether to encode:
// only complete 200 responses of a compressible type that are not already
// encoded.
type brotliWriter struct {
	http.ResponseWriter
	enc     *brotli.Writer
	decided bool
}

func (w *brotliWriter) decide(code int) {
	w.decided = true
	h := w.Header()
	if !compressibleType(h.Get("Content-Type")) {
		return
	}
	h.Add("Vary", "Accept-Encoding")
	if code != http.StatusOK || h.Get("Content-Encoding") != "" || h.Get("Content-Range") != "" {
		return
	}
	h.Set("Content-Encoding", "br")
	h.Del("Content-Length")
	h.Del("Accept-Ranges")
	w.enc = brotli.NewWriterLevel(w.ResponseWriter, brotliLevel)
}

func (w *brotliWriter) WriteHeader(code int) {
	if !w.decided && code >= 200 {
		w.decide(code)
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *brotliWriter) Write(b []byte) (int, error) {
	if !w.decided {
		w.WriteHeader(http.StatusOK)
	}
	if w.enc != nil {
		return w.enc.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

func (w *brotliWriter) Flush() {
	if w.enc != nil {
		_ = w.enc.Flush()
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Close finishes the Brotli stream.
func (w *brotliWriter) Close() error {
	if w.enc == nil {
		return nil
	}
	return w.enc.Close()
}

// Unwrap supports http.ResponseController.
func (w *brotliWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
