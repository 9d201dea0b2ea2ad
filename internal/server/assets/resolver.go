package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"
)

// Security headers attached to every served file.
var SecurityHeaders = map[string]string{
	"X-Content-Type-Options": "nosniff",
	"Referrer-Policy":        "no-referrer",
	"X-Frame-Options":        "DENY",
}

// IndexFile is served for directory requests.
const IndexFile = "index.html"

// Result is the outcome of Resolve: Found or NotFound.
type Result interface {
	result()
}

// Found is a resolved file. The caller owns File and must close it; Serve
// does so.
type Found struct {
	File  *os.File
	Info  fs.FileInfo
	Class Class
	// Name is the slash-separated path relative to the content root.
	Name string
}

// NotFound means no servable file exists for the path.
type NotFound struct {
	Path string
}

func (Found) result()    {}
func (NotFound) result() {}

// Resolver maps URL paths to files under a content root.
type Resolver struct {
	dir string

	mu       sync.Mutex
	root     *os.Root
	rootInfo fs.FileInfo
}

// NewResolver returns a resolver for dir. The directory is opened on first
// use and re-opened whenever dir is replaced, so a bundle deployed after
// startup, including by swapping directories, is picked up.
func NewResolver(dir string) *Resolver {
	return &Resolver{dir: dir}
}

// Dir returns the content root directory.
func (r *Resolver) Dir() string {
	return r.dir
}

// Close releases the content root handle.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.root == nil {
		return nil
	}
	err := r.root.Close()
	r.root, r.rootInfo = nil, nil
	return err
}

func (r *Resolver) openRoot() (*os.Root, error) {
	current, statErr := os.Stat(r.dir)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.root != nil {
		if statErr == nil && os.SameFile(current, r.rootInfo) {
			return r.root, nil
		}
		_ = r.root.Close()
		r.root, r.rootInfo = nil, nil
	}
	if statErr != nil {
		return nil, statErr
	}

	root, err := os.OpenRoot(r.dir)
	if err != nil {
		return nil, err
	}
	info, err := root.Stat(".")
	if err != nil {
		_ = root.Close()
		return nil, err
	}
	r.root, r.rootInfo = root, info
	return root, nil
}

// Resolve finds the file for urlPath. A missing file, a dot-prefixed
// segment, an escape attempt and a missing content root all yield NotFound;
// only unexpected I/O failures are returned as errors.
func (r *Resolver) Resolve(urlPath string) (Result, error) {
	name, ok := cleanName(urlPath)
	if !ok {
		return NotFound{Path: urlPath}, nil
	}

	f, info, err := r.open(name)
	if err != nil {
		if isAbsent(err) {
			return NotFound{Path: urlPath}, nil
		}
		return nil, fmt.Errorf("assets: open %s: %w", name, err)
	}

	if info.IsDir() {
		_ = f.Close()
		name = path.Join(name, IndexFile)
		f, info, err = r.open(name)
		if err != nil {
			if isAbsent(err) {
				return NotFound{Path: urlPath}, nil
			}
			return nil, fmt.Errorf("assets: open %s: %w", name, err)
		}
		if info.IsDir() {
			_ = f.Close()
			return NotFound{Path: urlPath}, nil
		}
	}

	if !info.Mode().IsRegular() {
		_ = f.Close()
		return NotFound{Path: urlPath}, nil
	}

	return Found{
		File:  f,
		Info:  info,
		Class: Classify(urlPath, info.Name()),
		Name:  name,
	}, nil
}

// OpenFile opens a regular file directly under the content root, e.g. an
// error document. Directories report fs.ErrNotExist.
func (r *Resolver) OpenFile(name string) (*os.File, fs.FileInfo, error) {
	f, info, err := r.open(name)
	if err != nil {
		return nil, nil, err
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, nil, fs.ErrNotExist
	}
	return f, info, nil
}

func (r *Resolver) open(name string) (*os.File, fs.FileInfo, error) {
	root, err := r.openRoot()
	if err != nil {
		return nil, nil, err
	}
	f, err := root.Open(name)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return f, info, nil
}

// isAbsent reports errors that mean "nothing to serve here". Permission
// problems are real faults; everything else (missing, not a directory,
// escapes the root) is treated as absence.
func isAbsent(err error) bool {
	return !errors.Is(err, fs.ErrPermission)
}

// cleanName converts a URL path to a root-relative name.
func cleanName(urlPath string) (string, bool) {
	if !strings.HasPrefix(urlPath, "/") || strings.ContainsRune(urlPath, 0) || strings.Contains(urlPath, `\`) {
		return "", false
	}
	name := strings.TrimPrefix(path.Clean(urlPath), "/")
	if name == "" {
		return ".", true
	}
	for _, seg := range strings.Split(name, "/") {
		if strings.HasPrefix(seg, ".") {
			return "", false
		}
	}
	return name, true
}

// Serve writes found with its caching, security and content-type headers
// and closes the file. Range, conditional and HEAD requests are handled by
// http.ServeContent.
func (r *Resolver) Serve(w http.ResponseWriter, req *http.Request, found Found) {
	defer found.File.Close()

	h := w.Header()
	h.Set("Cache-Control", found.Class.CacheControl())
	for k, v := range SecurityHeaders {
		h.Set(k, v)
	}
	h.Set("Content-Type", ContentType(found.Info.Name()))
	h.Set("ETag", etag(found.Info))

	http.ServeContent(w, req, found.Info.Name(), found.Info.ModTime(), found.File)
}

func etag(info fs.FileInfo) string {
	return fmt.Sprintf(`W/"%x-%x"`, info.Size(), info.ModTime().UnixNano())
}
