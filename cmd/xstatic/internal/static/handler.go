package static

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/logger"
)

var (
	// ErrOutsideRoot is returned by Resolve for paths that climb above the
	// serving root.
	ErrOutsideRoot = errors.New("path escapes serving root")
	// ErrInvalidPath is returned by Resolve for paths that cannot name a
	// file under the serving root.
	ErrInvalidPath = errors.New("invalid path")
)

// Handler serves files and directory listings from a serving root.
// All filesystem access goes through an os.Root, so neither ".." nor
// symlinks can reach outside the root.
type Handler struct {
	dir  string
	root *os.Root
}

// NewHandler opens dir as the serving root.
func NewHandler(dir string) (*Handler, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open serving root %s: %w", dir, err)
	}
	return &Handler{dir: dir, root: root}, nil
}

// Dir returns the serving root.
func (h *Handler) Dir() string {
	return h.dir
}

// Close releases the serving root.
func (h *Handler) Close() error {
	return h.root.Close()
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Unsupported method ("+r.Method+")", http.StatusNotImplemented)
		return
	}

	name, err := Resolve(r.URL.Path)
	if err != nil {
		logger.WarnContext(r.Context(), "Rejected request path", "path", r.URL.Path, "remote_addr", r.RemoteAddr, "error", err)
		if errors.Is(err, ErrOutsideRoot) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		http.Error(w, "Bad request path", http.StatusBadRequest)
		return
	}

	// Opening a FIFO or device can block indefinitely, so only regular
	// files and directories are ever opened.
	info, err := h.root.Stat(filepath.FromSlash(name))
	if err != nil {
		h.serveError(w, r, err)
		return
	}
	if !info.IsDir() && !info.Mode().IsRegular() {
		logger.WarnContext(r.Context(), "Refusing to serve special file", "path", r.URL.Path, "mode", info.Mode().String())
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	f, err := h.root.Open(filepath.FromSlash(name))
	if err != nil {
		h.serveError(w, r, err)
		return
	}
	defer f.Close()

	if info.IsDir() {
		h.serveDir(w, r, f)
		return
	}

	w.Header().Set("Content-Type", ContentType(info.Name()))
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (h *Handler) serveDir(w http.ResponseWriter, r *http.Request, dir *os.File) {
	if !strings.HasSuffix(r.URL.Path, "/") {
		target := url.PathEscape(path.Base(r.URL.Path)) + "/"
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		w.Header().Set("Location", target)
		w.WriteHeader(http.StatusMovedPermanently)
		return
	}

	entries, err := dir.ReadDir(-1)
	if err != nil {
		logger.WarnContext(r.Context(), "Failed to list directory", "path", r.URL.Path, "error", err)
		http.Error(w, "No permission to list directory", http.StatusForbidden)
		return
	}

	var buf bytes.Buffer
	if err := writeListing(&buf, r.URL.Path, entries); err != nil {
		logger.Error("Failed to render directory listing", "path", r.URL.Path, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		buf.WriteTo(w)
	}
}

func (h *Handler) serveError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		http.Error(w, "File not found", http.StatusNotFound)
	case errors.Is(err, fs.ErrPermission):
		http.Error(w, "Forbidden", http.StatusForbidden)
	default:
		// Includes symlinks that lead outside the root.
		logger.WarnContext(r.Context(), "Refusing to serve path", "path", r.URL.Path, "remote_addr", r.RemoteAddr, "error", err)
		http.Error(w, "Forbidden", http.StatusForbidden)
	}
}

// Resolve maps a decoded URL path to a slash-separated path relative to
// the serving root, or "." for the root itself. Empty and "." segments are
// dropped and ".." removes the previous segment; climbing above the root
// fails with ErrOutsideRoot.
func Resolve(urlPath string) (string, error) {
	if strings.ContainsAny(urlPath, "\x00\\") {
		return "", ErrInvalidPath
	}

	var parts []string
	for _, seg := range strings.Split(urlPath, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(parts) == 0 {
				return "", ErrOutsideRoot
			}
			parts = parts[:len(parts)-1]
		default:
			parts = append(parts, seg)
		}
	}

	if len(parts) == 0 {
		return ".", nil
	}
	return strings.Join(parts, "/"), nil
}
