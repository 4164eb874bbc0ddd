// Package server serves the chat front-end as plain files from a document
// root: path resolution against the root, content type by extension, and
// 200/404/500 status mapping. No caching, compression, or range requests.
package server

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var contentTypes = map[string]string{
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
}

const defaultContentType = "application/octet-stream"

// StaticHandler serves files beneath a document root, mapping "/" to a
// configured index document.
type StaticHandler struct {
	root  string
	index string
}

// NewStaticHandler creates a handler rooted at dir that serves index for "/".
func NewStaticHandler(dir, index string) *StaticHandler {
	return &StaticHandler{root: dir, index: index}
}

func (s *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Query parameters play no part in file resolution.
	requestPath := r.URL.Path
	if requestPath == "/" {
		requestPath = "/" + s.index
	}

	// Collapse any ".." segments before touching the filesystem; anything
	// that would escape the root is treated as absent.
	cleaned := path.Clean(requestPath)
	if !strings.HasPrefix(cleaned, "/") || strings.HasPrefix(cleaned, "/..") {
		s.notFound(w, requestPath)
		return
	}

	filePath := filepath.Join(s.root, filepath.FromSlash(cleaned))
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			s.notFound(w, cleaned)
			return
		}
		slog.Error("reading static file failed", "path", filePath, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		// Report the cause, not the path; the client learns why the read
		// failed without seeing where the file lives.
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			_, _ = fmt.Fprintf(w, "Server Error: %v", pathErr.Err)
			return
		}
		_, _ = fmt.Fprint(w, "Server Error")
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(filePath))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *StaticHandler) notFound(w http.ResponseWriter, requestPath string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusNotFound)
	_, _ = fmt.Fprintf(w, "404: File Not Found (%s)", requestPath)
}

func contentTypeFor(filePath string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(filePath))]; ok {
		return ct
	}
	return defaultContentType
}
