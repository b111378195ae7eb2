package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// UpdatesHandler serves agent binaries and manifests from a directory.
// Directory listings are never served.
type UpdatesHandler struct {
	root       string
	fileServer http.Handler
}

func NewUpdatesHandler(root string) *UpdatesHandler {
	return &UpdatesHandler{
		root:       root,
		fileServer: http.FileServer(http.Dir(root)),
	}
}

func (h *UpdatesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := filepath.Clean("/" + r.URL.Path)
	if strings.HasSuffix(r.URL.Path, "/") {
		http.NotFound(w, r)
		return
	}

	info, err := os.Stat(filepath.Join(h.root, filepath.FromSlash(name)))
	if os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	} else if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if info.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	h.fileServer.ServeHTTP(w, r)
}
