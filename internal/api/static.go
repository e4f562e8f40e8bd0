package api

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/soochol/platescan/internal/storage"
	"github.com/soochol/platescan/web"
)

// StaticHandler serves browser assets from dir, or from the embedded copy
// when dir is empty or missing.
func StaticHandler(dir string) http.Handler {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return http.FileServer(http.Dir(dir))
		}
		slog.Warn("static dir not found, using embedded assets", "dir", dir)
	}
	sub, err := fs.Sub(web.Static, "static")
	if err != nil {
		panic(err)
	}
	return StaticHandlerFS(sub)
}

// StaticHandlerFS serves browser assets from an embedded filesystem.
func StaticHandlerFS(fsys fs.FS) http.Handler {
	return http.FileServer(http.FS(fsys))
}

// serveFile streams a stored upload or result. Seekable files go through
// http.ServeContent so browsers can request byte ranges of a video.
func (s *Server) serveFile(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			http.Error(w, "file storage not configured", http.StatusServiceUnavailable)
			return
		}
		name := chi.URLParam(r, "name")
		info, rc, err := store.Get(r.Context(), name)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidName) {
				http.Error(w, "not found", http.StatusNotFound)
			} else {
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Type", info.ContentType)
		if rs, ok := rc.(io.ReadSeeker); ok {
			http.ServeContent(w, r, info.Name, info.ModTime, rs)
			return
		}
		w.Header().Set("Last-Modified", info.ModTime.UTC().Format(http.TimeFormat))
		if _, err := io.Copy(w, rc); err != nil {
			slog.Warn("serveFile: copy interrupted", "name", name, "err", err)
		}
	}
}
