package api

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// registerStaticRoutes serves a frontend build from StaticDir at /. Unknown
// paths outside /api fall back to index.html so client-side routes load.
func (s *Server) registerStaticRoutes() {
	dir := s.opts.StaticDir
	if dir == "" {
		return
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		s.logger.Warn("Static directory not found, frontend disabled", "path", dir)
		return
	}

	files := http.FileServer(http.Dir(dir))
	s.router.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}

		name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
		if _, err := os.Stat(name); errors.Is(err, fs.ErrNotExist) {
			w.Header().Set("Cache-Control", CacheNoStore)
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		files.ServeHTTP(w, r)
	})
	s.logger.Info("Serving frontend", "path", dir)
}
