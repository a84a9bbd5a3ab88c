// Package web serves the chat widget's static files and falls back to
// index.html for any path that does not match a file, so deep links load the
// single-page app.
package web

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/zhouzirui/calm-companion/backend/internal/logging"
)

// SPAHandler serves files from fsys and index.html for unmatched routes.
func SPAHandler(fsys fs.FS, logger *zap.Logger) http.Handler {
	logger = logging.OrNop(logger)
	fileServer := http.FileServer(http.FS(fsys))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name == "" {
			name = "index.html"
		}

		if info, err := fs.Stat(fsys, name); err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}

		index, err := fs.ReadFile(fsys, "index.html")
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				logger.Warn("failed to read index.html", zap.Error(err))
			}
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(index); err != nil {
			logger.Debug("failed to write index.html", zap.Error(err))
		}
	})
}

// DirHandler serves the SPA from a directory on disk.
func DirHandler(dir string, logger *zap.Logger) http.Handler {
	return SPAHandler(os.DirFS(dir), logger)
}
