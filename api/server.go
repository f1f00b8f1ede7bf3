// Package api serves built frame units over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"
)

// EntryFile is the file name of a unit entry.
const EntryFile = "remoteEntry.go"

// Api serves a directory of units.
type Api struct {
	addr   string
	dir    string
	logger *slog.Logger
}

// NewApi creates an Api serving dir on addr.
func NewApi(addr, dir string, logger *slog.Logger) *Api {
	if logger == nil {
		logger = slog.Default()
	}
	a := new(Api)
	a.addr = addr
	a.dir = dir
	a.logger = logger
	return a
}

// Handler serves files from the directory. Entries are never cached so a
// rebuilt frame is picked up on the next fetch.
func (a *Api) Handler() http.Handler {
	fs := http.FileServer(http.Dir(a.dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		if path.Base(r.URL.Path) == EntryFile {
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
			w.Header().Set("Content-Type", "text/x-go; charset=utf-8")
		}
		if strings.HasSuffix(r.URL.Path, "/") && r.URL.Path != "/" {
			// no directory listings below the root
			http.NotFound(w, r)
			return
		}
		fs.ServeHTTP(w, r)
	})
}

// Serve listens until ctx is done, then shuts down gracefully.
func (a *Api) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("serving units", slog.String("addr", a.addr), slog.String("dir", a.dir))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.logger.Info("unit server stopped")
	return nil
}
