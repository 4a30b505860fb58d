// Package server exposes the render pipeline over HTTP: one-shot
// screenshot requests, the image store, template documents for
// composites, and run history. The CLI talks to this server; template
// pages loaded inside the browser fetch their embedded captures from it
// too, which is why it must be reachable from the rendering browser.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/usewebget/webget/history"
	"github.com/usewebget/webget/render"
	"github.com/usewebget/webget/schema"
	"github.com/usewebget/webget/store"
)

// Renderer runs one asset through the pipeline.
type Renderer interface {
	Render(ctx context.Context, asset *schema.Asset) render.Outcome
}

// Config wires a Server.
type Config struct {
	// Addr is the listen address, e.g. ":3637".
	Addr string

	// Renderer handles /screenshot requests.
	Renderer Renderer

	// Store backs /image and holds baselines and scratch captures.
	Store store.Store

	// History backs /runs when set.
	History *history.Store

	// TemplatesDir is served under /templates for composite frames.
	TemplatesDir string

	// Workers caps concurrent renders. Requests beyond the cap queue.
	Workers int

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Addr == "" {
		c.Addr = ":3637"
	}
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server is the webget HTTP server.
type Server struct {
	cfg    Config
	router chi.Router
	sem    chan struct{}

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New builds the server and its routes.
func New(cfg Config) *Server {
	cfg.defaults()
	s := &Server{
		cfg:    cfg,
		sem:    make(chan struct{}, cfg.Workers),
		stopCh: make(chan struct{}),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})
	r.Get("/stop", s.handleStop)
	r.Post("/screenshot", s.handleScreenshot)
	r.Get("/image", s.handleImageGet)
	r.Post("/image", s.handleImagePut)
	r.Get("/runs", s.handleRuns)

	if cfg.TemplatesDir != "" {
		fs := http.StripPrefix("/templates/", http.FileServer(http.Dir(cfg.TemplatesDir)))
		r.Get("/templates/*", fs.ServeHTTP)
	}

	s.router = r
	return s
}

// Handler exposes the routes for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled or /stop is hit, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// Renders hold the request open; give them room.
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.cfg.Logger.Info("server starting", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	case <-s.stopCh:
	}
	s.cfg.Logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.cfg.Logger.Info("server stopped")
	return nil
}

// Stop triggers the same shutdown as GET /stop.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "stopping"})
	s.Stop()
}

// handleScreenshot renders one asset. Render failures still answer 200:
// the outcome's error field is the contract, not the HTTP status.
func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, 400, err)
		return
	}
	asset, err := schema.Parse(body)
	if err != nil {
		writeError(w, 400, err)
		return
	}

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-r.Context().Done():
		writeError(w, 503, r.Context().Err())
		return
	}

	out := s.cfg.Renderer.Render(r.Context(), asset)
	writeJSON(w, 200, out)
}

func (s *Server) handleImageGet(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, 400, map[string]string{"error": "path is required"})
		return
	}

	data, err := s.cfg.Store.Get(r.Context(), path)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		writeJSON(w, 404, map[string]string{"error": "not found"})
		return
	}
	if err != nil {
		writeError(w, 500, err)
		return
	}

	mime, err := schema.MIMEFromPath(path)
	if err != nil {
		mime = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(200)
	w.Write(data)
}

func (s *Server) handleImagePut(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, 400, map[string]string{"error": "path is required"})
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, 400, err)
		return
	}
	if err := s.cfg.Store.Put(r.Context(), path, data); err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.cfg.History == nil {
		writeJSON(w, 200, []history.Record{})
		return
	}
	limit := queryInt(r, "limit", 50)
	records, err := s.cfg.History.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, records)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
