// Package server provides the HTTP server of the gesture service.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/treegesture/internal/plugin"
	"github.com/ayusman/treegesture/internal/preview"
	"github.com/ayusman/treegesture/internal/server/api"
	"github.com/ayusman/treegesture/internal/store"
)

// Config holds the server configuration. Every collaborator is optional; its
// routes are only registered when it is set.
type Config struct {
	StaticDir string
	Store     *store.Store
	App       api.Controller
	Preview   *preview.Preview
	Signals   *Hub
	Plugins   *plugin.Manager
}

// Server represents the HTTP server.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.App != nil {
		var settings api.SettingStore
		if s.config.Store != nil {
			settings = s.config.Store.Settings()
		}
		s.mux.Handle("/api/gesture", api.NewGestureHandler(s.config.App, settings))
	}

	if s.config.Store != nil {
		var lookup api.PluginLookup
		if s.config.Plugins != nil {
			lookup = s.config.Plugins
		}
		bindings := api.NewBindingHandler(s.config.Store, lookup)
		s.mux.Handle("/api/bindings", bindings)
		s.mux.Handle("/api/bindings/", bindings)
		s.mux.Handle("/api/events", api.NewEventsHandler(s.config.Store.Events()))
	}

	if s.config.Plugins != nil {
		s.mux.Handle("/api/plugins", api.NewPluginsHandler(s.config.Plugins))
	}

	if s.config.Preview != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Preview))
		s.mux.Handle("/api/landmarks", NewLandmarksHandler(s.config.Preview))
	}

	if s.config.Signals != nil {
		s.mux.Handle("/api/signals", s.config.Signals)
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.App != nil {
		response["gestures"] = s.config.App.Status()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// HTTPServer wraps the server in an http.Server listening on addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
