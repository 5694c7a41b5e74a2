// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package api serves a read-only HTTP status surface next to the line protocol.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"grimm.is/macwall/internal/audit"
	"grimm.is/macwall/internal/brand"
	"grimm.is/macwall/internal/clock"
	"grimm.is/macwall/internal/logging"
	"grimm.is/macwall/internal/metrics"
)

// Registry is the read side of the blocklist.
type Registry interface {
	List() []string
	Count() int
	IsBlocked(raw string) (bool, error)
}

// AuditReader lists recent audit events.
type AuditReader interface {
	Recent(ctx context.Context, limit int, mac string) ([]audit.Event, error)
}

// Options configures the status server.
type Options struct {
	Addr        string
	Registry    Registry
	Metrics     *metrics.Metrics
	Audit       AuditReader // optional
	Enforcement string      // backend name reported by /healthz
	Logger      *logging.Logger
}

// Server handles HTTP status endpoints
type Server struct {
	opts    Options
	logger  *logging.Logger
	started time.Time
	router  *mux.Router
}

// NewServer creates a status server and registers its routes.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.WithComponent("api")
	}
	s := &Server{
		opts:    opts,
		logger:  opts.Logger,
		started: clock.Now(),
		router:  mux.NewRouter(),
	}
	s.RegisterRoutes(s.router)
	return s
}

// RegisterRoutes registers API routes
func (s *Server) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	router.Handle("/metrics", s.opts.Metrics.Handler()).Methods("GET")

	router.HandleFunc("/api/v1/blocklist", s.handleGetBlocklist).Methods("GET")
	router.HandleFunc("/api/v1/blocklist/{mac}", s.handleCheck).Methods("GET")
	router.HandleFunc("/api/v1/audit", s.handleAudit).Methods("GET")
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.WithError(err).Warn("Status API shutdown error")
		}
	})
	defer stop()

	s.logger.Info("Status API listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"version":     brand.Version,
		"blocked":     s.opts.Registry.Count(),
		"enforcement": s.opts.Enforcement,
		"uptime":      clock.Now().Sub(s.started).Round(time.Second).String(),
	})
}

// handleGetBlocklist returns the current blocklist
func (s *Server) handleGetBlocklist(w http.ResponseWriter, r *http.Request) {
	macs := s.opts.Registry.List()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"blocked_macs": macs,
		"count":        len(macs),
	})
}

// handleCheck reports membership for one address
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	mac := mux.Vars(r)["mac"]
	blocked, err := s.opts.Registry.IsBlocked(mac)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid MAC address format", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"mac":     mac,
		"blocked": blocked,
	})
}

// handleAudit returns recent audit events, optionally for one address
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.opts.Audit == nil {
		s.writeError(w, http.StatusNotFound, "Audit trail is disabled", nil)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	events, err := s.opts.Audit.Recent(r.Context(), limit, r.URL.Query().Get("mac"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to read audit trail", err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Debug("Failed to encode response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}

	if err != nil {
		response["details"] = err.Error()
	}

	s.writeJSON(w, status, response)
}
