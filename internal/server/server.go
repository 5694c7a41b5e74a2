// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package server accepts client connections and runs one session goroutine per connection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"grimm.is/macwall/internal/blocklist"
	"grimm.is/macwall/internal/logging"
	"grimm.is/macwall/internal/session"
)

// Options configures a Server.
type Options struct {
	Addr     string
	Registry *blocklist.Registry
	Handler  *session.Handler
	Logger   *logging.Logger
	// DrainTimeout is how long shutdown waits for open sessions before closing them.
	// Zero closes them immediately.
	DrainTimeout time.Duration
}

// Server owns the listening socket.
type Server struct {
	addr     string
	registry *blocklist.Registry
	handler  *session.Handler
	logger   *logging.Logger
	drain    time.Duration

	mu       sync.Mutex
	listener net.Listener
	sessions sync.WaitGroup
	served   atomic.Int64
}

// New creates a Server. Listen must succeed before Serve.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.WithComponent("server")
	}
	if opts.Handler == nil {
		opts.Handler = session.NewHandler(session.Options{Registry: opts.Registry})
	}
	return &Server{
		addr:     opts.Addr,
		registry: opts.Registry,
		handler:  opts.Handler,
		logger:   opts.Logger,
		drain:    opts.DrainTimeout,
	}
}

// Listen binds the TCP socket. Failure here is the only fatal startup error.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run loads the blocklist, binds and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.load()
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// load restores persisted state into the registry. Failures are logged and the registry starts empty.
func (s *Server) load() {
	n, err := s.registry.Load()
	if err != nil {
		s.logger.WithError(err).Warn("Failed to load blocklist, starting empty")
		return
	}
	if n == 0 {
		s.logger.Info("No previous blocklist found, starting fresh")
		return
	}
	s.logger.Info("Loaded previously blocked MACs", "count", n)
}

// Serve accepts connections until ctx is cancelled, then shuts down: stop
// accepting, close sessions (after the optional drain), log final stats and
// save the blocklist one last time.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("server: Serve called before Listen")
	}

	s.logger.Info("Listening", "addr", ln.Addr().String())

	// Sessions outlive ctx so the drain window can let them finish.
	sessCtx, closeSessions := context.WithCancel(context.WithoutCancel(ctx))
	defer closeSessions()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				break
			}
			// Transient (EMFILE, ECONNABORTED): keep serving.
			backoff = nextBackoff(backoff)
			s.logger.WithError(err).Warn("Accept error, retrying", "backoff", backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		s.sessions.Add(1)
		s.served.Add(1)
		go func() {
			defer s.sessions.Done()
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("CRITICAL: session handler panicked", "panic", r)
				}
			}()
			s.handler.Serve(sessCtx, conn)
		}()
	}

	s.shutdown(closeSessions)
	return nil
}

func (s *Server) shutdown(closeSessions context.CancelFunc) {
	s.logger.Info("Shutting down")

	if s.drain > 0 {
		if !waitTimeout(&s.sessions, s.drain) {
			s.logger.Warn("Drain timeout reached, closing open sessions", "timeout", s.drain)
		}
	}
	closeSessions()
	s.sessions.Wait()

	s.logger.Info(fmt.Sprintf("Final stats: %d MACs blocked", s.registry.Count()), "sessions_served", s.served.Load())
	if err := s.registry.Save(); err != nil {
		s.logger.WithError(err).Warn("Failed to save blocklist on shutdown")
	}
}

func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}
