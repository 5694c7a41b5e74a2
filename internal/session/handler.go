// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package session runs the line protocol for one client connection.
package session

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"

	"github.com/google/uuid"

	"grimm.is/macwall/internal/audit"
	"grimm.is/macwall/internal/blocklist"
	"grimm.is/macwall/internal/config"
	ierrors "grimm.is/macwall/internal/errors"
	"grimm.is/macwall/internal/logging"
	"grimm.is/macwall/internal/metrics"
	"grimm.is/macwall/internal/validation"
)

// Registry is the blocklist surface a session needs.
type Registry interface {
	Block(ctx context.Context, raw string) (string, error)
	Unblock(ctx context.Context, raw string) (string, error)
	IsBlocked(raw string) (bool, error)
	List() []string
}

// Options configures a Handler.
type Options struct {
	Registry     Registry
	Logger       *logging.Logger
	Metrics      *metrics.Metrics
	MaxLineBytes int
}

// Handler serves sessions. One Handler is shared by all connections.
type Handler struct {
	registry Registry
	logger   *logging.Logger
	metrics  *metrics.Metrics
	maxLine  int
}

// NewHandler creates a Handler.
func NewHandler(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = logging.WithComponent("session")
	}
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = config.DefaultMaxLineBytes
	}
	return &Handler{
		registry: opts.Registry,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		maxLine:  opts.MaxLineBytes,
	}
}

// Serve reads requests from conn until EOF, a read or write error, or ctx
// cancellation. conn is always closed on return.
func (h *Handler) Serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	defer h.metrics.SessionOpened()()

	id := uuid.NewString()
	peer := conn.RemoteAddr().String()
	ctx, cancel := context.WithCancel(audit.WithSession(ctx, id, peer))
	defer cancel()

	// Unblock the pending read when the server shuts sessions down.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	log := h.logger.With("session", id, "peer", peer)
	log.Info("Client connected")

	scanner := bufio.NewScanner(conn)
	// Scanner's limit is the larger of max and cap(buf).
	scanner.Buffer(make([]byte, 0, min(4096, h.maxLine)), h.maxLine)

	for scanner.Scan() {
		cmd := Parse(scanner.Text())
		if cmd.Kind == KindEmpty {
			continue
		}
		h.metrics.ObserveCommand(cmd.Kind.String())

		resp := h.Dispatch(ctx, cmd)
		log.Debug("Command handled", "command", cmd.Kind.String(), "arg", validation.SanitizeString(cmd.Arg), "response", resp)

		if _, err := io.WriteString(conn, resp+"\n"); err != nil {
			log.WithError(ierrors.Wrap(err, ierrors.KindConnection, "write response")).Debug("Write failed, closing session")
			return
		}
	}

	switch err := scanner.Err(); {
	case err == nil, ctx.Err() != nil, errors.Is(err, net.ErrClosed):
		log.Info("Client disconnected")
	case errors.Is(err, bufio.ErrTooLong):
		log.Warn("Request line too long, closing session", "limit", h.maxLine)
	default:
		log.WithError(ierrors.Wrap(err, ierrors.KindConnection, "read request")).Info("Client disconnected")
	}
}

// Dispatch executes cmd against the registry and returns the response line without its terminator.
func (h *Handler) Dispatch(ctx context.Context, cmd Command) string {
	switch cmd.Kind {
	case KindUnblock:
		msg, err := h.registry.Unblock(ctx, cmd.Arg)
		switch {
		case err == nil:
			return msg
		case blocklist.IsInvalidFormat(err):
			return invalidFormat(cmd.Arg)
		case blocklist.IsNotBlocked(err):
			return notBlockedResponse(cmd.Arg)
		default:
			return err.Error()
		}

	case KindList:
		return listResponse(h.registry.List())

	case KindCheck:
		blocked, err := h.registry.IsBlocked(cmd.Arg)
		if err != nil {
			return invalidFormat(cmd.Arg)
		}
		return checkResponse(cmd.Arg, blocked)

	default:
		msg, err := h.registry.Block(ctx, cmd.Arg)
		switch {
		case err == nil:
			h.logger.Debug("Block result", "mac", cmd.Arg, "message", msg)
			return blockedResponse(cmd.Arg)
		case blocklist.IsInvalidFormat(err):
			return invalidFormat(cmd.Arg)
		default:
			return blockFailedResponse(cmd.Arg, err)
		}
	}
}
