// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

package logsnap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/crashmill-project/crashmill/lib/codec"
)

// SnapshotFunc produces the raw bytes for one action. Returning an
// error yields an ok=false response with the error's message.
type SnapshotFunc func(ctx context.Context) ([]byte, error)

// serverReadTimeout is how long the server waits for the client's
// request. A well-behaved client sends it immediately after
// connecting.
const serverReadTimeout = 30 * time.Second

// serverWriteTimeout is how long the server waits for the response
// to be written.
const serverWriteTimeout = 10 * time.Second

// maxRequestSize bounds a single CBOR request. Requests carry only an
// action name; 64 KB is already generous.
const maxRequestSize = 64 * 1024

// Server serves snapshot requests on a unix socket. It is embedded by
// the log-collection daemon and by collector tests. Register actions
// with Handle before calling Serve.
type Server struct {
	socketPath string
	handlers   map[string]SnapshotFunc
	logger     *slog.Logger

	// activeConnections tracks in-flight handlers for graceful
	// shutdown. Serve waits for all of them before returning.
	activeConnections sync.WaitGroup
}

// NewServer creates a server that will listen on socketPath.
func NewServer(socketPath string, logger *slog.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		handlers:   make(map[string]SnapshotFunc),
		logger:     logger,
	}
}

// Handle registers a snapshot producer for the given action name.
// Panics on duplicate registration — that is a wiring bug, not a
// runtime condition.
func (s *Server) Handle(action string, handler SnapshotFunc) {
	if _, exists := s.handlers[action]; exists {
		panic(fmt.Sprintf("logsnap.Server: duplicate handler for action %q", action))
	}
	s.handlers[action] = handler
}

// Serve accepts connections until ctx is cancelled, then stops
// accepting and waits for active handlers to complete. Any stale
// socket file at the configured path is removed before listening, and
// the socket file is removed on return.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("log snapshot server listening", "path", s.socketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

// handleConnection processes one request-response cycle.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(serverReadTimeout))

	var incoming request
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&incoming); err != nil {
		if errors.Is(err, io.EOF) {
			// Client connected but sent nothing.
			return
		}
		s.writeResponse(conn, response{OK: false, Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}
	if incoming.Action == "" {
		s.writeResponse(conn, response{OK: false, Error: "missing required field: action"})
		return
	}

	handler, exists := s.handlers[incoming.Action]
	if !exists {
		s.writeResponse(conn, response{OK: false, Error: fmt.Sprintf("unknown action %q", incoming.Action)})
		return
	}

	data, err := handler(ctx)
	if err != nil {
		s.logger.Debug("snapshot failed", "action", incoming.Action, "error", err)
		s.writeResponse(conn, response{OK: false, Error: err.Error()})
		return
	}
	s.writeResponse(conn, response{OK: true, Data: data})
}

// writeResponse sends the response envelope. Write failures are
// logged at debug level — the connection is closing regardless.
func (s *Server) writeResponse(conn net.Conn, reply response) {
	conn.SetWriteDeadline(time.Now().Add(serverWriteTimeout))
	if err := codec.NewEncoder(conn).Encode(reply); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}
