// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

package logsnap

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/crashmill-project/crashmill/lib/codec"
)

// dialTimeout is the maximum time to wait for a connection to the
// log-collection service socket. Separate from the per-call fetch
// timeout — it covers only the connect phase.
const dialTimeout = 5 * time.Second

// maxResponseSize bounds a single CBOR response. Dmesg snapshots are
// capped at 1 MB by the service; 4 MB leaves room for GPU error state
// dumps, which can be larger.
const maxResponseSize = 4 * 1024 * 1024

// Actions understood by the log-collection service.
const (
	ActionDmesg         = "dmesg"
	ActionGPUErrorState = "gpu_error_state"
)

// ServiceError is returned by fetches when the service responds with
// ok=false. Connection and decode failures are returned as plain
// errors instead.
type ServiceError struct {
	Action  string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("log service error on %q: %s", e.Action, e.Message)
}

// request is the wire-format envelope the client sends.
type request struct {
	Action string `cbor:"action"`
}

// response is the wire-format envelope the service sends back. Data
// holds the raw log bytes for the requested action.
type response struct {
	OK    bool   `cbor:"ok"`
	Error string `cbor:"error,omitempty"`
	Data  []byte `cbor:"data,omitempty"`
}

// Client fetches supplementary log snapshots. Each fetch opens a new
// connection, matching the service's one-request-per-connection model.
type Client struct {
	socketPath   string
	fetchTimeout time.Duration
}

// NewClient creates a client for the service at socketPath. Each
// fetch is bounded by fetchTimeout end to end.
func NewClient(socketPath string, fetchTimeout time.Duration) *Client {
	return &Client{socketPath: socketPath, fetchTimeout: fetchTimeout}
}

// FetchDmesg returns a snapshot of the kernel ring buffer.
func (c *Client) FetchDmesg(ctx context.Context) ([]byte, error) {
	return c.fetch(ctx, ActionDmesg)
}

// FetchGPUErrorState returns the GPU driver's error state dump, or an
// error if the service has none to give (no GPU, no recorded error).
func (c *Client) FetchGPUErrorState(ctx context.Context) ([]byte, error) {
	return c.fetch(ctx, ActionGPUErrorState)
}

// fetch performs one request-response cycle with the overall fetch
// deadline applied to dial, write, and read.
func (c *Client) fetch(ctx context.Context, action string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to log service: %w", err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if ok {
		conn.SetDeadline(deadline)
	}

	if err := codec.NewEncoder(conn).Encode(request{Action: action}); err != nil {
		return nil, fmt.Errorf("writing %q request: %w", action, err)
	}

	// Half-close the write side. CBOR is self-delimiting so this
	// isn't strictly necessary, but it lets the service's read side
	// see EOF cleanly.
	if unixConn, isUnix := conn.(*net.UnixConn); isUnix {
		unixConn.CloseWrite()
	}

	var reply response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&reply); err != nil {
		return nil, fmt.Errorf("reading %q response: %w", action, err)
	}
	if !reply.OK {
		return nil, &ServiceError{Action: action, Message: reply.Error}
	}
	return reply.Data, nil
}
