// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

// Package logsnap is the client for the privileged log-collection
// service that snapshots supplementary diagnostics (kernel dmesg, GPU
// error state) on behalf of the collectors.
//
// The protocol is one CBOR request-response cycle per unix-socket
// connection: the client writes {action: "..."}, the service replies
// {ok, error, data}. Every call carries a deadline — the crash
// pipeline must never block indefinitely on a collaborator. Callers
// treat any failure (timeout, service down, error response) as "this
// optional attachment is omitted," log it, and continue.
package logsnap
