// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

// Package spool is the artifact writer shared by every collector. It
// owns the crash spool directory layout, allocates per-crash dump
// basenames, writes files with symlink-attack protection, tracks the
// per-crash byte budget, compresses log streams, and emits the final
// .meta descriptor the upload client consumes.
//
// The collector runs privileged and the spool directories are
// reachable by unprivileged users, so every file creation goes through
// an exclusive no-follow open: an existing path — regular file or
// symlink — is refused, never followed or truncated. This is a single
// atomic primitive, not a check-then-open sequence.
package spool
