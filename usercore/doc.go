// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

// Package usercore collects crashes of user processes: it validates
// the kernel-provided ELF core file, snapshots the /proc state the
// minidump converter needs, drives the external core→minidump
// converter, and spools the result. A size-capped raw-copy path
// handles "early" crashes that happen before the crash handler
// registration completes.
//
// The /proc snapshot uses directory-relative opens against an already
// opened /proc/<pid> descriptor. The crashing process's pid can be
// recycled between path lookups, and /proc entries can be replaced by
// a racing attacker on some configurations — path-string
// concatenation is never used once the directory is open.
package usercore
