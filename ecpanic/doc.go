// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

// Package ecpanic collects panic reports from the embedded controller.
// The EC exposes its last panic as a fixed-layout binary buffer under
// debugfs; the buffer survives reboots, so a staleness bit
// distinguishes a fresh panic from one already collected on a prior
// boot. A separately captured coredump is attached only when its
// embedded panic-info snapshot proves it belongs to the same event.
package ecpanic
