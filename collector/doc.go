// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

// Package collector wires the per-subsystem crash collectors together
// behind a single dispatch entry point. Each crash event arrives as a
// tagged Source; dispatch routes it to exactly one collector and
// returns that collector's status verbatim.
package collector
