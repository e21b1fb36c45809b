// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

// Package pstore collects kernel crashes preserved across reboot in
// the pstore filesystem. Two backend drivers leave records there with
// different shapes: ramoops keeps one rotating dmesg file per crash,
// efi-pstore splits one crash into many small numbered variable files.
// The collector reassembles the parts, classifies the record, and
// spools only what is actionable (panics and records the kernel could
// not decode). Every discovered part is deleted from pstore before
// the collector returns, whatever the outcome — a record that failed
// to parse this boot will fail next boot too, and pstore space is
// tiny and non-volatile.
//
// When no panic record exists at all, the collector falls back to
// indirect evidence of an unclean reboot: a BIOS crash or radio
// controller error in the firmware log fragment from the previous
// boot, or a hardware watchdog reset flag. Any of those synthesizes a
// crash record so the fleet still learns about hangs that never
// reached the kernel's panic path.
package pstore
