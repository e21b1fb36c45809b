// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Crashmill
// components.
//
// Configuration is loaded from a single file specified by:
//   - CRASHMILL_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
// Every field has a sensible default so a collector can run with an
// empty file on a stock system layout.
package config
