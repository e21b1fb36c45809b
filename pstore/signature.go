// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

package pstore

import (
	"encoding/hex"
	"fmt"
	"regexp"

	"github.com/zeebo/blake3"
)

// crashFramePattern extracts the faulting symbol from a kernel dump:
// the instruction pointer lines x86 and arm64 print in panic output.
// The first match wins — it is the innermost frame the kernel
// reported, which is what groups duplicate crashes server-side.
var crashFramePattern = regexp.MustCompile(
	`(?m)(?:RIP: [0-9a-f]{4}:|PC is at |pc : )([A-Za-z0-9_]+)`)

// synthesizeSignature builds the stable crash signature recorded in
// the .meta sig line: kernel-<frame>-<hash8>. The frame token groups
// crashes by faulting function; the BLAKE3 content hash keeps two
// different crashes in the same function apart. The hash covers the
// full dump so the signature is byte-for-byte reproducible from the
// spooled payload.
func synthesizeSignature(kind string, dump []byte) string {
	token := kind
	if match := crashFramePattern.FindSubmatch(dump); match != nil {
		token = string(match[1])
	}
	hash := blake3.Sum256(dump)
	return fmt.Sprintf("kernel-%s-%s", token, hex.EncodeToString(hash[:4]))
}
