// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

package usercore

import (
	"io"
	"math/bits"
	"os"

	"github.com/crashmill-project/crashmill/status"
)

// ELF identification bytes checked before the core file is allowed
// anywhere near the converter. Only the ident prefix is parsed; the
// rest of the file is untrusted input that belongs to the crashed
// process.
const (
	elfIdentLength = 5 // magic plus the class byte

	elfClassOffset = 4
	elfClass32     = 1
	elfClass64     = 2
)

var elfMagic = [4]byte{0x7f, 'E', 'L', 'F'}

// ValidateCoreFile checks that path starts with a well-formed ELF
// ident of the class this build's converter can consume. A 32-bit
// core on a 64-bit build is reported distinctly from garbage: the
// former is a real crash the fleet operator may want to know about,
// the latter is usually kernel-side truncation.
func ValidateCoreFile(path string) status.Status {
	file, err := os.Open(path)
	if err != nil {
		return status.CoreFileOpenFailed
	}
	defer file.Close()

	var ident [elfIdentLength]byte
	if _, err := io.ReadFull(file, ident[:]); err != nil {
		return status.BadCoreMagic
	}
	if [4]byte(ident[:4]) != elfMagic {
		return status.BadCoreMagic
	}
	switch class := ident[elfClassOffset]; {
	case class == elfClass64 && bits.UintSize == 64:
		return status.Success
	case class == elfClass32 && bits.UintSize == 32:
		return status.Success
	case class == elfClass32 || class == elfClass64:
		return status.UnsupportedCoreClass
	default:
		return status.BadCoreMagic
	}
}
