// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

package usercore

import (
	"math/bits"
	"os"
	"path/filepath"
	"testing"

	"github.com/crashmill-project/crashmill/status"
)

// coreFile writes data to a temp file and returns its path.
func coreFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "core")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// validCore64 is a minimal ELF64 core prefix: magic, 64-bit class,
// and some padding standing in for the rest of the header.
func validCore64() []byte {
	return []byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0, 0, 0, 0, 0}
}

func TestValidateCoreFile(t *testing.T) {
	native := status.UnsupportedCoreClass
	foreign := status.UnsupportedCoreClass
	if bits.UintSize == 64 {
		native = status.Success
	} else {
		foreign = status.Success
	}
	class32 := validCore64()
	class32[4] = 1
	classGarbage := validCore64()
	classGarbage[4] = 7

	tests := []struct {
		name string
		data []byte
		want status.Status
	}{
		{"elf64", validCore64(), native},
		{"elf32", class32, foreign},
		{"bogus class", classGarbage, status.BadCoreMagic},
		{"wrong magic", []byte("MDMP0000"), status.BadCoreMagic},
		{"truncated ident", []byte{0x7f, 'E', 'L'}, status.BadCoreMagic},
		{"empty", nil, status.BadCoreMagic},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := ValidateCoreFile(coreFile(t, test.data)); got != test.want {
				t.Errorf("ValidateCoreFile = %v, want %v", got, test.want)
			}
		})
	}
}

func TestValidateCoreFileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no-such-core")
	if got := ValidateCoreFile(path); got != status.CoreFileOpenFailed {
		t.Errorf("ValidateCoreFile = %v, want %v", got, status.CoreFileOpenFailed)
	}
}
