// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

package ecpanic

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/crashmill-project/crashmill/status"
)

// panicBuffer builds a plausible fixed-layout buffer with the given
// flags byte.
func panicBuffer(flags byte) []byte {
	buffer := []byte{0x01, 0x02, flags, 0x04, 0x05, 0x06, 0x07, 0x08}
	return buffer
}

func TestReadPanicInfo(t *testing.T) {
	root := t.TempDir()
	if _, s := readPanicInfo(root); s != status.NoCrashFound {
		t.Errorf("missing buffer: status = %v, want %v", s, status.NoCrashFound)
	}

	if err := os.WriteFile(filepath.Join(root, panicInfoFile), []byte{0x01, 0x02}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, s := readPanicInfo(root); s != status.PanicInfoTooShort {
		t.Errorf("short buffer: status = %v, want %v", s, status.PanicInfoTooShort)
	}

	if err := os.WriteFile(filepath.Join(root, panicInfoFile), panicBuffer(0), 0o644); err != nil {
		t.Fatal(err)
	}
	info, s := readPanicInfo(root)
	if s != status.Success {
		t.Fatalf("valid buffer: status = %v", s)
	}
	if isStale(info) {
		t.Error("fresh buffer reported stale")
	}
	if !isStale(panicBuffer(flagStale)) {
		t.Error("stale bit not detected")
	}
	if !isStale(panicBuffer(flagStale | 0x01)) {
		t.Error("stale bit not detected among other flags")
	}
}

func TestMatchesPanicInfo(t *testing.T) {
	info := panicBuffer(flagStale)

	tests := []struct {
		name     string
		coredump []byte
		want     bool
	}{
		{"identical snapshot", append(panicBuffer(flagStale), 0xde, 0xad), true},
		{"differs only in flags byte", append(panicBuffer(0), 0xde, 0xad), true},
		{"differs elsewhere", append([]byte{0x01, 0x02, flagStale, 0x04, 0x05, 0x06, 0x07, 0xff}, 0xde), false},
		{"coredump shorter than buffer", panicBuffer(flagStale)[:4], false},
		{"empty coredump", nil, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := matchesPanicInfo(test.coredump, info); got != test.want {
				t.Errorf("matchesPanicInfo = %v, want %v", got, test.want)
			}
		})
	}
}
