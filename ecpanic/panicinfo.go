// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

package ecpanic

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/crashmill-project/crashmill/status"
)

// Debugfs entries the EC driver exposes. panicinfo is the mandatory
// one; the console log and coredump are present only on ECs that
// support them.
const (
	panicInfoFile  = "panicinfo"
	consoleLogFile = "console_log"
	coredumpFile   = "coredump"
)

// Panic buffer layout constants. The flags byte sits at a fixed offset
// in every layout version the EC has ever shipped; the stale bit is
// set by the first reader so the same panic is not reported again
// after the next reboot.
const (
	flagsByteOffset = 2
	flagStale       = 0x08

	minPanicInfoSize = flagsByteOffset + 1
)

// readPanicInfo reads and structurally validates the panic buffer. A
// missing file means the EC has never panicked, which is the normal
// case and not an error.
func readPanicInfo(debugFSRoot string) ([]byte, status.Status) {
	info, err := os.ReadFile(filepath.Join(debugFSRoot, panicInfoFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, status.NoCrashFound
		}
		return nil, status.PanicInfoReadFailed
	}
	if len(info) < minPanicInfoSize {
		return nil, status.PanicInfoTooShort
	}
	return info, status.Success
}

func isStale(info []byte) bool {
	return info[flagsByteOffset]&flagStale != 0
}

// matchesPanicInfo reports whether the coredump's leading panic-info
// snapshot describes the same panic event as the live buffer. The
// flags byte is the only byte allowed to differ: the snapshot was
// taken before the stale bit was set.
func matchesPanicInfo(coredump, info []byte) bool {
	if len(coredump) < len(info) {
		return false
	}
	for i := range info {
		if i == flagsByteOffset {
			continue
		}
		if coredump[i] != info[i] {
			return false
		}
	}
	return true
}
