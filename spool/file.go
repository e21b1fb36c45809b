// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

package spool

import (
	"os"

	"golang.org/x/sys/unix"
)

// artifactMode is the permission mode for every spooled file. The
// upload client runs in the crash-access group and needs read; nobody
// needs write after creation.
const artifactMode = 0o640

// WriteNewFile creates path and writes data to it. The open uses
// O_CREAT|O_EXCL|O_NOFOLLOW: an existing path is refused — including a
// symlink planted by an unprivileged attacker racing the privileged
// collector — so a crash write can never be redirected or truncate a
// file it did not create.
//
// Returns the number of bytes written. A short count (including zero)
// means failure; the caller decides whether a partial file is kept for
// manual debugging or removed.
func WriteNewFile(path string, data []byte) int {
	fd, err := unix.Open(path,
		unix.O_CREAT|unix.O_EXCL|unix.O_WRONLY|unix.O_NOFOLLOW|unix.O_CLOEXEC,
		artifactMode)
	if err != nil {
		return 0
	}
	file := os.NewFile(uintptr(fd), path)
	defer file.Close()

	written, _ := file.Write(data)
	return written
}

// WriteNewCompressedFile creates path with the same exclusive
// no-follow semantics as WriteNewFile and writes data through the
// given codec. Returns the compressed byte count on success and
// (false, 0) on any failure; a partially written file is removed so
// the spool never holds a truncated compressed stream.
func WriteNewCompressedFile(path string, data []byte, tag CompressionTag) (bool, int) {
	compressed, err := Compress(data, tag)
	if err != nil {
		return false, 0
	}
	written := WriteNewFile(path, compressed)
	if written != len(compressed) {
		os.Remove(path)
		return false, 0
	}
	return true, written
}
