// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

package usercore

import (
	"io"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/crashmill-project/crashmill/spool"
	"github.com/crashmill-project/crashmill/status"
)

// procSnapshotFiles are the /proc/<pid> entries the minidump converter
// reads. The order is fixed so failures log deterministically.
var procSnapshotFiles = []string{
	"auxv",
	"cmdline",
	"environ",
	"maps",
	"status",
	"syscall",
}

// CopyOffProcFiles snapshots the converter's /proc inputs for pid into
// destDir. The process directory is opened once and every file is
// read through an Openat on that descriptor, so a recycled pid cannot
// swap a different process in between copies. destDir must already
// exist.
func CopyOffProcFiles(procRoot string, pid int, destDir string) status.Status {
	processDir := filepath.Join(procRoot, strconv.Itoa(pid))
	dirFD, err := unix.Open(processDir, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return status.ProcDirOpenFailed
	}
	defer unix.Close(dirFD)

	for _, name := range procSnapshotFiles {
		fd, err := unix.Openat(dirFD, name, unix.O_RDONLY|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
		if err != nil {
			return status.ProcFileCopyFailed
		}
		source := os.NewFile(uintptr(fd), filepath.Join(processDir, name))
		// /proc files report zero size; read rather than stat.
		data, err := io.ReadAll(source)
		source.Close()
		if err != nil {
			return status.ProcFileCopyFailed
		}
		if written := spool.WriteNewFile(filepath.Join(destDir, name), data); written < len(data) {
			return status.ProcFileCopyFailed
		}
	}
	return status.Success
}

// ValidateProcFiles rejects a snapshot whose maps file came back
// empty, which happens when the crashing process was reaped before
// the copy ran. A converter fed an empty maps produces a useless
// minidump, so the record is better left unconverted.
func ValidateProcFiles(snapshotDir string) status.Status {
	maps, err := os.ReadFile(filepath.Join(snapshotDir, "maps"))
	if err != nil || len(maps) == 0 {
		return status.EmptyProcMaps
	}
	return status.Success
}
