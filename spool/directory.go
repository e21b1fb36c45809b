// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

package spool

import (
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/crashmill-project/crashmill/lib/config"
	"github.com/crashmill-project/crashmill/status"
)

// systemDirMode is the mode of the root-owned system spool directory.
const systemDirMode uint32 = 0o700

// userDirMode is the mode of a per-user spool directory: setgid so
// spooled files inherit the crash-access group, group-writable so the
// upload client can remove uploaded records.
const userDirMode uint32 = 0o2770

// Writer creates spool directories and crash records. One Writer
// serves all collectors in a daemon; it carries no per-crash state.
type Writer struct {
	cfg    config.SpoolConfig
	tag    CompressionTag
	logger *slog.Logger
}

// NewWriter creates a Writer from the spool configuration. The
// compression name in the configuration has already been validated by
// config.Validate, so an unknown tag here is a programming error.
func NewWriter(cfg config.SpoolConfig, logger *slog.Logger) *Writer {
	tag, err := ParseCompressionTag(cfg.Compression)
	if err != nil {
		panic("spool: " + err.Error())
	}
	return &Writer{cfg: cfg, tag: tag, logger: logger}
}

// SystemOwner is the uid of the system spool directory owner. Crashes
// of system daemons and the kernel spool here.
const SystemOwner = 0

// GetOrCreateSpoolDirectory resolves the spool directory for the given
// owner uid, creating it with the correct mode and ownership if it is
// absent. The system owner gets the spool root itself; user crashes
// get a per-uid subdirectory.
//
// A directory already holding MaxDirectoryFiles files is reported as
// out-of-capacity — a device crashing in a loop must not fill the disk
// with artifacts nobody will ever upload.
func (w *Writer) GetOrCreateSpoolDirectory(ownerUID int) (string, status.Status) {
	directory := w.cfg.Root
	unixMode := systemDirMode
	perm := os.FileMode(0o700)
	if ownerUID != SystemOwner {
		directory = filepath.Join(w.cfg.Root, strconv.Itoa(ownerUID))
		unixMode = userDirMode
		perm = os.FileMode(0o770) | os.ModeSetgid
	}

	if err := os.MkdirAll(directory, perm); err != nil {
		w.logger.Error("spool directory create failed", "directory", directory, "error", err)
		return "", status.SpoolDirectoryCreateFailed
	}

	// Open the directory itself with O_NOFOLLOW and validate through
	// the descriptor, so the checks below cannot be raced against a
	// symlink swap of a path component we just created.
	fd, err := unix.Open(directory, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
	if err != nil {
		w.logger.Error("spool directory open failed", "directory", directory, "error", err)
		return "", status.SpoolDirectoryOpenFailed
	}
	defer unix.Close(fd)

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		w.logger.Error("spool directory stat failed", "directory", directory, "error", err)
		return "", status.SpoolDirectoryStatFailed
	}

	if s := w.enforceOwnership(fd, directory, ownerUID, &stat, unixMode); s != status.Success {
		return "", s
	}

	entries, err := os.ReadDir(directory)
	if err != nil {
		w.logger.Error("spool directory read failed", "directory", directory, "error", err)
		return "", status.SpoolDirectoryOpenFailed
	}
	if len(entries) >= w.cfg.MaxDirectoryFiles {
		w.logger.Warn("spool directory out of capacity",
			"directory", directory, "files", len(entries), "limit", w.cfg.MaxDirectoryFiles)
		return "", status.SpoolOutOfCapacity
	}

	return directory, status.Success
}

// enforceOwnership makes the directory's uid/gid/mode match the owner.
// Ownership changes need CAP_CHOWN; an unprivileged collector (tests,
// developer runs) skips enforcement — it could not have created a
// directory for another uid in the first place.
func (w *Writer) enforceOwnership(fd int, directory string, ownerUID int, stat *unix.Stat_t, unixMode uint32) status.Status {
	if os.Geteuid() != 0 {
		return status.Success
	}

	wantGID := 0
	if ownerUID != SystemOwner {
		group, err := user.LookupGroup(w.cfg.Group)
		if err != nil {
			w.logger.Error("spool group lookup failed", "group", w.cfg.Group, "error", err)
			return status.SpoolGroupLookupFailed
		}
		gid, err := strconv.Atoi(group.Gid)
		if err != nil {
			w.logger.Error("spool group lookup failed", "group", w.cfg.Group, "error", err)
			return status.SpoolGroupLookupFailed
		}
		if _, err := user.LookupId(strconv.Itoa(ownerUID)); err != nil {
			w.logger.Error("spool user lookup failed", "uid", ownerUID, "error", err)
			return status.SpoolUserLookupFailed
		}
		wantGID = gid
	}

	if int(stat.Uid) != ownerUID || int(stat.Gid) != wantGID {
		if err := unix.Fchown(fd, ownerUID, wantGID); err != nil {
			w.logger.Error("spool directory chown failed", "directory", directory, "error", err)
			return status.SpoolDirectoryBadOwnership
		}
	}
	if stat.Mode&0o7777 != unixMode {
		if err := unix.Fchmod(fd, unixMode); err != nil {
			w.logger.Error("spool directory chmod failed", "directory", directory, "error", err)
			return status.SpoolDirectoryBadOwnership
		}
	}
	return status.Success
}
