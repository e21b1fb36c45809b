// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

package spool

import (
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/crashmill-project/crashmill/status"
)

func TestGetOrCreateSpoolDirectorySystem(t *testing.T) {
	writer, root := testWriter(t, 1<<20)

	directory, s := writer.GetOrCreateSpoolDirectory(SystemOwner)
	if s != status.Success {
		t.Fatalf("status = %v", s)
	}
	if directory != root {
		t.Errorf("system spool = %q, want %q", directory, root)
	}
}

func TestGetOrCreateSpoolDirectoryUser(t *testing.T) {
	writer, root := testWriter(t, 1<<20)

	uid := os.Getuid() + 1000
	if os.Geteuid() == 0 {
		// Enforcement resolves the uid, so privileged runs must
		// target a user that actually exists.
		nobody, err := user.Lookup("nobody")
		if err != nil {
			t.Skip("no unprivileged user available")
		}
		uid, _ = strconv.Atoi(nobody.Uid)
	}
	directory, s := writer.GetOrCreateSpoolDirectory(uid)
	if s != status.Success {
		t.Fatalf("status = %v", s)
	}
	want := filepath.Join(root, strconv.Itoa(uid))
	if directory != want {
		t.Errorf("user spool = %q, want %q", directory, want)
	}
	if info, err := os.Stat(directory); err != nil || !info.IsDir() {
		t.Errorf("user spool directory not created: %v", err)
	}

	// Idempotent: a second call resolves the same directory.
	again, s := writer.GetOrCreateSpoolDirectory(uid)
	if s != status.Success || again != directory {
		t.Errorf("second call = (%q, %v)", again, s)
	}
}

func TestGetOrCreateSpoolDirectoryOutOfCapacity(t *testing.T) {
	writer, root := testWriter(t, 1<<20)
	writer.cfg.MaxDirectoryFiles = 2

	for i := 0; i < 2; i++ {
		path := filepath.Join(root, "crash."+strconv.Itoa(i)+".meta")
		if err := os.WriteFile(path, []byte("done=1\n"), 0o640); err != nil {
			t.Fatal(err)
		}
	}

	if _, s := writer.GetOrCreateSpoolDirectory(SystemOwner); s != status.SpoolOutOfCapacity {
		t.Errorf("status = %v, want SpoolOutOfCapacity", s)
	}
}

func TestGetOrCreateSpoolDirectoryRefusesSymlink(t *testing.T) {
	writer, root := testWriter(t, 1<<20)

	elsewhere := t.TempDir()
	link := filepath.Join(root, "1001")
	if err := os.Symlink(elsewhere, link); err != nil {
		t.Fatal(err)
	}

	if _, s := writer.GetOrCreateSpoolDirectory(1001); s != status.SpoolDirectoryOpenFailed {
		t.Errorf("status = %v, want SpoolDirectoryOpenFailed", s)
	}
}
