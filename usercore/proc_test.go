// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

package usercore

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/crashmill-project/crashmill/status"
)

// fakeProcTree builds <root>/<pid>/ with the snapshot allow-list
// populated, returning the fake /proc root. maps gets real-looking
// content; the rest get one recognizable line each.
func fakeProcTree(t *testing.T, pid int) string {
	t.Helper()
	root := t.TempDir()
	processDir := filepath.Join(root, strconv.Itoa(pid))
	if err := os.Mkdir(processDir, 0o755); err != nil {
		t.Fatal(err)
	}
	contents := map[string]string{
		"auxv":    "\x21\x00\x00\x00",
		"cmdline": "sleep\x00300\x00",
		"environ": "HOME=/home/user\x00",
		"maps":    "00400000-00452000 r-xp 00000000 08:02 173521 /usr/bin/sleep\n",
		"status":  "Name:\tsleep\nPid:\t" + strconv.Itoa(pid) + "\n",
		"syscall": "230 0x0 0x0\n",
	}
	for name, content := range contents {
		if err := os.WriteFile(filepath.Join(processDir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestCopyOffProcFiles(t *testing.T) {
	procRoot := fakeProcTree(t, 4242)
	destDir := t.TempDir()

	if s := CopyOffProcFiles(procRoot, 4242, destDir); s != status.Success {
		t.Fatalf("CopyOffProcFiles = %v", s)
	}
	for _, name := range procSnapshotFiles {
		copied, err := os.ReadFile(filepath.Join(destDir, name))
		if err != nil {
			t.Fatalf("snapshot %s missing: %v", name, err)
		}
		original, _ := os.ReadFile(filepath.Join(procRoot, "4242", name))
		if string(copied) != string(original) {
			t.Errorf("snapshot %s = %q, want %q", name, copied, original)
		}
	}
}

func TestCopyOffProcFilesNoProcess(t *testing.T) {
	procRoot := t.TempDir()
	if s := CopyOffProcFiles(procRoot, 99, t.TempDir()); s != status.ProcDirOpenFailed {
		t.Errorf("CopyOffProcFiles = %v, want %v", s, status.ProcDirOpenFailed)
	}
}

func TestCopyOffProcFilesMissingEntry(t *testing.T) {
	procRoot := fakeProcTree(t, 4242)
	if err := os.Remove(filepath.Join(procRoot, "4242", "environ")); err != nil {
		t.Fatal(err)
	}
	if s := CopyOffProcFiles(procRoot, 4242, t.TempDir()); s != status.ProcFileCopyFailed {
		t.Errorf("CopyOffProcFiles = %v, want %v", s, status.ProcFileCopyFailed)
	}
}

func TestValidateProcFiles(t *testing.T) {
	dir := t.TempDir()
	if s := ValidateProcFiles(dir); s != status.EmptyProcMaps {
		t.Errorf("missing maps: ValidateProcFiles = %v, want %v", s, status.EmptyProcMaps)
	}

	if err := os.WriteFile(filepath.Join(dir, "maps"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if s := ValidateProcFiles(dir); s != status.EmptyProcMaps {
		t.Errorf("empty maps: ValidateProcFiles = %v, want %v", s, status.EmptyProcMaps)
	}

	if err := os.WriteFile(filepath.Join(dir, "maps"), []byte("00400000-00452000 r-xp\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if s := ValidateProcFiles(dir); s != status.Success {
		t.Errorf("populated maps: ValidateProcFiles = %v, want %v", s, status.Success)
	}
}
