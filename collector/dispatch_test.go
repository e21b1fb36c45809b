// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/crashmill-project/crashmill/lib/config"
	"github.com/crashmill-project/crashmill/status"
)

// testDispatcher builds a dispatcher over temp roots. The log-service
// socket points nowhere, so supplementary log fetches fail fast and
// get omitted, same as on a machine without the log daemon.
func testDispatcher(t *testing.T) (*Dispatcher, *config.Config) {
	t.Helper()
	cfg := &config.Config{
		Spool: config.SpoolConfig{
			Root:              t.TempDir(),
			MaxUploadBytes:    1 << 20,
			MaxDirectoryFiles: 32,
			Compression:       "gzip",
			Group:             "crash-access",
		},
		Kernel: config.KernelConfig{
			PstoreMount:   filepath.Join(t.TempDir(), "pstore"),
			BiosLogPath:   filepath.Join(t.TempDir(), "bios_log"),
			EventLogPath:  filepath.Join(t.TempDir(), "eventlog"),
			WatchdogSysfs: filepath.Join(t.TempDir(), "watchdog"),
		},
		EC: config.ECConfig{DebugFSRoot: t.TempDir()},
		Tools: config.ToolsConfig{
			CoreConverter: "/nonexistent/core2md",
			ECDecoder:     "/nonexistent/ectool",
		},
		LogService: config.LogServiceConfig{
			SocketPath:   filepath.Join(t.TempDir(), "no-such.sock"),
			FetchTimeout: 100 * time.Millisecond,
		},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDispatcher(cfg, logger), cfg
}

func TestDispatchChromeDump(t *testing.T) {
	dispatcher, cfg := testDispatcher(t)

	dump := `ver:5:1.2.3upload_file_minidump"; filename="dump:4:MDMP`
	s := dispatcher.Dispatch(context.Background(), Source{
		Kind:     SourceChromeDump,
		ExecName: "chrome",
		PID:      1234,
		Dump:     []byte(dump),
	})
	if s != status.Success {
		t.Fatalf("Dispatch = %v", s)
	}
	dumps, _ := filepath.Glob(filepath.Join(cfg.Spool.Root, "chrome.*.1234.dmp"))
	if len(dumps) != 1 {
		t.Fatalf("want one minidump, got %v", dumps)
	}
}

func TestDispatchScriptEngineError(t *testing.T) {
	dispatcher, cfg := testDispatcher(t)

	dump := `ver:5:1.2.3upload_file_js_stack"; filename="stack:5:stack`
	s := dispatcher.Dispatch(context.Background(), Source{
		Kind:         SourceChromeDump,
		ExecName:     "chrome",
		PID:          1234,
		Dump:         []byte(dump),
		ScriptEngine: true,
	})
	if s != status.Success {
		t.Fatalf("Dispatch = %v", s)
	}
	meta := readDispatchMeta(t, cfg.Spool.Root)
	if !strings.Contains(meta, "collector=js_error\n") {
		t.Errorf("meta missing js_error collector line:\n%s", meta)
	}
}

func TestDispatchVMSkipsHostLogs(t *testing.T) {
	dispatcher, cfg := testDispatcher(t)

	dump := `ver:5:1.2.3upload_file_minidump"; filename="dump:4:MDMP`
	s := dispatcher.Dispatch(context.Background(), Source{
		Kind:     SourceVM,
		ExecName: "guest-chrome",
		PID:      55,
		Dump:     []byte(dump),
	})
	if s != status.Success {
		t.Fatalf("Dispatch = %v", s)
	}
	meta := readDispatchMeta(t, cfg.Spool.Root)
	if strings.Contains(meta, "upload_file_dmesg") {
		t.Errorf("vm record carries host dmesg:\n%s", meta)
	}
}

func TestDispatchKernelNoCrash(t *testing.T) {
	dispatcher, _ := testDispatcher(t)
	s := dispatcher.Dispatch(context.Background(), Source{Kind: SourceKernelPstore})
	if s != status.NoCrashFound {
		t.Fatalf("Dispatch = %v, want %v", s, status.NoCrashFound)
	}
}

func TestDispatchECNoBuffer(t *testing.T) {
	dispatcher, _ := testDispatcher(t)
	s := dispatcher.Dispatch(context.Background(), Source{Kind: SourceECPanic})
	if s != status.NoCrashFound {
		t.Fatalf("Dispatch = %v, want %v", s, status.NoCrashFound)
	}
}

func TestDispatchEarlyCrash(t *testing.T) {
	dispatcher, cfg := testDispatcher(t)

	core := bytes.Repeat([]byte{0x11}, 32)
	s := dispatcher.Dispatch(context.Background(), Source{
		Kind:           SourceUserProcess,
		ExecName:       "earlybird",
		PID:            9,
		EarlyCore:      bytes.NewReader(core),
		EarlyCoreLimit: 32,
	})
	if s != status.CollectedEarlyCrash {
		t.Fatalf("Dispatch = %v, want %v", s, status.CollectedEarlyCrash)
	}
	cores, _ := filepath.Glob(filepath.Join(cfg.Spool.Root, "earlybird.*.9.core"))
	if len(cores) != 1 {
		t.Fatalf("want one core, got %v", cores)
	}
}

func TestDispatchUnknownKind(t *testing.T) {
	dispatcher, cfg := testDispatcher(t)
	s := dispatcher.Dispatch(context.Background(), Source{Kind: SourceKind(99)})
	if s != status.InvalidCrashSource {
		t.Fatalf("Dispatch = %v, want %v", s, status.InvalidCrashSource)
	}
	entries, err := os.ReadDir(cfg.Spool.Root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("spool not empty: %v", entries)
	}
}

func readDispatchMeta(t *testing.T, dir string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.meta"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("want exactly one .meta file, got %v (err %v)", matches, err)
	}
	content, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	return string(content)
}
