// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

package ecpanic

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/crashmill-project/crashmill/lib/config"
	"github.com/crashmill-project/crashmill/spool"
	"github.com/crashmill-project/crashmill/status"
)

const ecExecName = "embedded-controller"

// Decoder turns the raw panic buffer into the human-readable panic
// report that becomes the record's payload. The production
// implementation execs the EC tool; tests inject a fake.
type Decoder interface {
	Decode(ctx context.Context, panicInfo []byte) ([]byte, error)
}

// ExecDecoder feeds the panic buffer to the EC tool on stdin and
// takes its stdout as the decoded report.
type ExecDecoder struct {
	Binary string
}

func (e ExecDecoder) Decode(ctx context.Context, panicInfo []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, e.Binary, "parsepanicinfo")
	cmd.Stdin = bytes.NewReader(panicInfo)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Binary, err)
	}
	return output, nil
}

// Collector turns EC panic buffers into finished crash records.
type Collector struct {
	writer  *spool.Writer
	decoder Decoder
	cfg     config.ECConfig
	logger  *slog.Logger
}

func New(writer *spool.Writer, decoder Decoder, cfg config.ECConfig, logger *slog.Logger) *Collector {
	return &Collector{writer: writer, decoder: decoder, cfg: cfg, logger: logger}
}

// Collect checks the EC panic buffer and spools a crash record when a
// fresh panic is present. Short and stale buffers write nothing at
// all, not even a spool directory entry; stale is the expected common
// case on every boot after a collected panic.
func (c *Collector) Collect(ctx context.Context) status.Status {
	info, s := readPanicInfo(c.cfg.DebugFSRoot)
	if s != status.Success {
		if s == status.NoCrashFound {
			c.logger.Debug("no ec panic buffer")
		} else {
			c.logger.Error("ec panic buffer rejected", "status", s)
		}
		return s
	}
	if isStale(info) {
		c.logger.Debug("ec panic already collected on a prior boot")
		return status.StaleCrash
	}

	decoded, err := c.decoder.Decode(ctx, info)
	if err != nil {
		c.logger.Error("ec panic decode failed", "error", err)
		return status.PanicInfoDecodeFailed
	}

	directory, s := c.writer.GetOrCreateSpoolDirectory(spool.SystemOwner)
	if s != status.Success {
		return s
	}
	record := c.writer.NewRecord(directory, ecExecName, 0)
	if s := record.WritePayload("eccrash", decoded); s != status.Success {
		return s
	}
	record.AddAttachment("panicinfo", info, false)

	if consoleLog, err := os.ReadFile(filepath.Join(c.cfg.DebugFSRoot, consoleLogFile)); err == nil {
		record.AddAttachment("ec_console.log", consoleLog, true)
	}
	if s := c.attachCoredump(record, info); !s.IsSuccess() {
		c.logger.Warn("ec coredump omitted", "status", s)
	}

	s, total := record.Finish(
		spool.MetaLine{Key: "collector", Value: "ec"},
		spool.MetaLine{Key: "severity", Value: "warning"},
		spool.MetaLine{Key: "product", Value: "Platform"},
	)
	if s != status.Success {
		return s
	}
	c.logger.Info("ec panic collected", "basename", record.Basename, "bytes", total)
	return status.Success
}

// attachCoredump attaches the EC coredump when one exists and its
// panic-info snapshot matches the live buffer. A coredump left over
// from an unrelated earlier panic must never ride along on this
// record, so a mismatch drops it.
func (c *Collector) attachCoredump(record *spool.Record, info []byte) status.Status {
	coredump, err := os.ReadFile(filepath.Join(c.cfg.DebugFSRoot, coredumpFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return status.NoCrashFound
		}
		return status.CoredumpReadFailed
	}
	if !matchesPanicInfo(coredump, info) {
		return status.CoredumpMismatch
	}
	return record.AddAttachment("coredump", coredump, true)
}
