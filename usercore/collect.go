// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

package usercore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/crashmill-project/crashmill/spool"
	"github.com/crashmill-project/crashmill/status"
)

// ConverterRunner drives the external core→minidump converter. The
// production implementation execs the configured binary; tests inject
// a fake so conversion outcomes can be scripted without a real
// converter on PATH.
type ConverterRunner interface {
	Convert(ctx context.Context, corePath, procDir, outputPath string) error
}

// ExecConverter runs the converter binary with the conventional
// <core> <proc-dir> <output> argument order.
type ExecConverter struct {
	Binary string
}

func (e ExecConverter) Convert(ctx context.Context, corePath, procDir, outputPath string) error {
	cmd := exec.CommandContext(ctx, e.Binary, corePath, procDir, outputPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (output %q)", e.Binary, err, bytes.TrimSpace(output))
	}
	return nil
}

// Collector turns user process core files into finished crash records.
type Collector struct {
	writer    *spool.Writer
	converter ConverterRunner
	logger    *slog.Logger

	// procRoot is "/proc" in production; tests point it at a fixture
	// tree.
	procRoot string
}

// New creates a user process crash collector.
func New(writer *spool.Writer, converter ConverterRunner, logger *slog.Logger) *Collector {
	return &Collector{
		writer:    writer,
		converter: converter,
		logger:    logger,
		procRoot:  "/proc",
	}
}

// HandleCrash collects one user process crash: validates the core the
// kernel handed over, snapshots the converter's /proc inputs while the
// kernel still holds the process in place, converts to a minidump, and
// finishes the record. When the snapshot cannot be taken the raw core
// becomes the payload instead of failing the crash; a core is precious
// even when it cannot be converted on the device.
func (c *Collector) HandleCrash(ctx context.Context, execName string, pid, ownerUID int, corePath string) status.Status {
	if s := ValidateCoreFile(corePath); s != status.Success {
		c.logger.Error("core validation failed", "exec", execName, "core", corePath, "status", s)
		return s
	}

	directory, s := c.writer.GetOrCreateSpoolDirectory(ownerUID)
	if s != status.Success {
		return s
	}
	record := c.writer.NewRecord(directory, execName, pid)

	coreData, err := os.ReadFile(corePath)
	if err != nil {
		c.logger.Error("core read failed", "core", corePath, "error", err)
		return status.CoreCopyFailed
	}
	spooledCore := filepath.Join(directory, record.Basename+".core")
	if written := spool.WriteNewFile(spooledCore, coreData); written != len(coreData) {
		return status.CoreCopyFailed
	}

	procDir := filepath.Join(directory, record.Basename+".proc")
	if err := os.Mkdir(procDir, 0o700); err != nil {
		c.logger.Warn("proc snapshot dir failed, keeping raw core", "error", err)
		return c.finishUnconverted(record, spooledCore)
	}
	if s := CopyOffProcFiles(c.procRoot, pid, procDir); s != status.Success {
		c.logger.Warn("proc snapshot failed, keeping raw core", "pid", pid, "status", s)
		return c.finishUnconverted(record, spooledCore)
	}
	if s := ValidateProcFiles(procDir); s != status.Success {
		c.logger.Error("proc snapshot rejected", "pid", pid, "status", s)
		return s
	}

	outputPath := filepath.Join(directory, record.Basename+".dmp")
	if err := c.converter.Convert(ctx, spooledCore, procDir, outputPath); err != nil {
		c.logger.Error("core conversion failed", "exec", execName, "error", err)
		// The raw core and snapshots stay on disk for manual
		// inspection; the missing done sentinel keeps the upload
		// client away from the partial record.
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return status.ConverterNotFound
		}
		return status.ConversionFailed
	}
	if s := record.AdoptPayload(outputPath); s != status.Success {
		return s
	}
	os.Remove(spooledCore)
	os.RemoveAll(procDir)

	s, total := record.Finish(
		spool.MetaLine{Key: "collector", Value: "user"},
		spool.MetaLine{Key: "severity", Value: "error"},
		spool.MetaLine{Key: "product", Value: "Platform"},
	)
	if s != status.Success {
		return s
	}
	c.logger.Info("user crash collected",
		"exec", execName, "basename", record.Basename, "bytes", total)
	return status.Success
}

// finishUnconverted finishes a record whose payload is the raw core.
func (c *Collector) finishUnconverted(record *spool.Record, spooledCore string) status.Status {
	if s := record.AdoptPayload(spooledCore); s != status.Success {
		return s
	}
	s, _ := record.Finish(
		spool.MetaLine{Key: "collector", Value: "user"},
		spool.MetaLine{Key: "severity", Value: "error"},
		spool.MetaLine{Key: "product", Value: "Platform"},
	)
	if s != status.Success {
		return s
	}
	return status.CollectedWithoutConversion
}

// HandleEarlyCrash collects a crash that happened before the crash
// handler registered, where the core arrives as a stream with a hard
// size cap. One extra byte beyond the cap is read to distinguish
// "exactly at the limit" from "truncated": a stream that still has
// data past the limit means an incomplete core, which is worse than no
// core, so the partial file is deleted.
func (c *Collector) HandleEarlyCrash(ctx context.Context, execName string, pid, ownerUID int, core io.Reader, limit int64) status.Status {
	directory, s := c.writer.GetOrCreateSpoolDirectory(ownerUID)
	if s != status.Success {
		return s
	}
	record := c.writer.NewRecord(directory, execName, pid)

	spooledCore := filepath.Join(directory, record.Basename+".core")
	fd, err := unix.Open(spooledCore,
		unix.O_CREAT|unix.O_EXCL|unix.O_WRONLY|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0o640)
	if err != nil {
		c.logger.Error("early core create failed", "path", spooledCore, "error", err)
		return status.CoreCopyFailed
	}
	file := os.NewFile(uintptr(fd), spooledCore)
	copied, err := io.Copy(file, io.LimitReader(core, limit+1))
	file.Close()
	switch {
	case err != nil:
		os.Remove(spooledCore)
		c.logger.Error("early core copy failed", "exec", execName, "error", err)
		return status.CoreCopyFailed
	case copied > limit:
		os.Remove(spooledCore)
		c.logger.Error("early core too big", "exec", execName, "limit", limit)
		return status.CoreTooBig
	}

	if s := record.AdoptPayload(spooledCore); s != status.Success {
		return s
	}
	s, total := record.Finish(
		spool.MetaLine{Key: "collector", Value: "user"},
		spool.MetaLine{Key: "severity", Value: "error"},
		spool.MetaLine{Key: "product", Value: "Platform"},
	)
	if s != status.Success {
		return s
	}
	c.logger.Info("early crash collected",
		"exec", execName, "basename", record.Basename, "bytes", total)
	return status.CollectedEarlyCrash
}
