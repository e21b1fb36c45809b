// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

package pstore

import (
	"log/slog"
	"strings"

	"github.com/crashmill-project/crashmill/lib/config"
	"github.com/crashmill-project/crashmill/spool"
	"github.com/crashmill-project/crashmill/status"
)

// kernelExecName is the exec component of every kernel crash
// basename. The kernel has no pid; 0 is used.
const kernelExecName = "kernel"

// Collector collects kernel crashes from pstore and, failing that,
// from the no-panic fallback signals.
type Collector struct {
	writer *spool.Writer
	cfg    config.KernelConfig
	logger *slog.Logger
}

// New creates a kernel crash collector.
func New(writer *spool.Writer, cfg config.KernelConfig, logger *slog.Logger) *Collector {
	return &Collector{writer: writer, cfg: cfg, logger: logger}
}

// Collect sweeps pstore once. Every discovered record is consumed
// (deleted) whether or not it is collected; only Panic and Corrupt
// records produce crash artifacts. When pstore yields no panic at
// all, the fallback signals (BIOS log, watchdog) may synthesize one.
//
// Returns Success if at least one record was spooled,
// CollectedSyntheticCrash if only the fallback fired, NoCrashFound if
// there was nothing to do, and the first error status otherwise.
func (c *Collector) Collect() status.Status {
	crashes, err := findCrashes(c.cfg.PstoreMount)
	if err != nil {
		c.logger.Error("pstore enumeration failed", "error", err)
		return status.PstoreEnumerationFailed
	}

	collected := 0
	var firstError status.Status
	for _, crash := range crashes {
		s := c.collectOne(crash)
		switch {
		case s == status.Success || s == status.CollectedCorruptDump:
			collected++
		case !s.IsSuccess() && firstError == status.Success:
			firstError = s
		}
	}

	if collected > 0 {
		return status.Success
	}
	if firstError != status.Success {
		return firstError
	}
	return c.collectFallback()
}

// collectOne classifies, optionally spools, and always removes one
// crash. Removal happens regardless of the collection outcome so the
// record can never be reprocessed on a later boot.
func (c *Collector) collectOne(crash Crash) status.Status {
	recordType := GetType(crash)

	defer func() {
		if err := removeParts(crash); err != nil {
			c.logger.Error("pstore record removal failed", "crash", crash.ID(), "error", err)
		}
	}()

	switch recordType {
	case Panic, Corrupt:
	default:
		c.logger.Info("dropping non-actionable pstore record",
			"crash", crash.ID(), "type", recordType.String())
		return status.DroppedNonActionable
	}

	dump := Load(crash)
	if len(dump) == 0 {
		c.logger.Error("pstore record read failed", "crash", crash.ID())
		return status.PstoreRecordReadFailed
	}

	s := c.spoolDump(dump, strings.ToLower(recordType.String()))
	if s != status.Success {
		return s
	}
	if recordType == Corrupt {
		return status.CollectedCorruptDump
	}
	return status.Success
}

// spoolDump writes one reassembled kernel dump as a finished crash
// record. kind distinguishes panic, corrupt, and the fallback's
// synthetic kinds in both the signature and the collector meta line.
func (c *Collector) spoolDump(dump []byte, kind string) status.Status {
	directory, s := c.writer.GetOrCreateSpoolDirectory(spool.SystemOwner)
	if s != status.Success {
		return s
	}

	record := c.writer.NewRecord(directory, kernelExecName, 0)
	if s := record.WritePayload("kcrash", dump); s != status.Success {
		return s
	}

	signature := synthesizeSignature(kind, dump)
	s, total := record.Finish(
		spool.MetaLine{Key: "collector", Value: "kernel"},
		spool.MetaLine{Key: "sig", Value: signature},
		spool.MetaLine{Key: "kernel_crash_kind", Value: kind},
		spool.MetaLine{Key: "severity", Value: "fatal"},
		spool.MetaLine{Key: "product", Value: "Platform"},
	)
	if s != status.Success {
		return s
	}
	c.logger.Info("kernel crash collected",
		"basename", record.Basename, "kind", kind, "sig", signature, "bytes", total)
	return status.Success
}
