// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

package chromedump

import (
	"context"
	"log/slog"

	"github.com/crashmill-project/crashmill/logsnap"
	"github.com/crashmill-project/crashmill/spool"
	"github.com/crashmill-project/crashmill/status"
)

// Collector turns browser dumps into finished crash records.
type Collector struct {
	writer *spool.Writer
	logs   *logsnap.Client
	logger *slog.Logger
}

// New creates a browser dump collector. logs may be nil, in which
// case no supplementary logs are attached (used by the VM forwarder,
// whose guest logs are not reachable from the host log service).
func New(writer *spool.Writer, logs *logsnap.Client, logger *slog.Logger) *Collector {
	return &Collector{writer: writer, logs: logs, logger: logger}
}

// HandleCrash parses one browser dump and writes its crash record
// into the spool directory of ownerUID. Parse failures abort the
// record before anything is written; write failures after that point
// leave partial artifacts in place for manual debugging (the missing
// done sentinel keeps the upload client away from them).
func (c *Collector) HandleCrash(ctx context.Context, execName string, pid, ownerUID int, crashType CrashType, dump []byte) status.Status {
	report, s := Parse(dump, crashType)
	if s != status.Success {
		c.logger.Error("browser dump parse failed", "exec", execName, "status", s)
		return s
	}

	directory, s := c.writer.GetOrCreateSpoolDirectory(ownerUID)
	if s != status.Success {
		return s
	}
	record := c.writer.NewRecord(directory, execName, pid)

	switch report.PayloadKind {
	case PayloadMinidump:
		if s := record.WritePayload("dmp", report.Payload); s != status.Success {
			return s
		}
	case PayloadJSStack:
		if s := record.WritePayload("js_stack", report.Payload); s != status.Success {
			return s
		}
	}

	for _, kv := range report.Metadata {
		record.AddMeta(kv.Key, kv.Value)
	}
	for _, attachment := range report.Attachments {
		if s := record.AddAttachment(attachment.Name, attachment.Data, false); !s.IsSuccess() {
			return s
		}
	}

	c.attachSupplementaryLogs(ctx, record)

	severity, product := computeSeverity(crashType, report.GracefulShutdown)
	s, total := record.Finish(
		spool.MetaLine{Key: "collector", Value: crashType.String()},
		spool.MetaLine{Key: "severity", Value: severity},
		spool.MetaLine{Key: "product", Value: product},
	)
	if s != status.Success {
		return s
	}
	c.logger.Info("browser crash collected",
		"exec", execName, "basename", record.Basename, "bytes", total)

	switch {
	case report.GracefulShutdown:
		return status.GracefulShutdownReport
	case report.PayloadKind == PayloadNone:
		return status.MetadataOnlyReport
	default:
		return status.Success
	}
}

// attachSupplementaryLogs fetches dmesg and the GPU error state from
// the log-collection service. Both are optional: a timeout or service
// error downgrades to an omitted attachment, logged and never
// propagated.
func (c *Collector) attachSupplementaryLogs(ctx context.Context, record *spool.Record) {
	if c.logs == nil {
		return
	}

	if dmesg, err := c.logs.FetchDmesg(ctx); err != nil {
		c.logger.Warn("dmesg omitted", "error", err)
	} else {
		record.AddAttachment("dmesg.log", dmesg, true)
	}

	if gpuState, err := c.logs.FetchGPUErrorState(ctx); err != nil {
		c.logger.Warn("gpu error state omitted", "error", err)
	} else {
		record.AddAttachment("gpu_error_state.log", gpuState, true)
	}
}

// computeSeverity maps a report onto the upload endpoint's severity
// and product-group vocabulary. A report produced during a clean
// browser shutdown is informational — the process exited on purpose
// and the dump exists only because shutdown instrumentation fired.
func computeSeverity(crashType CrashType, gracefulShutdown bool) (severity, product string) {
	if gracefulShutdown {
		return "info", "UI"
	}
	if crashType == ScriptEngineError {
		return "error", "UI"
	}
	return "fatal", "UI"
}
