// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"context"
	"io"
	"log/slog"

	"github.com/crashmill-project/crashmill/chromedump"
	"github.com/crashmill-project/crashmill/ecpanic"
	"github.com/crashmill-project/crashmill/lib/config"
	"github.com/crashmill-project/crashmill/logsnap"
	"github.com/crashmill-project/crashmill/pstore"
	"github.com/crashmill-project/crashmill/spool"
	"github.com/crashmill-project/crashmill/status"
	"github.com/crashmill-project/crashmill/usercore"
)

// SourceKind selects which collector handles a crash event.
type SourceKind int

const (
	// SourceChromeDump is a browser crash delivered as a
	// length-delimited multipart dump.
	SourceChromeDump SourceKind = iota
	// SourceKernelPstore scans persistent storage for kernel panics;
	// it carries no event payload of its own.
	SourceKernelPstore
	// SourceUserProcess is a user process core file handed over by
	// the kernel core pattern handler.
	SourceUserProcess
	// SourceECPanic checks the embedded controller's panic buffer;
	// like the kernel source it carries no payload.
	SourceECPanic
	// SourceVM is a browser-format dump forwarded from a guest VM.
	// It parses like SourceChromeDump but supplementary host logs are
	// not attached: they describe the wrong kernel.
	SourceVM
)

// Source is one crash event. Kind selects the collector; the
// remaining fields are that collector's arguments and are ignored by
// the others.
type Source struct {
	Kind SourceKind

	ExecName string
	PID      int
	OwnerUID int

	// Dump is the browser dump for SourceChromeDump and SourceVM.
	Dump []byte
	// ScriptEngine marks a browser dump as a JavaScript error report
	// rather than a process crash.
	ScriptEngine bool

	// CorePath locates the core file for SourceUserProcess.
	CorePath string
	// EarlyCore, when non-nil, switches SourceUserProcess to the
	// size-capped early-crash path, streaming at most EarlyCoreLimit
	// bytes.
	EarlyCore      io.Reader
	EarlyCoreLimit int64
}

// Dispatcher owns one instance of every collector.
type Dispatcher struct {
	chrome *chromedump.Collector
	vm     *chromedump.Collector
	kernel *pstore.Collector
	user   *usercore.Collector
	ec     *ecpanic.Collector
	logger *slog.Logger
}

// NewDispatcher builds the collector set from a validated config.
func NewDispatcher(cfg *config.Config, logger *slog.Logger) *Dispatcher {
	writer := spool.NewWriter(cfg.Spool, logger)
	logs := logsnap.NewClient(cfg.LogService.SocketPath, cfg.LogService.FetchTimeout)
	return &Dispatcher{
		chrome: chromedump.New(writer, logs, logger),
		vm:     chromedump.New(writer, nil, logger),
		kernel: pstore.New(writer, cfg.Kernel, logger),
		user: usercore.New(writer,
			usercore.ExecConverter{Binary: cfg.Tools.CoreConverter}, logger),
		ec: ecpanic.New(writer,
			ecpanic.ExecDecoder{Binary: cfg.Tools.ECDecoder}, cfg.EC, logger),
		logger: logger,
	}
}

// Dispatch routes one crash event to its collector. An unknown kind
// is a caller bug and is reported, not panicked on: the daemon must
// survive a malformed invocation.
func (d *Dispatcher) Dispatch(ctx context.Context, source Source) status.Status {
	switch source.Kind {
	case SourceChromeDump:
		return d.chrome.HandleCrash(ctx, source.ExecName, source.PID, source.OwnerUID,
			browserCrashType(source), source.Dump)
	case SourceVM:
		// Guest dumps always describe a process crash; the guest
		// browser reports its own script errors.
		return d.vm.HandleCrash(ctx, source.ExecName, source.PID, source.OwnerUID,
			chromedump.Executable, source.Dump)
	case SourceKernelPstore:
		return d.kernel.Collect()
	case SourceUserProcess:
		return d.dispatchUserProcess(ctx, source)
	case SourceECPanic:
		return d.ec.Collect(ctx)
	default:
		d.logger.Error("unknown crash source", "kind", int(source.Kind))
		return status.InvalidCrashSource
	}
}

func (d *Dispatcher) dispatchUserProcess(ctx context.Context, source Source) status.Status {
	if source.EarlyCore != nil {
		return d.user.HandleEarlyCrash(ctx, source.ExecName, source.PID, source.OwnerUID,
			source.EarlyCore, source.EarlyCoreLimit)
	}
	return d.user.HandleCrash(ctx, source.ExecName, source.PID, source.OwnerUID, source.CorePath)
}

func browserCrashType(source Source) chromedump.CrashType {
	if source.ScriptEngine {
		return chromedump.ScriptEngineError
	}
	return chromedump.Executable
}
