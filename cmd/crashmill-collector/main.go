// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

// crashmill-collector is invoked once per crash event: by the kernel
// core pattern handler for user process crashes, by the browser's
// crash handler with a dump on stdin, and by boot-time init for the
// kernel and embedded-controller sweeps. It collects exactly one
// crash, writes the finished record into the spool, and exits.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/crashmill-project/crashmill/collector"
	"github.com/crashmill-project/crashmill/lib/config"
	"github.com/crashmill-project/crashmill/lib/process"
	"github.com/crashmill-project/crashmill/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		showVersion  bool
		configPath   string
		mode         string
		execName     string
		pid          int
		ownerUID     int
		corePath     string
		scriptEngine bool
		earlyLimit   int64
		logLevel     string
	)
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.StringVar(&configPath, "config", "", "config file path (default: $CRASHMILL_CONFIG, else built-in defaults)")
	pflag.StringVar(&mode, "mode", "", "crash source: chrome, vm, user, early, kernel, ec (required)")
	pflag.StringVar(&execName, "exec", "", "executable name of the crashing process")
	pflag.IntVar(&pid, "pid", 0, "process id of the crashing process")
	pflag.IntVar(&ownerUID, "uid", 0, "uid owning the crash report (0 spools system-wide)")
	pflag.StringVar(&corePath, "core", "", "core file path (mode user)")
	pflag.BoolVar(&scriptEngine, "js-error", false, "dump is a JavaScript error report, not a process crash (mode chrome)")
	pflag.Int64Var(&earlyLimit, "max-core-bytes", 32<<20, "core size cap for mode early")
	pflag.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pflag.Parse()

	if showVersion {
		fmt.Printf("crashmill-collector %s\n", version.Info())
		return nil
	}

	level, err := parseLevel(logLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	source, err := buildSource(mode, execName, pid, ownerUID, corePath, scriptEngine, earlyLimit)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := collector.NewDispatcher(cfg, logger).Dispatch(ctx, source)
	if !s.IsSuccess() {
		return fmt.Errorf("collection failed: %s", s)
	}
	logger.Info("collection finished", "mode", mode, "status", s.String())
	return nil
}

// loadConfig resolves the configuration: an explicit --config wins,
// then CRASHMILL_CONFIG, then the built-in defaults. Defaults describe
// a stock system, so a bare invocation works on-device.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	if os.Getenv("CRASHMILL_CONFIG") != "" {
		return config.Load()
	}
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildSource maps the invocation flags onto a dispatch source. Dump
// payloads arrive on stdin: the kernel and the browser both pipe, and
// a pipe needs no cleanup if collection fails halfway.
func buildSource(mode, execName string, pid, ownerUID int, corePath string, scriptEngine bool, earlyLimit int64) (collector.Source, error) {
	base := collector.Source{
		ExecName: execName,
		PID:      pid,
		OwnerUID: ownerUID,
	}
	switch mode {
	case "chrome", "vm":
		dump, err := io.ReadAll(os.Stdin)
		if err != nil {
			return collector.Source{}, fmt.Errorf("reading dump from stdin: %w", err)
		}
		base.Dump = dump
		base.ScriptEngine = scriptEngine
		if mode == "vm" {
			base.Kind = collector.SourceVM
		} else {
			base.Kind = collector.SourceChromeDump
		}
		return base, nil
	case "user":
		if corePath == "" {
			return collector.Source{}, fmt.Errorf("mode user requires --core")
		}
		base.Kind = collector.SourceUserProcess
		base.CorePath = corePath
		return base, nil
	case "early":
		base.Kind = collector.SourceUserProcess
		base.EarlyCore = os.Stdin
		base.EarlyCoreLimit = earlyLimit
		return base, nil
	case "kernel":
		base.Kind = collector.SourceKernelPstore
		return base, nil
	case "ec":
		base.Kind = collector.SourceECPanic
		return base, nil
	case "":
		return collector.Source{}, fmt.Errorf("--mode is required")
	default:
		return collector.Source{}, fmt.Errorf("unknown mode %q", mode)
	}
}

func parseLevel(name string) (slog.Level, error) {
	switch name {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}
