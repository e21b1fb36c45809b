// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for the crash collector.
type Config struct {
	// Spool configures the crash spool directory and its limits.
	Spool SpoolConfig `yaml:"spool"`

	// Kernel configures the pstore collector and its no-panic
	// fallback signal sources.
	Kernel KernelConfig `yaml:"kernel"`

	// EC configures the embedded-controller panic collector.
	EC ECConfig `yaml:"ec"`

	// Tools configures external helper binaries.
	Tools ToolsConfig `yaml:"tools"`

	// LogService configures the supplementary-log fetch client.
	LogService LogServiceConfig `yaml:"log_service"`
}

// SpoolConfig configures the on-disk crash spool.
type SpoolConfig struct {
	// Root is the base directory holding per-owner spool directories.
	// Default: /var/spool/crash
	Root string `yaml:"root"`

	// MaxUploadBytes is the per-crash byte budget for optional
	// attachments. The mandatory payload is never subject to it.
	// Default: 1 MiB.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// MaxDirectoryFiles is the maximum number of files a per-owner
	// spool directory may hold before new crashes are rejected as
	// out-of-capacity. Default: 32.
	MaxDirectoryFiles int `yaml:"max_directory_files"`

	// Compression selects the codec for compressed attachments and
	// log streams: "gzip", "zstd", or "lz4". Default: gzip. The
	// upload endpoint historically accepts only deflate-family
	// streams, so change this only together with the endpoint.
	Compression string `yaml:"compression"`

	// Group is the group name that owns user-writable spool
	// directories. Default: crash-access.
	Group string `yaml:"group"`
}

// KernelConfig configures the kernel crash collector.
type KernelConfig struct {
	// PstoreMount is the mount point of the pstore filesystem.
	// Default: /sys/fs/pstore
	PstoreMount string `yaml:"pstore_mount"`

	// BiosLogPath is the persisted early-boot firmware log consulted
	// by the no-panic fallback. Default: /var/log/bios_info.txt
	BiosLogPath string `yaml:"bios_log_path"`

	// EventLogPath is the firmware boot event log used when no
	// watchdog device exposes a bootstatus.
	// Default: /var/log/eventlog.txt
	EventLogPath string `yaml:"event_log_path"`

	// WatchdogSysfs is the directory of watchdog device nodes.
	// Default: /sys/class/watchdog
	WatchdogSysfs string `yaml:"watchdog_sysfs"`
}

// ECConfig configures the embedded-controller panic collector.
type ECConfig struct {
	// DebugFSRoot is the directory holding the EC debug files
	// (panicinfo, coredump). Default: /sys/kernel/debug/cros_ec
	DebugFSRoot string `yaml:"debugfs_root"`
}

// ToolsConfig configures external helper binaries.
type ToolsConfig struct {
	// CoreConverter is the core→minidump converter binary.
	// Default: core2md (found in PATH).
	CoreConverter string `yaml:"core_converter"`

	// ECDecoder is the EC panic-info decoder binary.
	// Default: ectool (found in PATH).
	ECDecoder string `yaml:"ec_decoder"`
}

// LogServiceConfig configures the client for the privileged
// log-collection service.
type LogServiceConfig struct {
	// SocketPath is the unix socket of the log-collection service.
	// Default: /run/crashmill/logsnap.sock
	SocketPath string `yaml:"socket_path"`

	// FetchTimeout bounds each supplementary-log fetch. On expiry the
	// corresponding attachment is omitted, never retried.
	// Default: 10s.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// Default returns the default configuration. These defaults describe a
// stock system layout; the config file overrides individual fields.
func Default() *Config {
	return &Config{
		Spool: SpoolConfig{
			Root:              "/var/spool/crash",
			MaxUploadBytes:    1 << 20,
			MaxDirectoryFiles: 32,
			Compression:       "gzip",
			Group:             "crash-access",
		},
		Kernel: KernelConfig{
			PstoreMount:   "/sys/fs/pstore",
			BiosLogPath:   "/var/log/bios_info.txt",
			EventLogPath:  "/var/log/eventlog.txt",
			WatchdogSysfs: "/sys/class/watchdog",
		},
		EC: ECConfig{
			DebugFSRoot: "/sys/kernel/debug/cros_ec",
		},
		Tools: ToolsConfig{
			CoreConverter: "core2md",
			ECDecoder:     "ectool",
		},
		LogService: LogServiceConfig{
			SocketPath:   "/run/crashmill/logsnap.sock",
			FetchTimeout: 10 * time.Second,
		},
	}
}

// Load loads configuration from the CRASHMILL_CONFIG environment
// variable. There are no fallbacks: if CRASHMILL_CONFIG is not set,
// this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("CRASHMILL_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("CRASHMILL_CONFIG environment variable not set; " +
			"set it to the path of your crashmill.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. The config
// file is the single source of truth; environment variables do not
// override individual values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the collector cannot run with.
func (c *Config) Validate() error {
	if c.Spool.Root == "" {
		return fmt.Errorf("spool.root must not be empty")
	}
	if c.Spool.MaxUploadBytes < 0 {
		return fmt.Errorf("spool.max_upload_bytes must not be negative")
	}
	if c.Spool.MaxDirectoryFiles <= 0 {
		return fmt.Errorf("spool.max_directory_files must be positive")
	}
	switch c.Spool.Compression {
	case "gzip", "zstd", "lz4":
	default:
		return fmt.Errorf("spool.compression must be one of gzip, zstd, lz4; got %q", c.Spool.Compression)
	}
	if c.LogService.FetchTimeout <= 0 {
		return fmt.Errorf("log_service.fetch_timeout must be positive")
	}
	return nil
}
