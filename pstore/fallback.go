// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

package pstore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/crashmill-project/crashmill/status"
)

// Boot stage banners, in boot order. The firmware log accumulates
// across boots; the banner closest to the end of the log marks where
// the most recent boot began, and everything before it belongs to the
// boot that crashed.
var bootStageBanners = []string{
	"bootblock starting",
	"romstage starting",
	"ramstage starting",
	"Starting depthcharge",
}

// biosCrashMarker appears in the firmware log when the BIOS itself
// trapped (secure-world panic on arm64 boards).
const biosCrashMarker = "PANIC in EL3"

// radioErrorMarker appears when the radio controller firmware
// crashed and was restarted by the boot firmware.
const radioErrorMarker = "radio controller fatal error"

// cardResetFlag is WDIOF_CARDRESET from the watchdog UAPI: the last
// reboot was caused by the watchdog itself.
const cardResetFlag = 0x20

// Event log entry types consulted when no watchdog device exposes a
// usable bootstatus.
const (
	eventLogBoot          = "System boot"
	eventLogWatchdogReset = "Hardware watchdog reset"
)

// collectFallback looks for indirect evidence of an unclean reboot
// when pstore held no panic record: a BIOS crash or radio controller
// error logged before the most recent boot, or a hardware watchdog
// reset. Finding any of them synthesizes a crash record from the log
// content. Finding none is NoCrashFound — the ordinary clean-boot
// outcome, not an error.
func (c *Collector) collectFallback() status.Status {
	fragment := c.lastBootBiosFragment()

	if strings.Contains(fragment, biosCrashMarker) {
		c.logger.Info("bios crash detected in firmware log")
		return c.spoolSynthetic("bios", fragment)
	}
	if strings.Contains(fragment, radioErrorMarker) {
		c.logger.Info("radio controller error detected in firmware log")
		return c.spoolSynthetic("radio", fragment)
	}

	watchdogFired, ok := c.watchdogBootstatus()
	if !ok {
		watchdogFired = c.eventLogShowsWatchdogReset()
	}
	if watchdogFired {
		c.logger.Info("hardware watchdog reset detected")
		content := fragment
		if content == "" {
			content = "hardware watchdog reset with no firmware log\n"
		}
		return c.spoolSynthetic("watchdog", content)
	}

	return status.NoCrashFound
}

// lastBootBiosFragment reads the persisted firmware log and isolates
// the fragment preceding the most recent boot. The banners are tried
// in boot order: the earliest stage that appears is the most reliable
// marker for where the current boot's logging began. Returns "" when
// the log is missing or holds only the current boot.
func (c *Collector) lastBootBiosFragment() string {
	content, err := os.ReadFile(c.cfg.BiosLogPath)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("bios log unreadable", "path", c.cfg.BiosLogPath, "error", err)
		}
		return ""
	}
	log := string(content)

	for _, banner := range bootStageBanners {
		if index := strings.LastIndex(log, banner); index >= 0 {
			return log[:index]
		}
	}
	return ""
}

// watchdogBootstatus reads the bootstatus flag of every watchdog
// device. Returns (fired, ok): ok is false when no device exposed a
// parseable bootstatus, in which case the caller falls back to the
// boot event log.
func (c *Collector) watchdogBootstatus() (fired, ok bool) {
	entries, err := os.ReadDir(c.cfg.WatchdogSysfs)
	if err != nil {
		return false, false
	}

	for _, entry := range entries {
		path := filepath.Join(c.cfg.WatchdogSysfs, entry.Name(), "bootstatus")
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		value, err := strconv.Atoi(strings.TrimSpace(string(content)))
		if err != nil {
			c.logger.Warn("watchdog bootstatus unparseable", "path", path)
			continue
		}
		if value&cardResetFlag != 0 {
			return true, true
		}
		ok = true
	}
	return false, ok
}

// eventLogShowsWatchdogReset scans the firmware boot event log for a
// watchdog-reset event recorded after the last boot event. Event log
// lines are "index | timestamp | type ...".
func (c *Collector) eventLogShowsWatchdogReset() bool {
	file, err := os.Open(c.cfg.EventLogPath)
	if err != nil {
		return false
	}
	defer file.Close()

	sawWatchdogAfterBoot := false
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, eventLogBoot):
			sawWatchdogAfterBoot = false
		case strings.Contains(line, eventLogWatchdogReset):
			sawWatchdogAfterBoot = true
		}
	}
	return sawWatchdogAfterBoot
}

// spoolSynthetic writes a synthesized crash record whose payload is
// the evidence fragment rather than a kernel dump.
func (c *Collector) spoolSynthetic(kind, content string) status.Status {
	payload := fmt.Sprintf("synthesized %s crash report\n\n%s", kind, content)
	if s := c.spoolDump([]byte(payload), kind); s != status.Success {
		return s
	}
	return status.CollectedSyntheticCrash
}
