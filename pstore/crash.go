// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

package pstore

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// RecordType classifies a pstore record by the header of its first
// part. The vocabulary is the kernel's kmsg_dump reason string,
// matched case-sensitively.
type RecordType int

const (
	// Panic is a kernel panic. Collected.
	Panic RecordType = iota
	// Oops is a recovered kernel oops. Dropped: a separate warning
	// pipeline reports oopses from the live system with full context.
	Oops
	// Emergency is an emergency restart. Dropped.
	Emergency
	// Shutdown is an ordinary shutdown record. Dropped.
	Shutdown
	// Unknown is the kernel's own "unknown reason" record. Dropped.
	Unknown
	// ParseFailed means part 1 was readable but its header matched
	// no known reason. Dropped.
	ParseFailed
	// Corrupt means part 1 was unreadable or flagged as
	// kernel-undecodable. Collected — a record the kernel could not
	// decompress usually means the panic corrupted the ring buffer,
	// which is exactly the crash worth seeing.
	Corrupt
)

// String returns the header vocabulary word (or a diagnostic name for
// the synthetic types).
func (t RecordType) String() string {
	switch t {
	case Panic:
		return "Panic"
	case Oops:
		return "Oops"
	case Emergency:
		return "Emergency"
	case Shutdown:
		return "Shutdown"
	case Unknown:
		return "Unknown"
	case ParseFailed:
		return "ParseFailed"
	default:
		return "Corrupt"
	}
}

// corruptedSuffix marks records the kernel could not decompress; the
// file holds the raw still-compressed bytes.
const corruptedSuffix = ".enc.z"

// corruptionMarker is prepended to every corrupted part in the
// reassembled dump so downstream symbolizers know the bytes that
// follow are raw ring-buffer content, not text.
const corruptionMarker = "<corrupted kernel dump>\n"

// Crash is one logical kernel crash preserved in pstore: an ordered
// sequence of parts numbered 1..MaxPart, each independently readable
// and deletable. Parts are consumed (read then deleted) at most once.
type Crash interface {
	// ID identifies the crash for logging.
	ID() string
	// MaxPart is the highest part number. Parts are numbered from 1.
	MaxPart() int
	// PartPath returns the on-disk path of part n.
	PartPath(n int) string
	// Corrupted reports whether part n is flagged kernel-undecodable.
	Corrupted(n int) bool
}

// RamoopsCrash is one crash from the ramoops backend: a single
// dmesg-ramoops-<n> file holding the whole dump. The backend tracks
// corruption per crash (the .enc.z suffix on the one file), so all
// parts share one flag.
type RamoopsCrash struct {
	path      string
	id        int
	corrupted bool
}

func (c *RamoopsCrash) ID() string            { return fmt.Sprintf("ramoops-%d", c.id) }
func (c *RamoopsCrash) MaxPart() int          { return 1 }
func (c *RamoopsCrash) PartPath(n int) string { return c.path }
func (c *RamoopsCrash) Corrupted(n int) bool  { return c.corrupted }

// EfiCrash is one crash from the efi-pstore backend. The kernel
// splits a dump across many dmesg-efi-<n> variables where n encodes
// both the crash and the part: crash id = n/100, part = n%100. Parts
// are discovered individually and grouped; MaxPart grows as more are
// found. The efi backend exposes no per-part corruption information,
// so Corrupted is hard-wired false — a known asymmetry with ramoops,
// not a bug to fix here.
type EfiCrash struct {
	mount   string
	crashID int64
	maxPart int
}

func (c *EfiCrash) ID() string   { return fmt.Sprintf("efi-%d", c.crashID) }
func (c *EfiCrash) MaxPart() int { return c.maxPart }

func (c *EfiCrash) PartPath(n int) string {
	return filepath.Join(c.mount, fmt.Sprintf("dmesg-efi-%d", c.crashID*100+int64(n)))
}

func (c *EfiCrash) Corrupted(n int) bool { return false }

// findCrashes enumerates both backends under the pstore mount. A
// missing mount is an empty result, not an error — pstore is absent
// on machines without persistent RAM or EFI variable space.
func findCrashes(mount string) ([]Crash, error) {
	entries, err := os.ReadDir(mount)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading pstore mount %s: %w", mount, err)
	}

	var crashes []Crash
	efiByID := make(map[int64]*EfiCrash)

	for _, entry := range entries {
		name := entry.Name()

		if rest, found := strings.CutPrefix(name, "dmesg-ramoops-"); found {
			corrupted := strings.HasSuffix(rest, corruptedSuffix)
			idField := strings.TrimSuffix(rest, corruptedSuffix)
			id, err := strconv.Atoi(idField)
			if err != nil {
				continue
			}
			crashes = append(crashes, &RamoopsCrash{
				path:      filepath.Join(mount, name),
				id:        id,
				corrupted: corrupted,
			})
			continue
		}

		if rest, found := strings.CutPrefix(name, "dmesg-efi-"); found {
			number, err := strconv.ParseInt(rest, 10, 64)
			if err != nil {
				continue
			}
			crashID, part := number/100, int(number%100)
			if part < 1 {
				continue
			}
			crash, exists := efiByID[crashID]
			if !exists {
				crash = &EfiCrash{mount: mount, crashID: crashID, maxPart: part}
				efiByID[crashID] = crash
				crashes = append(crashes, crash)
				continue
			}
			if part > crash.maxPart {
				crash.maxPart = part
			}
		}
	}

	// Deterministic collection order for tests and logs.
	sort.Slice(crashes, func(i, j int) bool { return crashes[i].ID() < crashes[j].ID() })
	return crashes, nil
}

// GetType classifies a crash by the header of part 1: the text before
// the first '#' must be one of the kernel's dump reasons. Unreadable
// or flagged-corrupt part 1 means Corrupt.
func GetType(crash Crash) RecordType {
	if crash.Corrupted(1) {
		return Corrupt
	}
	content, err := os.ReadFile(crash.PartPath(1))
	if err != nil {
		return Corrupt
	}
	header, _, found := bytes.Cut(content, []byte{'#'})
	if !found {
		return ParseFailed
	}
	switch string(header) {
	case "Panic":
		return Panic
	case "Oops":
		return Oops
	case "Emergency":
		return Emergency
	case "Shutdown":
		return Shutdown
	case "Unknown":
		return Unknown
	default:
		return ParseFailed
	}
}

// Load reassembles the dump. The kernel fills pstore from the tail of
// its ring buffer, so the highest-numbered part holds the oldest
// fragment: concatenation walks parts strictly descending. Clean
// parts lose their header line (through the first newline); corrupted
// parts keep their raw still-compressed bytes behind the corruption
// marker. An unreadable part is skipped — the rest of the dump is
// still worth keeping.
func Load(crash Crash) []byte {
	var dump bytes.Buffer
	for part := crash.MaxPart(); part >= 1; part-- {
		content, err := os.ReadFile(crash.PartPath(part))
		if err != nil {
			continue
		}
		if crash.Corrupted(part) {
			dump.WriteString(corruptionMarker)
			dump.Write(content)
			continue
		}
		if index := bytes.IndexByte(content, '\n'); index >= 0 {
			content = content[index+1:]
		}
		dump.Write(content)
	}
	return dump.Bytes()
}

// removeParts deletes every part file of a crash from pstore. Called
// for all discovered crashes regardless of collection outcome so a
// record is never reprocessed on the next boot. Returns the first
// removal error, if any, after attempting all parts.
func removeParts(crash Crash) error {
	var firstErr error
	for part := 1; part <= crash.MaxPart(); part++ {
		if err := os.Remove(crash.PartPath(part)); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
