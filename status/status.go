// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

// Package status defines the closed outcome taxonomy shared by every
// collector. Each outcome carries a stable numeric code: codes are
// persisted in logs and metrics outside this repository, so they are
// append-only and never reused or renumbered. Success outcomes live in
// [0, lastSuccessCode], the sentinel Unknown is 200, and error
// outcomes live in [400, maxValue]. Gaps inside the error range are
// codes reserved for outcomes that were retired before this
// implementation; they stay unassigned forever.
package status

import (
	"fmt"
	"sort"
)

// Status is a collection outcome. The zero value is Success.
type Status int

// Success outcomes. These include policy non-events — a stale EC
// panic or an empty pstore is "nothing to do," not a failure — so
// telemetry can distinguish them from "tried and failed."
const (
	// Success means a crash record was fully written and finished.
	Success Status = 0

	// NoCrashFound means the source was consulted and held no crash.
	NoCrashFound Status = 1

	// StaleCrash means the source held a crash already collected on a
	// prior boot (EC stale flag). Nothing was written.
	StaleCrash Status = 2

	// AttachmentSkippedQuota means an optional attachment was dropped
	// because the record's byte budget was already exhausted.
	AttachmentSkippedQuota Status = 3

	// DroppedNonActionable means a pstore record existed but its type
	// (Oops, Emergency, Shutdown, Unknown) is intentionally not
	// collected. The record was still consumed from storage.
	DroppedNonActionable Status = 4

	// CollectedWithoutConversion means the raw core was kept but the
	// minidump conversion step was skipped (proc snapshot failure).
	CollectedWithoutConversion Status = 5

	// CollectedSyntheticCrash means no explicit panic record existed
	// but a BIOS-crash, radio-controller, or watchdog signal produced
	// a synthesized crash record.
	CollectedSyntheticCrash Status = 6

	// MetadataOnlyReport means a browser dump contained no payload
	// record; the metadata-only record was still finished.
	MetadataOnlyReport Status = 7

	// CollectedEarlyCrash means the size-capped raw-copy path for a
	// pre-registration crash completed within its cap.
	CollectedEarlyCrash Status = 8

	// CollectedCorruptDump means a pstore record the kernel could not
	// decompress was collected with the corruption marker.
	CollectedCorruptDump Status = 9

	// GracefulShutdownReport means a browser report generated during
	// a clean shutdown was collected at informational severity.
	GracefulShutdownReport Status = 10

	// lastSuccessCode is the upper bound of the success range.
	lastSuccessCode = GracefulShutdownReport
)

// Unknown is the sentinel between the success and error ranges. It is
// the value logged when a code read from an old log predates or
// postdates the current build.
const Unknown Status = 200

// Error outcomes.
const (
	// Spool directory and artifact-writer failures.
	SpoolDirectoryCreateFailed  Status = 400
	SpoolDirectoryOpenFailed    Status = 401
	SpoolDirectoryStatFailed    Status = 402
	SpoolDirectoryBadOwnership  Status = 403
	SpoolGroupLookupFailed      Status = 404
	SpoolUserLookupFailed       Status = 405
	SpoolOutOfCapacity          Status = 406
	PayloadWriteFailed          Status = 407
	AttachmentReadFailed        Status = 408
	AttachmentWriteFailed       Status = 409
	CompressedWriteFailed       Status = 410
	MetaWriteFailed             Status = 411
	PayloadAbsent               Status = 412
	BadExecutableName           Status = 413

	// Browser multipart format failures.
	NoDelimitedNameString Status = 420
	NoDelimitedSizeString Status = 421
	SizeNotANumber        Status = 422
	SizeOverflow          Status = 423
	TruncatedDump         Status = 424
	MultipleMinidumps     Status = 425
	UnexpectedMinidump    Status = 426
	MultipleJSStacks      Status = 427
	UnexpectedJSStack     Status = 428
	DumpReadFailed        Status = 429

	// Kernel pstore failures.
	PstoreEnumerationFailed      Status = 435
	PstoreRecordReadFailed       Status = 436
	PstoreRecordParseFailed      Status = 437
	PstoreRecordRemoveFailed     Status = 438
	BiosLogReadFailed            Status = 439
	EventLogReadFailed           Status = 440
	WatchdogBootstatusReadFailed Status = 441

	// User process core failures.
	CoreFileOpenFailed   Status = 445
	BadCoreMagic         Status = 446
	UnsupportedCoreClass Status = 447
	ProcDirOpenFailed    Status = 448
	ProcFileCopyFailed   Status = 449
	EmptyProcMaps        Status = 450
	ConversionFailed     Status = 451
	ConverterNotFound    Status = 452
	CoreTooBig           Status = 453
	CoreCopyFailed       Status = 454

	// EC panic failures.
	PanicInfoReadFailed   Status = 458
	PanicInfoTooShort     Status = 459
	PanicInfoDecodeFailed Status = 460
	CoredumpReadFailed    Status = 461
	CoredumpMismatch      Status = 462

	// Collaborator failures. These are logged by the components that
	// downgrade them to omitted attachments; they are never returned
	// from a collector entry point.
	LogServiceUnavailable Status = 465
	LogServiceTimeout     Status = 466

	// Dispatch failures.
	InvalidCrashSource Status = 470
	InvalidConfig      Status = 471

	// maxValue is the upper bound of the error range.
	maxValue = InvalidConfig
)

// statusEntry pairs a code with its display string. The table below
// is sorted by code; String binary-searches it.
type statusEntry struct {
	code Status
	name string
}

// statusTable maps every defined code to its unique display string.
// Keep sorted by code and keep strings unique — status_test.go walks
// the table and fails on any violation.
var statusTable = []statusEntry{
	{Success, "Success"},
	{NoCrashFound, "No crash found"},
	{StaleCrash, "Stale crash"},
	{AttachmentSkippedQuota, "Attachment skipped by quota"},
	{DroppedNonActionable, "Dropped non-actionable record"},
	{CollectedWithoutConversion, "Collected without conversion"},
	{CollectedSyntheticCrash, "Collected synthetic crash"},
	{MetadataOnlyReport, "Metadata-only report"},
	{CollectedEarlyCrash, "Collected early crash"},
	{CollectedCorruptDump, "Collected corrupt dump"},
	{GracefulShutdownReport, "Graceful shutdown report"},
	{Unknown, "Unknown"},
	{SpoolDirectoryCreateFailed, "Spool directory create failed"},
	{SpoolDirectoryOpenFailed, "Spool directory open failed"},
	{SpoolDirectoryStatFailed, "Spool directory stat failed"},
	{SpoolDirectoryBadOwnership, "Spool directory bad ownership"},
	{SpoolGroupLookupFailed, "Spool group lookup failed"},
	{SpoolUserLookupFailed, "Spool user lookup failed"},
	{SpoolOutOfCapacity, "Spool out of capacity"},
	{PayloadWriteFailed, "Payload write failed"},
	{AttachmentReadFailed, "Attachment read failed"},
	{AttachmentWriteFailed, "Attachment write failed"},
	{CompressedWriteFailed, "Compressed write failed"},
	{MetaWriteFailed, "Meta write failed"},
	{PayloadAbsent, "Payload absent"},
	{BadExecutableName, "Bad executable name"},
	{NoDelimitedNameString, "No delimited name string"},
	{NoDelimitedSizeString, "No delimited size string"},
	{SizeNotANumber, "Size not a number"},
	{SizeOverflow, "Size overflow"},
	{TruncatedDump, "Truncated dump"},
	{MultipleMinidumps, "Multiple minidumps"},
	{UnexpectedMinidump, "Unexpected minidump"},
	{MultipleJSStacks, "Multiple JS stacks"},
	{UnexpectedJSStack, "Unexpected JS stack"},
	{DumpReadFailed, "Dump read failed"},
	{PstoreEnumerationFailed, "Pstore enumeration failed"},
	{PstoreRecordReadFailed, "Pstore record read failed"},
	{PstoreRecordParseFailed, "Pstore record parse failed"},
	{PstoreRecordRemoveFailed, "Pstore record remove failed"},
	{BiosLogReadFailed, "BIOS log read failed"},
	{EventLogReadFailed, "Event log read failed"},
	{WatchdogBootstatusReadFailed, "Watchdog bootstatus read failed"},
	{CoreFileOpenFailed, "Core file open failed"},
	{BadCoreMagic, "Bad core magic"},
	{UnsupportedCoreClass, "Unsupported core class"},
	{ProcDirOpenFailed, "Proc directory open failed"},
	{ProcFileCopyFailed, "Proc file copy failed"},
	{EmptyProcMaps, "Empty proc maps"},
	{ConversionFailed, "Conversion failed"},
	{ConverterNotFound, "Converter not found"},
	{CoreTooBig, "Core too big"},
	{CoreCopyFailed, "Core copy failed"},
	{PanicInfoReadFailed, "Panic info read failed"},
	{PanicInfoTooShort, "Panic info too short"},
	{PanicInfoDecodeFailed, "Panic info decode failed"},
	{CoredumpReadFailed, "Coredump read failed"},
	{CoredumpMismatch, "Coredump mismatch"},
	{LogServiceUnavailable, "Log service unavailable"},
	{LogServiceTimeout, "Log service timeout"},
	{InvalidCrashSource, "Invalid crash source"},
	{InvalidConfig, "Invalid config"},
}

// String returns the display string for a status. Codes outside the
// table — read from an old log, or produced by a newer build — yield
// a distinguishable placeholder instead of a panic.
func (s Status) String() string {
	index := sort.Search(len(statusTable), func(i int) bool {
		return statusTable[i].code >= s
	})
	if index < len(statusTable) && statusTable[index].code == s {
		return statusTable[index].name
	}
	return fmt.Sprintf("Invalid status enum %d", int(s))
}

// IsSuccess reports whether s is in the success range. The sentinel
// Unknown and every error code are not successes.
func (s Status) IsSuccess() bool {
	return s >= Success && s <= lastSuccessCode
}
