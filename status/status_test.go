// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

package status

import "testing"

// TestTableInvariants is the build-time gate on the status table: the
// table must be sorted by code, codes and strings must be unique, and
// every code must lie in exactly one of the success range, the Unknown
// sentinel, or the error range.
func TestTableInvariants(t *testing.T) {
	seenNames := make(map[string]Status, len(statusTable))

	for i, entry := range statusTable {
		if i > 0 && statusTable[i-1].code >= entry.code {
			t.Errorf("table not strictly sorted at index %d: %d then %d",
				i, statusTable[i-1].code, entry.code)
		}
		if previous, duplicate := seenNames[entry.name]; duplicate {
			t.Errorf("string %q shared by codes %d and %d", entry.name, previous, entry.code)
		}
		seenNames[entry.name] = entry.code

		inSuccess := entry.code >= Success && entry.code <= lastSuccessCode
		inError := entry.code >= 400 && entry.code <= maxValue
		isSentinel := entry.code == Unknown
		memberships := 0
		for _, in := range []bool{inSuccess, inError, isSentinel} {
			if in {
				memberships++
			}
		}
		if memberships != 1 {
			t.Errorf("code %d (%q) belongs to %d ranges, want exactly 1",
				entry.code, entry.name, memberships)
		}
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{Success, "Success"},
		{NoCrashFound, "No crash found"},
		{Unknown, "Unknown"},
		{TruncatedDump, "Truncated dump"},
		{InvalidConfig, "Invalid config"},
		{Status(999), "Invalid status enum 999"},
		{Status(-1), "Invalid status enum -1"},
		{Status(150), "Invalid status enum 150"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.status.String(); got != tt.want {
				t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestIsSuccess(t *testing.T) {
	for _, entry := range statusTable {
		got := entry.code.IsSuccess()
		want := entry.code <= lastSuccessCode
		if got != want {
			t.Errorf("Status(%d).IsSuccess() = %v, want %v", entry.code, got, want)
		}
	}
	if Unknown.IsSuccess() {
		t.Error("Unknown must not be a success")
	}
}
