// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"

	"github.com/crashmill-project/crashmill/collector"
)

func TestBuildSourceModes(t *testing.T) {
	tests := []struct {
		mode     string
		corePath string
		wantKind collector.SourceKind
		wantErr  bool
	}{
		{mode: "user", corePath: "/tmp/core", wantKind: collector.SourceUserProcess},
		{mode: "early", wantKind: collector.SourceUserProcess},
		{mode: "kernel", wantKind: collector.SourceKernelPstore},
		{mode: "ec", wantKind: collector.SourceECPanic},
		{mode: "user", wantErr: true}, // missing --core
		{mode: "", wantErr: true},
		{mode: "bogus", wantErr: true},
	}
	for _, test := range tests {
		t.Run(test.mode+"/"+test.corePath, func(t *testing.T) {
			source, err := buildSource(test.mode, "proc", 1, 0, test.corePath, false, 1<<20)
			if test.wantErr {
				if err == nil {
					t.Fatal("want error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if source.Kind != test.wantKind {
				t.Errorf("Kind = %v, want %v", source.Kind, test.wantKind)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	if _, err := parseLevel("warn"); err != nil {
		t.Errorf("parseLevel(warn) = %v", err)
	}
	if _, err := parseLevel("verbose"); err == nil {
		t.Error("parseLevel(verbose) accepted")
	}
}

func TestBuildSourceEarlyUsesStdin(t *testing.T) {
	source, err := buildSource("early", "proc", 1, 0, "", false, 64)
	if err != nil {
		t.Fatal(err)
	}
	if source.EarlyCore == nil {
		t.Error("early source missing core stream")
	}
	if source.EarlyCoreLimit != 64 {
		t.Errorf("EarlyCoreLimit = %d, want 64", source.EarlyCoreLimit)
	}
}
