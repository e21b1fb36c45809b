// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

package spool

import (
	"bytes"
	"testing"
)

func TestCompressionTagString(t *testing.T) {
	tests := []struct {
		tag  CompressionTag
		want string
	}{
		{CompressionGzip, "gzip"},
		{CompressionZstd, "zstd"},
		{CompressionLZ4, "lz4"},
		{CompressionTag(99), "unknown(99)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.tag.String(); got != tt.want {
				t.Errorf("CompressionTag(%d).String() = %q, want %q", tt.tag, got, tt.want)
			}
		})
	}
}

func TestParseCompressionTag(t *testing.T) {
	for _, name := range []string{"gzip", "zstd", "lz4"} {
		t.Run(name, func(t *testing.T) {
			tag, err := ParseCompressionTag(name)
			if err != nil {
				t.Fatalf("ParseCompressionTag(%q) failed: %v", name, err)
			}
			if tag.String() != name {
				t.Errorf("roundtrip: ParseCompressionTag(%q).String() = %q", name, tag.String())
			}
		})
	}

	t.Run("unknown", func(t *testing.T) {
		if _, err := ParseCompressionTag("bzip2"); err == nil {
			t.Error("ParseCompressionTag(\"bzip2\") should fail")
		}
	})
}

func TestCompressRoundtrip(t *testing.T) {
	// Repetitive text so every codec actually shrinks it.
	data := bytes.Repeat([]byte("kernel: watchdog did not stop!\n"), 200)

	for _, tag := range []CompressionTag{CompressionGzip, CompressionZstd, CompressionLZ4} {
		t.Run(tag.String(), func(t *testing.T) {
			compressed, err := Compress(data, tag)
			if err != nil {
				t.Fatalf("Compress(%s) failed: %v", tag, err)
			}
			if len(compressed) >= len(data) {
				t.Errorf("Compress(%s) did not shrink repetitive input: %d -> %d",
					tag, len(data), len(compressed))
			}
			decompressed, err := Decompress(compressed, tag)
			if err != nil {
				t.Fatalf("Decompress(%s) failed: %v", tag, err)
			}
			if !bytes.Equal(decompressed, data) {
				t.Errorf("roundtrip mismatch for %s", tag)
			}
		})
	}
}

func TestCompressUnknownTag(t *testing.T) {
	if _, err := Compress([]byte("x"), CompressionTag(42)); err == nil {
		t.Error("Compress with unknown tag should fail")
	}
	if _, err := Decompress([]byte("x"), CompressionTag(42)); err == nil {
		t.Error("Decompress with unknown tag should fail")
	}
}
