// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

package spool

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionTag identifies the codec used for compressed attachments
// and log streams. The tag selects the on-disk file extension, which
// the upload endpoint uses to pick a decoder — changing an existing
// tag's extension breaks uploads of already-spooled crashes.
type CompressionTag uint8

const (
	// CompressionGzip is the default. The historical upload endpoint
	// accepts only deflate-family streams, so gzip stays the default
	// until every endpoint understands the alternatives.
	CompressionGzip CompressionTag = 0

	// CompressionZstd trades endpoint compatibility for better ratios
	// on large text logs (dmesg, bios logs).
	CompressionZstd CompressionTag = 1

	// CompressionLZ4 minimizes CPU cost on low-end devices where the
	// collector competes with boot-critical work.
	CompressionLZ4 CompressionTag = 2
)

// String returns the human-readable name of a compression tag.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// Ext returns the file extension appended to compressed artifacts.
func (tag CompressionTag) Ext() string {
	switch tag {
	case CompressionZstd:
		return ".zst"
	case CompressionLZ4:
		return ".lz4"
	default:
		return ".gz"
	}
}

// ParseCompressionTag parses a compression tag from its configuration
// name.
func ParseCompressionTag(name string) (CompressionTag, error) {
	switch name {
	case "gzip":
		return CompressionGzip, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression tag: %q", name)
	}
}

// Compress compresses data with the codec selected by tag.
func Compress(data []byte, tag CompressionTag) ([]byte, error) {
	switch tag {
	case CompressionGzip:
		var buffer bytes.Buffer
		writer := gzip.NewWriter(&buffer)
		if _, err := writer.Write(data); err != nil {
			return nil, fmt.Errorf("gzip compress: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("gzip compress: %w", err)
		}
		return buffer.Bytes(), nil

	case CompressionZstd:
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		defer encoder.Close()
		return encoder.EncodeAll(data, nil), nil

	case CompressionLZ4:
		var buffer bytes.Buffer
		writer := lz4.NewWriter(&buffer)
		if _, err := writer.Write(data); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		return buffer.Bytes(), nil

	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

// Decompress reverses Compress. The collector itself never reads
// compressed artifacts back; this exists for the upload client and
// for tests.
func Decompress(data []byte, tag CompressionTag) ([]byte, error) {
	switch tag {
	case CompressionGzip:
		reader, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip decompress: %w", err)
		}
		defer reader.Close()
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip decompress: %w", err)
		}
		return decompressed, nil

	case CompressionZstd:
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		defer decoder.Close()
		decompressed, err := decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return decompressed, nil

	case CompressionLZ4:
		decompressed, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		return decompressed, nil

	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}
