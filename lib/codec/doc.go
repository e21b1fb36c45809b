// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Crashmill's standard CBOR encoding
// configuration.
//
// The collector speaks exactly one internal wire format: CBOR over
// unix sockets, used for the request/response protocol between the
// collector and the privileged log-collection service (dmesg, GPU
// error state). On-disk artifacts are not CBOR — the .meta descriptor
// is a plain key=value text file consumed by the upload client.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every Crashmill package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC
// 8949 §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (sockets):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
package codec
