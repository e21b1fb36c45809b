// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

package spool

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/crashmill-project/crashmill/status"
)

// doneSentinel is the terminal line of every finished .meta file. The
// upload client treats a .meta file without it as an in-progress or
// aborted record and ignores it.
const doneSentinel = "done=1"

// MetaLine is one key=value line supplied by a collector for the
// .meta descriptor (collector name, signature, severity).
type MetaLine struct {
	Key   string
	Value string
}

// Record accumulates one crash's artifacts: a basename shared by all
// files, the payload, optional attachments gated by the byte budget,
// and the metadata lines destined for the .meta descriptor. A Record
// is built fresh per crash and is not safe for concurrent use — the
// pipeline is run-to-completion per crash.
//
// Failure mid-record leaves the files already written in place. They
// aid manual debugging, and the missing done sentinel keeps the upload
// client away from them.
type Record struct {
	writer   *Writer
	dir      string
	execName string

	// Basename is the <exec>.<timestamp>.<pid> stem shared by every
	// file of this record. The timestamp+pid embedding keeps racing
	// daemon instances from colliding; the exclusive create in
	// WriteNewFile turns any residual collision into an error instead
	// of a corrupt file.
	Basename string

	payloadBase string
	payloadHash string

	remaining  int64
	exhausted  bool
	metaLines  []string
	totalBytes int64
}

// NewRecord allocates a crash record in the given spool directory.
func (w *Writer) NewRecord(dir, execName string, pid int) *Record {
	return &Record{
		writer:    w,
		dir:       dir,
		execName:  execName,
		Basename:  fmt.Sprintf("%s.%d.%d", sanitizeName(execName), time.Now().UnixNano(), pid),
		remaining: w.cfg.MaxUploadBytes,
	}
}

// sanitizeName maps an attacker-influenced logical name to a safe
// on-disk name: every byte outside [A-Za-z0-9_.-] (path separators
// included) becomes '_'.
func sanitizeName(name string) string {
	var builder strings.Builder
	builder.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '_', c == '.', c == '-':
			builder.WriteByte(c)
		default:
			builder.WriteByte('_')
		}
	}
	return builder.String()
}

// escapeValue rewrites raw CR and LF bytes as the two-character
// sequences \r and \n so a metadata value can never inject extra
// key=value lines into the .meta file.
func escapeValue(value string) string {
	value = strings.ReplaceAll(value, "\r", `\r`)
	return strings.ReplaceAll(value, "\n", `\n`)
}

// AddMeta records an upload_var_<key>=<escaped value> line. Duplicate
// keys accumulate as repeated lines; the upload endpoint keeps the
// last occurrence.
func (r *Record) AddMeta(key, value string) {
	r.metaLines = append(r.metaLines,
		fmt.Sprintf("upload_var_%s=%s", sanitizeName(key), escapeValue(value)))
}

// WritePayload writes the record's primary diagnostic blob as
// <basename>.<ext>. The payload is mandatory and is not gated by the
// attachment quota, but its size does count toward the record's total
// byte accounting.
func (r *Record) WritePayload(ext string, data []byte) status.Status {
	base := r.Basename + "." + ext
	path := filepath.Join(r.dir, base)
	if written := WriteNewFile(path, data); written != len(data) {
		r.writer.logger.Error("payload write failed", "path", path, "written", written, "size", len(data))
		return status.PayloadWriteFailed
	}
	hash := blake3.Sum256(data)
	r.payloadBase = base
	r.payloadHash = hex.EncodeToString(hash[:])
	r.totalBytes += int64(len(data))
	return status.Success
}

// AdoptPayload takes an already-written file (the output of the
// core→minidump converter) as the record's payload. The file must be
// inside the record's spool directory.
func (r *Record) AdoptPayload(path string) status.Status {
	data, err := os.ReadFile(path)
	if err != nil {
		r.writer.logger.Error("payload read failed", "path", path, "error", err)
		return status.PayloadWriteFailed
	}
	hash := blake3.Sum256(data)
	r.payloadBase = filepath.Base(path)
	r.payloadHash = hex.EncodeToString(hash[:])
	r.totalBytes += int64(len(data))
	return status.Success
}

// AddAttachment writes an optional attachment under the byte budget.
// The logical name is sanitized into the on-disk filename; compressed
// attachments gain the codec's extension. Quota exhaustion is a
// success (the attachment is skipped, no metadata line is added) —
// losing an optional log must never fail the crash. Once one
// attachment does not fit, every later one is skipped too, so the
// set of written attachments is always a prefix of the consideration
// order.
func (r *Record) AddAttachment(name string, data []byte, compress bool) status.Status {
	sanitized := sanitizeName(name)
	if r.exhausted || r.remaining <= 0 {
		r.exhausted = true
		r.writer.logger.Warn("attachment skipped, quota exhausted", "name", sanitized)
		return status.AttachmentSkippedQuota
	}

	output := data
	base := r.Basename + "." + sanitized
	if compress {
		compressed, err := Compress(data, r.writer.tag)
		if err != nil {
			r.writer.logger.Error("attachment compress failed", "name", sanitized, "error", err)
			return status.CompressedWriteFailed
		}
		output = compressed
		base += r.writer.tag.Ext()
	}

	if int64(len(output)) > r.remaining {
		r.exhausted = true
		r.writer.logger.Warn("attachment skipped, over remaining quota",
			"name", sanitized, "size", len(output), "remaining", r.remaining)
		return status.AttachmentSkippedQuota
	}

	path := filepath.Join(r.dir, base)
	written := WriteNewFile(path, output)
	if written != len(output) {
		r.writer.logger.Error("attachment write failed", "path", path, "written", written, "size", len(output))
		return status.AttachmentWriteFailed
	}

	r.remaining -= int64(written)
	r.totalBytes += int64(written)
	r.metaLines = append(r.metaLines, fmt.Sprintf("upload_file_%s=%s", sanitized, base))
	return status.Success
}

// AddAttachmentFile attaches a caller-supplied file verbatim (no
// compression — the caller owns the file's encoding) under the same
// quota rules as AddAttachment.
func (r *Record) AddAttachmentFile(name, sourcePath string) status.Status {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		r.writer.logger.Error("attachment read failed", "path", sourcePath, "error", err)
		return status.AttachmentReadFailed
	}
	return r.AddAttachment(name, data, false)
}

// Finish writes the .meta descriptor and completes the record. The
// descriptor is newline-terminated key=value lines: identity first,
// then the caller's extra lines, then the accumulated upload_var_ and
// upload_file_ lines, then payload accounting, and the done sentinel
// last. A record without a payload (metadata-only report) simply has
// no payload lines.
//
// Returns the total bytes written across the whole record — payload,
// attachments, and the .meta file itself.
func (r *Record) Finish(extra ...MetaLine) (status.Status, int64) {
	var builder strings.Builder
	writeLine := func(key, value string) {
		builder.WriteString(key)
		builder.WriteByte('=')
		builder.WriteString(value)
		builder.WriteByte('\n')
	}

	writeLine("exec_name", escapeValue(r.execName))
	for _, line := range extra {
		writeLine(sanitizeName(line.Key), escapeValue(line.Value))
	}
	for _, line := range r.metaLines {
		builder.WriteString(line)
		builder.WriteByte('\n')
	}
	if r.payloadBase != "" {
		writeLine("payload", r.payloadBase)
		writeLine("payload_hash", r.payloadHash)
	}
	builder.WriteString(doneSentinel)
	builder.WriteByte('\n')

	path := filepath.Join(r.dir, r.Basename+".meta")
	content := builder.String()
	if written := WriteNewFile(path, []byte(content)); written != len(content) {
		r.writer.logger.Error("meta write failed", "path", path, "written", written)
		return status.MetaWriteFailed, r.totalBytes
	}
	r.totalBytes += int64(len(content))
	return status.Success, r.totalBytes
}
