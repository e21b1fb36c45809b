// Copyright 2026 The Crashmill Authors
// SPDX-License-Identifier: Apache-2.0

package chromedump

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	"github.com/crashmill-project/crashmill/status"
)

// CrashType classifies the dump the browser handed over. It gates
// which payload kinds are legal: an executable crash carries a
// minidump, a script-engine error carries a JS stack, never the other
// way around.
type CrashType int

const (
	// Executable is a native browser process crash.
	Executable CrashType = iota
	// ScriptEngineError is a JavaScript engine error report.
	ScriptEngineError
)

// String returns the collector name recorded in the .meta descriptor.
func (t CrashType) String() string {
	if t == ScriptEngineError {
		return "js_error"
	}
	return "chrome"
}

// PayloadKind identifies the primary diagnostic blob of a report.
type PayloadKind int

const (
	// PayloadNone means the report carried only metadata. Valid.
	PayloadNone PayloadKind = iota
	// PayloadMinidump is a binary minidump.
	PayloadMinidump
	// PayloadJSStack is a script-engine stack trace.
	PayloadJSStack
)

// KV is one metadata record in declaration order.
type KV struct {
	Key   string
	Value string
}

// Attachment is a non-payload file record. Name is the logical
// attachment name from the record key; Filename is the original
// filename the browser declared, kept for diagnostics only — on-disk
// names are derived from Name after sanitization.
type Attachment struct {
	Name     string
	Filename string
	Data     []byte
}

// Report is the parsed form of one browser dump.
type Report struct {
	Payload          []byte
	PayloadKind      PayloadKind
	Metadata         []KV
	Attachments      []Attachment
	GracefulShutdown bool
}

// Record keys are mangled multipart content-disposition fragments:
// the payload and attachment keys embed a filename clause.
const (
	minidumpKeyMarker = `upload_file_minidump"; filename="`
	jsStackKeyMarker  = `upload_file_js_stack"; filename="`
	filenameMarker    = `"; filename="`

	shutdownTypeKey   = "shutdown-type"
	gracefulShutdown  = "close"
)

// Parse decodes the browser's length-delimited multipart stream:
// repeat( KEY ":" LENGTH ":" VALUE ) with no separators between
// records. KEY and VALUE are arbitrary bytes — embedded NUL, CR, and
// LF included — disambiguated purely by the ASCII-decimal LENGTH
// consuming exactly that many raw bytes.
//
// The input is attacker-influenceable (the browser runs sandboxed,
// the collector does not), so every failure is a specific status and
// the parser never reads past len(data). A report with no payload
// record at all is valid.
func Parse(data []byte, crashType CrashType) (*Report, status.Status) {
	report := &Report{}
	pos := 0

	for pos < len(data) {
		delimiter := bytes.IndexByte(data[pos:], ':')
		if delimiter < 0 {
			return nil, status.NoDelimitedNameString
		}
		key := string(data[pos : pos+delimiter])
		pos += delimiter + 1

		delimiter = bytes.IndexByte(data[pos:], ':')
		if delimiter < 0 || delimiter == 0 {
			return nil, status.NoDelimitedSizeString
		}
		sizeField := string(data[pos : pos+delimiter])
		pos += delimiter + 1

		size, err := strconv.ParseUint(sizeField, 10, 63)
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				return nil, status.SizeOverflow
			}
			return nil, status.SizeNotANumber
		}
		if uint64(len(data)-pos) < size {
			return nil, status.TruncatedDump
		}
		value := data[pos : pos+int(size)]
		pos += int(size)

		if s := report.consume(key, value, crashType); s != status.Success {
			return nil, s
		}
	}

	return report, status.Success
}

// consume dispatches one key/value record into the report.
func (r *Report) consume(key string, value []byte, crashType CrashType) status.Status {
	switch {
	case strings.Contains(key, minidumpKeyMarker):
		if crashType == ScriptEngineError {
			return status.UnexpectedMinidump
		}
		if r.PayloadKind == PayloadMinidump {
			return status.MultipleMinidumps
		}
		r.Payload = append([]byte(nil), value...)
		r.PayloadKind = PayloadMinidump

	case strings.Contains(key, jsStackKeyMarker):
		if crashType == Executable {
			return status.UnexpectedJSStack
		}
		if r.PayloadKind == PayloadJSStack {
			return status.MultipleJSStacks
		}
		r.Payload = append([]byte(nil), value...)
		r.PayloadKind = PayloadJSStack

	case strings.Contains(key, filenameMarker):
		marker := strings.Index(key, filenameMarker)
		name := key[:marker]
		filename := strings.TrimSuffix(key[marker+len(filenameMarker):], `"`)
		r.Attachments = append(r.Attachments, Attachment{
			Name:     name,
			Filename: filename,
			Data:     append([]byte(nil), value...),
		})

	default:
		if key == shutdownTypeKey && string(value) == gracefulShutdown {
			r.GracefulShutdown = true
		}
		r.Metadata = append(r.Metadata, KV{Key: key, Value: string(value)})
	}
	return status.Success
}
