// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// requestPayload is the INOTIFY_REQUEST body: the SMB2 completion filter
// followed by the NUL-terminated directory path moved out of the fixed
// wire.Header per internal/wire's framing decision.
type requestPayload struct {
	Filter  CompletionFilter
	DirPath string
}

func decodeRequestPayload(b []byte) (requestPayload, error) {
	if len(b) < 4 {
		return requestPayload{}, fmt.Errorf("inotify request payload too short: %d bytes", len(b))
	}
	order := binary.NativeEndian
	filter := CompletionFilter(order.Uint32(b[:4]))

	rest := b[4:]
	n := bytes.IndexByte(rest, 0)
	if n < 0 {
		n = len(rest)
	}
	return requestPayload{Filter: filter, DirPath: string(rest[:n])}, nil
}

// fileNotifyInformation is a single SMB2 FileNotifyInformation record.
// next_entry_offset is always 0: exactly one change is reported per
// INOTIFY_RESPONSE (see runReader in subsystem.go).
type fileNotifyInformation struct {
	Action   FileAction
	FileName string // raw name bytes in Codepage; encoded to UTF-16LE on the wire
	Codepage string
}

// encodeResponsePayload builds the INOTIFY_RESPONSE body: a leading
// output_buffer_length field followed by exactly one
// FileNotifyInformation record.
func encodeResponsePayload(info fileNotifyInformation) ([]byte, error) {
	nameBytes, err := encodeUTF16LE(info.Codepage, info.FileName)
	if err != nil {
		return nil, fmt.Errorf("encode file name: %w", err)
	}

	record := new(bytes.Buffer)
	order := binary.NativeEndian
	if err := binary.Write(record, order, uint32(0)); err != nil { // next_entry_offset
		return nil, err
	}
	if err := binary.Write(record, order, uint32(info.Action)); err != nil {
		return nil, err
	}
	if err := binary.Write(record, order, uint32(len(nameBytes))); err != nil {
		return nil, err
	}
	record.Write(nameBytes)

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, order, uint32(record.Len())); err != nil { // output_buffer_length
		return nil, err
	}
	buf.Write(record.Bytes())
	return buf.Bytes(), nil
}
