// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// encodeUTF16LE converts a filename to the UTF-16LE form
// FileNotifyInformation carries on the wire. The raw name bytes read
// off the watch backend are in the client session's negotiated
// codepage, frozen on the NotifyClient at creation; single-byte
// codepages are decoded through their charmap before the UTF-16LE
// encode. UTF-8 sessions — and codepages this table does not know —
// pass the bytes through as UTF-8.
func encodeUTF16LE(codepage, name string) ([]byte, error) {
	if cm := charmapFor(codepage); cm != nil {
		decoded, err := cm.NewDecoder().String(name)
		if err != nil {
			return nil, fmt.Errorf("decode %s filename: %w", codepage, err)
		}
		name = decoded
	}
	enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	return enc.Bytes([]byte(name))
}

// charmapFor resolves a session codepage name to its single-byte
// charmap, or nil for UTF-8 and anything unrecognized. Names are
// matched with separators stripped, so "ISO-8859-1" and "iso8859-1"
// land on the same table.
func charmapFor(codepage string) *charmap.Charmap {
	normalized := strings.ToLower(codepage)
	normalized = strings.NewReplacer("-", "", "_", "").Replace(normalized)

	switch normalized {
	case "cp437", "ibm437":
		return charmap.CodePage437
	case "cp850", "ibm850":
		return charmap.CodePage850
	case "cp852", "ibm852":
		return charmap.CodePage852
	case "cp866", "ibm866":
		return charmap.CodePage866
	case "cp1250", "windows1250":
		return charmap.Windows1250
	case "cp1251", "windows1251":
		return charmap.Windows1251
	case "cp1252", "windows1252":
		return charmap.Windows1252
	case "iso88591", "latin1":
		return charmap.ISO8859_1
	case "iso88592", "latin2":
		return charmap.ISO8859_2
	case "iso885915":
		return charmap.ISO8859_15
	case "koi8r":
		return charmap.KOI8R
	default:
		return nil
	}
}
