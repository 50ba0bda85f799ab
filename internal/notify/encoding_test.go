// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeUTF16LEPassthrough(t *testing.T) {
	got, err := encodeUTF16LE("utf8", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte{'a', 0, '.', 0, 't', 0, 'x', 0, 't', 0}, got)

	// An unrecognized codepage degrades to the same UTF-8 passthrough.
	got, err = encodeUTF16LE("ebcdic", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte{'a', 0, '.', 0, 't', 0, 'x', 0, 't', 0}, got)
}

func TestEncodeUTF16LECodepageAware(t *testing.T) {
	// 0x82 is é in CP850; a UTF-8 passthrough would mangle it.
	got, err := encodeUTF16LE("cp850", "\x82")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xe9, 0x00}, got)

	// 0xC0 is А (U+0410) in Windows-1251.
	got, err = encodeUTF16LE("cp1251", "\xc0")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x10, 0x04}, got)
}

func TestCharmapForNormalizesNames(t *testing.T) {
	assert.NotNil(t, charmapFor("ISO-8859-1"))
	assert.Same(t, charmapFor("ISO-8859-1"), charmapFor("iso8859_1"))
	assert.Same(t, charmapFor("CP850"), charmapFor("ibm-850"))
	assert.Nil(t, charmapFor("utf8"))
	assert.Nil(t, charmapFor(""))
}
