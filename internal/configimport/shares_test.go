// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package configimport

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stratastor/smbd-companion/internal/constants"
	"github.com/stratastor/smbd-companion/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportSharesFraming(t *testing.T) {
	dir := t.TempDir()
	conf := writeTempFile(t, "smb.conf", fmt.Sprintf("[data]\n  path = %s\n  comment = t\n", dir))
	link := &fakeLink{}

	shares, _, err := ImportShares(link, OSOpen, conf, testLogger(t))
	require.NoError(t, err)

	require.Len(t, link.calls, 1)
	msg := link.calls[0]
	assert.Equal(t, wire.ConfigShare, msg.Header.Type)

	// Directives separated by the literal byte `<`, NUL-terminated.
	want := fmt.Sprintf("<sharename = data<path = %s<comment = t\x00", dir)
	assert.Equal(t, want, string(msg.Payload))
	assert.Equal(t, uint32(len(want)), msg.Header.BufLen)

	require.Len(t, shares, 1)
	assert.Equal(t, "data", shares[0].Name)
	assert.Equal(t, "t", shares[0].Comment)
	assert.Equal(t, dir, shares[0].Path)
}

func TestImportSharesGlobalBlock(t *testing.T) {
	conf := writeTempFile(t, "smb.conf", "[global]\n  workgroup = TESTGRP\n  server string = test server\n")
	link := &fakeLink{}

	shares, global, err := ImportShares(link, OSOpen, conf, testLogger(t))
	require.NoError(t, err)

	// The global block updates the config strings and never becomes a
	// share entry of its own.
	assert.Empty(t, shares)
	assert.Equal(t, "TESTGRP", global.Workgroup)
	assert.Equal(t, "test server", global.ServerString)

	require.Len(t, link.calls, 1)
	assert.True(t, strings.HasPrefix(string(link.calls[0].Payload), "<sharename = global"))
}

func TestImportSharesOneBlockPerSection(t *testing.T) {
	dir := t.TempDir()
	conf := writeTempFile(t, "smb.conf", fmt.Sprintf(
		"[alpha]\n  path = %s\n[beta]\n  path = %s\n", dir, dir))
	link := &fakeLink{}

	shares, _, err := ImportShares(link, OSOpen, conf, testLogger(t))
	require.NoError(t, err)

	require.Len(t, link.calls, 2)
	assert.True(t, strings.HasPrefix(string(link.calls[0].Payload), "<sharename = alpha"))
	assert.True(t, strings.HasPrefix(string(link.calls[1].Payload), "<sharename = beta"))
	require.Len(t, shares, 2)
	assert.Equal(t, "alpha", shares[0].Name)
	assert.Equal(t, "beta", shares[1].Name)
}

func TestImportSharesMissingPathSkipsBlock(t *testing.T) {
	dir := t.TempDir()
	conf := writeTempFile(t, "smb.conf", fmt.Sprintf(
		"[bad]\n  path = /nonexistent/dir/for/sure\n[good]\n  path = %s\n", dir))
	link := &fakeLink{}

	shares, _, err := ImportShares(link, OSOpen, conf, testLogger(t))
	require.NoError(t, err)

	require.Len(t, link.calls, 1)
	assert.True(t, strings.HasPrefix(string(link.calls[0].Payload), "<sharename = good"))
	require.Len(t, shares, 1)
	assert.Equal(t, "good", shares[0].Name)
}

func TestImportSharesCommentsAndContinuation(t *testing.T) {
	conf := writeTempFile(t, "smb.conf",
		"; leading comment\n"+
			"[noted]\n"+
			"  comment = first \\\n"+
			"second  # trailing comment\n")
	link := &fakeLink{}

	shares, _, err := ImportShares(link, OSOpen, conf, testLogger(t))
	require.NoError(t, err)

	require.Len(t, link.calls, 1)
	payload := string(link.calls[0].Payload)
	assert.Contains(t, payload, "comment = first second")
	assert.NotContains(t, payload, "leading comment")
	assert.NotContains(t, payload, "trailing comment")
	require.Len(t, shares, 1)
	assert.Equal(t, "first second", shares[0].Comment)
}

// A block bigger than the page-sized framing buffer is flushed in
// chunks, each chunk re-prefixed with the share header so the kernel
// can stitch them by name.
func TestImportSharesChunkedOverflow(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("[big]\n")
	directive := strings.Repeat("x", 80)
	for i := 0; i < 80; i++ {
		fmt.Fprintf(&sb, "  opt%02d = %s\n", i, directive)
	}
	conf := writeTempFile(t, "smb.conf", sb.String())
	link := &fakeLink{}

	_, _, err := ImportShares(link, OSOpen, conf, testLogger(t))
	require.NoError(t, err)

	require.Greater(t, len(link.calls), 1)
	for i, msg := range link.calls {
		payload := string(msg.Payload)
		assert.True(t, strings.HasPrefix(payload, "<sharename = big"), "chunk %d", i)
		assert.True(t, strings.HasSuffix(payload, "\x00"), "chunk %d", i)
		assert.LessOrEqual(t, len(payload), constants.PageSize, "chunk %d", i)
	}
}

func TestFirstValidChar(t *testing.T) {
	tests := []struct {
		line     string
		want     string
		isHeader bool
	}{
		{"[data]", "[data]", true},
		{"  path = /tmp", "path = /tmp", false},
		{"; comment", "", false},
		{"   # comment", "", false},
		{"", "", false},
		{"opt = val ; tail", "opt = val", false},
	}
	for _, tt := range tests {
		got, isHeader := firstValidChar(tt.line)
		assert.Equal(t, tt.want, got, "line %q", tt.line)
		assert.Equal(t, tt.isHeader, isHeader, "line %q", tt.line)
	}
}
