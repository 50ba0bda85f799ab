// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

const baseMask = unix.IN_MASK_ADD | unix.IN_ONLYDIR

func TestToMask(t *testing.T) {
	tests := []struct {
		name   string
		filter CompletionFilter
		want   uint32
	}{
		{
			name:   "no filter bits",
			filter: 0,
			want:   baseMask,
		},
		{
			name:   "change name",
			filter: ChangeName,
			want:   baseMask | unix.IN_CREATE | unix.IN_DELETE | unix.IN_MOVED_FROM | unix.IN_MOVED_TO,
		},
		{
			name:   "change attributes",
			filter: ChangeAttributes,
			want:   baseMask | unix.IN_ATTRIB | unix.IN_MOVED_FROM | unix.IN_MOVED_TO | unix.IN_MODIFY,
		},
		{
			name:   "last write",
			filter: ChangeLastWrite,
			want:   baseMask | unix.IN_ATTRIB,
		},
		{
			name:   "last access",
			filter: ChangeLastAccess,
			want:   baseMask | unix.IN_ATTRIB,
		},
		{
			name:   "extended attributes",
			filter: ChangeEA,
			want:   baseMask | unix.IN_ATTRIB,
		},
		{
			name:   "security",
			filter: ChangeSecurity,
			want:   baseMask | unix.IN_ATTRIB,
		},
		{
			name:   "name and attributes combined",
			filter: ChangeName | ChangeAttributes,
			want: baseMask | unix.IN_CREATE | unix.IN_DELETE | unix.IN_MOVED_FROM |
				unix.IN_MOVED_TO | unix.IN_ATTRIB | unix.IN_MODIFY,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToMask(tt.filter))
		})
	}
}

func TestActionFromMask(t *testing.T) {
	assert.Equal(t, FileActionAdded, actionFromMask(unix.IN_CREATE))
	assert.Equal(t, FileActionRemoved, actionFromMask(unix.IN_DELETE))
	assert.Equal(t, FileActionModified, actionFromMask(unix.IN_MODIFY))
	assert.Equal(t, FileActionModified, actionFromMask(unix.IN_ATTRIB))

	// Renames collapse to remove/add pairs, never a rename action.
	assert.Equal(t, FileActionRemoved, actionFromMask(unix.IN_MOVED_FROM))
	assert.Equal(t, FileActionAdded, actionFromMask(unix.IN_MOVED_TO))
}
