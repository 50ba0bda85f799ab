// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package notify

import "golang.org/x/sys/unix"

// CompletionFilter is the SMB2 CHANGE_NOTIFY bitmask selecting which
// directory changes the client wishes to observe.
type CompletionFilter uint32

const (
	ChangeName       CompletionFilter = 0x00000003 // FILE_NAME | DIR_NAME
	ChangeAttributes CompletionFilter = 0x00000004
	ChangeLastWrite  CompletionFilter = 0x00000010
	ChangeLastAccess CompletionFilter = 0x00000020
	ChangeEA         CompletionFilter = 0x00000080
	ChangeSecurity   CompletionFilter = 0x00000100
)

// ToMask translates an SMB completion filter into the watch backend's
// event mask. IN_MASK_ADD|IN_ONLYDIR is always set: CHANGE_NOTIFY only
// ever targets a directory, and repeated requests on the same path add
// to rather than replace its mask.
func ToMask(filter CompletionFilter) uint32 {
	mask := uint32(unix.IN_MASK_ADD | unix.IN_ONLYDIR)

	if filter&ChangeName != 0 {
		mask |= unix.IN_CREATE | unix.IN_DELETE | unix.IN_MOVED_FROM | unix.IN_MOVED_TO
	}
	if filter&ChangeAttributes != 0 {
		mask |= unix.IN_ATTRIB | unix.IN_MOVED_TO | unix.IN_MOVED_FROM | unix.IN_MODIFY
	}
	if filter&(ChangeLastWrite|ChangeLastAccess|ChangeEA|ChangeSecurity) != 0 {
		mask |= unix.IN_ATTRIB
	}
	return mask
}

// FileAction is the SMB2 FileNotifyInformation Action field.
type FileAction uint32

const (
	FileActionAdded    FileAction = 1
	FileActionRemoved  FileAction = 2
	FileActionModified FileAction = 3
	// FileActionRenamedOldName/NewName (4, 5) are part of the SMB2 wire
	// protocol but are never produced here: IN_MOVED_FROM/IN_MOVED_TO
	// are collapsed to Removed/Added rather than paired into a rename.
	// Known limitation; pairing needs cookie correlation across events.
)

// actionFromMask maps one inotify event mask to an SMB FileAction.
func actionFromMask(mask uint32) FileAction {
	switch {
	case mask&unix.IN_CREATE != 0:
		return FileActionAdded
	case mask&unix.IN_DELETE != 0:
		return FileActionRemoved
	case mask&unix.IN_MOVED_FROM != 0:
		return FileActionRemoved
	case mask&unix.IN_MOVED_TO != 0:
		return FileActionAdded
	default:
		return FileActionModified
	}
}
