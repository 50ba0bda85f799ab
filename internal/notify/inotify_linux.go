// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package notify

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// WatchBackend abstracts the native filesystem-watch facility so
// internal/notify can be exercised with a fake in tests. The Linux
// implementation talks directly to inotify via golang.org/x/sys/unix:
// the completion-filter translation is defined in terms of literal IN_*
// mask bits, which a generic watcher wrapper would hide.
type WatchBackend interface {
	AddWatch(path string, mask uint32) (wd int32, err error)
	RemoveWatch(wd int32) error
	// ReadEvents blocks until at least one event is available and
	// returns every event decoded from that read.
	ReadEvents() ([]Event, error)
	Close() error
}

// Event is one decoded inotify_event.
type Event struct {
	Wd   int32
	Mask uint32
	Name string
}

const inotifyEventHeaderSize = 16 // wd(4) + mask(4) + cookie(4) + len(4)

type inotifyBackend struct {
	fd int
}

// newInotifyBackend opens a fresh inotify instance. One inotify fd is
// shared across all watches for the lifetime of the reader task;
// callers open one backend per reader-task generation, not one per
// watch.
func newInotifyBackend() (*inotifyBackend, error) {
	fd, err := unix.InotifyInit1(0)
	if err != nil {
		return nil, fmt.Errorf("inotify_init1: %w", err)
	}
	return &inotifyBackend{fd: fd}, nil
}

func (b *inotifyBackend) AddWatch(path string, mask uint32) (int32, error) {
	wd, err := unix.InotifyAddWatch(b.fd, path, mask)
	if err != nil {
		return 0, fmt.Errorf("inotify_add_watch %s: %w", path, err)
	}
	return int32(wd), nil
}

func (b *inotifyBackend) RemoveWatch(wd int32) error {
	_, err := unix.InotifyRmWatch(b.fd, uint32(wd))
	return err
}

func (b *inotifyBackend) Close() error {
	return unix.Close(b.fd)
}

// ReadEvents blocks on a single read(2) with a buffer sized for up to
// ten maximum-length events.
func (b *inotifyBackend) ReadEvents() ([]Event, error) {
	const eventSize = inotifyEventHeaderSize + unix.NAME_MAX + 1
	buf := make([]byte, 10*eventSize)

	n, err := unix.Read(b.fd, buf)
	if err != nil {
		return nil, fmt.Errorf("inotify read: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("inotify read returned zero bytes")
	}

	var events []Event
	off := 0
	for off+inotifyEventHeaderSize <= n {
		wd := int32(binary.LittleEndian.Uint32(buf[off:]))
		mask := binary.LittleEndian.Uint32(buf[off+4:])
		nameLen := int(binary.LittleEndian.Uint32(buf[off+12:]))

		nameStart := off + inotifyEventHeaderSize
		nameEnd := nameStart + nameLen
		if nameEnd > n {
			break
		}
		name := cStringFromBytes(buf[nameStart:nameEnd])
		events = append(events, Event{Wd: wd, Mask: mask, Name: name})
		off = nameEnd
	}
	return events, nil
}

func cStringFromBytes(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
