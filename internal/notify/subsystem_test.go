// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/stratastor/logger"
	"github.com/stratastor/smbd-companion/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// fakeBackend hands scripted events to the reader and records watches.
type fakeBackend struct {
	mu      sync.Mutex
	watches map[int32]string
	nextWd  int32
	events  chan []Event
	closed  bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{watches: make(map[int32]string), events: make(chan []Event, 4)}
}

func (b *fakeBackend) AddWatch(path string, mask uint32) (int32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextWd++
	b.watches[b.nextWd] = path
	return b.nextWd, nil
}

func (b *fakeBackend) RemoveWatch(wd int32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.watches, wd)
	return nil
}

func (b *fakeBackend) ReadEvents() ([]Event, error) {
	evs, ok := <-b.events
	if !ok {
		return nil, unix.EBADF
	}
	return evs, nil
}

func (b *fakeBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBackend) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// chanSender surfaces every sent message on a channel.
type chanSender struct{ sent chan wire.Message }

func (s *chanSender) Send(hdr wire.Header, payload []byte) error {
	s.sent <- wire.Message{Header: hdr, Payload: append([]byte(nil), payload...)}
	return nil
}

func requestPayloadBytes(filter CompletionFilter, dir string) []byte {
	buf := make([]byte, 4, 4+len(dir)+1)
	binary.NativeEndian.PutUint32(buf, uint32(filter))
	buf = append(buf, dir...)
	return append(buf, 0)
}

func newTestSubsystem(t *testing.T) (*Subsystem, *chanSender, *fakeBackend) {
	t.Helper()
	log, err := logger.NewTag(logger.Config{LogLevel: "error"}, "notify_test")
	require.NoError(t, err)

	backend := newFakeBackend()
	sender := &chanSender{sent: make(chan wire.Message, 4)}
	s := New(sender, log, func() (WatchBackend, error) { return backend, nil })
	return s, sender, backend
}

func (s *Subsystem) readerRunning() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.running
}

func TestSingleShotNotification(t *testing.T) {
	s, sender, backend := newTestSubsystem(t)

	req := wire.Message{
		Header:  wire.Header{Type: wire.InotifyRequest, ServerHandle: 0x3},
		Payload: requestPayloadBytes(ChangeName, "/watched/dir"),
	}
	req.Header.SetCodepage("utf8")
	require.NoError(t, s.HandleRequest(context.Background(), req))
	assert.True(t, s.readerRunning())

	backend.events <- []Event{{Wd: 1, Mask: unix.IN_CREATE, Name: "a.txt"}}

	var rsp wire.Message
	select {
	case rsp = <-sender.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("no INOTIFY_RESPONSE received")
	}

	assert.Equal(t, wire.InotifyResponse, rsp.Header.Type)
	assert.Equal(t, uint64(0x3), rsp.Header.ServerHandle)

	// Payload: output_buffer_length, then one FileNotifyInformation
	// record with a UTF-16LE name.
	order := binary.NativeEndian
	payload := rsp.Payload
	require.GreaterOrEqual(t, len(payload), 16)
	nameUTF16 := []byte{'a', 0, '.', 0, 't', 0, 'x', 0, 't', 0}
	assert.Equal(t, uint32(12+len(nameUTF16)), order.Uint32(payload[0:4]), "output_buffer_length")
	assert.Equal(t, uint32(0), order.Uint32(payload[4:8]), "next_entry_offset")
	assert.Equal(t, uint32(FileActionAdded), order.Uint32(payload[8:12]), "action")
	assert.Equal(t, uint32(len(nameUTF16)), order.Uint32(payload[12:16]), "file_name_length")
	assert.Equal(t, nameUTF16, payload[16:])

	// Single-shot: the reader exits, the backend closes, the client is
	// forgotten.
	require.Eventually(t, func() bool { return !s.readerRunning() }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, backend.isClosed())
	assert.Nil(t, s.clientByWatch(1))
}

func TestEventsWithoutNamesAreIgnored(t *testing.T) {
	s, sender, backend := newTestSubsystem(t)

	req := wire.Message{
		Header:  wire.Header{Type: wire.InotifyRequest, ServerHandle: 0x4},
		Payload: requestPayloadBytes(ChangeAttributes, "/watched/dir"),
	}
	require.NoError(t, s.HandleRequest(context.Background(), req))

	// A directory-level event carries no name and must not produce a
	// response; the named event after it in the same read does.
	backend.events <- []Event{
		{Wd: 1, Mask: unix.IN_ATTRIB, Name: ""},
		{Wd: 1, Mask: unix.IN_ATTRIB, Name: "b.txt"},
	}

	select {
	case rsp := <-sender.sent:
		order := binary.NativeEndian
		assert.Equal(t, uint32(FileActionModified), order.Uint32(rsp.Payload[8:12]))
	case <-time.After(2 * time.Second):
		t.Fatal("no INOTIFY_RESPONSE received")
	}
}

func TestReaderRestartsOnNextRequest(t *testing.T) {
	log, err := logger.NewTag(logger.Config{LogLevel: "error"}, "notify_test")
	require.NoError(t, err)

	opened := 0
	backends := []*fakeBackend{newFakeBackend(), newFakeBackend()}
	sender := &chanSender{sent: make(chan wire.Message, 4)}
	s := New(sender, log, func() (WatchBackend, error) {
		b := backends[opened]
		opened++
		return b, nil
	})

	ctx := context.Background()
	req := wire.Message{
		Header:  wire.Header{Type: wire.InotifyRequest, ServerHandle: 0x1},
		Payload: requestPayloadBytes(ChangeName, "/dir/one"),
	}
	require.NoError(t, s.HandleRequest(ctx, req))
	backends[0].events <- []Event{{Wd: 1, Mask: unix.IN_CREATE, Name: "x"}}
	<-sender.sent
	require.Eventually(t, func() bool { return !s.readerRunning() }, 2*time.Second, 10*time.Millisecond)

	req2 := wire.Message{
		Header:  wire.Header{Type: wire.InotifyRequest, ServerHandle: 0x2},
		Payload: requestPayloadBytes(ChangeName, "/dir/two"),
	}
	require.NoError(t, s.HandleRequest(ctx, req2))
	assert.Equal(t, 2, opened, "a fresh backend per reader generation")
	assert.True(t, s.readerRunning())
}

func TestSecondRequestRidesExistingReader(t *testing.T) {
	s, _, backend := newTestSubsystem(t)
	ctx := context.Background()

	for i, dir := range []string{"/dir/a", "/dir/b"} {
		req := wire.Message{
			Header:  wire.Header{Type: wire.InotifyRequest, ServerHandle: uint64(i + 1)},
			Payload: requestPayloadBytes(ChangeName, dir),
		}
		require.NoError(t, s.HandleRequest(ctx, req))
	}

	backend.mu.Lock()
	watchCount := len(backend.watches)
	backend.mu.Unlock()
	assert.Equal(t, 2, watchCount, "both watches share one backend")
}

func TestReaderTearsDownOnBackendError(t *testing.T) {
	s, _, backend := newTestSubsystem(t)

	req := wire.Message{
		Header:  wire.Header{Type: wire.InotifyRequest, ServerHandle: 0x7},
		Payload: requestPayloadBytes(ChangeName, "/dir"),
	}
	require.NoError(t, s.HandleRequest(context.Background(), req))

	close(backend.events)
	require.Eventually(t, func() bool { return !s.readerRunning() }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, backend.isClosed())
}

func TestDecodeRequestPayload(t *testing.T) {
	req, err := decodeRequestPayload(requestPayloadBytes(ChangeName|ChangeSecurity, "/some/dir"))
	require.NoError(t, err)
	assert.Equal(t, ChangeName|ChangeSecurity, req.Filter)
	assert.Equal(t, "/some/dir", req.DirPath)

	_, err = decodeRequestPayload([]byte{1, 2})
	require.Error(t, err)
}
