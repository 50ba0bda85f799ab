// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package notify implements Component E, the Change-Notify Subsystem:
// it turns SMB2 CHANGE_NOTIFY requests arriving as INOTIFY_REQUEST
// kernel-link events into watches on a WatchBackend, and reports the
// first resulting filesystem event back as an INOTIFY_RESPONSE.
package notify

import (
	"context"
	"sync"

	"github.com/stratastor/logger"
	"github.com/stratastor/smbd-companion/internal/registry"
	"github.com/stratastor/smbd-companion/internal/wire"
	"github.com/stratastor/smbd-companion/pkg/errors"
)

// Sender is the subset of the Kernel Link the subsystem needs to emit
// INOTIFY_RESPONSE events. Matches dispatch.Sender structurally so a
// *kernellink.Link satisfies both without an import cycle.
type Sender interface {
	Send(hdr wire.Header, payload []byte) error
}

// client is one outstanding watch request, keyed by the kernel session
// handle that asked for it.
type client struct {
	handle   registry.ServerHandle
	dirPath  string
	codepage string
	wd       int32
}

// Subsystem is the Change-Notify Subsystem collaborator. It owns a
// single shared watch backend: the backend is recreated each time the
// background reader starts, pairing one inotify fd to one in-flight
// request cycle.
type Subsystem struct {
	Sender Sender
	Log    logger.Logger

	// openBackend constructs a fresh WatchBackend. Overridable in tests.
	openBackend func() (WatchBackend, error)

	clientsMu sync.Mutex
	clients   map[registry.ServerHandle]*client

	// runMu guards the single critical section that decides whether a
	// reader task is already active. The check and the set happen under
	// one lock acquisition, so at most one reader exists per Subsystem.
	runMu   sync.Mutex
	running bool
	backend WatchBackend
}

// New constructs a Subsystem. sender delivers INOTIFY_RESPONSE events;
// openBackend is nil in production (defaults to the Linux inotify
// backend) and set to a fake in tests.
func New(sender Sender, log logger.Logger, openBackend func() (WatchBackend, error)) *Subsystem {
	if openBackend == nil {
		openBackend = func() (WatchBackend, error) { return newInotifyBackend() }
	}
	return &Subsystem{
		Sender:      sender,
		Log:         log,
		openBackend: openBackend,
		clients:     make(map[registry.ServerHandle]*client),
	}
}

// HandleRequest implements dispatch.NotifyHandler for INOTIFY_REQUEST.
// It registers the requesting client's watch and ensures a reader task
// is running, starting one if and only if none is already active.
func (s *Subsystem) HandleRequest(ctx context.Context, msg wire.Message) error {
	req, err := decodeRequestPayload(msg.Payload)
	if err != nil {
		return errors.Wrap(err, errors.NotifyInvalidRequest)
	}

	c := &client{
		handle:   msg.Header.ServerHandle,
		dirPath:  req.DirPath,
		codepage: msg.Header.CodepageString(),
	}

	s.clientsMu.Lock()
	s.clients[c.handle] = c
	s.clientsMu.Unlock()

	return s.ensureReaderRunning(ctx, c, ToMask(req.Filter))
}

// ensureReaderRunning starts the background reader exactly once: if a
// reader is already active, the new watch rides along on the existing
// backend; otherwise this call opens a fresh backend, adds the watch,
// and launches the reader goroutine before releasing runMu.
func (s *Subsystem) ensureReaderRunning(ctx context.Context, c *client, mask uint32) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.running {
		wd, err := s.backend.AddWatch(c.dirPath, mask)
		if err != nil {
			return errors.Wrap(err, errors.NotifyWatchFailed)
		}
		c.wd = wd
		return nil
	}

	backend, err := s.openBackend()
	if err != nil {
		return errors.Wrap(err, errors.NotifyWatchFailed)
	}
	wd, err := backend.AddWatch(c.dirPath, mask)
	if err != nil {
		_ = backend.Close()
		return errors.Wrap(err, errors.NotifyWatchFailed)
	}
	c.wd = wd

	s.backend = backend
	s.running = true
	go s.runReader(ctx, backend)
	return nil
}

// runReader blocks for exactly one ReadEvents call, reports the first
// decoded event that carries a name and whose watch belongs to a
// registered client, and then closes the backend and
// exits. Subscriptions are single-shot: a later INOTIFY_REQUEST
// restarts the cycle. Known limitation for concurrent notify clients —
// a persistent backend routing events by watch descriptor would fix it.
func (s *Subsystem) runReader(ctx context.Context, backend WatchBackend) {
	defer func() {
		s.runMu.Lock()
		s.running = false
		s.backend = nil
		s.runMu.Unlock()
		_ = backend.Close()
	}()

	events, err := backend.ReadEvents()
	if err != nil {
		s.Log.Warn("inotify read failed", "err", err)
		return
	}
	var (
		ev    Event
		c     *client
		found bool
	)
	for _, candidate := range events {
		if candidate.Name == "" {
			continue
		}
		if owner := s.clientByWatch(candidate.Wd); owner != nil {
			ev, c, found = candidate, owner, true
			break
		}
	}
	if !found {
		return
	}

	payload, err := encodeResponsePayload(fileNotifyInformation{
		Action:   actionFromMask(ev.Mask),
		FileName: ev.Name,
		Codepage: c.codepage,
	})
	if err != nil {
		s.Log.Warn("encode inotify response failed", "err", err)
		return
	}

	hdr := wire.Header{Type: wire.InotifyResponse, ServerHandle: c.handle}
	if err := s.Sender.Send(hdr, payload); err != nil {
		s.Log.Warn("send inotify response failed", "err", err)
	}

	s.clientsMu.Lock()
	delete(s.clients, c.handle)
	s.clientsMu.Unlock()
}

func (s *Subsystem) clientByWatch(wd int32) *client {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for _, c := range s.clients {
		if c.wd == wd {
			return c
		}
	}
	return nil
}
