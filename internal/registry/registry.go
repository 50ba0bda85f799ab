// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package registry maintains the mapping from a kernel-supplied
// ServerHandle to its Client record and open DCE/RPC pipes. The
// registry is exclusively owned by the main dispatch task and is never
// observed from the notify background reader, so unlike
// internal/notify's client set this type carries no internal locking.
package registry

import (
	"github.com/stratastor/smbd-companion/internal/wire"
	"github.com/stratastor/smbd-companion/pkg/errors"
)

// ServerHandle is the kernel-assigned opaque session identifier.
type ServerHandle = uint64

// Pipe is one open DCE/RPC named pipe belonging to a Client.
type Pipe struct {
	Client   *Client
	Kind     wire.PipeKind
	Codepage string // frozen at creation
	Username string // LANMAN pipes only
}

// Client is a kernel SMB session and its set of open pipes, at most one
// per PipeKind.
type Client struct {
	Handle ServerHandle
	pipes  map[wire.PipeKind]*Pipe
}

// Registry is the Client/Pipe Registry collaborator.
type Registry struct {
	clients map[ServerHandle]*Client
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{clients: make(map[ServerHandle]*Client)}
}

// LookupOrCreateClient is idempotent; it inserts on miss.
func (r *Registry) LookupOrCreateClient(handle ServerHandle) *Client {
	if c, ok := r.clients[handle]; ok {
		return c
	}
	c := &Client{Handle: handle, pipes: make(map[wire.PipeKind]*Pipe)}
	r.clients[handle] = c
	return c
}

// FindPipe returns the unique matching pipe, or nil if none exists.
func (r *Registry) FindPipe(handle ServerHandle, kind wire.PipeKind) *Pipe {
	c, ok := r.clients[handle]
	if !ok {
		return nil
	}
	return c.pipes[kind]
}

// CreatePipe adds a pipe of kind to the client identified by handle.
func (r *Registry) CreatePipe(handle ServerHandle, kind wire.PipeKind, codepage string) error {
	c := r.LookupOrCreateClient(handle)
	if _, exists := c.pipes[kind]; exists {
		return errors.New(errors.RegistryAlreadyExists, "pipe kind already open for this client")
	}
	c.pipes[kind] = &Pipe{Client: c, Kind: kind, Codepage: codepage}
	return nil
}

// DestroyPipe removes a pipe of kind from the client identified by handle.
// A client whose last pipe is removed is dropped with it; that is how
// session teardown reaches this registry.
func (r *Registry) DestroyPipe(handle ServerHandle, kind wire.PipeKind) error {
	c, ok := r.clients[handle]
	if !ok {
		return errors.New(errors.RegistryNotFound, "client not found")
	}
	if _, exists := c.pipes[kind]; !exists {
		return errors.New(errors.RegistryNotFound, "pipe not found")
	}
	delete(c.pipes, kind)
	if len(c.pipes) == 0 {
		delete(r.clients, handle)
	}
	return nil
}

// RemoveClient tears a client and all of its pipes down explicitly.
func (r *Registry) RemoveClient(handle ServerHandle) {
	delete(r.clients, handle)
}
