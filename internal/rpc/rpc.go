// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package rpc names the collaborator interface the Pipe Request
// Dispatcher delegates DCE/RPC named-pipe payloads to. This daemon does
// not construct DCE/RPC PDUs itself (srvsvc, wkssvc, winreg, lanman
// opcode handling live elsewhere); this package only defines the seam
// and a minimal fixture usable by tests and by a daemon run with no
// pipe backend wired in.
package rpc

import (
	"github.com/stratastor/smbd-companion/internal/registry"
	"github.com/stratastor/smbd-companion/pkg/errors"
)

// Collaborator is called by internal/dispatch for every pipe request
// that has a matching open Pipe.
type Collaborator interface {
	// SubmitRequest hands an inbound WRITE_PIPE/IOCTL_PIPE buffer to the
	// RPC implementation for the named pipe.
	SubmitRequest(pipe *registry.Pipe, in []byte) error

	// PollResponse drains up to maxOut bytes of the RPC implementation's
	// pending response for the named pipe.
	PollResponse(pipe *registry.Pipe, maxOut int) ([]byte, error)

	// HandleLanman runs a single lanman RPC transaction and returns the
	// response data and parameter block lengths.
	HandleLanman(pipe *registry.Pipe, in []byte) (data []byte, paramLen int, err error)
}

// Null is a Collaborator that answers every call with RpcFailed. It lets
// the daemon start — and serve config import and change-notify — with no
// RPC opcode implementation wired in.
type Null struct{}

func (Null) SubmitRequest(*registry.Pipe, []byte) error {
	return errors.New(errors.RpcFailed, "no rpc collaborator configured")
}

func (Null) PollResponse(*registry.Pipe, int) ([]byte, error) {
	return nil, errors.New(errors.RpcFailed, "no rpc collaborator configured")
}

func (Null) HandleLanman(*registry.Pipe, []byte) ([]byte, int, error) {
	return nil, 0, errors.New(errors.RpcFailed, "no rpc collaborator configured")
}
