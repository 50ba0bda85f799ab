// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package dispatch routes each inbound kernel event referring to a pipe:
// locate the pipe, delegate the payload to the RPC collaborator, and
// reply with a correlated response.
package dispatch

import (
	"context"
	stderrors "errors"

	"github.com/stratastor/logger"
	"github.com/stratastor/smbd-companion/internal/registry"
	"github.com/stratastor/smbd-companion/internal/rpc"
	"github.com/stratastor/smbd-companion/internal/wire"
	"github.com/stratastor/smbd-companion/pkg/errors"
	"golang.org/x/sys/unix"
)

// Sender is the subset of the Kernel Link the dispatcher needs to emit
// responses. Defined here (rather than depending on internal/kernellink)
// so the dispatcher can be unit-tested against a fake.
type Sender interface {
	Send(hdr wire.Header, payload []byte) error
}

// NotifyHandler is the Change-Notify Subsystem's entry point for
// INOTIFY_REQUEST events, kept as an interface to avoid a dependency
// cycle between internal/dispatch and internal/notify.
type NotifyHandler interface {
	HandleRequest(ctx context.Context, msg wire.Message) error
}

// Terminator is invoked on USER_DAEMON_EXIST.
type Terminator func()

// Dispatcher is the Pipe Request Dispatcher collaborator.
type Dispatcher struct {
	Registry  *registry.Registry
	RPC       rpc.Collaborator
	Notify    NotifyHandler
	Sender    Sender
	Log       logger.Logger
	Terminate Terminator
}

// Handle is the Link's Handler: one call per inbound message, fully
// synchronous, always emitting exactly one correlated response.
// CREATE_PIPE/DESTROY_PIPE/USER_DAEMON_EXIST have no response type, and
// INOTIFY_REQUEST owns its own response path.
func (d *Dispatcher) Handle(ctx context.Context, msg wire.Message) error {
	h := msg.Header

	switch h.Type {
	case wire.CreatePipe:
		if err := d.Registry.CreatePipe(h.ServerHandle, h.PipeType, h.CodepageString()); err != nil {
			d.Log.Warn("CREATE_PIPE failed", "handle", h.ServerHandle, "kind", h.PipeType, "err", err)
		}
		return nil

	case wire.DestroyPipe:
		if err := d.Registry.DestroyPipe(h.ServerHandle, h.PipeType); err != nil {
			d.Log.Warn("DESTROY_PIPE failed", "handle", h.ServerHandle, "kind", h.PipeType, "err", err)
		}
		return nil

	case wire.ReadPipe:
		return d.handleRead(h)

	case wire.WritePipe:
		return d.handleWrite(h, msg.Payload)

	case wire.IoctlPipe:
		return d.handleIoctl(h, msg.Payload)

	case wire.LanmanPipe:
		return d.handleLanman(h, msg.Payload)

	case wire.UserDaemonExist:
		d.Log.Error("daemon instance already running according to kernel, terminating")
		if d.Terminate != nil {
			d.Terminate()
		}
		return nil

	case wire.InotifyRequest:
		return d.Notify.HandleRequest(ctx, msg)

	default:
		return errors.New(errors.RpcFailed, "unknown event type").WithMetadata("type", h.Type.String())
	}
}

func (d *Dispatcher) handleRead(h wire.Header) error {
	rsp := wire.Header{Type: wire.ReadPipeRsp, ServerHandle: h.ServerHandle, PipeType: h.PipeType}

	pipe := d.Registry.FindPipe(h.ServerHandle, h.PipeType)
	if pipe == nil {
		rsp.Error = -int32(unix.ENOENT)
		return d.Sender.Send(rsp, nil)
	}

	out, err := d.RPC.PollResponse(pipe, int(h.OutBufLen))
	if err != nil {
		rsp.Error = responseErrno(err)
		return d.Sender.Send(rsp, nil)
	}

	rsp.ReadCount = uint32(len(out))
	return d.Sender.Send(rsp, out)
}

func (d *Dispatcher) handleWrite(h wire.Header, payload []byte) error {
	rsp := wire.Header{Type: wire.WritePipeRsp, ServerHandle: h.ServerHandle, PipeType: h.PipeType}

	pipe := d.Registry.FindPipe(h.ServerHandle, h.PipeType)
	if pipe == nil {
		rsp.Error = -int32(unix.ENOENT)
		return d.Sender.Send(rsp, nil)
	}

	if err := d.RPC.SubmitRequest(pipe, payload); err != nil {
		rsp.Error = responseErrno(err)
		rsp.WriteCount = 0
		return d.Sender.Send(rsp, nil)
	}

	rsp.WriteCount = uint32(len(payload))
	return d.Sender.Send(rsp, nil)
}

func (d *Dispatcher) handleIoctl(h wire.Header, payload []byte) error {
	rsp := wire.Header{Type: wire.IoctlPipeRsp, ServerHandle: h.ServerHandle, PipeType: h.PipeType}

	pipe := d.Registry.FindPipe(h.ServerHandle, h.PipeType)
	if pipe == nil {
		rsp.Error = -int32(unix.ENOENT)
		return d.Sender.Send(rsp, nil)
	}

	if err := d.RPC.SubmitRequest(pipe, payload); err != nil {
		rsp.Error = responseErrno(err)
		return d.Sender.Send(rsp, nil)
	}

	out, err := d.RPC.PollResponse(pipe, int(h.OutBufLen))
	if err != nil {
		rsp.Error = responseErrno(err)
		return d.Sender.Send(rsp, nil)
	}

	rsp.DataCount = uint32(len(out))
	return d.Sender.Send(rsp, out)
}

// handleLanman is transactional within a single event: create, process,
// respond, destroy — unconditionally in that order, even on error paths.
func (d *Dispatcher) handleLanman(h wire.Header, payload []byte) error {
	rsp := wire.Header{Type: wire.LanmanPipeRsp, ServerHandle: h.ServerHandle, PipeType: h.PipeType}

	createErr := d.Registry.CreatePipe(h.ServerHandle, h.PipeType, h.CodepageString())
	pipe := d.Registry.FindPipe(h.ServerHandle, h.PipeType)
	if createErr != nil && pipe == nil {
		rsp.Error = -int32(unix.ENOMEM)
		return d.Sender.Send(rsp, nil)
	}
	pipe.Username = h.UsernameString()

	var sendErr error
	data, paramLen, err := d.RPC.HandleLanman(pipe, payload)
	if err != nil {
		rsp.Error = responseErrno(err)
		sendErr = d.Sender.Send(rsp, nil)
	} else {
		rsp.DataCount = uint32(len(data))
		rsp.ParamCount = uint32(paramLen)
		sendErr = d.Sender.Send(rsp, data)
	}

	if err := d.Registry.DestroyPipe(h.ServerHandle, h.PipeType); err != nil {
		d.Log.Warn("LANMAN pipe teardown failed", "handle", h.ServerHandle, "err", err)
	}
	return sendErr
}

// responseErrno converts a handler error into the negated errno the
// kernel expects in the response header's error field. An RPC
// collaborator that carries a unix.Errno has it passed through verbatim;
// registry not-found, registry already-exists and allocation failures
// map to ENOENT, EEXIST and ENOMEM; anything else is reported as EIO.
func responseErrno(err error) int32 {
	var errno unix.Errno
	if stderrors.As(err, &errno) {
		return -int32(errno)
	}
	if code, ok := errors.GetCode(err); ok {
		switch code {
		case errors.RegistryNotFound:
			return -int32(unix.ENOENT)
		case errors.RegistryAlreadyExists:
			return -int32(unix.EEXIST)
		case errors.RegistryOutOfMemory, errors.ResourceExhausted, errors.ResourceAllocFailed:
			return -int32(unix.ENOMEM)
		}
	}
	return -int32(unix.EIO)
}
