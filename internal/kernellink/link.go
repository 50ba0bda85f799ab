// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package kernellink implements the datagram control channel to the
// in-kernel SMB server: a raw AF_NETLINK socket on a protocol number
// reserved for this daemon, carrying this package's wire.Header
// framing.
package kernellink

import (
	"context"
	"fmt"
	"sync"

	"github.com/stratastor/logger"
	"github.com/stratastor/smbd-companion/internal/constants"
	"github.com/stratastor/smbd-companion/internal/wire"
	"github.com/stratastor/smbd-companion/pkg/errors"
	"golang.org/x/sys/unix"
)

// NetlinkFamily is the AF_NETLINK protocol number reserved for this
// control channel in the kernel module's ABI.
const NetlinkFamily = 30

// Handler is invoked once per inbound message by RunLoop.
type Handler func(ctx context.Context, msg wire.Message) error

// Link is the Kernel Link collaborator. Send is safe for concurrent use
// from both the main task and the notify reader task; a single mutex
// serializes the socket write path.
type Link struct {
	fd     int
	log    logger.Logger
	sendMu sync.Mutex
	closed bool
}

// Open binds a raw AF_NETLINK socket on NetlinkFamily.
func Open(log logger.Logger) (*Link, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW, NetlinkFamily)
	if err != nil {
		return nil, errors.Wrap(err, errors.LinkBindFailed).WithMetadata("syscall", "socket")
	}

	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Pid: uint32(unix.Getpid())}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, errors.LinkBindFailed).WithMetadata("syscall", "bind")
	}

	return &Link{fd: fd, log: log}, nil
}

// Close releases the underlying socket.
func (l *Link) Close() error {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return unix.Close(l.fd)
}

// Send atomically frames and transmits one message to the kernel.
func (l *Link) Send(hdr wire.Header, payload []byte) error {
	if len(payload) > constants.MaxPayload {
		return errors.New(errors.LinkOversizedMessage, fmt.Sprintf("payload length %d exceeds MAX_PAYLOAD %d", len(payload), constants.MaxPayload))
	}
	hdr.BufLen = uint32(len(payload))

	raw, err := wire.Encode(hdr, payload)
	if err != nil {
		return errors.Wrap(err, errors.LinkSendFailed)
	}

	l.sendMu.Lock()
	defer l.sendMu.Unlock()
	if l.closed {
		return errors.New(errors.LinkClosed, "send on closed link")
	}

	dest := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Pid: 0}
	if err := unix.Sendto(l.fd, raw, 0, dest); err != nil {
		return errors.Wrap(err, errors.LinkSendFailed).WithMetadata("type", hdr.Type.String())
	}
	return nil
}

// Call sends one message and blocks for exactly one reply datagram.
// Used by the Configuration Importer during startup, before RunLoop
// takes over the link for steady-state event dispatch; import never
// overlaps two in-flight requests.
func (l *Link) Call(hdr wire.Header, payload []byte) (wire.Message, error) {
	if err := l.Send(hdr, payload); err != nil {
		return wire.Message{}, err
	}

	buf := make([]byte, constants.MaxPayload+wire.HeaderSize+64)
	n, _, err := unix.Recvfrom(l.fd, buf, 0)
	if err != nil {
		return wire.Message{}, errors.Wrap(err, errors.LinkRecvFailed)
	}
	return wire.Decode(buf[:n])
}

// RunLoop blocks reading messages and invokes handler once per message.
// It returns when the peer closes the channel, the context is cancelled,
// or a fatal link error occurs.
func (l *Link) RunLoop(ctx context.Context, handler Handler) error {
	buf := make([]byte, constants.MaxPayload+wire.HeaderSize+64)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, _, err := unix.Recvfrom(l.fd, buf, 0)
		if err != nil {
			if l.closed {
				return nil
			}
			return errors.Wrap(err, errors.LinkRecvFailed)
		}
		if n == 0 {
			// Peer closed the channel.
			return nil
		}

		msg, err := wire.Decode(buf[:n])
		if err != nil {
			l.log.Warn("dropping malformed kernel link message", "err", err)
			continue
		}

		if err := handler(ctx, msg); err != nil {
			l.log.Error("handler returned error", "type", msg.Header.Type.String(), "err", err)
		}
	}
}
