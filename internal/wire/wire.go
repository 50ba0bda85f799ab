// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the fixed-header, variable-payload framing shared
// with the in-kernel SMB server over the kernel link.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// MessageType enumerates every event exchanged over the kernel link, in
// both directions.
type MessageType uint32

const (
	ConfigUser MessageType = iota + 1
	ConfigUserRsp
	ConfigShare
	ConfigShareRsp
	CreatePipe
	DestroyPipe
	ReadPipe
	ReadPipeRsp
	WritePipe
	WritePipeRsp
	IoctlPipe
	IoctlPipeRsp
	LanmanPipe
	LanmanPipeRsp
	UserDaemonExist
	InotifyRequest
	InotifyResponse
)

func (t MessageType) String() string {
	switch t {
	case ConfigUser:
		return "CONFIG_USER"
	case ConfigUserRsp:
		return "CONFIG_USER_RSP"
	case ConfigShare:
		return "CONFIG_SHARE"
	case ConfigShareRsp:
		return "CONFIG_SHARE_RSP"
	case CreatePipe:
		return "CREATE_PIPE"
	case DestroyPipe:
		return "DESTROY_PIPE"
	case ReadPipe:
		return "READ_PIPE"
	case ReadPipeRsp:
		return "READ_PIPE_RSP"
	case WritePipe:
		return "WRITE_PIPE"
	case WritePipeRsp:
		return "WRITE_PIPE_RSP"
	case IoctlPipe:
		return "IOCTL_PIPE"
	case IoctlPipeRsp:
		return "IOCTL_PIPE_RSP"
	case LanmanPipe:
		return "LANMAN_PIPE"
	case LanmanPipeRsp:
		return "LANMAN_PIPE_RSP"
	case UserDaemonExist:
		return "USER_DAEMON_EXIST"
	case InotifyRequest:
		return "INOTIFY_REQUEST"
	case InotifyResponse:
		return "INOTIFY_RESPONSE"
	default:
		return fmt.Sprintf("MessageType(%d)", uint32(t))
	}
}

// PipeKind is the DCE/RPC named-pipe kind. Values beyond the four named
// here are assigned by the RPC collaborator and pass through unexamined.
type PipeKind uint32

const (
	PipeUnknown PipeKind = 0
	PipeSrvsvc  PipeKind = 1
	PipeWkssvc  PipeKind = 2
	PipeWinreg  PipeKind = 3
	PipeLanman  PipeKind = 4
)

const (
	codepageLen = 32
	usernameLen = 32
)

// HeaderSize is the fixed, wire-exact size of a Header in bytes.
const HeaderSize = 4 + 4 + 8 + 4 + 4 + 4 + 4 + 4 + 4 + 4 + codepageLen + usernameLen

// Header is the fixed-size prefix of every kernel-link datagram. It
// carries every per-request/per-response scalar field as a flat struct
// rather than a C-style union; a given message type only populates the
// fields it needs and leaves the rest zero.
//
// dir_path (PATH_MAX in the kernel ABI) is intentionally not part of this
// struct: embedding a path-sized field in every header would bloat every
// message regardless of type. It instead travels in the variable-length
// payload of INOTIFY_REQUEST, which is the only message that needs it.
type Header struct {
	Type         MessageType
	Error        int32
	ServerHandle uint64
	PipeType     PipeKind
	BufLen       uint32
	OutBufLen    uint32
	ReadCount    uint32
	WriteCount   uint32
	DataCount    uint32
	ParamCount   uint32
	Codepage     [codepageLen]byte
	Username     [usernameLen]byte
}

// SetCodepage truncates s to fit the fixed Codepage field.
func (h *Header) SetCodepage(s string) {
	setFixed(h.Codepage[:], s)
}

// SetUsername truncates s to fit the fixed Username field.
func (h *Header) SetUsername(s string) {
	setFixed(h.Username[:], s)
}

func (h *Header) CodepageString() string { return fixedString(h.Codepage[:]) }
func (h *Header) UsernameString() string { return fixedString(h.Username[:]) }

func setFixed(dst []byte, s string) {
	for i := range dst {
		dst[i] = 0
	}
	copy(dst, s)
}

func fixedString(b []byte) string {
	n := bytes.IndexByte(b, 0)
	if n < 0 {
		n = len(b)
	}
	return string(b[:n])
}

// Message pairs a decoded Header with its payload.
type Message struct {
	Header  Header
	Payload []byte
}

// Encode serializes hdr and payload using host-endian integers, matching
// the kernel module's own byte order (the wire contract assumes a single
// machine, not cross-endian transport).
func Encode(hdr Header, payload []byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Grow(HeaderSize + len(payload))
	order := binary.NativeEndian

	fields := []any{
		uint32(hdr.Type), hdr.Error, hdr.ServerHandle, uint32(hdr.PipeType),
		hdr.BufLen, hdr.OutBufLen, hdr.ReadCount, hdr.WriteCount,
		hdr.DataCount, hdr.ParamCount,
	}
	for _, f := range fields {
		if err := binary.Write(buf, order, f); err != nil {
			return nil, fmt.Errorf("encode header field: %w", err)
		}
	}
	buf.Write(hdr.Codepage[:])
	buf.Write(hdr.Username[:])
	buf.Write(payload)
	return buf.Bytes(), nil
}

// Decode parses a raw datagram into a Message.
func Decode(raw []byte) (Message, error) {
	if len(raw) < HeaderSize {
		return Message{}, fmt.Errorf("short message: %d bytes, want at least %d", len(raw), HeaderSize)
	}
	order := binary.NativeEndian
	r := bytes.NewReader(raw)
	var h Header
	var msgType, pipeType uint32

	for _, f := range []any{&msgType, &h.Error, &h.ServerHandle, &pipeType,
		&h.BufLen, &h.OutBufLen, &h.ReadCount, &h.WriteCount,
		&h.DataCount, &h.ParamCount} {
		if err := binary.Read(r, order, f); err != nil {
			return Message{}, fmt.Errorf("decode header field: %w", err)
		}
	}
	h.Type = MessageType(msgType)
	h.PipeType = PipeKind(pipeType)

	if _, err := r.Read(h.Codepage[:]); err != nil {
		return Message{}, fmt.Errorf("decode codepage: %w", err)
	}
	if _, err := r.Read(h.Username[:]); err != nil {
		return Message{}, fmt.Errorf("decode username: %w", err)
	}

	payload := make([]byte, int(h.BufLen))
	n, _ := r.Read(payload)
	return Message{Header: h, Payload: payload[:n]}, nil
}
