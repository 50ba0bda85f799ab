// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"testing"

	"github.com/stratastor/logger"
	"github.com/stratastor/smbd-companion/internal/registry"
	"github.com/stratastor/smbd-companion/internal/wire"
	"github.com/stratastor/smbd-companion/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type sentMessage struct {
	hdr     wire.Header
	payload []byte
}

type fakeSender struct {
	sent []sentMessage
}

func (f *fakeSender) Send(hdr wire.Header, payload []byte) error {
	f.sent = append(f.sent, sentMessage{hdr: hdr, payload: append([]byte(nil), payload...)})
	return nil
}

// fakeRPC answers with canned bytes and records the pipes it saw.
type fakeRPC struct {
	pollOut   []byte
	lanmanOut []byte
	paramLen  int
	err       error

	submitted  [][]byte
	lanmanPipe *registry.Pipe
}

func (f *fakeRPC) SubmitRequest(pipe *registry.Pipe, in []byte) error {
	f.submitted = append(f.submitted, append([]byte(nil), in...))
	return f.err
}

func (f *fakeRPC) PollResponse(pipe *registry.Pipe, maxOut int) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pollOut, nil
}

func (f *fakeRPC) HandleLanman(pipe *registry.Pipe, in []byte) ([]byte, int, error) {
	f.lanmanPipe = pipe
	if f.err != nil {
		return nil, 0, f.err
	}
	return f.lanmanOut, f.paramLen, nil
}

type fakeNotify struct{ requests []wire.Message }

func (f *fakeNotify) HandleRequest(_ context.Context, msg wire.Message) error {
	f.requests = append(f.requests, msg)
	return nil
}

func newDispatcher(t *testing.T, rpcFake *fakeRPC) (*Dispatcher, *fakeSender, *fakeNotify) {
	t.Helper()
	log, err := logger.NewTag(logger.Config{LogLevel: "error"}, "dispatch_test")
	require.NoError(t, err)

	sender := &fakeSender{}
	notify := &fakeNotify{}
	d := &Dispatcher{
		Registry: registry.New(),
		RPC:      rpcFake,
		Notify:   notify,
		Sender:   sender,
		Log:      log,
	}
	return d, sender, notify
}

func msg(mt wire.MessageType, handle uint64, kind wire.PipeKind) wire.Message {
	return wire.Message{Header: wire.Header{Type: mt, ServerHandle: handle, PipeType: kind}}
}

func TestCreateThenReadPipe(t *testing.T) {
	rpcFake := &fakeRPC{pollOut: []byte("twelve bytes")}
	d, sender, _ := newDispatcher(t, rpcFake)
	ctx := context.Background()

	create := msg(wire.CreatePipe, 0x1, wire.PipeSrvsvc)
	create.Header.SetCodepage("utf8")
	require.NoError(t, d.Handle(ctx, create))
	assert.Empty(t, sender.sent, "CREATE_PIPE has no response type")

	read := msg(wire.ReadPipe, 0x1, wire.PipeSrvsvc)
	read.Header.OutBufLen = 4096
	require.NoError(t, d.Handle(ctx, read))

	require.Len(t, sender.sent, 1)
	rsp := sender.sent[0]
	assert.Equal(t, wire.ReadPipeRsp, rsp.hdr.Type)
	assert.Equal(t, uint64(0x1), rsp.hdr.ServerHandle)
	assert.Equal(t, wire.PipeSrvsvc, rsp.hdr.PipeType)
	assert.Equal(t, int32(0), rsp.hdr.Error)
	assert.Equal(t, uint32(12), rsp.hdr.ReadCount)
	assert.Equal(t, []byte("twelve bytes"), rsp.payload)
}

func TestReadPipeNoMatchingPipe(t *testing.T) {
	d, sender, _ := newDispatcher(t, &fakeRPC{})

	require.NoError(t, d.Handle(context.Background(), msg(wire.ReadPipe, 0x2, wire.PipeSrvsvc)))

	require.Len(t, sender.sent, 1)
	rsp := sender.sent[0]
	assert.Equal(t, -int32(unix.ENOENT), rsp.hdr.Error)
	assert.Empty(t, rsp.payload)
	assert.Equal(t, uint32(0), rsp.hdr.ReadCount)
}

func TestWritePipe(t *testing.T) {
	rpcFake := &fakeRPC{}
	d, sender, _ := newDispatcher(t, rpcFake)
	ctx := context.Background()

	require.NoError(t, d.Handle(ctx, msg(wire.CreatePipe, 0x1, wire.PipeWkssvc)))

	write := msg(wire.WritePipe, 0x1, wire.PipeWkssvc)
	write.Payload = []byte("request body")
	require.NoError(t, d.Handle(ctx, write))

	require.Len(t, sender.sent, 1)
	rsp := sender.sent[0]
	assert.Equal(t, wire.WritePipeRsp, rsp.hdr.Type)
	assert.Equal(t, int32(0), rsp.hdr.Error)
	assert.Equal(t, uint32(len("request body")), rsp.hdr.WriteCount)
	assert.Empty(t, rsp.payload)
	require.Len(t, rpcFake.submitted, 1)
	assert.Equal(t, []byte("request body"), rpcFake.submitted[0])
}

func TestWritePipeRPCError(t *testing.T) {
	rpcFake := &fakeRPC{err: errors.New(errors.RpcFailed, "broken")}
	d, sender, _ := newDispatcher(t, rpcFake)
	ctx := context.Background()

	require.NoError(t, d.Handle(ctx, msg(wire.CreatePipe, 0x1, wire.PipeWkssvc)))

	write := msg(wire.WritePipe, 0x1, wire.PipeWkssvc)
	write.Payload = []byte("req")
	require.NoError(t, d.Handle(ctx, write))

	require.Len(t, sender.sent, 1)
	rsp := sender.sent[0]
	assert.NotEqual(t, int32(0), rsp.hdr.Error)
	assert.Equal(t, uint32(0), rsp.hdr.WriteCount, "write_count is zero unless error == 0")
}

func TestIoctlPipe(t *testing.T) {
	rpcFake := &fakeRPC{pollOut: []byte("reply")}
	d, sender, _ := newDispatcher(t, rpcFake)
	ctx := context.Background()

	require.NoError(t, d.Handle(ctx, msg(wire.CreatePipe, 0x1, wire.PipeWinreg)))

	ioctl := msg(wire.IoctlPipe, 0x1, wire.PipeWinreg)
	ioctl.Payload = []byte("in")
	ioctl.Header.OutBufLen = 1024
	require.NoError(t, d.Handle(ctx, ioctl))

	require.Len(t, sender.sent, 1)
	rsp := sender.sent[0]
	assert.Equal(t, wire.IoctlPipeRsp, rsp.hdr.Type)
	assert.Equal(t, uint32(5), rsp.hdr.DataCount)
	assert.Equal(t, []byte("reply"), rsp.payload)
	require.Len(t, rpcFake.submitted, 1)
}

func TestLanmanTransactionalLifecycle(t *testing.T) {
	rpcFake := &fakeRPC{lanmanOut: []byte("lanman reply"), paramLen: 4}
	d, sender, _ := newDispatcher(t, rpcFake)

	lanman := msg(wire.LanmanPipe, 0x5, wire.PipeLanman)
	lanman.Header.SetCodepage("utf8")
	lanman.Header.SetUsername("alice")
	lanman.Payload = []byte("txn")
	require.NoError(t, d.Handle(context.Background(), lanman))

	require.Len(t, sender.sent, 1)
	rsp := sender.sent[0]
	assert.Equal(t, wire.LanmanPipeRsp, rsp.hdr.Type)
	assert.Equal(t, uint32(12), rsp.hdr.DataCount)
	assert.Equal(t, uint32(4), rsp.hdr.ParamCount)
	assert.Equal(t, []byte("lanman reply"), rsp.payload)

	// The pipe existed for the duration of the transaction, carried the
	// authenticated username, and is gone afterwards.
	require.NotNil(t, rpcFake.lanmanPipe)
	assert.Equal(t, "alice", rpcFake.lanmanPipe.Username)
	assert.Nil(t, d.Registry.FindPipe(0x5, wire.PipeLanman))
}

func TestLanmanDestroysPipeOnError(t *testing.T) {
	rpcFake := &fakeRPC{err: errors.New(errors.RpcFailed, "broken")}
	d, sender, _ := newDispatcher(t, rpcFake)

	lanman := msg(wire.LanmanPipe, 0x5, wire.PipeLanman)
	require.NoError(t, d.Handle(context.Background(), lanman))

	require.Len(t, sender.sent, 1)
	assert.NotEqual(t, int32(0), sender.sent[0].hdr.Error)
	assert.Nil(t, d.Registry.FindPipe(0x5, wire.PipeLanman))
}

func TestDestroyPipe(t *testing.T) {
	d, sender, _ := newDispatcher(t, &fakeRPC{})
	ctx := context.Background()

	require.NoError(t, d.Handle(ctx, msg(wire.CreatePipe, 0x1, wire.PipeSrvsvc)))
	require.NoError(t, d.Handle(ctx, msg(wire.DestroyPipe, 0x1, wire.PipeSrvsvc)))

	assert.Empty(t, sender.sent)
	assert.Nil(t, d.Registry.FindPipe(0x1, wire.PipeSrvsvc))
}

func TestUserDaemonExistTerminates(t *testing.T) {
	d, _, _ := newDispatcher(t, &fakeRPC{})
	terminated := false
	d.Terminate = func() { terminated = true }

	require.NoError(t, d.Handle(context.Background(), msg(wire.UserDaemonExist, 0, 0)))
	assert.True(t, terminated)
}

func TestInotifyRequestDelegates(t *testing.T) {
	d, _, notify := newDispatcher(t, &fakeRPC{})

	req := msg(wire.InotifyRequest, 0x3, 0)
	req.Payload = []byte{1, 0, 0, 0}
	require.NoError(t, d.Handle(context.Background(), req))
	require.Len(t, notify.requests, 1)
	assert.Equal(t, uint64(0x3), notify.requests[0].Header.ServerHandle)
}

func TestResponseErrno(t *testing.T) {
	assert.Equal(t, -int32(unix.ENOENT), responseErrno(errors.New(errors.RegistryNotFound, "")))
	assert.Equal(t, -int32(unix.EEXIST), responseErrno(errors.New(errors.RegistryAlreadyExists, "")))
	assert.Equal(t, -int32(unix.ENOMEM), responseErrno(errors.New(errors.RegistryOutOfMemory, "")))
	assert.Equal(t, -int32(unix.EACCES), responseErrno(unix.EACCES))
	assert.Equal(t, -int32(unix.EIO), responseErrno(errors.New(errors.RpcFailed, "")))
}
