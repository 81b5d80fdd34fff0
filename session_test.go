// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventTimeout = 5 * time.Second

// openSession opens a 4x4 session over a mock server and consumes its
// startup messages.
func openSession(t *testing.T, opts ...Option) (*Engine, *Session, *mockServer) {
	t.Helper()
	engine, err := NewEngine(opts...)
	require.NoError(t, err)

	client, server := newMockServer(t)
	s, err := engine.Open(context.Background(), NewConnTransport(client), SessionInit{ID: "s1", Width: 4, Height: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	server.startup()
	return engine, s, server
}

// attachViewer attaches a ChannelViewer and consumes the initial events.
func attachViewer(t *testing.T, s *Session) *ChannelViewer {
	t.Helper()
	v := NewChannelViewer(32)
	require.NoError(t, s.AttachViewer(v))
	resize := nextEvent[ResizeEvent](t, v)
	if resize.Width > 0 && resize.Height > 0 {
		nextEvent[FrameEvent](t, v)
	}
	return v
}

// nextEvent waits for the next event and requires it to be of type E.
func nextEvent[E Event](t *testing.T, v *ChannelViewer) E {
	t.Helper()
	select {
	case ev := <-v.Events():
		got, ok := ev.(E)
		require.True(t, ok, "unexpected event %T", ev)
		return got
	case <-time.After(eventTimeout):
		var zero E
		t.Fatalf("timed out waiting for %T", zero)
		return zero
	}
}

func ctxTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	t.Cleanup(cancel)
	return ctx
}

func TestSession_Startup(t *testing.T) {
	engine, err := NewEngine(WithPixelFormat(PixelFormatRGB565))
	require.NoError(t, err)
	client, server := newMockServer(t)
	s, err := engine.Open(context.Background(), NewConnTransport(client), SessionInit{Width: 640, Height: 480})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	assert.NotEmpty(t, s.ID(), "an id is generated")

	spf := server.expect(20)
	assert.Equal(t, []byte{msgSetPixelFormat, 0, 0, 0}, spf[:4])
	pf, err := ReadPixelFormat(bytes.NewReader(spf[4:]))
	require.NoError(t, err)
	assert.Equal(t, PixelFormatRGB565, pf)

	encs := server.expect(4 + 4*len(DefaultEncodings))
	assert.Equal(t, msgSetEncodings, encs[0])
	assert.Equal(t, uint16(len(DefaultEncodings)), binary.BigEndian.Uint16(encs[2:4]))
	for i, want := range DefaultEncodings {
		got := int32(binary.BigEndian.Uint32(encs[4+i*4:]))
		assert.Equal(t, want, got)
	}

	incremental, w, h := server.updateRequest()
	assert.False(t, incremental)
	assert.Equal(t, uint16(640), w)
	assert.Equal(t, uint16(480), h)
}

func TestSession_FramebufferUpdate(t *testing.T) {
	engine, s, server := openSession(t)
	v := attachViewer(t, s)

	server.send((&updateBuilder{}).rect(0, 0, 1, 1, EncodingRaw, rgb888Pixels(0x00FF00)).bytes())

	frame := nextEvent[FrameEvent](t, v)
	assert.Equal(t, []DirtyRegion{RegionFromRect(0, 0, 1, 1)}, frame.Regions)

	incremental, w, h := server.updateRequest()
	assert.True(t, incremental)
	assert.Equal(t, uint16(4), w)
	assert.Equal(t, uint16(4), h)

	px, ok := engine.ExtractRegion(s.ID(), 0, 0, 1, 1)
	require.True(t, ok)
	assert.Equal(t, []byte{0, 255, 0, 255}, px)
	assert.Equal(t, uint64(1), s.Stats().Snapshot().Frames)
}

func TestSession_DesktopResize(t *testing.T) {
	engine, s, server := openSession(t)
	v := attachViewer(t, s)

	server.send((&updateBuilder{}).rect(0, 0, 10, 6, DesktopSizePseudoEncoding, nil).bytes())

	resize := nextEvent[ResizeEvent](t, v)
	assert.Equal(t, ResizeEvent{Width: 10, Height: 6}, resize)

	incremental, w, h := server.updateRequest()
	assert.False(t, incremental, "a resized frame is requested in full")
	assert.Equal(t, uint16(10), w)
	assert.Equal(t, uint16(6), h)

	fw, fh, ok := engine.Store().Dimensions(s.ID())
	require.True(t, ok)
	assert.Equal(t, 10, fw)
	assert.Equal(t, 6, fh)
}

func TestSession_Input(t *testing.T) {
	_, s, server := openSession(t)

	done := make(chan error, 1)
	go func() {
		done <- s.Input(ctxTimeout(t), PointerMoveEvent(3, 2), PointerButtonEvent(0, true), KeyEvent('a', true))
	}()

	assert.Equal(t, []byte{msgPointerEvent, 0, 0, 3, 0, 2}, server.expect(6))
	assert.Equal(t, []byte{msgPointerEvent, 1, 0, 3, 0, 2}, server.expect(6))
	assert.Equal(t, []byte{msgKeyEvent, 1, 0, 0, 0, 0, 0, 'a'}, server.expect(8))
	require.NoError(t, <-done)
}

func TestSession_InputCommandDirect(t *testing.T) {
	_, s, server := openSession(t)

	result := make(chan error, 1)
	require.NoError(t, s.Send(InputCommand{Events: []InputEvent{ScrollEvent(0, -1)}, Result: result}))

	assert.Equal(t, []byte{msgPointerEvent, uint8(ButtonScrollUp), 0, 0, 0, 0}, server.expect(6))
	assert.Equal(t, []byte{msgPointerEvent, 0, 0, 0, 0, 0}, server.expect(6))
	require.NoError(t, <-result)
}

func TestSession_CtrlAltDel(t *testing.T) {
	_, s, server := openSession(t)

	done := make(chan error, 1)
	go func() { done <- s.Control(ctxTimeout(t), ControlCtrlAltDel) }()

	want := []struct {
		down byte
		sym  uint32
	}{
		{1, KeysymControlL}, {1, KeysymAltL}, {1, KeysymDelete},
		{0, KeysymDelete}, {0, KeysymAltL}, {0, KeysymControlL},
	}
	for _, w := range want {
		ev := server.expect(8)
		assert.Equal(t, msgKeyEvent, ev[0])
		assert.Equal(t, w.down, ev[1])
		assert.Equal(t, w.sym, binary.BigEndian.Uint32(ev[4:]))
	}
	require.NoError(t, <-done)
}

func TestSession_Refresh(t *testing.T) {
	_, s, server := openSession(t)

	done := make(chan error, 1)
	go func() { done <- s.Control(ctxTimeout(t), ControlRefresh) }()

	incremental, w, h := server.updateRequest()
	assert.False(t, incremental)
	assert.Equal(t, uint16(4), w)
	assert.Equal(t, uint16(4), h)
	require.NoError(t, <-done)
}

func TestSession_UnsupportedControls(t *testing.T) {
	_, s, _ := openSession(t)

	for _, action := range []ControlAction{ControlSignOut, ControlReboot, ControlPowerOff, ControlReset} {
		t.Run(action.String(), func(t *testing.T) {
			err := s.Control(ctxTimeout(t), action)
			require.Error(t, err)
			assert.True(t, IsError(err, ErrUnsupported))
			assert.Equal(t, "s1", err.(*Error).SessionID)
		})
	}
}

func TestSession_PowerControlAfterXVPInit(t *testing.T) {
	_, s, server := openSession(t)
	v := attachViewer(t, s)

	// The bell is handled after the XVP message, so once it arrives the
	// session knows the peer supports power control.
	server.send([]byte{msgServerXVP, 0, 1, xvpInit, msgBell})
	nextEvent[BellEvent](t, v)

	tests := []struct {
		action ControlAction
		code   uint8
	}{
		{ControlReboot, xvpReboot},
		{ControlPowerOff, xvpShutdown},
		{ControlReset, xvpReset},
	}
	for _, tt := range tests {
		done := make(chan error, 1)
		go func() { done <- s.Control(ctxTimeout(t), tt.action) }()
		assert.Equal(t, []byte{msgXVP, 0, 1, tt.code}, server.expect(4))
		require.NoError(t, <-done)
	}

	assert.True(t, IsError(s.Control(ctxTimeout(t), ControlSignOut), ErrUnsupported))
}

func TestSession_ClipboardBaseline(t *testing.T) {
	_, s, server := openSession(t)

	done := make(chan error, 1)
	go func() {
		done <- s.SetClipboard(ctxTimeout(t), ClipboardContent{Text: "hi", HTML: "<b>hi</b>"})
	}()

	assert.Equal(t, []byte{msgClientCutText, 0, 0, 0, 0, 0, 0, 2, 'h', 'i'}, server.expect(10))
	require.NoError(t, <-done)
}

func TestSession_ClipboardRichAfterPeerAdvertises(t *testing.T) {
	_, s, server := openSession(t)
	v := attachViewer(t, s)

	in := ClipboardContent{Text: "remote", HTML: "<i>remote</i>"}
	server.send(append([]byte{msgServerCutText, 0xFF, 0xFF, 0xFF}, EncodeClipboardEnvelope(in)...))

	got := nextEvent[ClipboardEvent](t, v)
	assert.Equal(t, in, got.Content)

	out := ClipboardContent{Text: "local", HTML: "<b>local</b>"}
	env := EncodeClipboardEnvelope(out)
	done := make(chan error, 1)
	go func() { done <- s.SetClipboard(ctxTimeout(t), out) }()

	assert.Equal(t, []byte{msgClientCutText, 0xFF, 0xFF, 0xFF}, server.expect(4))
	assert.Equal(t, env, server.expect(len(env)))
	require.NoError(t, <-done)
}

func TestSession_ClipboardRichDisabled(t *testing.T) {
	engine, err := NewEngine(WithRichClipboard(false))
	require.NoError(t, err)
	client, server := newMockServer(t)
	s, err := engine.Open(context.Background(), NewConnTransport(client), SessionInit{
		ID: "plain", Width: 2, Height: 2,
		PeerCapabilities: Capabilities{RichClipboardPseudoEncoding},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	server.startup()

	done := make(chan error, 1)
	go func() { done <- s.SetClipboard(ctxTimeout(t), ClipboardContent{Text: "x", RTF: []byte("{}")}) }()
	assert.Equal(t, []byte{msgClientCutText, 0, 0, 0, 0, 0, 0, 1, 'x'}, server.expect(9))
	require.NoError(t, <-done)
}

func TestSession_ViewerReplaceAndDetach(t *testing.T) {
	engine, s, server := openSession(t)
	first := attachViewer(t, s)
	second := attachViewer(t, s)

	server.send((&updateBuilder{}).rect(0, 0, 1, 1, EncodingRaw, rgb888Pixels(0xFFFFFF)).bytes())
	server.updateRequest()
	nextEvent[FrameEvent](t, second)
	assert.Empty(t, first.Events(), "a replaced viewer receives nothing")

	require.NoError(t, s.DetachViewer())
	// Commands run in order, so the detach is done once the refresh is.
	done := make(chan error, 1)
	go func() { done <- s.Control(ctxTimeout(t), ControlRefresh) }()
	server.updateRequest()
	require.NoError(t, <-done)

	server.send((&updateBuilder{}).rect(1, 0, 1, 1, EncodingRaw, rgb888Pixels(0xFF0000)).bytes())
	server.updateRequest()

	px, ok := engine.ExtractRegion(s.ID(), 1, 0, 1, 1)
	require.True(t, ok)
	assert.Equal(t, []byte{255, 0, 0, 255}, px, "frames are applied without a viewer")
	assert.Empty(t, second.Events())
}

func TestSession_Close(t *testing.T) {
	engine, s, _ := openSession(t)
	v := attachViewer(t, s)

	require.NoError(t, s.Close())

	select {
	case <-s.Done():
	default:
		t.Fatal("Done is not closed after Close")
	}
	closed := nextEvent[ClosedEvent](t, v)
	assert.NoError(t, closed.Err)
	assert.NoError(t, s.Err())

	_, _, ok := engine.Store().Dimensions(s.ID())
	assert.False(t, ok, "the frame slot is removed")
	_, ok = engine.Session(s.ID())
	assert.False(t, ok, "the session is unregistered")

	assert.NoError(t, s.Send(ShutdownCommand{}), "shutdown of a closed session is a no-op")
	assert.NoError(t, s.Close())

	err := s.Input(ctxTimeout(t), PointerMoveEvent(1, 1))
	assert.True(t, IsError(err, ErrClosed))
	assert.True(t, IsError(s.Send(DetachViewerCommand{}), ErrClosed))
}

func TestSession_PeerDisconnect(t *testing.T) {
	engine, s, server := openSession(t)
	v := attachViewer(t, s)

	server.close()

	closed := nextEvent[ClosedEvent](t, v)
	require.Error(t, closed.Err)
	assert.True(t, IsError(closed.Err, ErrTransport))

	<-s.Done()
	assert.Equal(t, closed.Err, s.Err())
	assert.NotEmpty(t, s.Stats().Snapshot().LastError)
	_, _, ok := engine.Store().Dimensions(s.ID())
	assert.False(t, ok)
}

func TestSession_ProtocolErrorEndsSession(t *testing.T) {
	_, s, server := openSession(t)
	v := attachViewer(t, s)

	server.send([]byte{99})

	closed := nextEvent[ClosedEvent](t, v)
	assert.True(t, IsError(closed.Err, ErrProtocol))
	assert.Equal(t, "s1", closed.Err.(*Error).SessionID)
}

func TestSession_ContextCancel(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)
	client, server := newMockServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	s, err := engine.Open(ctx, NewConnTransport(client), SessionInit{ID: "c", Width: 1, Height: 1})
	require.NoError(t, err)
	server.startup()

	cancel()
	select {
	case <-s.Done():
	case <-time.After(eventTimeout):
		t.Fatal("session did not stop after cancel")
	}
	assert.NoError(t, s.Err())
	assert.Empty(t, engine.Sessions())
}

func TestSession_InputContextDone(t *testing.T) {
	_, s, server := openSession(t)

	// Nobody reads the pointer event, so the command stays in flight.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Input(ctx, PointerMoveEvent(1, 1))
	assert.ErrorIs(t, err, context.Canceled)

	server.expect(6)
}

func TestSession_Stats(t *testing.T) {
	_, s, server := openSession(t)
	v := attachViewer(t, s)

	before := s.Stats().Snapshot()
	assert.Equal(t, uint64(20+4+4*len(DefaultEncodings)+10), before.BytesOut)

	server.send([]byte{msgBell})
	nextEvent[BellEvent](t, v)

	snap := s.Stats().Snapshot()
	assert.Equal(t, uint64(1), snap.BytesIn)
	assert.Positive(t, snap.Uptime)
}

func TestSession_TCPTransport(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)
	client, server := newTCPMockServer(t)

	s, err := engine.Open(context.Background(), NewConnTransport(client), SessionInit{ID: "tcp", Width: 2, Height: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	server.startup()

	v := attachViewer(t, s)
	server.send((&updateBuilder{}).rect(1, 1, 1, 1, EncodingRaw, rgb888Pixels(0x0000FF)).bytes())
	nextEvent[FrameEvent](t, v)

	px, ok := engine.ExtractRegion("tcp", 1, 1, 1, 1)
	require.True(t, ok)
	assert.Equal(t, []byte{0, 0, 255, 255}, px)
}

func TestCommandQueue(t *testing.T) {
	q := newCommandQueue()
	require.True(t, q.push(DetachViewerCommand{}))
	require.True(t, q.push(ShutdownCommand{}))

	select {
	case <-q.ready():
	default:
		t.Fatal("queue is not ready after push")
	}
	assert.Equal(t, []Command{DetachViewerCommand{}, ShutdownCommand{}}, q.drain())
	assert.Empty(t, q.drain())

	result := make(chan error, 1)
	require.True(t, q.push(ControlCommand{Action: ControlRefresh, Result: result}))
	pending := q.close()
	assert.True(t, q.isClosed())
	assert.False(t, q.push(ShutdownCommand{}))
	require.Len(t, pending, 1)

	rejectAll(pending, closedError("shutdown", "q"))
	assert.True(t, IsError(<-result, ErrClosed))
}

func TestCommands_Strings(t *testing.T) {
	assert.Equal(t, "pointer_move", InputPointerMove.String())
	assert.Equal(t, "text", InputText.String())
	assert.Equal(t, "input(42)", InputKind(42).String())
	assert.Equal(t, "ctrl_alt_del", ControlCtrlAltDel.String())
	assert.Equal(t, "control(42)", ControlAction(42).String())

	for a := ControlRefresh; a <= ControlReset; a++ {
		got, ok := ParseControlAction(a.String())
		require.True(t, ok)
		assert.Equal(t, a, got)
	}
	_, ok := ParseControlAction("launch")
	assert.False(t, ok)
}

func TestChannelViewer_DropsWhenFull(t *testing.T) {
	v := NewChannelViewer(1)
	v.Deliver(BellEvent{})
	v.Deliver(BellEvent{})
	assert.Equal(t, uint64(1), v.Dropped())
	assert.Len(t, v.Events(), 1)
}
