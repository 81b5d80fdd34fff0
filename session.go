// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"bufio"
	"context"
	"errors"
	"sync"
)

const readBufferSize = 64 * 1024

// sessionConfig carries what a session needs from its engine.
type sessionConfig struct {
	id            string
	store         *FrameStore
	pf            PixelFormat
	width, height int
	name          string
	peer          Capabilities
	richClipboard bool
	maxClipboard  uint32
	eventBuffer   int
	logger        Logger
	onClose       func(id string)
}

// Session is one live remote-framebuffer connection. A reader goroutine
// decodes server messages into the FrameStore; a command goroutine consumes
// the command queue and performs every transport write.
type Session struct {
	id      string
	name    string
	store   *FrameStore
	logger  Logger
	stats   *Stats
	onClose func(id string)

	transport  Transport
	dec        *decoder
	translator *InputTranslator
	queue      *commandQueue

	messages   chan ServerMessage
	readErr    chan error
	readerDone chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// Owned by the command goroutine.
	pf            PixelFormat
	width, height int
	peer          Capabilities
	richClipboard bool
	xvp           bool
	viewer        Viewer

	removeOnce sync.Once
	err        error
}

// newSession starts the session goroutines. The session lives until it is
// shut down, the transport fails, or ctx is cancelled.
func newSession(ctx context.Context, t Transport, cfg sessionConfig) *Session {
	stats := newStats()
	metered := meteredTransport{Transport: t, stats: stats}
	logger := orNoOp(cfg.logger).With(Field{Key: "session", Value: cfg.id})
	sctx, cancel := context.WithCancel(ctx)

	buffer := cfg.eventBuffer
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}

	s := &Session{
		id:            cfg.id,
		name:          cfg.name,
		store:         cfg.store,
		logger:        logger,
		stats:         stats,
		onClose:       cfg.onClose,
		transport:     metered,
		dec:           newDecoder(cfg.id, cfg.store, cfg.pf, cfg.width, cfg.height, cfg.maxClipboard, logger),
		translator:    NewInputTranslator(metered, RFBEncoder{}),
		queue:         newCommandQueue(),
		messages:      make(chan ServerMessage, buffer),
		readErr:       make(chan error, 1),
		readerDone:    make(chan struct{}),
		ctx:           sctx,
		cancel:        cancel,
		done:          make(chan struct{}),
		pf:            cfg.pf,
		width:         max(cfg.width, 0),
		height:        max(cfg.height, 0),
		peer:          append(Capabilities(nil), cfg.peer...),
		richClipboard: cfg.richClipboard,
	}

	go s.readLoop()
	go s.run()
	return s
}

// ID returns the session id, which is also its FrameStore key.
func (s *Session) ID() string {
	return s.id
}

// Name returns the desktop name given when the session was opened.
func (s *Session) Name() string {
	return s.name
}

// Stats returns the session's traffic counters.
func (s *Session) Stats() *Stats {
	return s.stats
}

// Done is closed once the session has fully shut down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns why the session ended, after Done is closed. It is nil for a
// requested shutdown.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Send queues cmd without blocking. A ShutdownCommand sent to a closed
// session is accepted and ignored; any other command fails with ErrClosed.
func (s *Session) Send(cmd Command) error {
	if s.queue.push(cmd) {
		return nil
	}
	if _, ok := cmd.(ShutdownCommand); ok {
		return nil
	}
	return closedError("send", s.id)
}

// await sends cmd and waits for its result or for ctx to end.
func (s *Session) await(ctx context.Context, cmd Command, result <-chan error) error {
	if err := s.Send(cmd); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Input applies events in order and returns the first failure.
func (s *Session) Input(ctx context.Context, events ...InputEvent) error {
	result := make(chan error, 1)
	return s.await(ctx, InputCommand{Events: events, Result: result}, result)
}

// Control runs a session-level action.
func (s *Session) Control(ctx context.Context, action ControlAction) error {
	result := make(chan error, 1)
	return s.await(ctx, ControlCommand{Action: action, Result: result}, result)
}

// SetClipboard sends content to the peer's clipboard.
func (s *Session) SetClipboard(ctx context.Context, content ClipboardContent) error {
	result := make(chan error, 1)
	return s.await(ctx, ClipboardCommand{Content: content, Result: result}, result)
}

// AttachViewer replaces the current viewer with v.
func (s *Session) AttachViewer(v Viewer) error {
	return s.Send(AttachViewerCommand{Viewer: v})
}

// DetachViewer removes the current viewer.
func (s *Session) DetachViewer() error {
	return s.Send(DetachViewerCommand{})
}

// DetachViewerIfCurrent removes v unless another viewer has replaced it.
func (s *Session) DetachViewerIfCurrent(v Viewer) error {
	return s.Send(DetachViewerCommand{Viewer: v})
}

// Close shuts the session down and waits for it to finish. It returns the
// error that ended the session if it failed before Close was called.
func (s *Session) Close() error {
	_ = s.Send(ShutdownCommand{})
	<-s.done
	return s.err
}

// readLoop decodes server messages until the transport fails or the session
// ends. It is the only goroutine that writes the session's FrameStore slot.
func (s *Session) readLoop() {
	defer close(s.readerDone)
	r := bufio.NewReaderSize(s.transport, readBufferSize)
	for {
		msg, err := s.dec.readMessage(r)
		if err != nil {
			s.readErr <- err
			return
		}
		select {
		case s.messages <- msg:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) run() {
	err := s.start()
	if err == nil {
		err = s.loop()
	}
	s.finish(err)
}

// start asks the peer for our pixel format, encodings and a full frame.
func (s *Session) start() error {
	pfMsg, err := setPixelFormatMessage(s.pf)
	if err != nil {
		return err
	}
	encMsg, err := setEncodingsMessage(DefaultEncodings)
	if err != nil {
		return err
	}
	for _, msg := range [][]byte{pfMsg, encMsg} {
		if err := s.write("start", msg); err != nil {
			return err
		}
	}
	s.logger.Info("session started",
		Field{Key: "width", Value: s.width},
		Field{Key: "height", Value: s.height})
	return s.requestUpdate(false)
}

func (s *Session) loop() error {
	for {
		select {
		case <-s.queue.ready():
			cmds := s.queue.drain()
			for i, cmd := range cmds {
				if s.handle(cmd) {
					rejectAll(cmds[i+1:], closedError("shutdown", s.id))
					return nil
				}
			}
		case msg := <-s.messages:
			if err := s.apply(msg); err != nil {
				return err
			}
		case err := <-s.readErr:
			return err
		case <-s.ctx.Done():
			return s.ctx.Err()
		}
	}
}

// handle runs one command and reports whether the session should stop.
func (s *Session) handle(cmd Command) bool {
	switch c := cmd.(type) {
	case InputCommand:
		reply(c.Result, s.input(c.Events))
	case AttachViewerCommand:
		s.attach(c.Viewer)
	case DetachViewerCommand:
		if c.Viewer == nil || c.Viewer == s.viewer {
			s.viewer = nil
			s.logger.Debug("viewer detached")
		}
	case ShutdownCommand:
		s.logger.Info("shutdown requested")
		return true
	case ControlCommand:
		reply(c.Result, s.control(c.Action))
	case ClipboardCommand:
		reply(c.Result, withSession(s.sendClipboard(c.Content), "clipboard", s.id))
	}
	return false
}

func (s *Session) input(events []InputEvent) error {
	for _, ev := range events {
		if err := ev.apply(s.translator); err != nil {
			return withSession(err, ev.Kind.String(), s.id)
		}
	}
	return nil
}

func (s *Session) attach(v Viewer) {
	s.viewer = v
	s.logger.Debug("viewer attached")
	if v == nil {
		return
	}
	v.Deliver(ResizeEvent{Width: s.width, Height: s.height})
	if s.width > 0 && s.height > 0 {
		v.Deliver(FrameEvent{Regions: []DirtyRegion{RegionFromRect(0, 0, s.width, s.height)}})
	}
}

func (s *Session) control(action ControlAction) error {
	op := action.String()
	switch action {
	case ControlRefresh:
		return s.requestUpdate(false)
	case ControlCtrlAltDel:
		for _, k := range []struct {
			code uint32
			down bool
		}{
			{KeysymControlL, true}, {KeysymAltL, true}, {KeysymDelete, true},
			{KeysymDelete, false}, {KeysymAltL, false}, {KeysymControlL, false},
		} {
			if err := s.translator.Key(k.code, k.down); err != nil {
				return withSession(err, op, s.id)
			}
		}
		return nil
	case ControlSignOut:
		return withSession(unsupportedError(op, "sign-out has no RFB equivalent", nil), op, s.id)
	case ControlReboot, ControlPowerOff, ControlReset:
		if !s.xvp {
			return withSession(unsupportedError(op, "peer does not support power control", nil), op, s.id)
		}
		code := map[ControlAction]uint8{
			ControlReboot:   xvpReboot,
			ControlPowerOff: xvpShutdown,
			ControlReset:    xvpReset,
		}[action]
		return s.write(op, xvpMessage(code))
	default:
		return withSession(validationError(op, "unknown control action", nil), op, s.id)
	}
}

func (s *Session) sendClipboard(c ClipboardContent) error {
	var peer Capabilities
	if s.richClipboard {
		peer = s.peer
	}
	return WriteClipboard(s.transport, c, peer)
}

// apply reacts to a decoded server message on the command goroutine.
func (s *Session) apply(msg ServerMessage) error {
	switch m := msg.(type) {
	case *FramebufferUpdateMessage:
		s.stats.addFrame()
		if m.Resized {
			s.width, s.height = m.Width, m.Height
			s.deliver(ResizeEvent{Width: m.Width, Height: m.Height})
		}
		if len(m.Regions) > 0 {
			s.deliver(FrameEvent{Regions: m.Regions})
		}
		return s.requestUpdate(!m.Resized)
	case *ServerCutTextMessage:
		if m.Rich && !s.peer.Has(RichClipboardPseudoEncoding) {
			s.peer = append(s.peer, RichClipboardPseudoEncoding)
			s.logger.Debug("peer supports rich clipboard")
		}
		s.deliver(ClipboardEvent{Content: m.Content})
	case *BellMessage:
		s.deliver(BellEvent{})
	case *XVPMessage:
		if m.Supported() {
			s.xvp = true
			s.logger.Info("peer supports power control", Field{Key: "version", Value: m.Version})
		} else {
			s.logger.Warn("power control request failed")
		}
	case *SetColorMapEntriesMessage:
		s.logger.Debug("color map updated",
			Field{Key: "first", Value: m.FirstColor},
			Field{Key: "count", Value: len(m.Colors)})
	}
	return nil
}

func (s *Session) deliver(ev Event) {
	if s.viewer != nil {
		s.viewer.Deliver(ev)
	}
}

func (s *Session) requestUpdate(incremental bool) error {
	// #nosec G115 - dimensions are bounded by maxDesktopDimension
	msg := framebufferUpdateRequestMessage(incremental, 0, 0, uint16(s.width), uint16(s.height))
	return s.write("framebuffer_update_request", msg)
}

func (s *Session) write(op string, b []byte) error {
	if _, err := s.transport.Write(b); err != nil {
		return withSession(transportError(op, "write failed", err), op, s.id)
	}
	return nil
}

// finish tears the session down. The reader is stopped before the slot is
// removed so a late resize cannot recreate it.
func (s *Session) finish(cause error) {
	s.cancel()
	if err := s.transport.Close(); err != nil {
		s.logger.Debug("transport close failed", Field{Key: "error", Value: err})
	}
	<-s.readerDone
	s.removeOnce.Do(func() { s.store.Remove(s.id) })

	rejectAll(s.queue.close(), closedError("shutdown", s.id))

	if cause != nil && !errors.Is(cause, context.Canceled) {
		s.err = withSession(cause, "session", s.id)
		s.stats.setError(s.err)
		s.logger.Error("session ended", Field{Key: "error", Value: s.err})
	} else {
		s.logger.Info("session closed")
	}

	s.deliver(ClosedEvent{Err: s.err})
	s.viewer = nil
	if s.onClose != nil {
		s.onClose(s.id)
	}
	close(s.done)
}

func rejectAll(cmds []Command, err error) {
	for _, cmd := range cmds {
		reply(resultOf(cmd), err)
	}
}
