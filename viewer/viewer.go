// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package viewer

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	rfb "github.com/supermarsx/go-rfb"
)

// DefaultQueueSize is the number of pending events a WebSocketViewer holds.
const DefaultQueueSize = 32

// WebSocketViewer streams session events to a browser as CBOR frames and
// forwards the browser's input to the session. Deliver never blocks: when the
// queue is full the oldest frame notification is dropped, since the next one
// is read from the FrameStore anyway.
type WebSocketViewer struct {
	conn      *websocket.Conn
	store     *rfb.FrameStore
	sessionID string
	logger    rfb.Logger
	limit     int

	mu     sync.Mutex
	queue  []rfb.Event
	signal chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
	dropped   atomic.Uint64
}

// NewWebSocketViewer creates a viewer for one session. Call Run to start it.
func NewWebSocketViewer(conn *websocket.Conn, store *rfb.FrameStore, sessionID string, queueSize int, logger rfb.Logger) *WebSocketViewer {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = &rfb.NoOpLogger{}
	}
	return &WebSocketViewer{
		conn:      conn,
		store:     store,
		sessionID: sessionID,
		logger:    logger.With(rfb.Field{Key: "session", Value: sessionID}),
		limit:     queueSize,
		signal:    make(chan struct{}, 1),
		closed:    make(chan struct{}),
	}
}

// Deliver implements rfb.Viewer.
func (v *WebSocketViewer) Deliver(ev rfb.Event) {
	v.mu.Lock()
	if len(v.queue) >= v.limit {
		v.dropOldest()
	}
	v.queue = append(v.queue, ev)
	v.mu.Unlock()

	select {
	case v.signal <- struct{}{}:
	default:
	}
}

// dropOldest removes the oldest FrameEvent, or the oldest event of any kind
// other than ClosedEvent. Caller holds mu.
func (v *WebSocketViewer) dropOldest() {
	victim := -1
	for i, ev := range v.queue {
		if _, ok := ev.(rfb.FrameEvent); ok {
			victim = i
			break
		}
		if _, ok := ev.(rfb.ClosedEvent); !ok && victim < 0 {
			victim = i
		}
	}
	if victim < 0 {
		return
	}
	v.queue = append(v.queue[:victim], v.queue[victim+1:]...)
	v.dropped.Add(1)
}

// Dropped returns how many events were discarded because the queue was full.
func (v *WebSocketViewer) Dropped() uint64 {
	return v.dropped.Load()
}

// Run attaches the viewer to s and serves the connection until either side
// closes. The viewer is detached before Run returns.
func (v *WebSocketViewer) Run(ctx context.Context, s *rfb.Session) error {
	if err := s.AttachViewer(v); err != nil {
		v.Close()
		return err
	}
	defer func() {
		_ = s.DetachViewerIfCurrent(v)
		v.Close()
	}()

	go v.writeLoop()
	return v.readLoop(ctx, s)
}

// Close closes the websocket connection. It is safe to call more than once.
func (v *WebSocketViewer) Close() {
	v.closeOnce.Do(func() {
		close(v.closed)
		_ = v.conn.Close()
	})
}

func (v *WebSocketViewer) readLoop(ctx context.Context, s *rfb.Session) error {
	for {
		kind, data, err := v.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			select {
			case <-v.closed:
				return nil
			default:
			}
			return rfb.WrapError("viewer_read", rfb.ErrTransport, "websocket read failed", err)
		}
		if kind != websocket.BinaryMessage {
			continue
		}

		msg, err := DecodeInput(data)
		if err != nil {
			v.logger.Warn("ignoring malformed input", rfb.Field{Key: "error", Value: err})
			continue
		}
		if err := msg.Apply(ctx, s); err != nil {
			if rfb.IsError(err, rfb.ErrClosed) {
				return nil
			}
			v.logger.Warn("input rejected",
				rfb.Field{Key: "kind", Value: msg.Kind},
				rfb.Field{Key: "error", Value: err})
		}
	}
}

func (v *WebSocketViewer) writeLoop() {
	for {
		select {
		case <-v.signal:
		case <-v.closed:
			return
		}

		v.mu.Lock()
		events := v.queue
		v.queue = nil
		v.mu.Unlock()

		for _, ev := range events {
			if err := v.write(ev); err != nil {
				v.logger.Debug("websocket write failed", rfb.Field{Key: "error", Value: err})
				v.Close()
				return
			}
			if _, ok := ev.(rfb.ClosedEvent); ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
				_ = v.conn.WriteMessage(websocket.CloseMessage, msg)
				v.Close()
				return
			}
		}
	}
}

func (v *WebSocketViewer) write(ev rfb.Event) error {
	for _, f := range v.frames(ev) {
		data, err := EncodeFrame(f)
		if err != nil {
			return rfb.WrapError("viewer_write", rfb.ErrProtocol, "failed to encode frame", err)
		}
		if err := v.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			return rfb.WrapError("viewer_write", rfb.ErrTransport, "websocket write failed", err)
		}
	}
	return nil
}

// frames converts an event into wire frames, reading pixels from the store.
func (v *WebSocketViewer) frames(ev rfb.Event) []Frame {
	switch e := ev.(type) {
	case rfb.FrameEvent:
		out := make([]Frame, 0, len(e.Regions))
		for _, r := range e.Regions {
			if r.Empty() {
				continue
			}
			px, ok := v.store.ExtractRegion(v.sessionID, r.Left, r.Top, r.Width(), r.Height())
			if !ok {
				continue
			}
			out = append(out, Frame{
				Kind:   KindFrame,
				Region: &Region{X: r.Left, Y: r.Top, Width: r.Width(), Height: r.Height()},
				Pixels: px,
			})
		}
		return out
	case rfb.ResizeEvent:
		return []Frame{{Kind: KindResize, Width: e.Width, Height: e.Height}}
	case rfb.ClipboardEvent:
		return []Frame{{Kind: KindClipboard, Clipboard: clipboardFrom(e.Content)}}
	case rfb.BellEvent:
		return []Frame{{Kind: KindBell}}
	case rfb.ClosedEvent:
		f := Frame{Kind: KindClosed}
		if e.Err != nil {
			f.Error = e.Err.Error()
		}
		return []Frame{f}
	default:
		return nil
	}
}
