// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

// Package rfb keeps a live, pixel-accurate mirror of a remote desktop and
// drives it over an already negotiated RFB (VNC) connection.
//
// The package starts after the handshake. An Engine is handed a connected
// Transport together with the ServerInit values, and from then on the
// session decodes server messages into a shared FrameStore, translates local
// input into wire events and exchanges clipboard content.
//
// # Opening a Session
//
//	engine, err := rfb.NewEngine(rfb.WithLogger(rfb.NewStandardLogger(rfb.LevelInfo)))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close(context.Background())
//
//	// conn has completed the RFB handshake; width, height and name come
//	// from ServerInit.
//	s, err := engine.Open(ctx, rfb.NewConnTransport(conn), rfb.SessionInit{
//		Width:  width,
//		Height: height,
//		Name:   name,
//	})
//
// # Viewers
//
// A Viewer receives FrameEvent, ResizeEvent, ClipboardEvent, BellEvent and a
// final ClosedEvent. Pixels are read from the FrameStore rather than carried
// in events:
//
//	v := rfb.NewChannelViewer(64)
//	_ = s.AttachViewer(v)
//	for ev := range v.Events() {
//		if fe, ok := ev.(rfb.FrameEvent); ok {
//			for _, r := range fe.Regions {
//				px, _ := engine.ExtractRegion(s.ID(), r.Left, r.Top, r.Width(), r.Height())
//				draw(r, px)
//			}
//		}
//	}
//
// The viewer sub-package serves the same events to browsers over websockets.
//
// # Input and Control
//
//	err = s.Input(ctx,
//		rfb.PointerMoveEvent(100, 100),
//		rfb.PointerButtonEvent(0, true),
//		rfb.PointerButtonEvent(0, false),
//		rfb.TextEvent("hello"),
//	)
//	err = s.Control(ctx, rfb.ControlCtrlAltDel)
//	err = s.SetClipboard(ctx, rfb.ClipboardContent{Text: "copied"})
//
// # Error Handling
//
//	if rfb.IsError(err, rfb.ErrClosed) {
//		// the session has ended
//	}
package rfb
