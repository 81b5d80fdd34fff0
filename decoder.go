// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"fmt"
	"io"
)

// decoder is the per-session server-message parser. It owns a private RGBA8
// shadow frame, so rectangles are assembled without holding the FrameStore
// lock, and publishes each change with FrameStore.UpdateRegion. It runs on
// the session reader goroutine only.
type decoder struct {
	sessionID    string
	store        *FrameStore
	pf           PixelFormat
	colors       *ColorMap
	maxClipboard uint32
	logger       Logger

	width  int
	height int
	shadow []byte

	encodings map[int32]rectEncoding
}

func newDecoder(sessionID string, store *FrameStore, pf PixelFormat, width, height int, maxClipboard uint32, logger Logger) *decoder {
	d := &decoder{
		sessionID:    sessionID,
		store:        store,
		pf:           pf,
		colors:       NewColorMap(),
		maxClipboard: maxClipboard,
		logger:       orNoOp(logger),
		encodings:    make(map[int32]rectEncoding),
	}
	for _, enc := range []rectEncoding{rawEncoding{}, copyRectEncoding{}, desktopSizeEncoding{}} {
		d.encodings[enc.Type()] = enc
	}
	d.allocate(width, height)
	return d
}

func (d *decoder) allocate(width, height int) {
	if width <= 0 || height <= 0 {
		d.width, d.height, d.shadow = 0, 0, nil
		return
	}
	d.width, d.height = width, height
	d.shadow = make([]byte, width*height*4)
}

// resize replaces the shadow frame and the stored frame with blank ones.
func (d *decoder) resize(width, height int) {
	d.allocate(width, height)
	d.store.Reinit(d.sessionID, d.width, d.height)
}

// blit copies a decoded RGBA8 rectangle into the shadow frame, clipped to the
// frame, and publishes the clipped region. ok is false when nothing of the
// rectangle is on screen.
func (d *decoder) blit(rect Rectangle, rgba []byte) (DirtyRegion, bool) {
	x, y, w, h := int(rect.X), int(rect.Y), int(rect.Width), int(rect.Height)
	cw, ch := min(w, d.width-x), min(h, d.height-y)
	if cw <= 0 || ch <= 0 {
		return DirtyRegion{}, false
	}

	for row := 0; row < ch; row++ {
		src := rgba[row*w*4 : (row*w+cw)*4]
		copy(d.shadow[((y+row)*d.width+x)*4:], src)
	}

	region := RegionFromRect(x, y, cw, ch)
	d.store.UpdateRegion(d.sessionID, d.shadow, d.width, region)
	return region, true
}

// readMessage reads one server message, applying frame and palette changes.
func (d *decoder) readMessage(r io.Reader) (ServerMessage, error) {
	var t [1]byte
	if _, err := io.ReadFull(r, t[:]); err != nil {
		return nil, transportError("read_message", "failed to read message type", err)
	}

	read, ok := serverMessageReaders[t[0]]
	if !ok {
		return nil, protocolError("read_message", fmt.Sprintf("unknown server message type %d", t[0]), nil)
	}

	msg, err := read(d, r)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("server message", Field{Key: "type", Value: t[0]})
	return msg, nil
}
