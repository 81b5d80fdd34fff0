// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxRectanglesPerUpdate bounds the rectangle count of one FramebufferUpdate.
const MaxRectanglesPerUpdate = 10000

// Server-to-client message types.
const (
	msgFramebufferUpdate  uint8 = 0
	msgSetColorMapEntries uint8 = 1
	msgBell               uint8 = 2
	msgServerCutText      uint8 = 3
	msgServerXVP          uint8 = 250
)

// XVP server message codes.
const (
	xvpFail uint8 = 0
	xvpInit uint8 = 1
)

// ServerMessage is a decoded server-to-client message.
type ServerMessage interface {
	// Type returns the message type byte.
	Type() uint8
}

// serverMessageReader parses the body of one message type, after its type byte.
type serverMessageReader func(d *decoder, r io.Reader) (ServerMessage, error)

// Rectangle is the header of one FramebufferUpdate rectangle.
type Rectangle struct {
	X        uint16
	Y        uint16
	Width    uint16
	Height   uint16
	Encoding int32
}

// FramebufferUpdateMessage reports what a FramebufferUpdate changed. Regions
// are already applied to the FrameStore when the message is returned.
type FramebufferUpdateMessage struct {
	Regions []DirtyRegion

	// Resized is set when the update carried a DesktopSize rectangle;
	// Width and Height are then the new geometry.
	Resized bool
	Width   int
	Height  int
}

func (*FramebufferUpdateMessage) Type() uint8 { return msgFramebufferUpdate }

func readFramebufferUpdate(d *decoder, r io.Reader) (ServerMessage, error) {
	var hdr [3]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, transportError("framebuffer_update", "failed to read header", err)
	}
	numRects := binary.BigEndian.Uint16(hdr[1:])
	if numRects > MaxRectanglesPerUpdate {
		return nil, protocolError("framebuffer_update",
			fmt.Sprintf("too many rectangles in update: %d (max %d)", numRects, MaxRectanglesPerUpdate), nil)
	}

	upd := &FramebufferUpdateMessage{}
	var raw [12]byte
	for i := uint16(0); i < numRects; i++ {
		if _, err := io.ReadFull(r, raw[:]); err != nil {
			return nil, transportError("framebuffer_update", "failed to read rectangle header", err)
		}
		rect := Rectangle{
			X:        binary.BigEndian.Uint16(raw[0:2]),
			Y:        binary.BigEndian.Uint16(raw[2:4]),
			Width:    binary.BigEndian.Uint16(raw[4:6]),
			Height:   binary.BigEndian.Uint16(raw[6:8]),
			Encoding: int32(binary.BigEndian.Uint32(raw[8:12])), // #nosec G115 - wire value is a signed 32-bit id
		}

		enc, ok := d.encodings[rect.Encoding]
		if !ok {
			kind := "encoding"
			if isPseudoEncoding(rect.Encoding) {
				kind = "pseudo-encoding"
			}
			return nil, unsupportedError("framebuffer_update",
				fmt.Sprintf("unsupported %s %d in rectangle %d", kind, rect.Encoding, i), nil)
		}
		if err := enc.Decode(d, rect, r, upd); err != nil {
			return nil, err
		}
	}
	return upd, nil
}

// SetColorMapEntriesMessage installs palette entries for indexed formats.
type SetColorMapEntriesMessage struct {
	FirstColor uint16
	Colors     []Color
}

func (*SetColorMapEntriesMessage) Type() uint8 { return msgSetColorMapEntries }

func readSetColorMapEntries(d *decoder, r io.Reader) (ServerMessage, error) {
	var hdr [5]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, transportError("set_color_map_entries", "failed to read header", err)
	}
	msg := &SetColorMapEntriesMessage{FirstColor: binary.BigEndian.Uint16(hdr[1:3])}
	numColors := binary.BigEndian.Uint16(hdr[3:5])
	if int(msg.FirstColor)+int(numColors) > ColorMapSize {
		return nil, protocolError("set_color_map_entries",
			fmt.Sprintf("entries [%d:%d) exceed the color map", msg.FirstColor, int(msg.FirstColor)+int(numColors)), nil)
	}

	body := make([]byte, int(numColors)*6)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, transportError("set_color_map_entries", "failed to read color data", err)
	}
	msg.Colors = make([]Color, numColors)
	for i := range msg.Colors {
		c := body[i*6:]
		msg.Colors[i] = Color{
			R: binary.BigEndian.Uint16(c[0:2]),
			G: binary.BigEndian.Uint16(c[2:4]),
			B: binary.BigEndian.Uint16(c[4:6]),
		}
	}
	if err := d.colors.SetRange(msg.FirstColor, msg.Colors); err != nil {
		return nil, protocolError("set_color_map_entries", "invalid color map range", err)
	}
	return msg, nil
}

// BellMessage asks the viewer to sound an audible signal.
type BellMessage struct{}

func (*BellMessage) Type() uint8 { return msgBell }

func readBell(*decoder, io.Reader) (ServerMessage, error) {
	return &BellMessage{}, nil
}

// ServerCutTextMessage carries the peer's clipboard. Rich is set when the
// peer used the multi-format envelope.
type ServerCutTextMessage struct {
	Content ClipboardContent
	Rich    bool
}

func (*ServerCutTextMessage) Type() uint8 { return msgServerCutText }

func readServerCutTextMessage(d *decoder, r io.Reader) (ServerMessage, error) {
	c, rich, err := readServerCutText(r, d.maxClipboard, d.logger)
	if err != nil {
		return nil, err
	}
	return &ServerCutTextMessage{Content: c, Rich: rich}, nil
}

// XVPMessage is a power-control status message. Code xvpInit means the
// peer accepts reboot, shutdown and reset requests.
type XVPMessage struct {
	Version uint8
	Code    uint8
}

func (*XVPMessage) Type() uint8 { return msgServerXVP }

// Supported reports whether the peer announced XVP support.
func (m *XVPMessage) Supported() bool { return m.Code == xvpInit }

func readXVP(_ *decoder, r io.Reader) (ServerMessage, error) {
	var body [3]byte
	if _, err := io.ReadFull(r, body[:]); err != nil {
		return nil, transportError("xvp", "failed to read xvp message", err)
	}
	return &XVPMessage{Version: body[1], Code: body[2]}, nil
}

var serverMessageReaders = map[uint8]serverMessageReader{
	msgFramebufferUpdate:  readFramebufferUpdate,
	msgSetColorMapEntries: readSetColorMapEntries,
	msgBell:               readBell,
	msgServerCutText:      readServerCutTextMessage,
	msgServerXVP:          readXVP,
}
