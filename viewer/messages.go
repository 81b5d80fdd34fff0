// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package viewer

import (
	"context"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	rfb "github.com/supermarsx/go-rfb"
)

// Frame kinds sent to the browser.
const (
	KindFrame     = "frame"
	KindResize    = "resize"
	KindClipboard = "clipboard"
	KindBell      = "bell"
	KindClosed    = "closed"
)

// Input kinds accepted from the browser.
const (
	InputMove      = "move"
	InputButton    = "button"
	InputKey       = "key"
	InputScroll    = "scroll"
	InputText      = "text"
	InputClipboard = "clipboard"
	InputControl   = "control"
)

// Region is a rectangle of the framebuffer.
type Region struct {
	X      int `cbor:"x"`
	Y      int `cbor:"y"`
	Width  int `cbor:"w"`
	Height int `cbor:"h"`
}

// Clipboard is the wire form of rfb.ClipboardContent.
type Clipboard struct {
	Text    string `cbor:"text,omitempty"`
	RTF     []byte `cbor:"rtf,omitempty"`
	HTML    string `cbor:"html,omitempty"`
	FileURL string `cbor:"furl,omitempty"`
}

func clipboardFrom(c rfb.ClipboardContent) *Clipboard {
	return &Clipboard{Text: c.Text, RTF: c.RTF, HTML: c.HTML, FileURL: c.FileURL}
}

// Content converts c back to rfb.ClipboardContent.
func (c *Clipboard) Content() rfb.ClipboardContent {
	if c == nil {
		return rfb.ClipboardContent{}
	}
	return rfb.ClipboardContent{Text: c.Text, RTF: c.RTF, HTML: c.HTML, FileURL: c.FileURL}
}

// Frame is one message from the viewer to the browser. Pixels are RGBA8 rows
// of Region, top to bottom.
type Frame struct {
	Kind      string     `cbor:"kind"`
	Region    *Region    `cbor:"region,omitempty"`
	Pixels    []byte     `cbor:"pixels,omitempty"`
	Width     int        `cbor:"width,omitempty"`
	Height    int        `cbor:"height,omitempty"`
	Clipboard *Clipboard `cbor:"clipboard,omitempty"`
	Error     string     `cbor:"error,omitempty"`
}

// InputMessage is one message from the browser. Only the fields of its Kind
// are used.
type InputMessage struct {
	Kind      string     `cbor:"kind"`
	X         uint16     `cbor:"x,omitempty"`
	Y         uint16     `cbor:"y,omitempty"`
	Button    int        `cbor:"button,omitempty"`
	Pressed   bool       `cbor:"pressed,omitempty"`
	Code      uint32     `cbor:"code,omitempty"`
	DX        int        `cbor:"dx,omitempty"`
	DY        int        `cbor:"dy,omitempty"`
	Text      string     `cbor:"text,omitempty"`
	Clipboard *Clipboard `cbor:"clipboard,omitempty"`
	Action    string     `cbor:"action,omitempty"`
}

// InputEvent converts input kinds to an rfb.InputEvent. ok is false for
// clipboard, control and unknown kinds.
func (m InputMessage) InputEvent() (ev rfb.InputEvent, ok bool) {
	switch m.Kind {
	case InputMove:
		return rfb.PointerMoveEvent(m.X, m.Y), true
	case InputButton:
		return rfb.PointerButtonEvent(m.Button, m.Pressed), true
	case InputKey:
		return rfb.KeyEvent(m.Code, m.Pressed), true
	case InputScroll:
		return rfb.ScrollEvent(m.DX, m.DY), true
	case InputText:
		return rfb.TextEvent(m.Text), true
	default:
		return rfb.InputEvent{}, false
	}
}

// Apply forwards m to s and waits for the result.
func (m InputMessage) Apply(ctx context.Context, s *rfb.Session) error {
	if ev, ok := m.InputEvent(); ok {
		return s.Input(ctx, ev)
	}
	switch m.Kind {
	case InputClipboard:
		return s.SetClipboard(ctx, m.Clipboard.Content())
	case InputControl:
		action, ok := rfb.ParseControlAction(m.Action)
		if !ok {
			return rfb.NewError("viewer_input", rfb.ErrValidation, fmt.Sprintf("unknown control action %q", m.Action), nil)
		}
		return s.Control(ctx, action)
	default:
		return rfb.NewError("viewer_input", rfb.ErrValidation, fmt.Sprintf("unknown input kind %q", m.Kind), nil)
	}
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("viewer: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("viewer: CBOR decoder initialization failed: " + err.Error())
	}
}

// EncodeFrame serializes f with deterministic CBOR.
func EncodeFrame(f Frame) ([]byte, error) {
	return encMode.Marshal(f)
}

// DecodeFrame parses a Frame. Browser clients use the same layout.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	err := decMode.Unmarshal(data, &f)
	return f, err
}

// EncodeInput serializes an InputMessage.
func EncodeInput(m InputMessage) ([]byte, error) {
	return encMode.Marshal(m)
}

// DecodeInput parses an InputMessage.
func DecodeInput(data []byte) (InputMessage, error) {
	var m InputMessage
	err := decMode.Unmarshal(data, &m)
	return m, err
}
