// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import "fmt"

// Command is a request consumed by a session's command loop, in send order.
// Commands with a Result channel receive exactly one value on it; the
// channel must be buffered so the session never blocks on a slow caller.
type Command interface {
	command()
}

// InputKind identifies the action an InputEvent carries.
type InputKind int

const (
	InputPointerMove InputKind = iota
	InputPointerButton
	InputKey
	InputScroll
	InputText
)

func (k InputKind) String() string {
	switch k {
	case InputPointerMove:
		return "pointer_move"
	case InputPointerButton:
		return "pointer_button"
	case InputKey:
		return "key"
	case InputScroll:
		return "scroll"
	case InputText:
		return "text"
	default:
		return fmt.Sprintf("input(%d)", int(k))
	}
}

// InputEvent is one abstract input action. Only the fields of its Kind are used.
type InputEvent struct {
	Kind InputKind

	X, Y uint16 // InputPointerMove

	Button  int  // InputPointerButton
	Pressed bool // InputPointerButton, InputKey

	Code uint32 // InputKey

	DX, DY int // InputScroll

	Text string // InputText
}

// PointerMoveEvent moves the pointer to x, y.
func PointerMoveEvent(x, y uint16) InputEvent {
	return InputEvent{Kind: InputPointerMove, X: x, Y: y}
}

// PointerButtonEvent presses or releases button index 0 to 6.
func PointerButtonEvent(index int, pressed bool) InputEvent {
	return InputEvent{Kind: InputPointerButton, Button: index, Pressed: pressed}
}

// KeyEvent presses or releases the key with keysym code.
func KeyEvent(code uint32, pressed bool) InputEvent {
	return InputEvent{Kind: InputKey, Code: code, Pressed: pressed}
}

// ScrollEvent scrolls by a signed delta on each axis.
func ScrollEvent(dx, dy int) InputEvent {
	return InputEvent{Kind: InputScroll, DX: dx, DY: dy}
}

// TextEvent types s.
func TextEvent(s string) InputEvent {
	return InputEvent{Kind: InputText, Text: s}
}

func (ev InputEvent) apply(t *InputTranslator) error {
	switch ev.Kind {
	case InputPointerMove:
		return t.PointerMove(ev.X, ev.Y)
	case InputPointerButton:
		return t.PointerButton(ev.Button, ev.Pressed)
	case InputKey:
		return t.Key(ev.Code, ev.Pressed)
	case InputScroll:
		return t.Scroll(ev.DX, ev.DY)
	case InputText:
		return t.TypeText(ev.Text)
	default:
		return validationError("input", fmt.Sprintf("unknown input kind %v", ev.Kind), nil)
	}
}

// ControlAction is a session-level action beyond plain input.
type ControlAction int

const (
	// ControlRefresh requests a full, non-incremental frame.
	ControlRefresh ControlAction = iota
	// ControlCtrlAltDel sends the Ctrl+Alt+Del key chord.
	ControlCtrlAltDel
	// ControlSignOut ends the remote user session.
	ControlSignOut
	// ControlReboot, ControlPowerOff and ControlReset need XVP support.
	ControlReboot
	ControlPowerOff
	ControlReset
)

func (a ControlAction) String() string {
	switch a {
	case ControlRefresh:
		return "refresh"
	case ControlCtrlAltDel:
		return "ctrl_alt_del"
	case ControlSignOut:
		return "sign_out"
	case ControlReboot:
		return "reboot"
	case ControlPowerOff:
		return "power_off"
	case ControlReset:
		return "reset"
	default:
		return fmt.Sprintf("control(%d)", int(a))
	}
}

// ParseControlAction resolves the name String returns.
func ParseControlAction(name string) (ControlAction, bool) {
	for a := ControlRefresh; a <= ControlReset; a++ {
		if a.String() == name {
			return a, true
		}
	}
	return 0, false
}

// InputCommand applies events in order. The first failure aborts the rest.
type InputCommand struct {
	Events []InputEvent
	Result chan<- error
}

// AttachViewerCommand replaces the session's viewer. The connection and
// frame are untouched.
type AttachViewerCommand struct {
	Viewer Viewer
}

// DetachViewerCommand removes the viewer. Frames keep being applied to the
// FrameStore. When Viewer is set, it is removed only if it is still the
// current viewer.
type DetachViewerCommand struct {
	Viewer Viewer
}

// ShutdownCommand ends the session. Sending it to a closing or closed
// session has no effect.
type ShutdownCommand struct{}

// ControlCommand runs a ControlAction.
type ControlCommand struct {
	Action ControlAction
	Result chan<- error
}

// ClipboardCommand sends clipboard content to the peer.
type ClipboardCommand struct {
	Content ClipboardContent
	Result  chan<- error
}

func (InputCommand) command()        {}
func (AttachViewerCommand) command() {}
func (DetachViewerCommand) command() {}
func (ShutdownCommand) command()     {}
func (ControlCommand) command()      {}
func (ClipboardCommand) command()    {}

// reply delivers err on ch without blocking.
func reply(ch chan<- error, err error) {
	if ch == nil {
		return
	}
	select {
	case ch <- err:
	default:
	}
}

// resultOf returns the Result channel of cmd, if it has one.
func resultOf(cmd Command) chan<- error {
	switch c := cmd.(type) {
	case InputCommand:
		return c.Result
	case ControlCommand:
		return c.Result
	case ClipboardCommand:
		return c.Result
	default:
		return nil
	}
}
