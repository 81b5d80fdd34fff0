// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"io"
	"sync"
)

// ButtonMask is the pointer button state carried by every pointer event.
// Pointer state is level-triggered: each event carries the full mask.
type ButtonMask uint8

// Button mask bits, in button index order.
const (
	ButtonLeft ButtonMask = 1 << iota
	ButtonMiddle
	ButtonRight
	ButtonScrollUp
	ButtonScrollDown
	ButtonScrollLeft
	ButtonScrollRight
)

// MaxScrollPulses caps the scroll pulses emitted per axis in one Scroll call.
const MaxScrollPulses = 10

// ButtonIndexToMask maps button indices 0 to 6 to their mask bit. Any other
// index maps to zero, which leaves the mask unchanged.
func ButtonIndexToMask(index int) ButtonMask {
	if index < 0 || index > 6 {
		return 0
	}
	return ButtonMask(1 << index)
}

// KeysymForRune returns the keysym used to type r. Printable ASCII maps to
// itself; everything else uses the Unicode keysym range.
func KeysymForRune(r rune) uint32 {
	if r >= 0x20 && r <= 0x7E {
		return uint32(r)
	}
	return 0x01000000 + uint32(r) // #nosec G115 - runes are non-negative code points
}

// PointerState is the last pointer position and button mask sent.
type PointerState struct {
	X       uint16
	Y       uint16
	Buttons ButtonMask
}

// EventEncoder renders input events in one protocol's wire format.
type EventEncoder interface {
	// EncodePointer encodes a pointer event. prev is the mask of the previous
	// event, for protocols that send transitions instead of levels.
	EncodePointer(prev, cur ButtonMask, x, y uint16) []byte

	// EncodeKey encodes a key press or release.
	EncodeKey(code uint32, down bool) []byte
}

// UnicodeEncoder is implemented by encoders that can send a character
// directly instead of a keysym.
type UnicodeEncoder interface {
	EncodeUnicode(r rune, down bool) []byte
}

// InputTranslator turns abstract input actions into wire events on w.
// A failed write aborts the remaining events of the same call.
type InputTranslator struct {
	w   io.Writer
	enc EventEncoder

	mu    sync.Mutex
	state PointerState
}

// NewInputTranslator creates a translator writing enc's events to w.
// A nil encoder selects RFBEncoder.
func NewInputTranslator(w io.Writer, enc EventEncoder) *InputTranslator {
	if enc == nil {
		enc = RFBEncoder{}
	}
	return &InputTranslator{w: w, enc: enc}
}

// State returns the current pointer state.
func (t *InputTranslator) State() PointerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *InputTranslator) write(op string, b []byte) error {
	if _, err := t.w.Write(b); err != nil {
		return transportError(op, "failed to write input event", err)
	}
	return nil
}

// pointer records the new mask and emits one pointer event. Caller holds mu.
func (t *InputTranslator) pointer(op string, mask ButtonMask) error {
	prev := t.state.Buttons
	t.state.Buttons = mask
	return t.write(op, t.enc.EncodePointer(prev, mask, t.state.X, t.state.Y))
}

// PointerMove moves the pointer and emits an event with the current mask.
func (t *InputTranslator) PointerMove(x, y uint16) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.X, t.state.Y = x, y
	return t.pointer("pointer_move", t.state.Buttons)
}

// PointerButton sets or clears the bit for button index and emits an event.
func (t *InputTranslator) PointerButton(index int, pressed bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	bit := ButtonIndexToMask(index)
	mask := t.state.Buttons
	if pressed {
		mask |= bit
	} else {
		mask &^= bit
	}
	return t.pointer("pointer_button", mask)
}

// Key emits a key press or release. No key state is kept.
func (t *InputTranslator) Key(code uint32, down bool) error {
	return t.write("key", t.enc.EncodeKey(code, down))
}

// Scroll emits press and release pulses for a signed delta: negative dy
// scrolls up, positive dy down, negative dx left and positive dx right. Each
// axis is capped at MaxScrollPulses; vertical pulses are sent first.
func (t *InputTranslator) Scroll(dx, dy int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	axes := []struct {
		delta    int
		neg, pos ButtonMask
	}{
		{dy, ButtonScrollUp, ButtonScrollDown},
		{dx, ButtonScrollLeft, ButtonScrollRight},
	}
	for _, axis := range axes {
		if axis.delta == 0 {
			continue
		}
		bit, n := axis.pos, axis.delta
		if n < 0 {
			bit, n = axis.neg, -n
		}
		n = min(n, MaxScrollPulses)

		base := t.state.Buttons
		for i := 0; i < n; i++ {
			if err := t.pointer("scroll", base|bit); err != nil {
				return err
			}
			if err := t.pointer("scroll", base&^bit); err != nil {
				return err
			}
		}
	}
	return nil
}

// TypeText emits a press and release per rune of s.
func (t *InputTranslator) TypeText(s string) error {
	uni, direct := t.enc.(UnicodeEncoder)
	for _, r := range s {
		for _, down := range []bool{true, false} {
			var b []byte
			if direct {
				b = uni.EncodeUnicode(r, down)
			} else {
				b = t.enc.EncodeKey(KeysymForRune(r), down)
			}
			if err := t.write("type_text", b); err != nil {
				return err
			}
		}
	}
	return nil
}
