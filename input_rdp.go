// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"
)

// Fast-path input event codes, stored in the top three bits of the event header.
const (
	fastPathEventScancode uint8 = 0x0
	fastPathEventMouse    uint8 = 0x1
	fastPathEventUnicode  uint8 = 0x4
)

// Keyboard event flags.
const (
	fastPathKeyRelease  uint8 = 0x01
	fastPathKeyExtended uint8 = 0x02
)

// Pointer flags of a fast-path mouse event.
const (
	ptrFlagsHWheel        uint16 = 0x0400
	ptrFlagsWheel         uint16 = 0x0200
	ptrFlagsWheelNegative uint16 = 0x0100
	ptrFlagsMove          uint16 = 0x0800
	ptrFlagsDown          uint16 = 0x8000
	ptrFlagsButton1       uint16 = 0x1000
	ptrFlagsButton2       uint16 = 0x2000
	ptrFlagsButton3       uint16 = 0x4000

	wheelRotation uint16 = 0x0078
)

// RDPEncoder encodes input as RDP fast-path input PDUs. Keys are scancodes;
// codes above 0xFF set the extended flag. Pointer buttons are sent as
// transitions derived from the previous mask.
type RDPEncoder struct {
	// Flags is placed in the top two bits of every PDU header.
	Flags uint8
}

// fastPathPDU frames events as a fast-path input PDU: a header byte with
// action, event count and flags, then a 1- or 2-byte length covering the
// whole PDU.
func fastPathPDU(flags uint8, events [][]byte) []byte {
	var data bytes.Buffer
	for _, ev := range events {
		data.Write(ev)
	}

	pdu := make([]byte, 0, data.Len()+3)
	pdu = append(pdu, uint8(len(events)&0x0f)<<2|(flags&0x3)<<6) // #nosec G115 - masked to 4 bits

	if total := data.Len() + 2; total <= 0x7f {
		pdu = append(pdu, uint8(total)) // #nosec G115 - total <= 0x7f
	} else {
		pdu = binary.BigEndian.AppendUint16(pdu, uint16(total+1)|0x8000) // #nosec G115 - PDUs stay far below 0x8000
	}
	return append(pdu, data.Bytes()...)
}

func mouseEvent(flags, x, y uint16) []byte {
	ev := []byte{fastPathEventMouse << 5}
	ev = binary.LittleEndian.AppendUint16(ev, flags)
	ev = binary.LittleEndian.AppendUint16(ev, x)
	return binary.LittleEndian.AppendUint16(ev, y)
}

var rdpButtons = []struct {
	mask  ButtonMask
	flags uint16
}{
	{ButtonLeft, ptrFlagsButton1},
	{ButtonRight, ptrFlagsButton2},
	{ButtonMiddle, ptrFlagsButton3},
}

// EncodePointer emits a move event when the mask is unchanged, otherwise one
// event per button that changed and one wheel event per newly set scroll bit.
func (e RDPEncoder) EncodePointer(prev, cur ButtonMask, x, y uint16) []byte {
	if prev == cur {
		return fastPathPDU(e.Flags, [][]byte{mouseEvent(ptrFlagsMove, x, y)})
	}

	var events [][]byte
	changed := prev ^ cur
	for _, b := range rdpButtons {
		if changed&b.mask == 0 {
			continue
		}
		flags := b.flags
		if cur&b.mask != 0 {
			flags |= ptrFlagsDown
		}
		events = append(events, mouseEvent(flags, x, y))
	}

	pressed := changed & cur
	if pressed&ButtonScrollUp != 0 {
		events = append(events, mouseEvent(ptrFlagsWheel|wheelRotation, x, y))
	}
	if pressed&ButtonScrollDown != 0 {
		events = append(events, mouseEvent(ptrFlagsWheel|ptrFlagsWheelNegative|negRotation(), x, y))
	}
	if pressed&ButtonScrollRight != 0 {
		events = append(events, mouseEvent(ptrFlagsHWheel|wheelRotation, x, y))
	}
	if pressed&ButtonScrollLeft != 0 {
		events = append(events, mouseEvent(ptrFlagsHWheel|ptrFlagsWheelNegative|negRotation(), x, y))
	}

	if len(events) == 0 {
		// Only scroll bits were released: nothing to report but the position.
		events = append(events, mouseEvent(ptrFlagsMove, x, y))
	}
	return fastPathPDU(e.Flags, events)
}

// negRotation is the 9-bit two's complement of one wheel notch, low byte only.
func negRotation() uint16 {
	return (0x100 - wheelRotation) & 0xff
}

// EncodeKey emits a scancode event.
func (e RDPEncoder) EncodeKey(code uint32, down bool) []byte {
	var flags uint8
	if !down {
		flags |= fastPathKeyRelease
	}
	if code > 0xff {
		flags |= fastPathKeyExtended
	}
	ev := []byte{flags | fastPathEventScancode<<5, uint8(code & 0xff)} // #nosec G115 - masked to 8 bits
	return fastPathPDU(e.Flags, [][]byte{ev})
}

// EncodeUnicode emits one unicode event per UTF-16 code unit of r.
func (e RDPEncoder) EncodeUnicode(r rune, down bool) []byte {
	var flags uint8
	if !down {
		flags = fastPathKeyRelease
	}
	units := utf16.Encode([]rune{r})
	events := make([][]byte, 0, len(units))
	for _, u := range units {
		ev := []byte{flags | fastPathEventUnicode<<5}
		events = append(events, binary.LittleEndian.AppendUint16(ev, u))
	}
	return fastPathPDU(e.Flags, events)
}
