// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import "encoding/binary"

// Common X11 keysyms used by control actions.
const (
	KeysymControlL uint32 = 0xffe3
	KeysymAltL     uint32 = 0xffe9
	KeysymDelete   uint32 = 0xffff
)

// RFBEncoder encodes RFB PointerEvent and KeyEvent messages.
type RFBEncoder struct{}

// EncodePointer returns a 6-byte PointerEvent carrying the full mask cur.
func (RFBEncoder) EncodePointer(_, cur ButtonMask, x, y uint16) []byte {
	msg := make([]byte, 6)
	msg[0] = msgPointerEvent
	msg[1] = uint8(cur)
	binary.BigEndian.PutUint16(msg[2:], x)
	binary.BigEndian.PutUint16(msg[4:], y)
	return msg
}

// EncodeKey returns an 8-byte KeyEvent for keysym code.
func (RFBEncoder) EncodeKey(code uint32, down bool) []byte {
	msg := make([]byte, 8)
	msg[0] = msgKeyEvent
	msg[1] = boolByte(down)
	binary.BigEndian.PutUint32(msg[4:], code)
	return msg
}
