// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Client-to-server message types.
const (
	msgSetPixelFormat           uint8 = 0
	msgSetEncodings             uint8 = 2
	msgFramebufferUpdateRequest uint8 = 3
	msgKeyEvent                 uint8 = 4
	msgPointerEvent             uint8 = 5
	msgClientCutText            uint8 = 6
	msgXVP                      uint8 = 250
)

// XVP client message codes.
const (
	xvpVersion  uint8 = 1
	xvpShutdown uint8 = 2
	xvpReboot   uint8 = 3
	xvpReset    uint8 = 4
)

// maxEncodings bounds a SetEncodings message.
const maxEncodings = 100

// packBE serializes values big-endian the way every fixed-layout client
// message is built.
func packBE(op string, values ...interface{}) ([]byte, error) {
	var buf bytes.Buffer
	for _, v := range values {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			return nil, protocolError(op, "failed to encode message field", err)
		}
	}
	return buf.Bytes(), nil
}

// setPixelFormatMessage builds SetPixelFormat: type, 3 padding bytes, then
// the 16-byte pixel format record.
func setPixelFormatMessage(pf PixelFormat) ([]byte, error) {
	if err := pf.Validate(); err != nil {
		return nil, validationError("set_pixel_format", "invalid pixel format", err)
	}
	msg := make([]byte, 4+PixelFormatSize)
	msg[0] = msgSetPixelFormat
	pf.put(msg[4:])
	return msg, nil
}

// setEncodingsMessage builds SetEncodings from the given encoding types.
func setEncodingsMessage(types []int32) ([]byte, error) {
	if len(types) > maxEncodings {
		return nil, validationError("set_encodings",
			fmt.Sprintf("too many encodings: %d (max %d)", len(types), maxEncodings), nil)
	}
	return packBE("set_encodings", msgSetEncodings, uint8(0), uint16(len(types)), types) // #nosec G115 - bounded by maxEncodings
}

// framebufferUpdateRequestMessage builds a FramebufferUpdateRequest.
func framebufferUpdateRequestMessage(incremental bool, x, y, width, height uint16) []byte {
	msg := make([]byte, 10)
	msg[0] = msgFramebufferUpdateRequest
	msg[1] = boolByte(incremental)
	binary.BigEndian.PutUint16(msg[2:], x)
	binary.BigEndian.PutUint16(msg[4:], y)
	binary.BigEndian.PutUint16(msg[6:], width)
	binary.BigEndian.PutUint16(msg[8:], height)
	return msg
}

// xvpMessage builds an XVP power-control request.
func xvpMessage(code uint8) []byte {
	return []byte{msgXVP, 0, xvpVersion, code}
}
