// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import "io"

// Encoding and pseudo-encoding identifiers advertised in SetEncodings.
const (
	// EncodingRaw sends pixels uncompressed in the negotiated pixel format.
	EncodingRaw int32 = 0

	// EncodingCopyRect copies a rectangle from elsewhere in the framebuffer.
	EncodingCopyRect int32 = 1

	// DesktopSizePseudoEncoding announces a framebuffer geometry change.
	DesktopSizePseudoEncoding int32 = -223

	// XVPPseudoEncoding announces support for XVP power-control messages.
	XVPPseudoEncoding int32 = -309

	// RichClipboardPseudoEncoding is 0xC0A1E5CE as a signed value. A peer that
	// advertises it accepts the multi-format clipboard envelope.
	RichClipboardPseudoEncoding int32 = -0x3F5E1A32
)

// DefaultEncodings is the list a session sends in SetEncodings, in
// preference order.
var DefaultEncodings = []int32{
	EncodingCopyRect,
	EncodingRaw,
	DesktopSizePseudoEncoding,
	RichClipboardPseudoEncoding,
	XVPPseudoEncoding,
}

// rectEncoding decodes the payload of one FramebufferUpdate rectangle into
// the session's frame and records the effect on upd.
type rectEncoding interface {
	Type() int32
	Decode(d *decoder, rect Rectangle, r io.Reader, upd *FramebufferUpdateMessage) error
}

// isPseudoEncoding reports whether t carries no pixel data of its own.
func isPseudoEncoding(t int32) bool {
	return t < 0
}
