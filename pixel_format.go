// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// PixelFormatSize is the length in bytes of the pixel format wire record.
const PixelFormatSize = 16

// PixelFormat describes how a single pixel is encoded on the wire.
// It is negotiated once per session and treated as immutable afterwards.
type PixelFormat struct {
	// BPP (bits-per-pixel) specifies how many bits are used to represent each pixel.
	BPP uint8

	// Depth specifies the number of useful bits within each pixel value.
	Depth uint8

	// BigEndian determines the byte order for multi-byte pixel values.
	BigEndian bool

	// TrueColor determines whether pixels carry direct RGB values (true)
	// or indices into a color map (false).
	TrueColor bool

	// RedMax, GreenMax and BlueMax are the maximum channel values. Each is 2^n-1.
	RedMax   uint16
	GreenMax uint16
	BlueMax  uint16

	// RedShift, GreenShift and BlueShift are the number of bits to right-shift
	// a raw pixel value to bring the channel to the least significant bits.
	RedShift   uint8
	GreenShift uint8
	BlueShift  uint8
}

// BytesPerPixel returns ceil(BPP/8).
func (pf PixelFormat) BytesPerPixel() int {
	return (int(pf.BPP) + 7) / 8
}

// opaqueBlack is the substitute for any pixel that cannot be decoded.
var opaqueBlack = [4]byte{0, 0, 0, 255}

// PixelToRGBA converts a raw pixel value to RGBA8. Formats that are not true
// color yield opaque black; palette lookup goes through ConvertIndexedToRGBA.
func (pf PixelFormat) PixelToRGBA(raw uint32) [4]byte {
	if !pf.TrueColor {
		return opaqueBlack
	}
	return [4]byte{
		scaleChannel(raw, pf.RedShift, pf.RedMax),
		scaleChannel(raw, pf.GreenShift, pf.GreenMax),
		scaleChannel(raw, pf.BlueShift, pf.BlueMax),
		255,
	}
}

func scaleChannel(raw uint32, shift uint8, maxVal uint16) byte {
	m := uint32(maxVal)
	if m == 0 {
		m = 1
	}
	v := (raw >> shift) & uint32(maxVal)
	return byte(v * 255 / m) // #nosec G115 - v <= m so the quotient is <= 255
}

// pixelAt assembles the raw value of the pixel starting at off.
// The second result is false when the source bytes are missing or the
// pixel width is not 1 to 4 bytes.
func (pf PixelFormat) pixelAt(data []byte, off int) (uint32, bool) {
	bpp := pf.BytesPerPixel()
	if bpp == 0 || bpp > 4 || off < 0 || off+bpp > len(data) {
		return 0, false
	}
	p := data[off : off+bpp]
	switch bpp {
	case 1:
		return uint32(p[0]), true
	case 2:
		if pf.BigEndian {
			return uint32(binary.BigEndian.Uint16(p)), true
		}
		return uint32(binary.LittleEndian.Uint16(p)), true
	case 3:
		if pf.BigEndian {
			return uint32(p[0])<<16 | uint32(p[1])<<8 | uint32(p[2]), true
		}
		return uint32(p[2])<<16 | uint32(p[1])<<8 | uint32(p[0]), true
	default:
		if pf.BigEndian {
			return binary.BigEndian.Uint32(p), true
		}
		return binary.LittleEndian.Uint32(p), true
	}
}

// ConvertToRGBA converts pixelCount pixels from data into an RGBA8 buffer of
// exactly pixelCount*4 bytes. Pixels whose source bytes are missing become
// opaque black so a truncated update still renders.
func (pf PixelFormat) ConvertToRGBA(data []byte, pixelCount int) []byte {
	if pixelCount <= 0 {
		return []byte{}
	}
	out := make([]byte, pixelCount*4)
	bpp := pf.BytesPerPixel()
	for i := 0; i < pixelCount; i++ {
		px := opaqueBlack
		if raw, ok := pf.pixelAt(data, i*bpp); ok {
			px = pf.PixelToRGBA(raw)
		}
		copy(out[i*4:], px[:])
	}
	return out
}

// ConvertIndexedToRGBA converts palette-indexed pixels through cm. The same
// lenient rules as ConvertToRGBA apply; a nil color map yields black pixels.
func (pf PixelFormat) ConvertIndexedToRGBA(data []byte, pixelCount int, cm *ColorMap) []byte {
	if pixelCount <= 0 {
		return []byte{}
	}
	out := make([]byte, pixelCount*4)
	bpp := pf.BytesPerPixel()
	for i := 0; i < pixelCount; i++ {
		px := opaqueBlack
		if raw, ok := pf.pixelAt(data, i*bpp); ok && cm != nil && raw < ColorMapSize {
			px = cm.Get(uint8(raw)).RGBA8() // #nosec G115 - raw < ColorMapSize
		}
		copy(out[i*4:], px[:])
	}
	return out
}

// MarshalBinary encodes the 16-byte wire record. Padding bytes are zero.
func (pf PixelFormat) MarshalBinary() ([]byte, error) {
	var buf [PixelFormatSize]byte
	pf.put(buf[:])
	return buf[:], nil
}

func (pf PixelFormat) put(b []byte) {
	b[0] = pf.BPP
	b[1] = pf.Depth
	b[2] = boolByte(pf.BigEndian)
	b[3] = boolByte(pf.TrueColor)
	binary.BigEndian.PutUint16(b[4:6], pf.RedMax)
	binary.BigEndian.PutUint16(b[6:8], pf.GreenMax)
	binary.BigEndian.PutUint16(b[8:10], pf.BlueMax)
	b[10] = pf.RedShift
	b[11] = pf.GreenShift
	b[12] = pf.BlueShift
	b[13], b[14], b[15] = 0, 0, 0
}

// UnmarshalBinary decodes a 16-byte wire record. Padding is ignored.
func (pf *PixelFormat) UnmarshalBinary(b []byte) error {
	if len(b) < PixelFormatSize {
		return protocolError("pixel_format_unmarshal",
			fmt.Sprintf("record is %d bytes, need %d", len(b), PixelFormatSize), nil)
	}
	*pf = decodePixelFormat([PixelFormatSize]byte(b[:PixelFormatSize]))
	return nil
}

func decodePixelFormat(b [PixelFormatSize]byte) PixelFormat {
	return PixelFormat{
		BPP:        b[0],
		Depth:      b[1],
		BigEndian:  b[2] != 0,
		TrueColor:  b[3] != 0,
		RedMax:     binary.BigEndian.Uint16(b[4:6]),
		GreenMax:   binary.BigEndian.Uint16(b[6:8]),
		BlueMax:    binary.BigEndian.Uint16(b[8:10]),
		RedShift:   b[10],
		GreenShift: b[11],
		BlueShift:  b[12],
	}
}

// WriteTo writes the 16-byte wire record to w.
func (pf PixelFormat) WriteTo(w io.Writer) (int64, error) {
	var buf [PixelFormatSize]byte
	pf.put(buf[:])
	n, err := w.Write(buf[:])
	if err != nil {
		return int64(n), transportError("pixel_format_write", "failed to write pixel format", err)
	}
	return int64(n), nil
}

// ReadPixelFormat reads a 16-byte wire record from r. A short read is
// reported as a transport error.
func ReadPixelFormat(r io.Reader) (PixelFormat, error) {
	var buf [PixelFormatSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return PixelFormat{}, transportError("pixel_format_read", "failed to read pixel format", err)
	}
	return decodePixelFormat(buf), nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// PixelFormatValidationError represents a pixel format validation error with detailed context.
type PixelFormatValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error returns the formatted error message for pixel format validation errors.
func (e *PixelFormatValidationError) Error() string {
	return fmt.Sprintf("pixel format validation failed for field %s: %s (value: %v)",
		e.Field, e.Message, e.Value)
}

// Validate checks the format for consistency: BPP must be 8, 16, 24 or 32,
// depth may not exceed BPP, and in true color mode every channel max must be
// 2^n-1 with channel masks that neither overlap nor exceed BPP bits.
func (pf PixelFormat) Validate() error {
	switch pf.BPP {
	case 8, 16, 24, 32:
	default:
		return &PixelFormatValidationError{Field: "BPP", Value: pf.BPP,
			Message: "bits per pixel must be 8, 16, 24 or 32"}
	}

	if pf.Depth == 0 || pf.Depth > pf.BPP {
		return &PixelFormatValidationError{Field: "Depth", Value: pf.Depth,
			Message: fmt.Sprintf("color depth must be between 1 and %d", pf.BPP)}
	}

	if !pf.TrueColor {
		return nil
	}

	channels := []struct {
		name  string
		max   uint16
		shift uint8
	}{
		{"Red", pf.RedMax, pf.RedShift},
		{"Green", pf.GreenMax, pf.GreenShift},
		{"Blue", pf.BlueMax, pf.BlueShift},
	}

	var used uint64
	for _, ch := range channels {
		if ch.max == 0 || ch.max&(ch.max+1) != 0 {
			return &PixelFormatValidationError{Field: ch.name + "Max", Value: ch.max,
				Message: "channel maximum must be a power of two minus one"}
		}
		mask := uint64(ch.max) << ch.shift
		if mask>>pf.BPP != 0 {
			return &PixelFormatValidationError{Field: ch.name + "Shift", Value: ch.shift,
				Message: fmt.Sprintf("channel does not fit in %d bits", pf.BPP)}
		}
		if used&mask != 0 {
			return &PixelFormatValidationError{Field: ch.name + "Shift", Value: ch.shift,
				Message: "channel mask overlaps another channel"}
		}
		used |= mask
	}

	return nil
}

// Common pixel format presets.
var (
	// PixelFormatRGB888 is 32-bit little-endian true color with 8 bits per channel.
	PixelFormatRGB888 = PixelFormat{
		BPP: 32, Depth: 24, TrueColor: true,
		RedMax: 255, GreenMax: 255, BlueMax: 255,
		RedShift: 16, GreenShift: 8, BlueShift: 0,
	}

	// PixelFormatRGB565 is 16-bit true color with a 6-bit green channel.
	PixelFormatRGB565 = PixelFormat{
		BPP: 16, Depth: 16, TrueColor: true,
		RedMax: 31, GreenMax: 63, BlueMax: 31,
		RedShift: 11, GreenShift: 5, BlueShift: 0,
	}

	// PixelFormatRGB555 is 16-bit true color with 5 bits per channel.
	PixelFormatRGB555 = PixelFormat{
		BPP: 16, Depth: 15, TrueColor: true,
		RedMax: 31, GreenMax: 31, BlueMax: 31,
		RedShift: 10, GreenShift: 5, BlueShift: 0,
	}

	// PixelFormatBGR233 is 8-bit true color, blue in the top two bits.
	PixelFormatBGR233 = PixelFormat{
		BPP: 8, Depth: 8, TrueColor: true,
		RedMax: 7, GreenMax: 7, BlueMax: 3,
		RedShift: 0, GreenShift: 3, BlueShift: 6,
	}

	// PixelFormatIndexed8 is 8-bit palette-indexed color.
	PixelFormatIndexed8 = PixelFormat{BPP: 8, Depth: 8}
)

var pixelFormatPresets = map[string]PixelFormat{
	"rgb888":   PixelFormatRGB888,
	"rgb565":   PixelFormatRGB565,
	"rgb555":   PixelFormatRGB555,
	"bgr233":   PixelFormatBGR233,
	"indexed8": PixelFormatIndexed8,
}

// PixelFormatByName resolves a preset name such as "rgb888" (case-insensitive).
func PixelFormatByName(name string) (PixelFormat, bool) {
	pf, ok := pixelFormatPresets[strings.ToLower(strings.TrimSpace(name))]
	return pf, ok
}
