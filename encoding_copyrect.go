// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"encoding/binary"
	"fmt"
	"io"
)

// copyRectEncoding moves a rectangle that is already on screen. Its payload
// is the source position; the rectangle header gives the destination.
type copyRectEncoding struct{}

func (copyRectEncoding) Type() int32 {
	return EncodingCopyRect
}

func (copyRectEncoding) Decode(d *decoder, rect Rectangle, r io.Reader, upd *FramebufferUpdateMessage) error {
	var src [4]byte
	if _, err := io.ReadFull(r, src[:]); err != nil {
		return transportError("copyrect_decode", "failed to read source position", err)
	}
	srcX := int(binary.BigEndian.Uint16(src[0:2]))
	srcY := int(binary.BigEndian.Uint16(src[2:4]))
	if srcX > maxDesktopDimension || srcY > maxDesktopDimension {
		return protocolError("copyrect_decode",
			fmt.Sprintf("source position %d,%d out of range", srcX, srcY), nil)
	}

	if region, ok := d.copyWithin(srcX, srcY, rect); ok {
		upd.Regions = append(upd.Regions, region)
	}
	return nil
}

// copyWithin copies the shadow rectangle at srcX, srcY to rect, clipped so
// both source and destination lie inside the frame. Source rows are buffered
// first, so overlapping rectangles copy correctly.
func (d *decoder) copyWithin(srcX, srcY int, rect Rectangle) (DirtyRegion, bool) {
	x, y := int(rect.X), int(rect.Y)
	cw := min(int(rect.Width), d.width-x, d.width-srcX)
	ch := min(int(rect.Height), d.height-y, d.height-srcY)
	if cw <= 0 || ch <= 0 {
		return DirtyRegion{}, false
	}

	rowBytes := cw * 4
	buf := make([]byte, rowBytes*ch)
	for row := 0; row < ch; row++ {
		off := ((srcY+row)*d.width + srcX) * 4
		copy(buf[row*rowBytes:], d.shadow[off:off+rowBytes])
	}
	for row := 0; row < ch; row++ {
		off := ((y+row)*d.width + x) * 4
		copy(d.shadow[off:off+rowBytes], buf[row*rowBytes:(row+1)*rowBytes])
	}

	region := RegionFromRect(x, y, cw, ch)
	d.store.UpdateRegion(d.sessionID, d.shadow, d.width, region)
	return region, true
}
