// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"fmt"
	"io"
)

// maxRectPixels bounds the pixel count of a single rectangle or desktop.
const maxRectPixels = 100 * 1024 * 1024

// rawEncoding reads width*height pixels in the session pixel format and
// converts them to RGBA8.
type rawEncoding struct{}

func (rawEncoding) Type() int32 {
	return EncodingRaw
}

func (rawEncoding) Decode(d *decoder, rect Rectangle, r io.Reader, upd *FramebufferUpdateMessage) error {
	pixels := int(rect.Width) * int(rect.Height)
	if pixels > maxRectPixels {
		return protocolError("raw_decode",
			fmt.Sprintf("rectangle %dx%d is too large", rect.Width, rect.Height), nil)
	}

	data := make([]byte, pixels*d.pf.BytesPerPixel())
	if _, err := io.ReadFull(r, data); err != nil {
		return transportError("raw_decode", "failed to read pixel data", err)
	}

	var rgba []byte
	if d.pf.TrueColor {
		rgba = d.pf.ConvertToRGBA(data, pixels)
	} else {
		rgba = d.pf.ConvertIndexedToRGBA(data, pixels, d.colors)
	}

	if region, ok := d.blit(rect, rgba); ok {
		upd.Regions = append(upd.Regions, region)
	}
	return nil
}
