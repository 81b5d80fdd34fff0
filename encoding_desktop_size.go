// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import "io"

// maxDesktopDimension is the largest width or height accepted in a resize.
const maxDesktopDimension = 32767

// desktopSizeEncoding handles the DesktopSize pseudo-rectangle: its width and
// height are the new framebuffer geometry and it carries no payload.
type desktopSizeEncoding struct{}

func (desktopSizeEncoding) Type() int32 {
	return DesktopSizePseudoEncoding
}

func (desktopSizeEncoding) Decode(d *decoder, rect Rectangle, _ io.Reader, upd *FramebufferUpdateMessage) error {
	if err := validateFramebufferSize("desktop_size", int(rect.Width), int(rect.Height)); err != nil {
		return err
	}

	oldWidth, oldHeight := d.width, d.height
	d.resize(int(rect.Width), int(rect.Height))

	d.logger.Info("desktop size changed",
		Field{Key: "old_width", Value: oldWidth},
		Field{Key: "old_height", Value: oldHeight},
		Field{Key: "new_width", Value: rect.Width},
		Field{Key: "new_height", Value: rect.Height})

	upd.Resized = true
	upd.Width, upd.Height = d.width, d.height
	// Regions decoded before the resize refer to the discarded frame.
	upd.Regions = upd.Regions[:0]
	return nil
}
