// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"image"
	"sync"

	"golang.org/x/image/draw"
)

// DirtyRegion is a changed rectangle in framebuffer coordinates.
// All four bounds are inclusive.
type DirtyRegion struct {
	Left   int
	Top    int
	Right  int
	Bottom int
}

// RegionFromRect converts an x, y, width, height rectangle to a DirtyRegion.
// A zero-sized rectangle produces an empty region.
func RegionFromRect(x, y, w, h int) DirtyRegion {
	return DirtyRegion{Left: x, Top: y, Right: x + w - 1, Bottom: y + h - 1}
}

// Width returns the number of columns covered by the region.
func (r DirtyRegion) Width() int {
	if r.Right < r.Left {
		return 0
	}
	return r.Right - r.Left + 1
}

// Height returns the number of rows covered by the region.
func (r DirtyRegion) Height() int {
	if r.Bottom < r.Top {
		return 0
	}
	return r.Bottom - r.Top + 1
}

// Empty reports whether the region covers no pixels or starts at a negative
// coordinate.
func (r DirtyRegion) Empty() bool {
	return r.Left < 0 || r.Top < 0 || r.Width() == 0 || r.Height() == 0
}

// frameSlot is one session's RGBA8 framebuffer.
type frameSlot struct {
	mu     sync.RWMutex
	width  int
	height int
	pix    []byte
}

func newFrameSlot(width, height int) *frameSlot {
	if width <= 0 || height <= 0 {
		return &frameSlot{pix: []byte{}}
	}
	return &frameSlot{width: width, height: height, pix: make([]byte, width*height*4)}
}

// FrameStore holds one framebuffer per session. The map lock is taken
// exclusively only to insert or remove a slot; pixel copies hold the slot
// lock for the duration of the copy and nothing else.
type FrameStore struct {
	mu    sync.RWMutex
	slots map[string]*frameSlot
}

// NewFrameStore creates an empty store.
func NewFrameStore() *FrameStore {
	return &FrameStore{slots: make(map[string]*frameSlot)}
}

func (fs *FrameStore) slot(id string) *frameSlot {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.slots[id]
}

// Init allocates a zero-filled width*height RGBA8 frame for id, replacing any
// existing one. Non-positive dimensions yield an empty frame.
func (fs *FrameStore) Init(id string, width, height int) {
	s := newFrameSlot(width, height)
	fs.mu.Lock()
	fs.slots[id] = s
	fs.mu.Unlock()
}

// Reinit replaces the frame after a desktop geometry change. Previous pixel
// content is discarded.
func (fs *FrameStore) Reinit(id string, width, height int) {
	fs.Init(id, width, height)
}

// Remove deletes the frame for id. Unknown ids are ignored.
func (fs *FrameStore) Remove(id string) {
	fs.mu.Lock()
	delete(fs.slots, id)
	fs.mu.Unlock()
}

// Len returns the number of frames held.
func (fs *FrameStore) Len() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.slots)
}

// Dimensions returns the frame size for id.
func (fs *FrameStore) Dimensions(id string) (width, height int, ok bool) {
	s := fs.slot(id)
	if s == nil {
		return 0, 0, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.width, s.height, true
}

// UpdateRegion copies the rows of region from src, an RGBA8 buffer with
// stride pixels per row, into the frame for id at the same byte offsets.
// A row is copied only when it fits entirely in both buffers; rows that would
// overrun either one are skipped whole. It returns the number of rows copied,
// which is zero for an unknown id or an empty region.
func (fs *FrameStore) UpdateRegion(id string, src []byte, stride int, region DirtyRegion) int {
	if region.Empty() || stride <= 0 {
		return 0
	}
	s := fs.slot(id)
	if s == nil {
		return 0
	}

	rowBytes := region.Width() * 4
	copied := 0

	s.mu.Lock()
	defer s.mu.Unlock()
	for row := region.Top; row <= region.Bottom; row++ {
		off := (row*stride + region.Left) * 4
		end := off + rowBytes
		if end > len(src) || end > len(s.pix) {
			continue
		}
		copy(s.pix[off:end], src[off:end])
		copied++
	}
	return copied
}

// ExtractRegion returns a new w*h*4 byte RGBA8 copy of the rectangle at x, y.
// Rows whose source range falls outside the frame are left zero. Sizes no
// frame can have yield an empty result. The second result is false when id
// is unknown.
func (fs *FrameStore) ExtractRegion(id string, x, y, w, h int) ([]byte, bool) {
	s := fs.slot(id)
	if s == nil {
		return nil, false
	}
	if w <= 0 || h <= 0 || w > maxDesktopDimension || h > maxDesktopDimension || w*h > maxRectPixels {
		return []byte{}, true
	}

	out := make([]byte, w*h*4)
	rowBytes := w * 4

	s.mu.RLock()
	defer s.mu.RUnlock()
	if x < 0 || y < 0 {
		return out, true
	}
	for row := 0; row < h; row++ {
		off := ((y+row)*s.width + x) * 4
		end := off + rowBytes
		if end > len(s.pix) {
			continue
		}
		copy(out[row*rowBytes:], s.pix[off:end])
	}
	return out, true
}

// Snapshot returns a copy of the whole frame as an image.
func (fs *FrameStore) Snapshot(id string) (*image.RGBA, bool) {
	s := fs.slot(id)
	if s == nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	copy(img.Pix, s.pix)
	return img, true
}

// Thumbnail returns the frame scaled to fit within maxWidth x maxHeight,
// preserving the aspect ratio. Frames already small enough are returned at
// their own size.
func (fs *FrameStore) Thumbnail(id string, maxWidth, maxHeight int) (*image.RGBA, bool) {
	src, ok := fs.Snapshot(id)
	if !ok {
		return nil, false
	}
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	if w == 0 || h == 0 || maxWidth <= 0 || maxHeight <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0)), true
	}
	if w <= maxWidth && h <= maxHeight {
		return src, true
	}

	tw, th := maxWidth, h*maxWidth/w
	if th > maxHeight {
		tw, th = w*maxHeight/h, maxHeight
	}
	tw, th = max(tw, 1), max(th, 1)

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, true
}
