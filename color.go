// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"fmt"
	"sync"
)

// ColorMapSize is the number of entries in an indexed-color palette.
const ColorMapSize = 256

// Color is a palette entry with 16-bit channels, as sent in SetColorMapEntries.
type Color struct {
	R uint16
	G uint16
	B uint16
}

// RGBA8 scales the 16-bit channels down to an opaque RGBA8 pixel.
func (c Color) RGBA8() [4]byte {
	return [4]byte{
		byte(c.R >> 8), // #nosec G115 - high byte of a uint16
		byte(c.G >> 8), // #nosec G115 - high byte of a uint16
		byte(c.B >> 8), // #nosec G115 - high byte of a uint16
		255,
	}
}

// ColorMapRangeError reports a palette update that falls outside the map.
type ColorMapRangeError struct {
	First uint16
	Count int
}

// Error returns the formatted error message for color map range errors.
func (e *ColorMapRangeError) Error() string {
	return fmt.Sprintf("color map range [%d:%d) exceeds %d entries", e.First, int(e.First)+e.Count, ColorMapSize)
}

// ColorMap is the palette for indexed pixel formats. The session decoder is
// the only writer; frame conversion reads concurrently.
type ColorMap struct {
	mu     sync.RWMutex
	colors [ColorMapSize]Color
}

// NewColorMap creates a color map initialized to a grayscale ramp so indexed
// frames render before the peer sends its palette.
func NewColorMap() *ColorMap {
	cm := &ColorMap{}
	for i := 0; i < ColorMapSize; i++ {
		v := uint16(i * 257) // #nosec G115 - i is bounded by ColorMapSize
		cm.colors[i] = Color{R: v, G: v, B: v}
	}
	return cm
}

// Get retrieves the color at the specified index.
func (cm *ColorMap) Get(index uint8) Color {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.colors[index]
}

// Set updates a single entry.
func (cm *ColorMap) Set(index uint8, color Color) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.colors[index] = color
}

// SetRange updates consecutive entries starting at first. The whole update is
// rejected when it does not fit in the map.
func (cm *ColorMap) SetRange(first uint16, colors []Color) error {
	if int(first)+len(colors) > ColorMapSize {
		return &ColorMapRangeError{First: first, Count: len(colors)}
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()
	copy(cm.colors[first:], colors)
	return nil
}

// Lookup converts a slice of palette indices to RGBA8 under a single read lock.
func (cm *ColorMap) Lookup(indices []uint8) []byte {
	out := make([]byte, len(indices)*4)
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	for i, idx := range indices {
		px := cm.colors[idx].RGBA8()
		copy(out[i*4:], px[:])
	}
	return out
}
