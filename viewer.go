// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import "sync/atomic"

// Event is a notification delivered from a session to its viewer.
type Event interface {
	event()
}

// FrameEvent lists regions that changed in the FrameStore.
type FrameEvent struct {
	Regions []DirtyRegion
}

// ResizeEvent reports a new framebuffer geometry. The frame is blank until
// the next FrameEvent.
type ResizeEvent struct {
	Width  int
	Height int
}

// ClipboardEvent carries clipboard content received from the peer.
type ClipboardEvent struct {
	Content ClipboardContent
}

// BellEvent asks the viewer to sound an audible signal.
type BellEvent struct{}

// ClosedEvent is the last event a viewer receives. Err is nil after a
// requested shutdown.
type ClosedEvent struct {
	Err error
}

func (FrameEvent) event()     {}
func (ResizeEvent) event()    {}
func (ClipboardEvent) event() {}
func (BellEvent) event()      {}
func (ClosedEvent) event()    {}

// Viewer receives session events. Deliver is called on the session's command
// goroutine and must not block.
type Viewer interface {
	Deliver(Event)
}

// ChannelViewer delivers events on a buffered channel, dropping events when
// the channel is full. Pixels are read from the FrameStore on demand, so a
// dropped FrameEvent costs latency, not correctness.
type ChannelViewer struct {
	ch      chan Event
	dropped atomic.Uint64
}

// NewChannelViewer creates a viewer with room for size pending events.
func NewChannelViewer(size int) *ChannelViewer {
	if size <= 0 {
		size = 1
	}
	return &ChannelViewer{ch: make(chan Event, size)}
}

// Events returns the channel events arrive on.
func (v *ChannelViewer) Events() <-chan Event {
	return v.ch
}

// Dropped returns the number of events discarded because the channel was full.
func (v *ChannelViewer) Dropped() uint64 {
	return v.dropped.Load()
}

// Deliver queues ev, or drops it when the channel is full.
func (v *ChannelViewer) Deliver(ev Event) {
	select {
	case v.ch <- ev:
	default:
		v.dropped.Add(1)
	}
}
