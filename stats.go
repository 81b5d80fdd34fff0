// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"sync/atomic"
	"time"
)

// Stats is a session's passive status counters. The session updates it; any
// goroutine may read it without locks.
type Stats struct {
	started  time.Time
	bytesIn  atomic.Uint64
	bytesOut atomic.Uint64
	frames   atomic.Uint64
	lastErr  atomic.Pointer[string]
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Uptime    time.Duration
	BytesIn   uint64
	BytesOut  uint64
	Frames    uint64
	LastError string
}

func newStats() *Stats {
	return &Stats{started: time.Now()}
}

func (s *Stats) addIn(n int) {
	if n > 0 {
		s.bytesIn.Add(uint64(n)) // #nosec G115 - n > 0
	}
}

func (s *Stats) addOut(n int) {
	if n > 0 {
		s.bytesOut.Add(uint64(n)) // #nosec G115 - n > 0
	}
}

func (s *Stats) addFrame() {
	s.frames.Add(1)
}

func (s *Stats) setError(err error) {
	if err == nil {
		return
	}
	msg := err.Error()
	s.lastErr.Store(&msg)
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Uptime:   time.Since(s.started),
		BytesIn:  s.bytesIn.Load(),
		BytesOut: s.bytesOut.Load(),
		Frames:   s.frames.Load(),
	}
	if p := s.lastErr.Load(); p != nil {
		snap.LastError = *p
	}
	return snap
}
