// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// SessionInit describes a connection whose handshake has already completed.
type SessionInit struct {
	// ID keys the session and its frame. A random UUID is used when empty.
	ID string

	// Width and Height are the framebuffer size from ServerInit.
	Width  int
	Height int

	// PixelFormat overrides the engine's configured format for this session.
	PixelFormat *PixelFormat

	// Name is the desktop name from ServerInit.
	Name string

	// PeerCapabilities lists pseudo-encodings the peer is known to support.
	PeerCapabilities Capabilities
}

// Engine owns the FrameStore and the registry of live sessions.
type Engine struct {
	cfg    Config
	pf     PixelFormat
	logger Logger
	store  *FrameStore

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

// NewEngine applies opts over DefaultConfig and validates the result.
//
// Example:
//
//	engine, err := rfb.NewEngine(
//		rfb.WithPixelFormat(rfb.PixelFormatRGB565),
//		rfb.WithLogger(rfb.NewStandardLogger(rfb.LevelInfo)),
//	)
func NewEngine(opts ...Option) (*Engine, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pf, err := cfg.ResolvePixelFormat()
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:      cfg,
		pf:       pf,
		logger:   cfg.logger(),
		store:    NewFrameStore(),
		sessions: make(map[string]*Session),
	}, nil
}

// Config returns the validated engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Store returns the FrameStore shared by all sessions.
func (e *Engine) Store() *FrameStore {
	return e.store
}

// Open starts a session over t. Cancelling ctx ends the session, so pass a
// context that lives as long as the connection should.
func (e *Engine) Open(ctx context.Context, t Transport, init SessionInit) (*Session, error) {
	if t == nil {
		return nil, validationError("open", "transport is nil", nil)
	}
	if err := validateFramebufferSize("open", init.Width, init.Height); err != nil {
		return nil, err
	}

	pf := e.pf
	if init.PixelFormat != nil {
		if err := init.PixelFormat.Validate(); err != nil {
			return nil, validationError("open", "invalid pixel format", err)
		}
		pf = *init.PixelFormat
	}

	id := init.ID
	if id == "" {
		id = uuid.NewString()
	} else if err := validateSessionID(id); err != nil {
		return nil, err
	}
	name := SanitizeText(init.Name)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, closedError("open", id)
	}
	if _, exists := e.sessions[id]; exists {
		return nil, validationError("open", fmt.Sprintf("session %q already exists", id), nil)
	}

	e.store.Init(id, init.Width, init.Height)
	s := newSession(ctx, t, sessionConfig{
		id:            id,
		store:         e.store,
		pf:            pf,
		width:         init.Width,
		height:        init.Height,
		name:          name,
		peer:          init.PeerCapabilities,
		richClipboard: e.cfg.RichClipboard,
		maxClipboard:  e.cfg.MaxClipboardLength,
		eventBuffer:   e.cfg.EventBuffer,
		logger:        e.logger,
		onClose:       e.unregister,
	})
	e.sessions[id] = s

	e.logger.Info("session opened",
		Field{Key: "session", Value: id},
		Field{Key: "name", Value: name})
	return s, nil
}

func (e *Engine) unregister(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, id)
}

// Session returns the live session with the given id.
func (e *Engine) Session(id string) (*Session, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.sessions[id]
	return s, ok
}

// Sessions returns the live sessions ordered by id.
func (e *Engine) Sessions() []*Session {
	e.mu.RLock()
	out := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		out = append(out, s)
	}
	e.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Session) int { return strings.Compare(a.id, b.id) })
	return out
}

// ExtractRegion copies a rectangle of a session's frame as RGBA8. ok is false
// when the session has no frame.
func (e *Engine) ExtractRegion(id string, x, y, w, h int) ([]byte, bool) {
	return e.store.ExtractRegion(id, x, y, w, h)
}

// Close shuts every session down concurrently and refuses new ones. It
// returns ctx.Err() if ctx ends first; sessions keep shutting down.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	sessions := e.Sessions()
	e.logger.Info("closing engine", Field{Key: "sessions", Value: len(sessions)})

	var g errgroup.Group
	for _, s := range sessions {
		g.Go(s.Close)
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
