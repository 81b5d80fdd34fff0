// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

// Package viewer serves rfb sessions to browsers over websockets.
//
// A client connects to the handler with ?session=<id>. It then receives
// CBOR-encoded Frame messages and sends CBOR-encoded InputMessage values.
//
//	engine, _ := rfb.NewEngine()
//	http.Handle("/view", viewer.NewHandler(engine))
package viewer

import (
	"net/http"

	"github.com/gorilla/websocket"

	rfb "github.com/supermarsx/go-rfb"
)

// SessionParam is the query parameter naming the session to view.
const SessionParam = "session"

// Handler upgrades HTTP requests to websocket viewers.
type Handler struct {
	engine    *rfb.Engine
	upgrader  websocket.Upgrader
	logger    rfb.Logger
	queueSize int
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler and viewer logger.
func WithLogger(logger rfb.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithQueueSize sets each viewer's pending event limit.
func WithQueueSize(n int) Option {
	return func(h *Handler) {
		h.queueSize = n
	}
}

// WithCheckOrigin replaces the same-origin check done during the upgrade.
func WithCheckOrigin(check func(*http.Request) bool) Option {
	return func(h *Handler) {
		h.upgrader.CheckOrigin = check
	}
}

// NewHandler returns a handler serving the sessions of engine.
func NewHandler(engine *rfb.Engine, opts ...Option) *Handler {
	h := &Handler{
		engine: engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 64 * 1024,
		},
		logger:    &rfb.NoOpLogger{},
		queueSize: DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = &rfb.NoOpLogger{}
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get(SessionParam)
	if id == "" {
		http.Error(w, "missing session parameter", http.StatusBadRequest)
		return
	}
	s, ok := h.engine.Session(id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			rfb.Field{Key: "session", Value: id},
			rfb.Field{Key: "error", Value: err})
		return
	}

	h.logger.Info("viewer connected",
		rfb.Field{Key: "session", Value: id},
		rfb.Field{Key: "remote", Value: r.RemoteAddr})

	v := NewWebSocketViewer(conn, h.engine.Store(), s.ID(), h.queueSize, h.logger)
	if err := v.Run(r.Context(), s); err != nil {
		h.logger.Warn("viewer ended", rfb.Field{Key: "session", Value: id}, rfb.Field{Key: "error", Value: err})
		return
	}
	h.logger.Info("viewer disconnected", rfb.Field{Key: "session", Value: id})
}
