// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"io"
	"net"
	"sync"

	"github.com/gorilla/websocket"
)

// Transport is a connected, post-handshake duplex byte stream. The engine
// never dials or negotiates security; deadlines belong to the caller's
// connection.
type Transport interface {
	io.ReadWriteCloser
}

// NewConnTransport adapts a network connection.
func NewConnTransport(conn net.Conn) Transport {
	return conn
}

// wsTransport carries the byte stream in binary websocket messages, as
// websockify does. Message boundaries are not significant.
type wsTransport struct {
	conn *websocket.Conn

	readMu sync.Mutex
	cur    io.Reader

	writeMu sync.Mutex
}

// NewWebSocketTransport adapts a websocket connection whose binary messages
// carry the protocol stream.
func NewWebSocketTransport(conn *websocket.Conn) Transport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) Read(p []byte) (int, error) {
	t.readMu.Lock()
	defer t.readMu.Unlock()

	for {
		if t.cur == nil {
			kind, r, err := t.conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			if kind != websocket.BinaryMessage {
				continue
			}
			t.cur = r
		}

		n, err := t.cur.Read(p)
		if err == io.EOF {
			t.cur = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (t *wsTransport) Write(p []byte) (int, error) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

// meteredTransport counts traffic into a session's Stats.
type meteredTransport struct {
	Transport
	stats *Stats
}

func (m meteredTransport) Read(p []byte) (int, error) {
	n, err := m.Transport.Read(p)
	m.stats.addIn(n)
	return n, err
}

func (m meteredTransport) Write(p []byte) (int, error) {
	n, err := m.Transport.Write(p)
	m.stats.addOut(n)
	return n, err
}
