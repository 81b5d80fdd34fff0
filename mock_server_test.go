// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const peerTimeout = 5 * time.Second

// mockServer plays the server side of an established connection. Each
// helper fails the test on I/O errors or after peerTimeout.
type mockServer struct {
	t    *testing.T
	conn net.Conn
}

// newMockServer returns a connected pair: the client end for the session and
// the server end for the test.
func newMockServer(t *testing.T) (net.Conn, *mockServer) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})
	return client, &mockServer{t: t, conn: server}
}

// newTCPMockServer is newMockServer over a loopback TCP connection.
func newTCPMockServer(t *testing.T) (net.Conn, *mockServer) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- conn
	}()

	client, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	server, ok := <-accepted
	require.True(t, ok, "accept failed")

	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})
	return client, &mockServer{t: t, conn: server}
}

// expect reads exactly n bytes written by the session.
func (m *mockServer) expect(n int) []byte {
	m.t.Helper()
	require.NoError(m.t, m.conn.SetReadDeadline(time.Now().Add(peerTimeout)))
	buf := make([]byte, n)
	_, err := io.ReadFull(m.conn, buf)
	require.NoError(m.t, err)
	return buf
}

// send writes raw server messages.
func (m *mockServer) send(b []byte) {
	m.t.Helper()
	require.NoError(m.t, m.conn.SetWriteDeadline(time.Now().Add(peerTimeout)))
	_, err := m.conn.Write(b)
	require.NoError(m.t, err)
}

// startup consumes the messages a session writes when it starts and returns
// the pixel format it requested and the initial update request.
func (m *mockServer) startup() (PixelFormat, []byte) {
	m.t.Helper()
	spf := m.expect(20)
	require.Equal(m.t, msgSetPixelFormat, spf[0])
	pf, err := ReadPixelFormat(bytes.NewReader(spf[4:]))
	require.NoError(m.t, err)

	hdr := m.expect(4)
	require.Equal(m.t, msgSetEncodings, hdr[0])
	count := int(binary.BigEndian.Uint16(hdr[2:]))
	m.expect(count * 4)

	return pf, m.expect(10)
}

// updateRequest reads one FramebufferUpdateRequest.
func (m *mockServer) updateRequest() (incremental bool, w, h uint16) {
	m.t.Helper()
	req := m.expect(10)
	require.Equal(m.t, msgFramebufferUpdateRequest, req[0])
	return req[1] == 1, binary.BigEndian.Uint16(req[6:]), binary.BigEndian.Uint16(req[8:])
}

func (m *mockServer) close() {
	_ = m.conn.Close()
}
