// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import "sync"

// commandQueue is an unbounded FIFO with a single consumer. push never
// blocks; the consumer waits on ready and takes everything queued.
type commandQueue struct {
	mu     sync.Mutex
	items  []Command
	closed bool
	signal chan struct{}
}

func newCommandQueue() *commandQueue {
	return &commandQueue{signal: make(chan struct{}, 1)}
}

// push appends cmd. It returns false once the queue is closed.
func (q *commandQueue) push(cmd Command) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, cmd)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// ready fires after at least one push since the last drain.
func (q *commandQueue) ready() <-chan struct{} {
	return q.signal
}

// drain removes and returns all queued commands in order.
func (q *commandQueue) drain() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// close rejects further pushes and returns whatever was still queued.
func (q *commandQueue) close() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	items := q.items
	q.items = nil
	return items
}

func (q *commandQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
