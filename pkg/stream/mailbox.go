package stream

import (
	"context"
	"errors"
	"sync"

	"google.golang.org/protobuf/proto"
)

var ErrMailboxClosed = errors.New("stream: mailbox closed")

// Mailbox is an unbounded FIFO of decoded messages. Send never blocks; once the
// receiving side calls Close, further sends are discarded and report false.
type Mailbox struct {
	mu     sync.Mutex
	queue  []proto.Message
	closed bool
	notify chan struct{}
	done   chan struct{}
}

func NewMailbox() *Mailbox {
	return &Mailbox{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (m *Mailbox) Send(msg proto.Message) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, msg)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return true
}

// TryRecv pops the oldest message without waiting.
func (m *Mailbox) TryRecv() (proto.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pop()
}

// Recv blocks until a message is available, the mailbox is closed or ctx is done.
func (m *Mailbox) Recv(ctx context.Context) (proto.Message, error) {
	for {
		m.mu.Lock()
		if msg, ok := m.pop(); ok {
			m.mu.Unlock()
			return msg, nil
		}
		closed := m.closed
		m.mu.Unlock()

		if closed {
			return nil, ErrMailboxClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-m.done:
		case <-m.notify:
		}
	}
}

func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Close tears down the receiving side and drops anything still queued.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.queue = nil
	close(m.done)
}

// pop must be called with mu held.
func (m *Mailbox) pop() (proto.Message, bool) {
	if len(m.queue) == 0 {
		return nil, false
	}
	msg := m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]
	return msg, true
}
