package core

import (
	"sync"

	"github.com/vovakirdan/tensor-server/internal/store"
)

// LiveConnection is a registered client attached to an open socket.
type LiveConnection struct {
	Addr   string
	ConnID string
	Client store.ClientRecord
	// Sink is nil until the transport handshake completes. The registry only
	// looks it up; the connection handler owns it and closes it.
	Sink *Sink
}

// Sink is a per-connection outbound queue: many producers, one consumer.
type Sink struct {
	messages  chan Message
	done      chan struct{}
	closeOnce sync.Once
}

// NewSink creates a sink buffering up to size messages.
func NewSink(size int) *Sink {
	if size <= 0 {
		size = 1
	}
	return &Sink{
		messages: make(chan Message, size),
		done:     make(chan struct{}),
	}
}

// Send enqueues m without blocking.
func (s *Sink) Send(m Message) error {
	select {
	case <-s.done:
		return ErrSinkClosed
	default:
	}

	select {
	case s.messages <- m:
		return nil
	case <-s.done:
		return ErrSinkClosed
	default:
		return ErrSinkFull
	}
}

// Messages is read by the owning connection's writer.
func (s *Sink) Messages() <-chan Message {
	return s.messages
}

// Done is closed once the owner closed the sink.
func (s *Sink) Done() <-chan struct{} {
	return s.done
}

// Close stops accepting messages. Safe to call more than once.
func (s *Sink) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}
