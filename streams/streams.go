package streams

import (
	"errors"
	"sync"
)

var (
	// ErrClosed is returned by Write when the stream has been closed.
	// During asynchronous input feeding this is an expected signal that the
	// pipeline already finished, not a failure.
	ErrClosed = errors.New("stream closed")
)

// Stream is a buffered, order-preserving conduit of pipeline objects.
// The zero value is not usable; create one with New.
type Stream struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []interface{}
	closed bool
	ready  chan struct{}
}

// New creates an empty, open Stream.
func New() *Stream {
	s := &Stream{
		ready: make(chan struct{}, 1),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Write appends obj to the buffer and signals any waiting or ready-polling
// consumer. It never blocks on the consumer. Returns ErrClosed if the stream
// has been closed.
func (s *Stream) Write(obj interface{}) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.buf = append(s.buf, obj)
	s.cond.Broadcast()
	s.mu.Unlock()

	s.signal()
	return nil
}

// BlockingRead blocks until at least one object is buffered or the stream is
// closed, then returns and removes everything currently buffered, in write
// order. On a closed stream it first drains any remainder; once the stream is
// closed and empty it returns nil immediately.
func (s *Stream) BlockingRead() []interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.buf) == 0 && !s.closed {
		s.cond.Wait()
	}
	return s.takeLocked()
}

// NonBlockingRead returns and removes everything currently buffered, in write
// order, without waiting. It returns nil when the buffer is empty.
func (s *Stream) NonBlockingRead() []interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.takeLocked()
}

// Close marks the stream closed, waking any blocked reader and signaling
// ready-polling consumers. Close is idempotent. Buffered objects remain
// readable after Close.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()

	s.signal()
}

// Closed reports whether Close has been called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Len returns the number of objects currently buffered.
func (s *Stream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Ready returns the data-ready channel. A token arrives after writes and
// after Close; tokens coalesce, so consumers must drain with NonBlockingRead
// on every wakeup rather than counting tokens.
func (s *Stream) Ready() <-chan struct{} {
	return s.ready
}

func (s *Stream) takeLocked() []interface{} {
	if len(s.buf) == 0 {
		return nil
	}
	out := s.buf
	s.buf = nil
	return out
}

// signal performs the non-blocking ready send. A pending token already
// covers this wakeup.
func (s *Stream) signal() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}
