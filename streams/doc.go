// Package streams implements the buffered object conduits that connect a
// pipeline to its host.
//
// A Stream decouples the producing pipeline goroutine from the consuming
// host goroutine. Producers append with Write; consumers drain with either
// BlockingRead (waits for data or close) or NonBlockingRead (returns whatever
// is buffered, possibly nothing). Within one Stream, objects are always
// delivered in the exact order they were written.
//
// # Data-ready signaling
//
// Ready returns a capacity-one channel that receives a token whenever the
// buffer goes from empty to non-empty and when the stream closes. The send is
// non-blocking, so a producer never waits on a slow consumer; consecutive
// writes coalesce into a single token. A consumer draining on Ready must
// follow each wakeup with NonBlockingRead.
//
// # Close semantics
//
// Close is idempotent. After Close, Write returns ErrClosed, BlockingRead
// drains any remaining buffered objects and then returns nil immediately,
// and NonBlockingRead keeps returning buffered objects until the buffer is
// empty.
package streams
