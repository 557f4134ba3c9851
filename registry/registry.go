// Package registry routes asynchronous cancellation to the executor that is
// currently allowed to receive it.
//
// An interrupt (a keyboard break, a host shutdown) runs on its own goroutine
// and knows nothing about pipelines. The registry is the only channel between
// that goroutine and a running pipeline: a routing table keyed by session ID
// holding at most one "current" canceler per session, guarded by one mutex.
//
// # Save and restore
//
// Every invocation entry point calls Enter, which installs the executor as
// current and returns a Guard remembering the previous one. Exiting the guard
// on every path (success, failure, cancellation) restores the previous
// canceler, so nested invocations - a prompt evaluated while a pipeline is
// suspended, a confirmation sub-shell - always route cancellation to the
// innermost active pipeline and hand control back to the outer one when they
// finish:
//
//	guard := reg.Enter(session, exec)
//	defer guard.Exit()
//
// # Locking
//
// CancelCurrent reads the table under the registry lock and calls Cancel
// outside it. The lock is never held across a stop request, so cancellation
// cannot deadlock behind a running pipeline.
package registry

import (
	"sync"

	"github.com/google/uuid"
)

// Canceler receives a cancellation request for whatever it currently runs.
// A canceler with nothing running treats the request as a no-op.
type Canceler interface {
	Cancel()
}

// Registry is the process-wide cancellation routing table. The zero value is
// not usable; create one with New.
type Registry struct {
	mu      sync.Mutex
	current map[uuid.UUID]Canceler
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		current: make(map[uuid.UUID]Canceler),
	}
}

// Enter installs c as the session's current canceler and returns a Guard that
// restores the previous one (possibly none) on Exit.
func (r *Registry) Enter(session uuid.UUID, c Canceler) *Guard {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, hadPrev := r.current[session]
	r.current[session] = c
	return &Guard{
		registry: r,
		session:  session,
		self:     c,
		prev:     prev,
		hadPrev:  hadPrev,
	}
}

// Current returns the session's current canceler, or nil.
func (r *Registry) Current(session uuid.UUID) Canceler {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current[session]
}

// CancelCurrent requests cancellation of the session's current canceler.
// With no current canceler it has no effect. The registry lock is released
// before Cancel is invoked.
func (r *Registry) CancelCurrent(session uuid.UUID) {
	r.mu.Lock()
	c := r.current[session]
	r.mu.Unlock()

	if c != nil {
		c.Cancel()
	}
}

// Guard restores the previously current canceler when the invocation that
// created it finishes.
type Guard struct {
	registry *Registry
	session  uuid.UUID
	self     Canceler
	prev     Canceler
	hadPrev  bool
	exited   bool
}

// Exit restores the canceler that was current before Enter. Exit is
// idempotent, and an out-of-order exit (while a later Enter is still active)
// leaves the later canceler in place rather than clobbering it.
func (g *Guard) Exit() {
	g.registry.mu.Lock()
	defer g.registry.mu.Unlock()
	if g.exited {
		return
	}
	g.exited = true
	if g.registry.current[g.session] != g.self {
		return
	}
	if g.hadPrev {
		g.registry.current[g.session] = g.prev
	} else {
		delete(g.registry.current, g.session)
	}
}
