package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/smnsjas/go-shellcore/objects"
	"github.com/smnsjas/go-shellcore/streams"
)

var (
	// ErrInvalidState is returned when an operation is attempted in an invalid state.
	ErrInvalidState = errors.New("invalid pipeline state")
)

// State represents the current state of a Pipeline.
type State int

const (
	// StateNotStarted indicates the pipeline has not been invoked yet.
	StateNotStarted State = iota
	// StateRunning indicates the pipeline is currently executing.
	StateRunning
	// StateStopping indicates the pipeline is in the process of stopping.
	StateStopping
	// StateStopped indicates the pipeline has been stopped.
	StateStopped
	// StateCompleted indicates the pipeline completed successfully.
	StateCompleted
	// StateFailed indicates the pipeline failed with an error.
	StateFailed
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NotStarted"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateCompleted || s == StateFailed
}

// FlowControl is the boundary to a remote pipeline's transport. The executor
// uses it to drain queued data and suspend or resume delivery; the transport's
// buffering and retry behavior are outside this core.
type FlowControl interface {
	// DrainPending synchronously delivers any already-queued incoming data.
	DrainPending() error
	// SuspendDelivery instructs the transport to stop delivering data.
	SuspendDelivery() error
	// ResumeDelivery instructs the transport to resume delivering data.
	ResumeDelivery() error
}

// Pipeline represents one shell command invocation: an ordered list of
// stages plus Input, Output, and Error streams. A Pipeline is built once,
// invoked once, and never reused.
type Pipeline struct {
	mu sync.RWMutex

	id     uuid.UUID
	stages []*Stage
	state  State
	reason error
	nested bool

	input  *streams.Stream
	output *streams.Stream
	errs   *streams.Stream

	remote FlowControl

	invoked  bool
	doneCh   chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates an empty Pipeline in StateNotStarted. nested marks a pipeline
// created while an outer pipeline is suspended (prompt evaluation, tab
// completion, confirmation sub-shells).
func New(nested bool) *Pipeline {
	return &Pipeline{
		id:     uuid.New(),
		state:  StateNotStarted,
		nested: nested,
		input:  streams.New(),
		output: streams.New(),
		errs:   streams.New(),
		doneCh: make(chan struct{}),
		stopCh: make(chan struct{}),
	}
}

// NewFailed creates a Pipeline already in StateFailed carrying reason.
// The command-graph builder returns one of these when construction fails,
// so failures surface through the pipeline's own state rather than a
// separate error path. Invoking it reports reason.
func NewFailed(reason error) *Pipeline {
	p := New(false)
	p.state = StateFailed
	p.reason = reason
	p.input.Close()
	p.output.Close()
	p.errs.Close()
	close(p.doneCh)
	return p
}

// Append adds a stage running cmd at the end of the pipeline and returns it
// so the caller can set its flags. Appending after invocation is a
// programming error and panics.
func (p *Pipeline) Append(cmd Command) *Stage {
	return p.InsertStage(-1, cmd)
}

// InsertStage adds a stage running cmd at the given position (or at the end
// when index is negative or past the tail) and returns it. Inserting after
// invocation is a programming error and panics.
func (p *Pipeline) InsertStage(index int, cmd Command) *Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.invoked || p.state != StateNotStarted {
		panic("pipeline: stage list is immutable once invoked")
	}

	st := &Stage{Command: cmd, Parameters: make(map[string]interface{})}
	if index < 0 || index >= len(p.stages) {
		p.stages = append(p.stages, st)
	} else {
		p.stages = append(p.stages[:index], append([]*Stage{st}, p.stages[index:]...)...)
	}
	for i, s := range p.stages {
		s.Ordinal = i
	}
	return st
}

// ID returns the unique identifier of the pipeline.
func (p *Pipeline) ID() uuid.UUID {
	return p.id
}

// State returns the current state of the pipeline.
func (p *Pipeline) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Reason returns the terminal failure reason, or nil. A stopped pipeline has
// no reason: cancellation is not an error.
func (p *Pipeline) Reason() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.reason
}

// Nested reports whether the pipeline was created while an outer pipeline
// was suspended.
func (p *Pipeline) Nested() bool {
	return p.nested
}

// Stages returns the pipeline's stages in execution order.
func (p *Pipeline) Stages() []*Stage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Stage, len(p.stages))
	copy(out, p.stages)
	return out
}

// Input returns the pipeline's external input stream. The host writes
// objects for the first stage here and must close it when done; the pipeline
// closes it itself on completion or stop.
func (p *Pipeline) Input() *streams.Stream {
	return p.input
}

// Output returns the pipeline's output stream.
func (p *Pipeline) Output() *streams.Stream {
	return p.output
}

// Errors returns the pipeline's error stream.
func (p *Pipeline) Errors() *streams.Stream {
	return p.errs
}

// SetFlowControl attaches a remote transport's flow control surface, marking
// the pipeline remote. Must be called before invocation.
func (p *Pipeline) SetFlowControl(fc FlowControl) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remote = fc
}

// FlowControl returns the remote flow control surface, or nil for a local
// pipeline.
func (p *Pipeline) FlowControl() FlowControl {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.remote
}

// IsRemote reports whether the pipeline's underlying transport is remote.
func (p *Pipeline) IsRemote() bool {
	return p.FlowControl() != nil
}

// Done returns a channel closed exactly once when the pipeline reaches a
// terminal state. A waiter registering after completion still observes the
// closed channel; there is no missed wakeup.
func (p *Pipeline) Done() <-chan struct{} {
	return p.doneCh
}

// Wait blocks until the pipeline reaches a terminal state and returns the
// failure reason, or nil for Completed and Stopped.
func (p *Pipeline) Wait() error {
	<-p.doneCh
	return p.Reason()
}

// InvokeSync runs every stage to completion on the calling goroutine's watch
// and returns the full output collection. A Failed pipeline returns its
// reason; a Stopped pipeline returns the objects produced before the stop
// with no error.
func (p *Pipeline) InvokeSync(ctx context.Context) ([]interface{}, error) {
	if err := p.begin(); err != nil {
		return nil, err
	}
	p.run(ctx)

	if p.State() == StateFailed {
		return nil, p.Reason()
	}
	return p.output.NonBlockingRead(), nil
}

// InvokeAsync launches stage execution on its own goroutine and returns
// immediately. Completion is observed via Done or Wait; output is drained
// through the Output and Error streams while the pipeline runs.
func (p *Pipeline) InvokeAsync(ctx context.Context) error {
	if err := p.begin(); err != nil {
		return err
	}
	go p.run(ctx)
	return nil
}

// Stop requests a cooperative stop. Stages observe the request at their next
// safe point and unwind without processing further input. Stop is idempotent
// and a no-op on a pipeline that is not running.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if p.state != StateRunning && p.state != StateStopping {
		p.mu.Unlock()
		return
	}
	p.state = StateStopping
	p.mu.Unlock()

	p.stopOnce.Do(func() { close(p.stopCh) })
}

// begin performs the NotStarted → Running transition. A pipeline that the
// builder created already Failed reports its construction reason; any other
// state is an invalid second invocation.
func (p *Pipeline) begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case StateNotStarted:
		p.state = StateRunning
		p.invoked = true
		return nil
	case StateFailed:
		if !p.invoked {
			return p.reason
		}
		return fmt.Errorf("%w: pipeline already failed", ErrInvalidState)
	default:
		return fmt.Errorf("%w: pipeline is %s", ErrInvalidState, p.state)
	}
}

// run executes every stage concurrently and settles the terminal state.
// It runs on the caller's goroutine for InvokeSync and on a dedicated one
// for InvokeAsync.
func (p *Pipeline) run(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Wake a feeder blocked on the input stream once the pipeline unwinds.
	go func() {
		select {
		case <-p.stopCh:
			cancel()
		case <-runCtx.Done():
		}
		p.input.Close()
	}()

	first := make(chan interface{})
	go p.feedInput(runCtx, first)

	var (
		wg      sync.WaitGroup
		failMu  sync.Mutex
		failure error
	)
	fail := func(err error) {
		failMu.Lock()
		if failure == nil && err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrStopped) {
			failure = err
		}
		failMu.Unlock()
		cancel()
	}

	stages := p.Stages()
	in := (<-chan interface{})(first)
	for i, st := range stages {
		var next chan interface{}
		if i < len(stages)-1 {
			next = make(chan interface{})
		}
		em := &Emitter{
			ctx:        runCtx,
			pipelineID: p.id,
			stage:      st,
			next:       next,
			output:     p.output,
			errs:       p.errs,
		}

		wg.Add(1)
		go func(st *Stage, in <-chan interface{}, next chan interface{}, em *Emitter) {
			defer wg.Done()
			if next != nil {
				defer close(next)
			}
			// Unblock the upstream stage if this one stopped reading early.
			// Registered before the recover handler so the handler runs first
			// on a panic and cancels the run context; draining a still-live
			// upstream under an uncancelled context would never return.
			defer drainChannel(in)
			defer func() {
				if r := recover(); r != nil {
					err := panicError(r)
					cancel()
					if objects.IsSevere(err) {
						// Unrecoverable conditions are never captured as a
						// pipeline failure.
						panic(r)
					}
					fail(err)
				}
			}()

			if err := st.Command.Run(runCtx, in, em); err != nil {
				fail(err)
			}
		}(st, in, next, em)

		in = next
	}

	wg.Wait()
	cancel()

	stopRequested := false
	select {
	case <-p.stopCh:
		stopRequested = true
	default:
	}

	failMu.Lock()
	reason := failure
	failMu.Unlock()

	switch {
	case reason != nil:
		p.transition(StateFailed, reason)
	case stopRequested || ctx.Err() != nil:
		p.transition(StateStopped, nil)
	default:
		p.transition(StateCompleted, nil)
	}
}

// feedInput moves externally supplied input objects into the first stage.
// It exits when the input stream is closed and drained, or when the
// pipeline unwinds.
func (p *Pipeline) feedInput(ctx context.Context, first chan<- interface{}) {
	defer close(first)
	for {
		objs := p.input.BlockingRead()
		if len(objs) == 0 {
			return
		}
		for _, obj := range objs {
			select {
			case first <- obj:
			case <-ctx.Done():
				return
			}
		}
	}
}

// transition settles a terminal state, closing the streams and the done
// channel exactly once. Later transitions are ignored.
func (p *Pipeline) transition(state State, reason error) {
	p.mu.Lock()
	if p.state.Terminal() {
		p.mu.Unlock()
		return
	}
	p.state = state
	p.reason = reason
	p.mu.Unlock()

	p.input.Close()
	p.output.Close()
	p.errs.Close()
	close(p.doneCh)
}

func drainChannel(in <-chan interface{}) {
	if in == nil {
		return
	}
	for range in {
	}
}

func panicError(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("stage panic: %v", r)
}
