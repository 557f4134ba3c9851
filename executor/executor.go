package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/smnsjas/go-shellcore/objects"
	"github.com/smnsjas/go-shellcore/pipeline"
	"github.com/smnsjas/go-shellcore/registry"
	"github.com/smnsjas/go-shellcore/render"
)

// DefaultPromptCancelGrace is how long a prompt-function executor waits for
// the pipeline to finish on its own before stopping it. The exact duration
// is not load-bearing; it only has to be long enough that a prompt about to
// complete is not visibly truncated.
const DefaultPromptCancelGrace = 100 * time.Millisecond

// Options are the recognized execution flags. They are orthogonal and
// combine via bitwise union.
type Options uint32

const (
	// AddOutputter wires a default renderer into the pipeline.
	AddOutputter Options = 1 << iota
	// AddToHistory records the invocation text.
	AddToHistory
	// ReadInputObjects feeds external input into the pipeline before
	// closing its input stream.
	ReadInputObjects
)

// GraphBuilder is the external command-graph builder. Construction failures
// surface as the returned pipeline's own Failed state, never as a separate
// error.
type GraphBuilder interface {
	Build(text string, addToHistory, nested bool) *pipeline.Pipeline
}

// OutputterFactory supplies a fresh default-renderer stage. A new instance
// is created per insertion point.
type OutputterFactory func() pipeline.Command

// Executor orchestrates one pipeline invocation at a time.
type Executor struct {
	mu        sync.Mutex
	pip       *pipeline.Pipeline
	cancelled bool

	usesNestedPipelines      bool
	isPromptFunctionExecutor bool
	promptCancelGrace        time.Duration

	builder   GraphBuilder
	reg       *registry.Registry
	session   uuid.UUID
	outputter OutputterFactory
	resetHook func()
	logger    *log.Logger

	// stopFn issues the stop request to a pipeline; replaceable in tests.
	stopFn func(*pipeline.Pipeline)
}

// Option configures an Executor.
type Option func(*Executor)

// WithNestedPipelines marks the executor as running nested pipelines
// (prompt evaluation, tab completion, confirmation sub-shells). Asynchronous
// invocation is forbidden on such an executor.
func WithNestedPipelines() Option {
	return func(e *Executor) {
		e.usesNestedPipelines = true
	}
}

// ForPromptFunction marks the executor as evaluating the host prompt, which
// delays cancellation by the prompt cancel grace period.
func ForPromptFunction() Option {
	return func(e *Executor) {
		e.isPromptFunctionExecutor = true
	}
}

// WithPromptCancelGrace overrides the prompt cancellation grace period.
func WithPromptCancelGrace(d time.Duration) Option {
	return func(e *Executor) {
		e.promptCancelGrace = d
	}
}

// WithOutputter overrides the default renderer factory.
func WithOutputter(f OutputterFactory) Option {
	return func(e *Executor) {
		e.outputter = f
	}
}

// WithResetHook registers a function run on every Reset, used by hosts to
// clear transient UI state such as progress indicators.
func WithResetHook(fn func()) Option {
	return func(e *Executor) {
		e.resetHook = fn
	}
}

// WithLogger sets the executor's logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// New creates an Executor that builds pipelines with builder and routes
// cancellation through reg under the given session.
func New(builder GraphBuilder, reg *registry.Registry, session uuid.UUID, opts ...Option) *Executor {
	e := &Executor{
		builder:           builder,
		reg:               reg,
		session:           session,
		promptCancelGrace: DefaultPromptCancelGrace,
		outputter: func() pipeline.Command {
			return render.NewOutDefault(os.Stdout)
		},
		logger: log.New(io.Discard),
		stopFn: (*pipeline.Pipeline).Stop,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// UsesNestedPipelines reports whether the executor runs nested pipelines.
func (e *Executor) UsesNestedPipelines() bool {
	return e.usesNestedPipelines
}

// Pipeline returns the currently held pipeline, or nil when idle.
func (e *Executor) Pipeline() *pipeline.Pipeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pip
}

// ExecuteCommand builds a pipeline from text, invokes it synchronously, and
// returns the collected output. Stage failures come back as the error value;
// severe failures propagate as a panic instead of being captured.
func (e *Executor) ExecuteCommand(ctx context.Context, text string, opts Options) ([]interface{}, error) {
	return e.ExecuteCommandWithInput(ctx, text, opts, nil)
}

// ExecuteCommandWithInput is ExecuteCommand with external input objects
// written to the pipeline's input stream before invocation.
func (e *Executor) ExecuteCommandWithInput(ctx context.Context, text string, opts Options, input []interface{}) ([]interface{}, error) {
	p := e.builder.Build(text, opts&AddToHistory != 0, e.usesNestedPipelines)
	if opts&AddOutputter != 0 {
		e.wireOutputter(p)
	}

	guard := e.reg.Enter(e.session, e)
	e.attach(p)
	defer func() {
		// Cleanup runs on every outcome, panic included.
		e.Reset()
		guard.Exit()
	}()

	for _, obj := range input {
		if err := p.Input().Write(obj); err != nil {
			break
		}
	}
	p.Input().Close()

	e.logger.Debug("invoking pipeline", "id", p.ID(), "stages", len(p.Stages()), "nested", p.Nested())
	results, err := p.InvokeSync(ctx)
	if err != nil {
		if objects.IsSevere(err) {
			panic(err)
		}
		e.logger.Debug("pipeline failed", "id", p.ID(), "err", err)
		return nil, err
	}
	e.logger.Debug("pipeline finished", "id", p.ID(), "state", p.State(), "results", len(results))
	return results, nil
}

// ExecuteCommandString invokes text and coerces the first result object to a
// string: one layer of wrapping is removed and the value's native string
// conversion applies.
func (e *Executor) ExecuteCommandString(ctx context.Context, text string, opts Options) (string, error) {
	results, err := e.ExecuteCommand(ctx, text, opts)
	if err != nil {
		return "", err
	}
	return objects.CoerceString(results), nil
}

// ExecuteCommandBool invokes text and coerces the result to a boolean: more
// than one result object is true, otherwise truthiness rules apply to the
// single result.
func (e *Executor) ExecuteCommandBool(ctx context.Context, text string, opts Options) (bool, error) {
	results, err := e.ExecuteCommand(ctx, text, opts)
	if err != nil {
		return false, err
	}
	return objects.CoerceBool(results), nil
}

// Cancel requests cancellation of the held pipeline. With no pipeline held,
// or when already cancelled, it is a no-op. A prompt-function executor first
// waits the grace period; a pipeline completing within it is not stopped.
func (e *Executor) Cancel() {
	e.mu.Lock()
	if e.pip == nil || e.cancelled {
		e.mu.Unlock()
		return
	}
	e.cancelled = true
	p := e.pip
	grace := time.Duration(0)
	if e.isPromptFunctionExecutor {
		grace = e.promptCancelGrace
	}
	e.mu.Unlock()

	// The stop request happens outside the instance lock: stopping may take
	// bounded time and must not block other executor operations.
	if grace > 0 {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-p.Done():
			e.logger.Debug("cancel skipped, pipeline finished within grace", "id", p.ID())
			return
		case <-timer.C:
		}
	}
	e.logger.Debug("stopping pipeline", "id", p.ID())
	e.stopFn(p)
}

// Reset returns the executor to its idle state: the pipeline reference is
// cleared, the cancelled flag dropped, and the host reset hook run.
func (e *Executor) Reset() {
	e.mu.Lock()
	e.pip = nil
	e.cancelled = false
	e.mu.Unlock()

	if e.resetHook != nil {
		e.resetHook()
	}
}

// BlockCommandOutput drains a remote pipeline's queued incoming data and
// suspends further delivery. A local pipeline, or no pipeline, is a no-op.
func (e *Executor) BlockCommandOutput() error {
	fc := e.remoteFlowControl()
	if fc == nil {
		return nil
	}
	if err := fc.DrainPending(); err != nil {
		return fmt.Errorf("drain pending output: %w", err)
	}
	if err := fc.SuspendDelivery(); err != nil {
		return fmt.Errorf("suspend output delivery: %w", err)
	}
	return nil
}

// ResumeCommandOutput resumes a remote pipeline's data delivery after
// BlockCommandOutput.
func (e *Executor) ResumeCommandOutput() error {
	fc := e.remoteFlowControl()
	if fc == nil {
		return nil
	}
	if err := fc.ResumeDelivery(); err != nil {
		return fmt.Errorf("resume output delivery: %w", err)
	}
	return nil
}

func (e *Executor) remoteFlowControl() pipeline.FlowControl {
	e.mu.Lock()
	p := e.pip
	e.mu.Unlock()
	if p == nil || !p.IsRemote() {
		return nil
	}
	return p.FlowControl()
}

// attach stores the pipeline reference. Holding a second live pipeline is a
// programming error, not a recoverable condition.
func (e *Executor) attach(p *pipeline.Pipeline) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pip != nil {
		panic("executor: invocation while a pipeline is still held")
	}
	e.pip = p
}

// wireOutputter applies the renderer wiring policy. A pipeline with fewer
// than two stages gets its sole stage's errors merged into output and a
// renderer appended. Otherwise a renderer follows every end-of-statement
// stage, plus one at the very end unless the last stage already renders.
func (e *Executor) wireOutputter(p *pipeline.Pipeline) {
	// A pipeline the builder already failed has nothing to render; invoking
	// it surfaces the construction reason.
	if p.State() != pipeline.StateNotStarted {
		return
	}

	stages := p.Stages()
	if len(stages) < 2 {
		if len(stages) == 1 {
			stages[0].MergeError = true
		}
		p.Append(e.outputter())
		return
	}

	rendererName := e.outputter().Name()
	inserted := 0
	for i, st := range stages {
		if st.EndOfStatement {
			p.InsertStage(i+1+inserted, e.outputter())
			inserted++
		}
	}

	all := p.Stages()
	if all[len(all)-1].Command.Name() != rendererName {
		p.Append(e.outputter())
	}
}
