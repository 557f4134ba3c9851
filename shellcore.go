package shellcore

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/smnsjas/go-shellcore/executor"
	"github.com/smnsjas/go-shellcore/pipeline"
	"github.com/smnsjas/go-shellcore/registry"
	"github.com/smnsjas/go-shellcore/render"
	"github.com/smnsjas/go-shellcore/shell"
)

// Session ties one interactive session's executors together: they share a
// command table, a builder (and thus a history), a cancellation registry
// slot, and an output destination.
type Session struct {
	id      uuid.UUID
	builder *shell.Builder
	reg     *registry.Registry
	out     io.Writer
	logger  *log.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithOutput directs rendered output to w instead of standard output.
func WithOutput(w io.Writer) SessionOption {
	return func(s *Session) {
		s.out = w
	}
}

// WithSessionLogger sets the logger passed to every executor the session
// creates.
func WithSessionLogger(l *log.Logger) SessionOption {
	return func(s *Session) {
		s.logger = l
	}
}

// WithRegistry shares a cancellation registry across sessions. Without it
// each session gets its own.
func WithRegistry(reg *registry.Registry) SessionOption {
	return func(s *Session) {
		s.reg = reg
	}
}

// NewSession creates a Session resolving command names against table.
func NewSession(table *shell.CommandTable, opts ...SessionOption) *Session {
	s := &Session{
		id:      uuid.New(),
		builder: shell.NewBuilder(table),
		out:     os.Stdout,
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.reg == nil {
		s.reg = registry.New()
	}
	return s
}

// ID returns the session identifier used as the cancellation routing key.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// History returns the session's invocation history.
func (s *Session) History() *shell.History {
	return s.builder.History()
}

// Registry returns the session's cancellation registry.
func (s *Session) Registry() *registry.Registry {
	return s.reg
}

// NewExecutor creates a top-level executor for the session.
func (s *Session) NewExecutor(opts ...executor.Option) *executor.Executor {
	return executor.New(s.builder, s.reg, s.id, s.executorOptions(opts)...)
}

// NewNestedExecutor creates an executor for pipelines run under a suspended
// outer pipeline, such as tab completion or confirmation sub-shells.
func (s *Session) NewNestedExecutor(opts ...executor.Option) *executor.Executor {
	opts = append(opts, executor.WithNestedPipelines())
	return executor.New(s.builder, s.reg, s.id, s.executorOptions(opts)...)
}

// NewPromptExecutor creates a nested executor for evaluating the host prompt.
// Cancelling it waits a short grace period so a prompt about to finish is not
// visibly truncated.
func (s *Session) NewPromptExecutor(opts ...executor.Option) *executor.Executor {
	opts = append(opts, executor.WithNestedPipelines(), executor.ForPromptFunction())
	return executor.New(s.builder, s.reg, s.id, s.executorOptions(opts)...)
}

// CancelCurrent cancels whichever of the session's executors is currently
// innermost. With nothing running it is a no-op. This is the interrupt
// keystroke's entry point.
func (s *Session) CancelCurrent() {
	s.reg.CancelCurrent(s.id)
}

func (s *Session) executorOptions(opts []executor.Option) []executor.Option {
	base := []executor.Option{
		executor.WithLogger(s.logger),
		executor.WithOutputter(func() pipeline.Command {
			return render.NewOutDefault(s.out)
		}),
	}
	return append(base, opts...)
}
