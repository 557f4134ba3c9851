package pipeline

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/smnsjas/go-shellcore/objects"
	"github.com/smnsjas/go-shellcore/streams"
)

// ErrStopped is returned from Emitter methods once the pipeline is unwinding.
// A command receiving it should return promptly without emitting further
// objects.
var ErrStopped = errors.New("pipeline stopped")

// Command is the contract a stage implementation fulfils. Run consumes
// objects from in (closed when the previous stage finishes) and produces
// results through out. Run must observe ctx before consuming each input
// object and return promptly on cancellation.
type Command interface {
	// Name identifies the command in error records and logs.
	Name() string
	// Run executes the command until input is exhausted, an error occurs,
	// or ctx is cancelled.
	Run(ctx context.Context, in <-chan interface{}, out *Emitter) error
}

// Stage is one command position in a pipeline.
type Stage struct {
	// Ordinal is the stage's position in the pipeline, starting at zero.
	// Maintained by the pipeline as stages are appended or inserted.
	Ordinal int

	// Command is the stage implementation.
	Command Command

	// Parameters holds the declared parameter bindings for the stage.
	Parameters map[string]interface{}

	// EndOfStatement marks the last stage of a statement. The executor
	// inserts a default renderer after each such stage when several
	// statements share one invocation.
	EndOfStatement bool

	// MergeError routes the stage's error records into its output instead
	// of the pipeline's Error stream.
	MergeError bool
}

// Emitter is handed to a running command for producing output and error
// objects. Intermediate stages feed the next stage's input channel; the last
// stage feeds the pipeline's Output stream.
type Emitter struct {
	ctx        context.Context
	pipelineID uuid.UUID
	stage      *Stage
	next       chan<- interface{}
	output     *streams.Stream
	errs       *streams.Stream
}

// Emit produces one output object. It returns ErrStopped once the pipeline
// is unwinding.
func (e *Emitter) Emit(obj interface{}) error {
	if e.next != nil {
		select {
		case e.next <- obj:
			return nil
		case <-e.ctx.Done():
			return ErrStopped
		}
	}
	if err := e.output.Write(obj); err != nil {
		return ErrStopped
	}
	return nil
}

// EmitError records a non-terminating error from the stage. The error is
// wrapped in an ErrorRecord and written to the pipeline's Error stream, or
// into the output flow when the stage is marked MergeError.
func (e *Emitter) EmitError(err error) error {
	rec := objects.NewErrorRecord(err, e.stage.Command.Name(), e.pipelineID)
	if e.stage.MergeError {
		return e.Emit(rec)
	}
	if werr := e.errs.Write(rec); werr != nil {
		return ErrStopped
	}
	return nil
}

// PipelineID returns the ID of the pipeline the stage belongs to.
func (e *Emitter) PipelineID() uuid.UUID {
	return e.pipelineID
}
