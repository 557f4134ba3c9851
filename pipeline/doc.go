// Package pipeline implements the shell's pipeline execution state machine.
//
// A Pipeline is an ordered list of command stages plus three object streams:
// Input, Output, and Error. Stages execute concurrently, each on its own
// goroutine, connected by channels; the last stage's output lands in the
// Output stream where the host drains it.
//
// # State Machine
//
// The Pipeline follows a strict state machine:
//
//	NotStarted → Running → Completed
//	                ↓           ↑
//	            Stopping ───→ Stopped
//	                ↓
//	              Failed
//
// State transitions:
//   - NotStarted: built but not yet invoked
//   - Running: stages are executing
//   - Stopping: a stop was requested, stages are unwinding
//   - Stopped: the pipeline unwound after a stop request
//   - Completed: every stage finished normally
//   - Failed: a stage returned or raised an error
//
// Completed, Stopped, and Failed are terminal: no transition leaves them, the
// Output and Error streams close exactly once on entry, and Done is closed so
// any number of waiters (registered before or after the fact) observe
// completion without a missed wakeup.
//
// # Cancellation
//
// Stop is cooperative and idempotent. It cancels the context passed to every
// stage's Run; stages are expected to check it before consuming their next
// input object and unwind cleanly. Stop never forcibly terminates a stage.
//
// # Usage
//
//	p := pipeline.New(false)
//	p.Append(src)
//	p.Append(filter)
//
//	results, err := p.InvokeSync(ctx)
//	if err != nil {
//	    return err
//	}
package pipeline
