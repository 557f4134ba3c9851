// Package executor orchestrates single pipeline invocations.
//
// An Executor owns at most one live pipeline at a time. It builds the
// pipeline from command text through the command-graph builder, applies the
// stage wiring policy (error merging and default renderer insertion),
// registers itself for cancellation routing, invokes the pipeline, collects
// or forwards results, and unconditionally cleans up - clearing the pipeline
// reference, restoring the previously current executor, and resetting
// transient host state - on every outcome including failure.
//
// # Synchronous vs asynchronous invocation
//
// ExecuteCommand runs the pipeline on the calling goroutine's watch and
// returns the collected output. ExecuteCommandAsync streams output and error
// objects to external serializers while the pipeline runs on its own
// goroutine, optionally feeding the pipeline's input from an external
// deserializer; the call still blocks until the pipeline reaches a terminal
// state, so the asynchrony is internal pipelining, not a non-blocking API.
//
// # Cancellation
//
// Cancel is safe to call from any goroutine, is idempotent per invocation,
// and requests a cooperative stop of the held pipeline. An executor built
// with ForPromptFunction waits a short, configurable grace period first so a
// prompt evaluation about to finish is not visibly truncated.
package executor
