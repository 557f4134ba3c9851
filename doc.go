// Package shellcore implements the pipeline execution core of an interactive
// shell: buffered object streams, a goroutine-per-stage pipeline with a
// monotonic state machine, executors for synchronous and streaming
// invocation, and session-scoped cancellation routing.
//
// The root package is a thin facade. A Session bundles the pieces a host
// needs: a command table, the pipeline builder, the cancellation registry,
// and factories for the three executor flavors (top-level, nested, prompt).
// Hosts that need finer control use the subpackages directly:
//
//   - streams: buffered producer/consumer conduits between pipeline and host
//   - pipeline: stage graph, state machine, invocation, cooperative stop
//   - objects: result wrapping, coercion, error records, severe failures
//   - executor: invocation orchestration, renderer wiring, cancellation
//   - registry: session-keyed routing of cancel requests
//   - serialization: JSON and YAML object serializers for streaming hosts
//   - render: the default output renderer stage
//   - shell: command text parsing, command table, history
//
// # Quick start
//
//	session := shellcore.NewSession(commands.DefaultTable())
//	exec := session.NewExecutor()
//	results, err := exec.ExecuteCommand(ctx, "range 10 | first 3", executor.AddOutputter)
//
// Interrupt handling routes through the session so the keystroke reaches
// whichever executor is innermost at that instant:
//
//	session.CancelCurrent()
package shellcore
