// Package trace is the diagnostic sink of the instrumentation pipeline.
//
// # Architecture
//
// Events flow into a Tracer:
//
//   - Nop: zero-overhead tracer when disabled
//   - StreamTracer: writes each event immediately (file/stderr)
//   - RingTracer: keeps the last N events in memory, used by tests and crash dumps
//   - MultiTracer: fans out to several tracers
//
// # Levels
//
//   - LevelOff: nothing
//   - LevelError: only error events
//   - LevelPhase: driver and pass boundaries, one-time setup
//   - LevelDetail: per-method events (instrumented, skipped)
//   - LevelDebug: everything including individual inserted nodes
//
// # Scopes
//
//   - ScopeDriver: the batch run over one image
//   - ScopePass: pass construction, global and module setup
//   - ScopeMethod: one method compilation
//   - ScopeNode: one synthesized node
//
// # Context Propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	t := trace.FromContext(ctx)
//
//	span := trace.Begin(t, trace.ScopeMethod, "instrument", parentID)
//	defer span.End("")
package trace
