// Package core provides the foundational domain types used by ThreadLoop.
// It defines the core abstractions for:
//
//   - Messages (the closed set of conversation log entries)
//   - ConversationState (immutable per-thread state: log, fields, step count)
//   - StreamEvent (the ordered event stream observed during a turn)
//   - StepLimiter (per-turn model call budget)
//   - ToolContext (scoped execution surface handed to tools)
//
// The package intentionally keeps implementation concerns (persistence,
// model transports, orchestration) out of scope, exposing small value types
// so backends and transports can be swapped freely.
package core
