// Package engine implements the delegation coordinator.
//
// The Engine is the central coordination hub for background task delegation.
// It owns the full lifecycle of every delegation: identifier allocation,
// worker session acquisition and dispatch, timeout supervision, terminal
// resolution, summarization, durable result persistence and exactly-once
// owner notification.
//
// # Core Responsibilities
//
// Submission:
//   - Human-readable id allocation with bounded collision re-rolls
//   - Worker session creation and asynchronous instruction dispatch
//   - Immediate return so the owner keeps working while the task runs
//
// Lifecycle Supervision:
//   - Single dispatch loop consuming substrate liveness events
//   - Per-delegation timeout timers with best-effort worker cancellation
//   - First-terminal-transition-wins semantics; duplicate signals are no-ops
//
// Resolution:
//   - Transcript collection from the worker session
//   - Title/summary condensation with a model-free fallback
//   - Result persistence strictly before owner notification
//   - Silent progress notifications while siblings run, one triggering
//     batch notification when the owner's last pending delegation finishes
//
// # Concurrency Model
//
// The registry serializes all shared state behind a single mutex; the engine
// adds per-delegation goroutines for dispatch and resolution. Terminal
// signals may arrive concurrently from the event loop, timeout timers and
// explicit cancellation; the registry's transition guard ensures exactly one
// wins.
package engine
