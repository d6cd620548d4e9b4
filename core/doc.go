// Package core provides the foundational domain types and contracts for
// background task delegation. It defines:
//
//   - Delegations (submitted tasks tracked through a one-way lifecycle to a
//     terminal state)
//   - The Registry (single-writer in-memory source of truth for in-flight and
//     recently terminal delegations, pending sets and notification batches)
//   - Worker messages with polymorphic content Parts and transcript extraction
//   - Typed substrate events consumed by the engine's dispatch loop
//   - Pluggable contracts for the execution substrate, result persistence and
//     owner notification
//
// The package intentionally keeps implementation concerns (file stores, the
// orchestration engine, concrete substrates) out of scope, exposing small
// interfaces so backends can be swapped without touching calling code.
package core
