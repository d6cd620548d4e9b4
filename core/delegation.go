package core

import (
	"time"

	"github.com/google/uuid"
)

// State enumerates delegation lifecycle states. A delegation starts in
// StateRunning and moves exactly once into one of the terminal states; no
// transition ever leaves a terminal state.
type State string

const (
	// StateRunning is the initial and only non-terminal state.
	StateRunning State = "running"
	// StateComplete marks a delegation whose worker session went idle.
	StateComplete State = "complete"
	// StateError marks a delegation whose dispatch failed after registration.
	StateError State = "error"
	// StateTimeout marks a delegation that exceeded the task timeout.
	StateTimeout State = "timeout"
	// StateCancelled marks a delegation stopped explicitly by its owner.
	StateCancelled State = "cancelled"
)

// Terminal reports whether the state permits no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateComplete, StateError, StateTimeout, StateCancelled:
		return true
	default:
		return false
	}
}

// Progress captures lightweight liveness information for a running
// delegation: when the worker session last produced activity and a snippet of
// its most recent message.
type Progress struct {
	LastActivity time.Time
	LastMessage  string
}

// ExecutionProfile carries execution configuration inherited from the owner
// session into the worker session, e.g. the model the owner was running with.
type ExecutionProfile struct {
	ProviderID string
	ModelID    string
}

// Delegation is the central entity: one per submitted background task. The
// Registry owns the authoritative copy; accessors return snapshots so callers
// can never mutate shared state.
type Delegation struct {
	// ID is the stable human-readable identifier, unique within the process.
	ID string
	// Handle is the opaque reference to the worker session in the substrate.
	Handle string
	// OwnerScope identifies the session that submitted the task.
	OwnerScope string
	// RequestID identifies the specific request that caused the submission.
	RequestID string
	// OwnerRole is the role notifications are delivered back as.
	OwnerRole string
	// Instructions is the opaque task prompt.
	Instructions string
	// WorkerKind names the specialist worker the task was submitted to.
	WorkerKind string

	State       State
	StartedAt   time.Time
	CompletedAt time.Time // zero until a terminal transition
	Progress    Progress
	// FailureReason is populated on the error and timeout paths.
	FailureReason string
	Profile       *ExecutionProfile

	// Title and Summary are populated after summarization on terminal paths.
	Title   string
	Summary string
}

// NewID returns a process-unique random identifier used for worker session
// handles and request correlation. Delegation ids use ident.Generate instead.
func NewID() string { return uuid.NewString() }
