package core

import "context"

// DispatchRequest carries a task prompt into a previously created worker
// session.
type DispatchRequest struct {
	SessionID  string
	WorkerKind string
	Profile    *ExecutionProfile
	// RecursionDisabled strips the delegation tools from the worker so a
	// background task cannot submit further delegations.
	RecursionDisabled bool
	Instructions      string
}

// Substrate abstracts the execution environment that actually runs worker
// sessions. Implementations must be safe for concurrent use. Cancel is a
// best-effort operation; callers are free to ignore its failure.
type Substrate interface {
	// CreateSession provisions a new worker session as a child of ownerScope
	// and returns its opaque handle.
	CreateSession(ctx context.Context, ownerScope, title string) (string, error)

	// Dispatch submits instructions to a session. The session executes
	// independently; completion is observed via Events.
	Dispatch(ctx context.Context, req DispatchRequest) error

	// Messages returns the transcript turns the session recorded so far.
	Messages(ctx context.Context, sessionID string) ([]Message, error)

	// Cancel stops a running session.
	Cancel(ctx context.Context, sessionID string) error

	// Parent resolves the parent scope of a session, reporting ok=false at
	// the root of the chain.
	Parent(ctx context.Context, scopeID string) (parent string, ok bool, err error)

	// Events exposes the substrate's liveness signal stream.
	Events() <-chan SubstrateEvent
}

// maxScopeDepth bounds parent-chain walks so a scope cycle cannot loop
// forever.
const maxScopeDepth = 10

// RootScope resolves the top-level ancestor of a scope by walking the parent
// chain, capped at maxScopeDepth. Resolution errors fall back to the deepest
// scope reached, so persistence always has a usable namespace.
func RootScope(ctx context.Context, sub Substrate, scope string) string {
	current := scope
	for i := 0; i < maxScopeDepth; i++ {
		parent, ok, err := sub.Parent(ctx, current)
		if err != nil || !ok || parent == "" || parent == current {
			return current
		}
		current = parent
	}
	return current
}
