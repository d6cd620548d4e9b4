package engine

import "github.com/kdcokenny/opencode-background-agents/core"

// Callbacks hooks the engine's lifecycle points for instrumentation without
// modifying core logic. All fields are optional; nil hooks are skipped.
// Hooks run synchronously on the engine's goroutines, so they must be fast
// and must not call back into the engine.
type Callbacks struct {
	// OnSubmit fires after a delegation is registered and its worker session
	// dispatched.
	OnSubmit func(d core.Delegation)

	// OnResolve fires after a delegation reaches a terminal state, with the
	// result record that was (or would have been) persisted.
	OnResolve func(d core.Delegation, rec core.ResultRecord)

	// OnNotify fires after a notification was handed to the notifier.
	OnNotify func(n core.Notification)
}

func (c *Callbacks) submitted(d core.Delegation) {
	if c != nil && c.OnSubmit != nil {
		c.OnSubmit(d)
	}
}

func (c *Callbacks) resolved(d core.Delegation, rec core.ResultRecord) {
	if c != nil && c.OnResolve != nil {
		c.OnResolve(d, rec)
	}
}

func (c *Callbacks) notified(n core.Notification) {
	if c != nil && c.OnNotify != nil {
		c.OnNotify(n)
	}
}
