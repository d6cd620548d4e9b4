package core

import "context"

// ToolContext carries the owner-side call metadata a tool invocation needs:
// which session is asking, which request triggered the call, what role the
// reply must be delivered as and the execution configuration to inherit.
type ToolContext struct {
	Context    context.Context
	OwnerScope string
	RequestID  string
	OwnerRole  string
	Profile    *ExecutionProfile
}
