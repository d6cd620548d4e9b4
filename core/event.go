package core

import "time"

// SubstrateEvent is the closed set of liveness signals a substrate emits
// about its worker sessions. The engine consumes the stream in a single
// dispatch loop, decoupling the substrate's callback shape from internal
// state transitions. The unexported marker keeps the set closed, mirroring
// content Parts.
type SubstrateEvent interface{ isSubstrateEvent() }

// SessionIdleEvent signals that a worker session stopped producing work and
// its transcript can be collected.
type SessionIdleEvent struct {
	SessionID string
}

func (SessionIdleEvent) isSubstrateEvent() {}

// MessageUpdatedEvent signals incremental progress on a running session.
type MessageUpdatedEvent struct {
	SessionID string
	Snippet   string
	At        time.Time
}

func (MessageUpdatedEvent) isSubstrateEvent() {}
