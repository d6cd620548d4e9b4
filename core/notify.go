package core

import (
	"context"
	"fmt"
)

// NotificationKind distinguishes delivery semantics.
type NotificationKind string

const (
	// NotificationSilent augments the owner's context without forcing an
	// immediate response turn.
	NotificationSilent NotificationKind = "silent"
	// NotificationTriggering is delivered so the owner acts on it
	// immediately rather than merely appending context.
	NotificationTriggering NotificationKind = "triggering"
)

// Notification is a structured text block delivered to a delegation's owner
// scope after a terminal transition.
type Notification struct {
	Kind       NotificationKind
	OwnerScope string
	// OwnerRole is the capability the message must be delivered back as.
	OwnerRole string
	Text      string
}

// Notifier delivers notifications to owner scopes. Implementations decide
// how "silent" and "triggering" map onto their host runtime.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a plain function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// ChannelNotifier buffers notifications on a channel for consumers that
// select or range over them. Notify blocks when the buffer is full until the
// consumer catches up or the context is cancelled, preserving the
// exactly-once delivery contract.
type ChannelNotifier struct {
	ch chan Notification
}

// NewChannelNotifier returns a ChannelNotifier with the given buffer size.
func NewChannelNotifier(buffer int) *ChannelNotifier {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelNotifier{ch: make(chan Notification, buffer)}
}

// Notify implements Notifier.
func (n *ChannelNotifier) Notify(ctx context.Context, note Notification) error {
	select {
	case n.ch <- note:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notification dropped: %w", ctx.Err())
	}
}

// C returns the receive side of the notification channel.
func (n *ChannelNotifier) C() <-chan Notification { return n.ch }
