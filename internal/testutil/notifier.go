package testutil

import (
	"context"
	"sync"

	"github.com/kdcokenny/opencode-background-agents/core"
)

// RecordingNotifier captures every notification for later assertion. Safe
// for concurrent use; the engine notifies from resolution goroutines.
type RecordingNotifier struct {
	mu    sync.Mutex
	notes []core.Notification
	fail  error
	// signal is closed and replaced on every delivery so tests can wait
	// without polling.
	signal chan struct{}
}

// NewRecordingNotifier returns an empty recorder.
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{signal: make(chan struct{})}
}

// Notify implements core.Notifier.
func (r *RecordingNotifier) Notify(_ context.Context, n core.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.notes = append(r.notes, n)
	close(r.signal)
	r.signal = make(chan struct{})
	return nil
}

// Notifications returns a snapshot of everything delivered so far.
func (r *RecordingNotifier) Notifications() []core.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.Notification, len(r.notes))
	copy(out, r.notes)
	return out
}

// Count returns the number of deliveries so far.
func (r *RecordingNotifier) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notes)
}

// Wait returns a channel closed at the next delivery after the call.
func (r *RecordingNotifier) Wait() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.signal
}

// FailWith makes all subsequent deliveries return err.
func (r *RecordingNotifier) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = err
}
