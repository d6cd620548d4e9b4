// Package substrate provides execution-environment implementations for
// running worker sessions. The in-memory substrate simulates sessions inside
// the current process, which is enough for tests, examples and the demo
// command; a production deployment plugs in a substrate that drives real
// worker processes.
package substrate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kdcokenny/opencode-background-agents/core"
)

// eventBuffer sizes the event channel. Emission never blocks; events beyond
// the buffer are dropped, matching the lossy liveness-signal contract.
const eventBuffer = 64

type session struct {
	ownerScope string
	title      string
	workerKind string
	messages   []core.Message
	dispatched bool
	cancelled  bool
}

// script drives automatic completion of sessions dispatched for a worker
// kind.
type script struct {
	transcript string
	delay      time.Duration
}

// InMemorySubstrate simulates worker sessions in-process. Sessions either
// complete automatically via Script, or manually via Complete / EmitIdle,
// giving tests full control over timing.
type InMemorySubstrate struct {
	mu       sync.Mutex
	sessions map[string]*session
	parents  map[string]string
	scripts  map[string]script
	events   chan core.SubstrateEvent

	failNextCreate   error
	failNextDispatch error
	failNextMessages error
	failNextCancel   error
}

// NewInMemorySubstrate returns an empty substrate with a buffered event
// stream.
func NewInMemorySubstrate() *InMemorySubstrate {
	return &InMemorySubstrate{
		sessions: make(map[string]*session),
		parents:  make(map[string]string),
		scripts:  make(map[string]script),
		events:   make(chan core.SubstrateEvent, eventBuffer),
	}
}

// CreateSession provisions a new simulated session under ownerScope.
func (s *InMemorySubstrate) CreateSession(_ context.Context, ownerScope, title string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failNextCreate; err != nil {
		s.failNextCreate = nil
		return "", err
	}
	id := "ses_" + core.NewID()
	s.sessions[id] = &session{ownerScope: ownerScope, title: title}
	s.parents[id] = ownerScope
	return id, nil
}

// Dispatch records the instructions as a user turn and, when a script is
// registered for the worker kind, schedules automatic completion.
func (s *InMemorySubstrate) Dispatch(_ context.Context, req core.DispatchRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failNextDispatch; err != nil {
		s.failNextDispatch = nil
		return err
	}
	ses, ok := s.sessions[req.SessionID]
	if !ok {
		return fmt.Errorf("substrate: unknown session %s", req.SessionID)
	}
	ses.workerKind = req.WorkerKind
	ses.dispatched = true
	ses.messages = append(ses.messages, core.Message{
		Role:  "user",
		Parts: []core.Part{core.TextPart{Text: req.Instructions}},
	})

	if sc, ok := s.scripts[req.WorkerKind]; ok {
		sessionID := req.SessionID
		go func() {
			if sc.delay > 0 {
				time.Sleep(sc.delay)
			}
			s.Complete(sessionID, sc.transcript)
		}()
	}
	return nil
}

// Messages returns a snapshot of the session transcript.
func (s *InMemorySubstrate) Messages(_ context.Context, sessionID string) ([]core.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failNextMessages; err != nil {
		s.failNextMessages = nil
		return nil, err
	}
	ses, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("substrate: unknown session %s", sessionID)
	}
	out := make([]core.Message, len(ses.messages))
	copy(out, ses.messages)
	return out, nil
}

// Cancel marks the session cancelled. Cancelled sessions stop producing
// events.
func (s *InMemorySubstrate) Cancel(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failNextCancel; err != nil {
		s.failNextCancel = nil
		return err
	}
	ses, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("substrate: unknown session %s", sessionID)
	}
	ses.cancelled = true
	return nil
}

// Parent resolves scope parentage registered via RegisterScope or implied by
// CreateSession.
func (s *InMemorySubstrate) Parent(_ context.Context, scopeID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parent, ok := s.parents[scopeID]
	return parent, ok, nil
}

// Events exposes the substrate's event stream.
func (s *InMemorySubstrate) Events() <-chan core.SubstrateEvent {
	return s.events
}

// Script registers an automatic completion for every session dispatched with
// the worker kind: after delay the transcript is appended as the assistant
// turn and an idle event fires.
func (s *InMemorySubstrate) Script(workerKind, transcript string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[workerKind] = script{transcript: transcript, delay: delay}
}

// Complete finishes a session manually: the transcript becomes the final
// assistant turn and an idle event is emitted. Cancelled sessions are left
// untouched.
func (s *InMemorySubstrate) Complete(sessionID, transcript string) {
	s.mu.Lock()
	ses, ok := s.sessions[sessionID]
	if !ok || ses.cancelled {
		s.mu.Unlock()
		return
	}
	ses.messages = append(ses.messages, core.Message{
		Role:  "assistant",
		Parts: []core.Part{core.TextPart{Text: transcript}},
	})
	s.mu.Unlock()
	s.emit(core.SessionIdleEvent{SessionID: sessionID})
}

// EmitIdle fires an idle event for the session without touching its
// transcript.
func (s *InMemorySubstrate) EmitIdle(sessionID string) {
	s.emit(core.SessionIdleEvent{SessionID: sessionID})
}

// EmitProgress fires a progress event carrying a snippet of recent output.
func (s *InMemorySubstrate) EmitProgress(sessionID, snippet string) {
	s.emit(core.MessageUpdatedEvent{SessionID: sessionID, Snippet: snippet, At: time.Now().UTC()})
}

// RegisterScope declares a parent for an externally known scope, letting
// tests build multi-level scope chains.
func (s *InMemorySubstrate) RegisterScope(scopeID, parent string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parents[scopeID] = parent
}

// Cancelled reports whether Cancel was called for the session.
func (s *InMemorySubstrate) Cancelled(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ses, ok := s.sessions[sessionID]
	return ok && ses.cancelled
}

// Dispatched reports whether the session received instructions.
func (s *InMemorySubstrate) Dispatched(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ses, ok := s.sessions[sessionID]
	return ok && ses.dispatched
}

// FailNextCreate makes the next CreateSession call return err.
func (s *InMemorySubstrate) FailNextCreate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNextCreate = err
}

// FailNextDispatch makes the next Dispatch call return err.
func (s *InMemorySubstrate) FailNextDispatch(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNextDispatch = err
}

// FailNextMessages makes the next Messages call return err.
func (s *InMemorySubstrate) FailNextMessages(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNextMessages = err
}

// FailNextCancel makes the next Cancel call return err.
func (s *InMemorySubstrate) FailNextCancel(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNextCancel = err
}

func (s *InMemorySubstrate) emit(ev core.SubstrateEvent) {
	select {
	case s.events <- ev:
	default:
	}
}

var _ core.Substrate = (*InMemorySubstrate)(nil)
