package engine

import (
	"context"
	"fmt"

	"github.com/kdcokenny/opencode-background-agents/core"
	"github.com/kdcokenny/opencode-background-agents/summarize"
)

// OnSessionIdle handles the substrate's idle signal for a worker session:
// the delegation owning the session resolves as complete. Unknown handles
// and already-terminal delegations are ignored, so foreign sessions and late
// signals are harmless.
func (e *Engine) OnSessionIdle(sessionID string) {
	d, ok := e.registry.ByHandle(sessionID)
	if !ok || d.State.Terminal() {
		return
	}
	e.resolve(d.ID, core.StateComplete, "")
}

// onTimeout fires when a delegation exceeds its task budget. The worker is
// cancelled best-effort; the resolution proceeds regardless of whether the
// cancel reached the substrate.
func (e *Engine) onTimeout(id string) {
	d, ok := e.registry.Get(id)
	if !ok || d.State.Terminal() {
		return
	}
	if err := e.substrate.Cancel(e.ctx, d.Handle); err != nil {
		e.logger.Warn("Best-effort cancel of timed-out worker failed", "delegation_id", id, "error", err)
	}
	e.resolve(id, core.StateTimeout, fmt.Sprintf("task exceeded the %s timeout", e.cfg.TaskTimeout))
}

// resolve applies the terminal transition for a delegation and runs the full
// resolution pipeline: transcript collection, summarization, persistence and
// notification, strictly in that order. The registry's transition guard
// makes resolve idempotent; whichever signal arrives first wins and every
// later call returns immediately.
func (e *Engine) resolve(id string, to core.State, failureReason string) {
	if !e.registry.Transition(id, to, failureReason) {
		return
	}
	e.disarmTimeout(id)

	d, ok := e.registry.Get(id)
	if !ok {
		return
	}

	transcript := e.collectTranscript(d, to)
	res := e.summarizeResult(d, to, transcript)
	e.registry.SetResult(id, res.Title, res.Summary)

	rec := core.ResultRecord{
		ID:          d.ID,
		Title:       res.Title,
		Summary:     res.Summary,
		WorkerKind:  d.WorkerKind,
		State:       to,
		StartedAt:   d.StartedAt,
		CompletedAt: d.CompletedAt,
		Transcript:  transcript,
	}

	// Cancelled delegations leave no record behind; every other terminal
	// state persists before the owner hears about it.
	if to != core.StateCancelled {
		scope := core.RootScope(e.ctx, e.substrate, d.OwnerScope)
		if err := e.store.Put(e.ctx, scope, rec); err != nil {
			e.logger.Error("Failed to persist result record", "delegation_id", id, "scope", scope, "error", err)
		}
	}

	d.Title = res.Title
	d.Summary = res.Summary
	e.callbacks.resolved(d, rec)
	e.logger.Info("Delegation resolved",
		"delegation_id", id, "state", string(to), "runtime", d.CompletedAt.Sub(d.StartedAt))

	e.notifyTerminal(d, to)
}

// collectTranscript gathers the worker's result text for the terminal state.
// Error resolutions never reach the substrate, so they synthesize a body
// from the failure reason; transcript fetch failures degrade to a
// placeholder rather than blocking resolution.
func (e *Engine) collectTranscript(d core.Delegation, to core.State) string {
	if to == core.StateError {
		return fmt.Sprintf("Task failed before producing a result.\n\nError: %s", d.FailureReason)
	}
	msgs, err := e.substrate.Messages(e.ctx, d.Handle)
	if err != nil {
		e.logger.Warn("Transcript unavailable", "delegation_id", d.ID, "error", err)
		return fmt.Sprintf("(transcript unavailable: %v)", err)
	}
	return core.TranscriptText(msgs)
}

// summarizeResult condenses the transcript. Only transcripts with real
// worker output go through the configured summarizer; failure-path bodies
// are truncated mechanically. Summarizer errors fall back to truncation so
// resolution never stalls on a model call.
func (e *Engine) summarizeResult(d core.Delegation, to core.State, transcript string) summarize.Result {
	if to != core.StateComplete && to != core.StateTimeout {
		return summarize.Truncate(transcript)
	}
	ctx, cancel := context.WithTimeout(e.ctx, e.cfg.SummarizeTimeout)
	defer cancel()
	res, err := e.summarizer.Summarize(ctx, d.Instructions, transcript)
	if err != nil {
		e.logger.Warn("Summarization failed, falling back to truncation", "delegation_id", d.ID, "error", err)
		return summarize.Truncate(transcript)
	}
	return summarize.Clamp(res)
}
