package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kdcokenny/opencode-background-agents/core"
)

// placeholderTitle marks listings of delegations that have not produced a
// title yet.
const placeholderTitle = "(pending)"

// Read returns the result record for a delegation. When the delegation is
// still running, Read blocks until it resolves, polling at the configured
// interval and bounded by the task budget plus slack; if that budget elapses
// first, Read returns a record carrying the delegation's current status
// rather than suspending further. An id unknown to both the registry and the
// store yields core.ErrNotFound.
//
// A short grace window covers the race between observing the terminal state
// and the record landing in the store; if the record still has not appeared
// when the window closes, a record is synthesized from the registry snapshot
// so the caller always gets something terminal.
func (e *Engine) Read(ctx context.Context, ownerScope, id string) (core.ResultRecord, error) {
	scope := core.RootScope(ctx, e.substrate, ownerScope)

	rec, err := e.store.Get(ctx, scope, id)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return core.ResultRecord{}, err
	}

	d, ok := e.registry.Get(id)
	if !ok {
		return core.ResultRecord{}, core.ErrNotFound
	}
	if d.State.Terminal() {
		return e.awaitRecord(ctx, scope, id, time.Now().Add(e.recordGrace(d)))
	}

	deadline := time.Now().Add(e.cfg.TaskTimeout + 2*e.cfg.TimeoutSlack)
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return core.ResultRecord{}, ctx.Err()
		case <-ticker.C:
			rec, err := e.store.Get(ctx, scope, id)
			if err == nil {
				return rec, nil
			}
			if !errors.Is(err, core.ErrNotFound) {
				return core.ResultRecord{}, err
			}
			d, ok := e.registry.Get(id)
			if !ok {
				return core.ResultRecord{}, core.ErrNotFound
			}
			if d.State.Terminal() {
				return e.awaitRecord(ctx, scope, id, time.Now().Add(e.recordGrace(d)))
			}
			if time.Now().After(deadline) {
				// The wait budget elapsed without a terminal transition;
				// report the current status rather than suspending further.
				return synthesizeRecord(d), nil
			}
		}
	}
}

// recordGrace bounds how long a read waits for a terminal delegation's
// record to land in the store. Cancelled delegations never persist one, so
// they get no grace window.
func (e *Engine) recordGrace(d core.Delegation) time.Duration {
	if d.State == core.StateCancelled {
		return 0
	}
	return e.cfg.SummarizeTimeout
}

// awaitRecord polls the store for a terminal delegation whose record may
// still be in flight, synthesizing one from the registry when the grace
// window closes.
func (e *Engine) awaitRecord(ctx context.Context, scope, id string, until time.Time) (core.ResultRecord, error) {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()
	for {
		rec, err := e.store.Get(ctx, scope, id)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return core.ResultRecord{}, err
		}
		if time.Now().After(until) {
			break
		}
		select {
		case <-ctx.Done():
			return core.ResultRecord{}, ctx.Err()
		case <-ticker.C:
		}
	}

	d, ok := e.registry.Get(id)
	if !ok {
		return core.ResultRecord{}, core.ErrNotFound
	}
	return synthesizeRecord(d), nil
}

// synthesizeRecord builds a result record from a registry snapshot for
// delegations that have no stored record to serve.
func synthesizeRecord(d core.Delegation) core.ResultRecord {
	body := d.Summary
	if d.FailureReason != "" {
		body = d.FailureReason
	}
	if body == "" {
		body = fmt.Sprintf("Task ended with status %s.", d.State)
	}
	return core.ResultRecord{
		ID:          d.ID,
		Title:       d.Title,
		Summary:     d.Summary,
		WorkerKind:  d.WorkerKind,
		State:       d.State,
		StartedAt:   d.StartedAt,
		CompletedAt: d.CompletedAt,
		Transcript:  body,
	}
}

// List returns every known delegation under the owner's root scope: durable
// records from the store merged with in-flight registry entries, deduplicated
// by id and sorted for stable output. Running delegations appear with their
// live state and a placeholder title until summarization fills one in.
func (e *Engine) List(ctx context.Context, ownerScope string) ([]core.ResultRecord, error) {
	scope := core.RootScope(ctx, e.substrate, ownerScope)

	recs, err := e.store.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		seen[rec.ID] = struct{}{}
	}

	for _, d := range e.registry.List() {
		if _, dup := seen[d.ID]; dup {
			continue
		}
		if core.RootScope(ctx, e.substrate, d.OwnerScope) != scope {
			continue
		}
		title := d.Title
		if title == "" {
			title = placeholderTitle
		}
		recs = append(recs, core.ResultRecord{
			ID:          d.ID,
			Title:       title,
			Summary:     d.Summary,
			WorkerKind:  d.WorkerKind,
			State:       d.State,
			StartedAt:   d.StartedAt,
			CompletedAt: d.CompletedAt,
		})
		seen[d.ID] = struct{}{}
	}

	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	return recs, nil
}

// Cancel stops a running delegation and removes its stored result, either of
// which may apply independently: cancelling an in-flight task, deleting a
// finished task's record, or both for a task that resolved mid-call. The
// returned bool reports whether a stored record was removed. An id unknown
// to both the registry and the store yields core.ErrNotFound.
func (e *Engine) Cancel(ctx context.Context, ownerScope, id string) (bool, error) {
	known := false
	if d, ok := e.registry.Get(id); ok {
		known = true
		if !d.State.Terminal() {
			if err := e.substrate.Cancel(ctx, d.Handle); err != nil {
				e.logger.Warn("Best-effort worker cancel failed", "delegation_id", id, "error", err)
			}
			e.resolve(id, core.StateCancelled, "cancelled by owner")
		}
	}

	scope := core.RootScope(ctx, e.substrate, ownerScope)
	switch err := e.store.Delete(ctx, scope, id); {
	case err == nil:
		return true, nil
	case errors.Is(err, core.ErrNotFound):
		if known {
			return false, nil
		}
		return false, core.ErrNotFound
	default:
		return false, err
	}
}
