package engine

import (
	"fmt"
	"strings"

	"github.com/kdcokenny/opencode-background-agents/core"
)

// notifyTerminal applies the notification policy after a terminal
// transition. Draining the registry decides the shape exactly once:
//
//   - siblings still pending: a silent notification reporting this result
//     and the remaining count, explicitly telling the owner not to poll
//   - pending set empty: one triggering notification enumerating the whole
//     accumulated batch
//
// Cancelled delegations are excluded from the batch and produce no silent
// notification of their own, but a cancellation that empties the pending set
// still flushes the batch for its finished siblings.
func (e *Engine) notifyTerminal(d core.Delegation, to core.State) {
	includeInBatch := to != core.StateCancelled
	remaining, batch, drained := e.registry.Drain(d.ID, includeInBatch)
	if !drained {
		return
	}

	var n core.Notification
	switch {
	case remaining > 0:
		if to == core.StateCancelled {
			return
		}
		n = core.Notification{
			Kind:       core.NotificationSilent,
			OwnerScope: d.OwnerScope,
			OwnerRole:  d.OwnerRole,
			Text:       silentText(d, remaining),
		}
	case len(batch) == 0:
		// Every member of the batch was cancelled; nothing to report.
		return
	default:
		n = core.Notification{
			Kind:       core.NotificationTriggering,
			OwnerScope: d.OwnerScope,
			OwnerRole:  d.OwnerRole,
			Text:       e.batchText(batch),
		}
	}

	if err := e.notifier.Notify(e.ctx, n); err != nil {
		e.logger.Error("Notification delivery failed", "delegation_id", d.ID, "kind", string(n.Kind), "error", err)
		return
	}
	e.callbacks.notified(n)
}

// silentText renders the context-only notification sent while sibling
// delegations are still running.
func silentText(d core.Delegation, remaining int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Background task %s finished (%s): %s\n", d.ID, d.State, d.Title)
	if d.Summary != "" {
		b.WriteString(d.Summary)
		b.WriteByte('\n')
	}
	noun := "delegations"
	if remaining == 1 {
		noun = "delegation"
	}
	fmt.Fprintf(&b, "%d %s still in progress. Results will be delivered when all tasks finish; do not poll for them.", remaining, noun)
	return b.String()
}

// batchText renders the triggering notification enumerating every finished
// delegation accumulated since the owner's last batch.
func (e *Engine) batchText(batch []string) string {
	var b strings.Builder
	if len(batch) == 1 {
		b.WriteString("Background task finished:\n")
	} else {
		fmt.Fprintf(&b, "All %d background tasks finished:\n", len(batch))
	}
	for _, id := range batch {
		d, ok := e.registry.Get(id)
		if !ok {
			fmt.Fprintf(&b, "- %s\n", id)
			continue
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", d.ID, d.State, d.Title)
		if d.Summary != "" {
			fmt.Fprintf(&b, "  %s\n", d.Summary)
		}
	}
	b.WriteString("Use read_task_result with a task id to fetch the full result.")
	return b.String()
}
