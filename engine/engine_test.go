package engine_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdcokenny/opencode-background-agents/core"
	"github.com/kdcokenny/opencode-background-agents/engine"
	"github.com/kdcokenny/opencode-background-agents/internal/testutil"
	"github.com/kdcokenny/opencode-background-agents/store"
	"github.com/kdcokenny/opencode-background-agents/substrate"
	"github.com/kdcokenny/opencode-background-agents/summarize"
)

const waitFor = 3 * time.Second
const tick = 10 * time.Millisecond

type fixture struct {
	engine   *engine.Engine
	sub      *substrate.InMemorySubstrate
	store    *store.InMemoryStore
	notifier *testutil.RecordingNotifier
}

func newFixture(t *testing.T, cfgFns ...func(c *engine.Config)) *fixture {
	t.Helper()
	f := &fixture{
		sub:      substrate.NewInMemorySubstrate(),
		store:    store.NewInMemoryStore(),
		notifier: testutil.NewRecordingNotifier(),
	}
	cfg := engine.Config{
		TaskTimeout:      time.Second,
		TimeoutSlack:     100 * time.Millisecond,
		PollInterval:     5 * time.Millisecond,
		SummarizeTimeout: 100 * time.Millisecond,
		MaxIDAttempts:    10,
	}
	for _, fn := range cfgFns {
		fn(&cfg)
	}
	f.engine = engine.New(func(o *engine.Options) {
		o.Config = cfg
		o.Substrate = f.sub
		o.Store = f.store
		o.Notifier = f.notifier
	})
	f.engine.Start()
	t.Cleanup(f.engine.Stop)
	return f
}

func submit(t *testing.T, f *fixture, owner, instructions string) string {
	t.Helper()
	id, err := f.engine.Submit(context.Background(), engine.SubmitRequest{
		OwnerScope:   owner,
		RequestID:    "req-1",
		OwnerRole:    "assistant",
		Instructions: instructions,
		WorkerKind:   "coder",
	})
	require.NoError(t, err)
	require.Regexp(t, `^[a-z]+-[a-z]+-[a-z]+$`, id)
	return id
}

func TestSubmit_ReturnsImmediatelyWithReadableID(t *testing.T) {
	f := newFixture(t)
	start := time.Now()
	id := submit(t, f, "owner", "investigate the flaky watcher test")
	assert.Less(t, time.Since(start), time.Second)

	d, ok := f.engine.Registry().Get(id)
	require.True(t, ok)
	assert.Equal(t, core.StateRunning, d.State)
	assert.Equal(t, "owner", d.OwnerScope)
	assert.False(t, d.StartedAt.IsZero())
}

func TestSingleTask_CompletionDeliversOneTriggeringNotification(t *testing.T) {
	f := newFixture(t)
	f.sub.Script("coder", "Fixed the watcher race.\n\nThe init now waits for ready.", 0)

	id := submit(t, f, "owner", "fix the watcher race")

	require.Eventually(t, func() bool { return f.notifier.Count() == 1 }, waitFor, tick)
	notes := f.notifier.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, core.NotificationTriggering, notes[0].Kind)
	assert.Equal(t, "owner", notes[0].OwnerScope)
	assert.Equal(t, "assistant", notes[0].OwnerRole)
	assert.Contains(t, notes[0].Text, id)
	assert.Contains(t, notes[0].Text, "read_task_result")

	rec, err := f.engine.Read(context.Background(), "owner", id)
	require.NoError(t, err)
	assert.Equal(t, core.StateComplete, rec.State)
	assert.Contains(t, rec.Transcript, "Fixed the watcher race.")
	assert.NotEmpty(t, rec.Title)
}

func TestBatch_SilentUntilLastThenOneTriggering(t *testing.T) {
	f := newFixture(t)

	ids := make([]string, 3)
	for i := range ids {
		ids[i] = submit(t, f, "owner", fmt.Sprintf("task number %d", i))
	}

	// Finish the first two; each should produce a silent notification that
	// names the remaining count and tells the owner not to poll.
	for i := 0; i < 2; i++ {
		d, ok := f.engine.Registry().Get(ids[i])
		require.True(t, ok)
		f.sub.Complete(d.Handle, fmt.Sprintf("result %d", i))
		require.Eventually(t, func() bool { return f.notifier.Count() == i+1 }, waitFor, tick)
	}

	notes := f.notifier.Notifications()
	require.Len(t, notes, 2)
	assert.Equal(t, core.NotificationSilent, notes[0].Kind)
	assert.Contains(t, notes[0].Text, "2 delegations still in progress")
	assert.Contains(t, notes[0].Text, "do not poll")
	assert.Equal(t, core.NotificationSilent, notes[1].Kind)
	assert.Contains(t, notes[1].Text, "1 delegation still in progress")

	// The last completion flushes the whole batch in one triggering
	// notification.
	d, ok := f.engine.Registry().Get(ids[2])
	require.True(t, ok)
	f.sub.Complete(d.Handle, "result 2")
	require.Eventually(t, func() bool { return f.notifier.Count() == 3 }, waitFor, tick)

	final := f.notifier.Notifications()[2]
	assert.Equal(t, core.NotificationTriggering, final.Kind)
	for _, id := range ids {
		assert.Contains(t, final.Text, id)
	}
	assert.Contains(t, final.Text, "All 3 background tasks finished")
}

func TestTimeout_ResolvesAndCancelsWorker(t *testing.T) {
	f := newFixture(t, func(c *engine.Config) {
		c.TaskTimeout = 50 * time.Millisecond
		c.TimeoutSlack = 20 * time.Millisecond
	})

	id := submit(t, f, "owner", "run forever")
	d, ok := f.engine.Registry().Get(id)
	require.True(t, ok)

	require.Eventually(t, func() bool { return f.notifier.Count() == 1 }, waitFor, tick)

	got, ok := f.engine.Registry().Get(id)
	require.True(t, ok)
	assert.Equal(t, core.StateTimeout, got.State)
	assert.Contains(t, got.FailureReason, "timeout")
	assert.True(t, f.sub.Cancelled(d.Handle))

	rec, err := f.engine.Read(context.Background(), "owner", id)
	require.NoError(t, err)
	assert.Equal(t, core.StateTimeout, rec.State)
}

func TestDuplicateIdleSignals_NotifyExactlyOnce(t *testing.T) {
	f := newFixture(t)
	id := submit(t, f, "owner", "one shot")

	d, ok := f.engine.Registry().Get(id)
	require.True(t, ok)
	f.sub.Complete(d.Handle, "done")

	require.Eventually(t, func() bool { return f.notifier.Count() == 1 }, waitFor, tick)

	// Replayed idle signals for the same session must be absorbed.
	f.engine.OnSessionIdle(d.Handle)
	f.engine.OnSessionIdle(d.Handle)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, f.notifier.Count())
}

func TestDispatchFailure_ResolvesAsError(t *testing.T) {
	f := newFixture(t)
	f.sub.FailNextDispatch(errors.New("worker pool exhausted"))

	id := submit(t, f, "owner", "doomed task")

	require.Eventually(t, func() bool { return f.notifier.Count() == 1 }, waitFor, tick)

	rec, err := f.engine.Read(context.Background(), "owner", id)
	require.NoError(t, err)
	assert.Equal(t, core.StateError, rec.State)
	assert.Contains(t, rec.Transcript, "worker pool exhausted")
	assert.Contains(t, rec.Transcript, "Task failed before producing a result.")
}

func TestCreateSessionFailure_NothingRegistered(t *testing.T) {
	f := newFixture(t)
	f.sub.FailNextCreate(errors.New("substrate down"))

	_, err := f.engine.Submit(context.Background(), engine.SubmitRequest{
		OwnerScope:   "owner",
		Instructions: "never happens",
		WorkerKind:   "coder",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "substrate down")
	assert.Empty(t, f.engine.Registry().List())
	assert.Empty(t, f.engine.Registry().PendingIDs("owner"))
}

func TestSubmit_ValidatesRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Submit(ctx, engine.SubmitRequest{Instructions: "x", WorkerKind: "coder"})
	assert.Error(t, err)
	_, err = f.engine.Submit(ctx, engine.SubmitRequest{OwnerScope: "o", WorkerKind: "coder"})
	assert.Error(t, err)
	_, err = f.engine.Submit(ctx, engine.SubmitRequest{OwnerScope: "o", Instructions: "x"})
	assert.Error(t, err)
}

func TestRead_BlocksUntilResolution(t *testing.T) {
	f := newFixture(t)
	id := submit(t, f, "owner", "slow task")

	d, ok := f.engine.Registry().Get(id)
	require.True(t, ok)
	go func() {
		time.Sleep(50 * time.Millisecond)
		f.sub.Complete(d.Handle, "finally done")
	}()

	rec, err := f.engine.Read(context.Background(), "owner", id)
	require.NoError(t, err)
	assert.Equal(t, core.StateComplete, rec.State)
	assert.Contains(t, rec.Transcript, "finally done")
}

func TestRead_UnknownIDReturnsNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Read(context.Background(), "owner", "never-was-here")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRead_HonorsCallerContext(t *testing.T) {
	f := newFixture(t)
	id := submit(t, f, "owner", "never completes")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.engine.Read(ctx, "owner", id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCancel_RunningTaskLeavesNoRecordAndNoOwnNotification(t *testing.T) {
	f := newFixture(t)
	id := submit(t, f, "owner", "to be cancelled")
	sibling := submit(t, f, "owner", "keeps running")

	deleted, err := f.engine.Cancel(context.Background(), "owner", id)
	require.NoError(t, err)
	assert.False(t, deleted)

	d, ok := f.engine.Registry().Get(id)
	require.True(t, ok)
	assert.Equal(t, core.StateCancelled, d.State)
	assert.True(t, f.sub.Cancelled(d.Handle))

	// Cancellation is invisible to the owner: no silent notification fires.
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, f.notifier.Count())

	// The sibling's completion flushes a batch that excludes the cancelled id.
	sd, ok := f.engine.Registry().Get(sibling)
	require.True(t, ok)
	f.sub.Complete(sd.Handle, "sibling result")
	require.Eventually(t, func() bool { return f.notifier.Count() == 1 }, waitFor, tick)

	final := f.notifier.Notifications()[0]
	assert.Equal(t, core.NotificationTriggering, final.Kind)
	assert.Contains(t, final.Text, sibling)
	assert.NotContains(t, final.Text, id)
}

func TestCancel_LastPendingFlushesSiblingBatch(t *testing.T) {
	f := newFixture(t)
	first := submit(t, f, "owner", "finishes normally")
	second := submit(t, f, "owner", "gets cancelled")

	fd, ok := f.engine.Registry().Get(first)
	require.True(t, ok)
	f.sub.Complete(fd.Handle, "first result")
	require.Eventually(t, func() bool { return f.notifier.Count() == 1 }, waitFor, tick)
	assert.Equal(t, core.NotificationSilent, f.notifier.Notifications()[0].Kind)

	// Cancelling the last pending delegation must still flush the batch
	// accumulated by its finished sibling.
	_, err := f.engine.Cancel(context.Background(), "owner", second)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.notifier.Count() == 2 }, waitFor, tick)

	final := f.notifier.Notifications()[1]
	assert.Equal(t, core.NotificationTriggering, final.Kind)
	assert.Contains(t, final.Text, first)
	assert.NotContains(t, final.Text, second)
}

func TestCancel_FinishedTaskDeletesRecord(t *testing.T) {
	f := newFixture(t)
	f.sub.Script("coder", "all done", 0)
	id := submit(t, f, "owner", "quick task")
	require.Eventually(t, func() bool { return f.notifier.Count() == 1 }, waitFor, tick)

	deleted, err := f.engine.Cancel(context.Background(), "owner", id)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = f.store.Get(context.Background(), "owner", id)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCancel_UnknownIDReturnsNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Cancel(context.Background(), "owner", "never-was-here")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRead_CancelledReturnsWithoutGraceWait(t *testing.T) {
	f := newFixture(t, func(c *engine.Config) {
		c.SummarizeTimeout = 2 * time.Second
	})
	f.sub.Script("coder", "never finishes", 10*time.Second)

	id := submit(t, f, "owner", "long running refactor")
	_, err := f.engine.Cancel(context.Background(), "owner", id)
	require.NoError(t, err)

	// Cancelled delegations never persist a record, so the read must not
	// sit out the store grace window before synthesizing one.
	start := time.Now()
	rec, err := f.engine.Read(context.Background(), "owner", id)
	require.NoError(t, err)
	assert.Equal(t, core.StateCancelled, rec.State)
	assert.Equal(t, id, rec.ID)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRead_ReportsStatusWhenWaitBudgetElapses(t *testing.T) {
	f := newFixture(t, func(c *engine.Config) {
		c.TaskTimeout = 50 * time.Millisecond
		c.TimeoutSlack = 10 * time.Millisecond
	})

	// Registered directly, so no timeout timer is armed and nothing ever
	// resolves it. The read must still return deterministically.
	d := &core.Delegation{
		ID:         "stuck-amber-heron",
		Handle:     "ses_stuck",
		OwnerScope: "owner",
		WorkerKind: "coder",
		State:      core.StateRunning,
		StartedAt:  time.Now(),
	}
	require.NoError(t, f.engine.Registry().Insert(d))

	rec, err := f.engine.Read(context.Background(), "owner", d.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateRunning, rec.State)
	assert.Contains(t, rec.Transcript, "status running")
}

func TestSummarizerFailure_FallsBackToTruncation(t *testing.T) {
	f := &fixture{
		sub:      substrate.NewInMemorySubstrate(),
		store:    store.NewInMemoryStore(),
		notifier: testutil.NewRecordingNotifier(),
	}
	f.engine = engine.New(func(o *engine.Options) {
		o.Config = engine.Config{
			TaskTimeout:      time.Second,
			TimeoutSlack:     100 * time.Millisecond,
			PollInterval:     5 * time.Millisecond,
			SummarizeTimeout: 50 * time.Millisecond,
			MaxIDAttempts:    10,
		}
		o.Substrate = f.sub
		o.Store = f.store
		o.Notifier = f.notifier
		o.Summarizer = summarize.SummarizerFunc(func(context.Context, string, string) (summarize.Result, error) {
			return summarize.Result{}, errors.New("model unavailable")
		})
	})
	f.engine.Start()
	t.Cleanup(f.engine.Stop)
	f.sub.Script("coder", "The fix landed in parser.go.", 0)

	id, err := f.engine.Submit(context.Background(), engine.SubmitRequest{
		OwnerScope: "owner", Instructions: "fix it", WorkerKind: "coder",
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.notifier.Count() == 1 }, waitFor, tick)

	rec, err := f.engine.Read(context.Background(), "owner", id)
	require.NoError(t, err)
	assert.Equal(t, "The fix landed in parser.go.", rec.Title)
	assert.LessOrEqual(t, len([]rune(rec.Title)), summarize.MaxTitleLen)
}

func TestPersistHappensBeforeNotify(t *testing.T) {
	f := newFixture(t)

	var persistedAtNotify bool
	probe := core.NotifierFunc(func(ctx context.Context, n core.Notification) error {
		// The record must already be durable when the owner hears about it.
		_, err := f.store.Get(ctx, "owner", firstWordID(n.Text))
		persistedAtNotify = err == nil
		return f.notifier.Notify(ctx, n)
	})

	eng := engine.New(func(o *engine.Options) {
		o.Config = engine.Config{
			TaskTimeout:      time.Second,
			TimeoutSlack:     100 * time.Millisecond,
			PollInterval:     5 * time.Millisecond,
			SummarizeTimeout: 100 * time.Millisecond,
			MaxIDAttempts:    10,
		}
		o.Substrate = f.sub
		o.Store = f.store
		o.Notifier = probe
	})
	eng.Start()
	t.Cleanup(eng.Stop)
	f.sub.Script("coder", "persisted first", 0)

	_, err := eng.Submit(context.Background(), engine.SubmitRequest{
		OwnerScope: "owner", Instructions: "check ordering", WorkerKind: "coder",
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.notifier.Count() == 1 }, waitFor, tick)
	assert.True(t, persistedAtNotify, "record was not in the store at notification time")
}

// firstWordID pulls the delegation id out of a notification text, relying on
// the id's three-word shape.
func firstWordID(text string) string {
	for _, word := range strings.Fields(text) {
		trimmed := strings.Trim(word, ":,.()")
		if strings.Count(trimmed, "-") == 2 && trimmed == strings.ToLower(trimmed) {
			return trimmed
		}
	}
	return ""
}

func TestResultsSurviveEngineRestart(t *testing.T) {
	shared := store.NewInMemoryStore()
	sub := substrate.NewInMemorySubstrate()
	notifier := testutil.NewRecordingNotifier()

	first := engine.New(func(o *engine.Options) {
		o.Substrate = sub
		o.Store = shared
		o.Notifier = notifier
		o.Config.PollInterval = 5 * time.Millisecond
	})
	first.Start()
	sub.Script("coder", "durable result", 0)

	id, err := first.Submit(context.Background(), engine.SubmitRequest{
		OwnerScope: "owner", Instructions: "persist me", WorkerKind: "coder",
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return notifier.Count() == 1 }, waitFor, tick)
	first.Stop()

	// A fresh engine with an empty registry still serves the result from the
	// durable store.
	second := engine.New(func(o *engine.Options) {
		o.Substrate = substrate.NewInMemorySubstrate()
		o.Store = shared
		o.Config.PollInterval = 5 * time.Millisecond
	})
	second.Start()
	t.Cleanup(second.Stop)

	rec, err := second.Read(context.Background(), "owner", id)
	require.NoError(t, err)
	assert.Equal(t, core.StateComplete, rec.State)
	assert.Contains(t, rec.Transcript, "durable result")
}

func TestList_MergesStoreAndRegistry(t *testing.T) {
	f := newFixture(t)
	f.sub.Script("coder", "finished work", 0)

	done := submit(t, f, "owner", "finish fast")
	require.Eventually(t, func() bool { return f.notifier.Count() == 1 }, waitFor, tick)
	running := submit(t, f, "owner", "still going")

	recs, err := f.engine.List(context.Background(), "owner")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	byID := map[string]core.ResultRecord{}
	for _, rec := range recs {
		byID[rec.ID] = rec
	}
	assert.Equal(t, core.StateComplete, byID[done].State)
	assert.Equal(t, core.StateRunning, byID[running].State)
	assert.Equal(t, "(pending)", byID[running].Title)
}

func TestProgressEvents_UpdateRegistry(t *testing.T) {
	f := newFixture(t)
	id := submit(t, f, "owner", "long running analysis")

	d, ok := f.engine.Registry().Get(id)
	require.True(t, ok)
	f.sub.EmitProgress(d.Handle, "scanning packages")

	require.Eventually(t, func() bool {
		got, ok := f.engine.Registry().Get(id)
		return ok && got.Progress.LastMessage == "scanning packages"
	}, waitFor, tick)
}

func TestNestedScopes_PersistUnderRootScope(t *testing.T) {
	f := newFixture(t)
	f.sub.RegisterScope("child-session", "root-session")
	f.sub.Script("coder", "nested result", 0)

	id, err := f.engine.Submit(context.Background(), engine.SubmitRequest{
		OwnerScope: "child-session", Instructions: "nested task", WorkerKind: "coder",
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.notifier.Count() == 1 }, waitFor, tick)

	// The record lands under the root ancestor, and reads from the child
	// scope resolve through the same chain.
	_, err = f.store.Get(context.Background(), "root-session", id)
	require.NoError(t, err)
	rec, err := f.engine.Read(context.Background(), "child-session", id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
}

func TestCallbacks_FireAcrossLifecycle(t *testing.T) {
	sub := substrate.NewInMemorySubstrate()
	notifier := testutil.NewRecordingNotifier()

	// Resolution callbacks fire on engine goroutines; counters are atomic so
	// the polling assertions read them safely.
	var submitted, resolved, notified atomic.Int32
	eng := engine.New(func(o *engine.Options) {
		o.Substrate = sub
		o.Notifier = notifier
		o.Config.PollInterval = 5 * time.Millisecond
		o.Callbacks = &engine.Callbacks{
			OnSubmit:  func(core.Delegation) { submitted.Add(1) },
			OnResolve: func(core.Delegation, core.ResultRecord) { resolved.Add(1) },
			OnNotify:  func(core.Notification) { notified.Add(1) },
		}
	})
	eng.Start()
	t.Cleanup(eng.Stop)
	sub.Script("coder", "cb result", 0)

	_, err := eng.Submit(context.Background(), engine.SubmitRequest{
		OwnerScope: "owner", Instructions: "callbacks", WorkerKind: "coder",
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return notifier.Count() == 1 }, waitFor, tick)

	assert.Equal(t, int32(1), submitted.Load())
	require.Eventually(t, func() bool { return resolved.Load() == 1 && notified.Load() == 1 }, waitFor, tick)
}
