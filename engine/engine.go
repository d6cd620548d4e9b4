package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kdcokenny/opencode-background-agents/core"
	"github.com/kdcokenny/opencode-background-agents/ident"
	"github.com/kdcokenny/opencode-background-agents/logging"
	"github.com/kdcokenny/opencode-background-agents/store"
	"github.com/kdcokenny/opencode-background-agents/substrate"
	"github.com/kdcokenny/opencode-background-agents/summarize"
)

// Config defines tuning parameters for the Engine's operational behavior.
//
// The defaults favor interactive use: a five minute task budget with enough
// slack that a worker finishing right at the deadline still resolves as
// complete rather than timed out.
type Config struct {
	// TaskTimeout is the wall-clock budget a delegation gets before the
	// engine forces a timeout resolution.
	TaskTimeout time.Duration

	// TimeoutSlack is added on top of TaskTimeout before the timer fires,
	// absorbing scheduling jitter between the substrate and the engine.
	TimeoutSlack time.Duration

	// PollInterval is the cadence at which blocking reads re-check for a
	// terminal result.
	PollInterval time.Duration

	// SummarizeTimeout bounds a single summarization model call. On expiry
	// the mechanical truncation fallback is used instead.
	SummarizeTimeout time.Duration

	// MaxIDAttempts bounds identifier collision re-rolls per submission.
	MaxIDAttempts int
}

// DefaultConfig provides production-ready default configuration values.
var DefaultConfig = Config{
	TaskTimeout:      5 * time.Minute,
	TimeoutSlack:     30 * time.Second,
	PollInterval:     500 * time.Millisecond,
	SummarizeTimeout: 10 * time.Second,
	MaxIDAttempts:    10,
}

// Options configures an Engine instance using the functional options
// pattern. All service dependencies have in-memory defaults so an Engine is
// usable for development and testing with zero configuration.
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// Registry is the in-memory delegation index. Defaults to a fresh
	// registry; share one only when embedding multiple engines in a process.
	Registry *core.Registry

	// Substrate runs the worker sessions. Defaults to the in-memory
	// simulator.
	Substrate core.Substrate

	// Store persists terminal result records. Defaults to the in-memory
	// store; production deployments want the filesystem or sqlite store.
	Store core.ResultStore

	// Summarizer condenses transcripts into titles and summaries. Defaults
	// to mechanical truncation.
	Summarizer summarize.Summarizer

	// Notifier delivers terminal notifications to owner scopes. Defaults to
	// a no-op.
	Notifier core.Notifier

	// Logger provides structured logging. Defaults to NoOp to ensure no
	// logging dependencies.
	Logger logging.Logger

	// GenerateID produces candidate delegation identifiers. Defaults to
	// ident.Generate.
	GenerateID func() string

	// Callbacks hooks lifecycle points for instrumentation. Optional.
	Callbacks *Callbacks
}

// Engine coordinates asynchronous task delegation end to end. Create one
// with New, call Start to begin consuming substrate events, and Stop to shut
// down.
type Engine struct {
	cfg        Config
	registry   *core.Registry
	substrate  core.Substrate
	store      core.ResultStore
	summarizer summarize.Summarizer
	notifier   core.Notifier
	logger     logging.Logger
	generateID func() string
	callbacks  *Callbacks

	timersMu sync.Mutex
	timers   map[string]*time.Timer

	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	done      chan struct{}
}

// New creates an Engine with the given functional options.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:     DefaultConfig,
		Logger:     logging.NoOpLogger{},
		GenerateID: ident.Generate,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Registry == nil {
		opts.Registry = core.NewRegistry()
	}
	if opts.Substrate == nil {
		opts.Substrate = substrate.NewInMemorySubstrate()
	}
	if opts.Store == nil {
		opts.Store = store.NewInMemoryStore()
	}
	if opts.Summarizer == nil {
		opts.Summarizer = summarize.Truncator{}
	}
	if opts.Notifier == nil {
		opts.Notifier = core.NotifierFunc(func(context.Context, core.Notification) error { return nil })
	}
	if opts.Config.PollInterval <= 0 {
		opts.Config.PollInterval = DefaultConfig.PollInterval
	}
	if opts.Config.MaxIDAttempts <= 0 {
		opts.Config.MaxIDAttempts = DefaultConfig.MaxIDAttempts
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:        opts.Config,
		registry:   opts.Registry,
		substrate:  opts.Substrate,
		store:      opts.Store,
		summarizer: opts.Summarizer,
		notifier:   opts.Notifier,
		logger:     opts.Logger,
		generateID: opts.GenerateID,
		callbacks:  opts.Callbacks,
		timers:     make(map[string]*time.Timer),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Registry exposes the engine's delegation registry for read-side consumers.
func (e *Engine) Registry() *core.Registry { return e.registry }

// Substrate exposes the engine's substrate, mainly for tests and tooling.
func (e *Engine) Substrate() core.Substrate { return e.substrate }

// Start launches the event dispatch loop. Safe to call once; subsequent
// calls are no-ops.
func (e *Engine) Start() {
	e.startOnce.Do(func() {
		go e.loop()
	})
}

// Stop terminates the dispatch loop, disarms all timeout timers and waits
// for the loop goroutine to exit. In-flight worker sessions are not
// cancelled; restart recovery happens through the durable store.
func (e *Engine) Stop() {
	e.cancel()
	e.timersMu.Lock()
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
	e.timersMu.Unlock()
	<-e.done
}

func (e *Engine) loop() {
	defer close(e.done)
	events := e.substrate.Events()
	for {
		select {
		case <-e.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev := ev.(type) {
			case core.SessionIdleEvent:
				go e.OnSessionIdle(ev.SessionID)
			case core.MessageUpdatedEvent:
				e.registry.UpdateProgress(ev.SessionID, ev.Snippet)
			}
		}
	}
}

// SubmitRequest carries everything needed to delegate one task.
type SubmitRequest struct {
	// OwnerScope identifies the submitting session.
	OwnerScope string
	// RequestID correlates the submission to the owner's current request.
	RequestID string
	// OwnerRole is the role completion notifications are delivered back as.
	OwnerRole string
	// Instructions is the opaque task prompt forwarded to the worker.
	Instructions string
	// WorkerKind names the specialist worker to run the task.
	WorkerKind string
	// Profile optionally pins the worker's execution configuration.
	Profile *core.ExecutionProfile
}

// Submit registers a new delegation and returns its identifier immediately;
// the task executes asynchronously. Submission is all-or-nothing: when
// session acquisition fails, nothing is registered and the allocated id is
// released for reuse.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if req.OwnerScope == "" {
		return "", errors.New("engine: owner scope is required")
	}
	if req.Instructions == "" {
		return "", errors.New("engine: instructions are required")
	}
	if req.WorkerKind == "" {
		return "", errors.New("engine: worker kind is required")
	}

	id, err := e.registry.Allocate(e.generateID, e.cfg.MaxIDAttempts)
	if err != nil {
		return "", fmt.Errorf("engine: allocate identifier: %w", err)
	}

	title := summarize.Truncate(req.Instructions).Title
	handle, err := e.substrate.CreateSession(ctx, req.OwnerScope, title)
	if err != nil {
		e.registry.Release(id)
		return "", fmt.Errorf("engine: create worker session: %w", err)
	}

	d := &core.Delegation{
		ID:           id,
		Handle:       handle,
		OwnerScope:   req.OwnerScope,
		RequestID:    req.RequestID,
		OwnerRole:    req.OwnerRole,
		Instructions: req.Instructions,
		WorkerKind:   req.WorkerKind,
		State:        core.StateRunning,
		StartedAt:    time.Now().UTC(),
		Profile:      req.Profile,
	}
	if err := e.registry.Insert(d); err != nil {
		return "", fmt.Errorf("engine: register delegation: %w", err)
	}

	if ensurer, ok := e.store.(core.ScopeEnsurer); ok {
		scope := core.RootScope(ctx, e.substrate, req.OwnerScope)
		if err := ensurer.EnsureScope(scope); err != nil {
			e.logger.Warn("Failed to prepare result scope", "scope", scope, "error", err)
		}
	}

	e.armTimeout(id)
	e.callbacks.submitted(*d)
	e.logger.Info("Delegation submitted", "delegation_id", id, "worker_kind", req.WorkerKind, "owner_scope", req.OwnerScope)

	go e.dispatch(*d)
	return id, nil
}

// dispatch forwards the instructions into the worker session. A dispatch
// failure resolves the delegation as an error so the owner is still
// notified exactly once.
func (e *Engine) dispatch(d core.Delegation) {
	err := e.substrate.Dispatch(e.ctx, core.DispatchRequest{
		SessionID:         d.Handle,
		WorkerKind:        d.WorkerKind,
		Profile:           d.Profile,
		RecursionDisabled: true,
		Instructions:      d.Instructions,
	})
	if err != nil {
		e.logger.Error("Dispatch failed", "delegation_id", d.ID, "error", err)
		e.resolve(d.ID, core.StateError, fmt.Sprintf("dispatch failed: %v", err))
	}
}

func (e *Engine) armTimeout(id string) {
	deadline := e.cfg.TaskTimeout + e.cfg.TimeoutSlack
	e.timersMu.Lock()
	defer e.timersMu.Unlock()
	e.timers[id] = time.AfterFunc(deadline, func() { e.onTimeout(id) })
}

func (e *Engine) disarmTimeout(id string) {
	e.timersMu.Lock()
	defer e.timersMu.Unlock()
	if t, ok := e.timers[id]; ok {
		t.Stop()
		delete(e.timers, id)
	}
}
