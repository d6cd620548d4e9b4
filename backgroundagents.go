// Package backgroundagents provides a high-level façade over the delegation
// engine and its service abstractions (substrate, result store, summarizer,
// notifier & logging) enabling background task delegation from an interactive
// session. Most applications interact with this package by:
//  1. Creating a Coordinator via New() (optionally overriding default in-memory services)
//  2. Exposing its Tools() to the owner session's model
//  3. Consuming Notifications() to relay completion messages to the owner
//
// The façade delegates lifecycle orchestration to engine.Engine while keeping
// setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply a durable
// result store, a real substrate and a structured logger.
package backgroundagents

import (
	"context"

	"github.com/kdcokenny/opencode-background-agents/core"
	"github.com/kdcokenny/opencode-background-agents/engine"
	"github.com/kdcokenny/opencode-background-agents/logging"
	"github.com/kdcokenny/opencode-background-agents/summarize"
	"github.com/kdcokenny/opencode-background-agents/tool"
)

// Options configures the Coordinator instance.
type Options struct {
	// EngineConfig carries timeout, polling and allocation parameters.
	EngineConfig engine.Config

	// Substrate runs the worker sessions (defaults to the in-memory
	// simulator if not provided).
	Substrate core.Substrate

	// Store persists terminal results (defaults to in-memory).
	Store core.ResultStore

	// Summarizer condenses transcripts (defaults to mechanical truncation).
	Summarizer summarize.Summarizer

	// NotificationBuffer sizes the internal notification channel.
	NotificationBuffer int

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Coordinator is the high-level façade aggregating the underlying engine and
// services. Notifications are buffered on an internal channel; consume them
// via Notifications.
type Coordinator struct {
	opts     Options
	engine   *engine.Engine
	notifier *core.ChannelNotifier
}

// New creates a Coordinator with optional overrides. Any unset service is
// initialized with an in-memory implementation. The coordinator's engine is
// started; call Close when done.
func New(optFns ...func(o *Options)) *Coordinator {
	opts := Options{
		EngineConfig:       engine.DefaultConfig,
		NotificationBuffer: 16,
		Logger:             logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	notifier := core.NewChannelNotifier(opts.NotificationBuffer)
	eng := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Substrate = opts.Substrate
		o.Store = opts.Store
		o.Summarizer = opts.Summarizer
		o.Notifier = notifier
		o.Logger = opts.Logger
	})
	eng.Start()

	return &Coordinator{opts: opts, engine: eng, notifier: notifier}
}

// Engine exposes the underlying engine for advanced use.
func (c *Coordinator) Engine() *engine.Engine { return c.engine }

// Tools returns the delegation tool set to expose to the owner session.
func (c *Coordinator) Tools() []tool.Tool { return tool.Tools(c.engine) }

// Notifications returns the stream of terminal notifications. The consumer
// must keep draining it; deliveries block once the buffer fills.
func (c *Coordinator) Notifications() <-chan core.Notification { return c.notifier.C() }

// Submit delegates a task and returns its identifier immediately.
func (c *Coordinator) Submit(ctx context.Context, req engine.SubmitRequest) (string, error) {
	return c.engine.Submit(ctx, req)
}

// Read returns a delegation's result record, blocking while it is running.
func (c *Coordinator) Read(ctx context.Context, ownerScope, id string) (core.ResultRecord, error) {
	return c.engine.Read(ctx, ownerScope, id)
}

// List returns every known delegation under the owner's root scope.
func (c *Coordinator) List(ctx context.Context, ownerScope string) ([]core.ResultRecord, error) {
	return c.engine.List(ctx, ownerScope)
}

// Cancel stops a running delegation and removes its stored result.
func (c *Coordinator) Cancel(ctx context.Context, ownerScope, id string) (bool, error) {
	return c.engine.Cancel(ctx, ownerScope, id)
}

// Close shuts the engine down.
func (c *Coordinator) Close() { c.engine.Stop() }
