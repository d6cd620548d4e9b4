// Package anthropic provides a summarize.Summarizer backed by the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kdcokenny/opencode-background-agents/summarize"
)

// Options configures the Anthropic summarizer (model id, max tokens, API
// key). Extend via functional options to preserve stability.
type Options struct {
	Model     anthropic.Model
	MaxTokens int64
	APIKey    string
}

// Summarizer condenses transcripts with a Claude model.
type Summarizer struct {
	client *anthropic.Client
	opts   Options
}

// New creates a summarizer using the official client.
func New(optFns ...func(o *Options)) *Summarizer {
	opts := Options{
		Model:     anthropic.ModelClaude3_5Haiku20241022,
		MaxTokens: 256,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Summarizer{client: &client, opts: opts}
}

// NewFromClient creates a summarizer from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Summarizer {
	opts := Options{
		Model:     anthropic.ModelClaude3_5Haiku20241022,
		MaxTokens: 256,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Summarizer{client: client, opts: opts}
}

// Summarize implements summarize.Summarizer.
func (s *Summarizer) Summarize(ctx context.Context, instructions, transcript string) (summarize.Result, error) {
	resp, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     s.opts.Model,
		MaxTokens: s.opts.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(summarize.Prompt(instructions, transcript))),
		},
	})
	if err != nil {
		return summarize.Result{}, fmt.Errorf("anthropic api error: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}
	return summarize.ParseResult(b.String())
}

var _ summarize.Summarizer = (*Summarizer)(nil)
