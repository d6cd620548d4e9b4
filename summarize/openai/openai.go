// Package openai provides a summarize.Summarizer backed by the OpenAI Chat
// Completions API.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/kdcokenny/opencode-background-agents/summarize"
)

// Options configures the OpenAI summarizer. Fields mirror a minimal subset of
// Chat Completion parameters; extend via functional options without breaking
// callers.
type Options struct {
	Model               string
	MaxCompletionTokens int64
}

// Summarizer condenses transcripts with an OpenAI chat model.
type Summarizer struct {
	client *openai.Client
	opts   Options
}

// New creates a summarizer using the official client.
func New(optFns ...func(o *Options)) *Summarizer {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a summarizer from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Summarizer {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		MaxCompletionTokens: 256,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Summarizer{client: client, opts: opts}
}

// Summarize implements summarize.Summarizer.
func (s *Summarizer) Summarize(ctx context.Context, instructions, transcript string) (summarize.Result, error) {
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               s.opts.Model,
		MaxCompletionTokens: openai.Int(s.opts.MaxCompletionTokens),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(summarize.Prompt(instructions, transcript)),
		},
	})
	if err != nil {
		return summarize.Result{}, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return summarize.Result{}, fmt.Errorf("no choices returned")
	}
	return summarize.ParseResult(resp.Choices[0].Message.Content)
}

var _ summarize.Summarizer = (*Summarizer)(nil)
