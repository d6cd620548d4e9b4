// Package summarize condenses a finished delegation's transcript into the
// short title and summary carried by notifications and result listings.
//
// The Summarizer interface is pluggable: the anthropic and openai subpackages
// provide model-backed implementations, while Truncator gives a dependency
// free fallback that the engine also uses whenever a model call fails. A
// summarization failure must never block a delegation from resolving.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// MaxTitleLen bounds the title carried in notifications and listings.
	MaxTitleLen = 30
	// MaxSummaryLen bounds the one-line summary.
	MaxSummaryLen = 150
)

// Result is a condensed description of a finished delegation.
type Result struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Summarizer condenses a transcript. The instructions give the original task
// so the summary can relate outcome to intent.
type Summarizer interface {
	Summarize(ctx context.Context, instructions, transcript string) (Result, error)
}

// SummarizerFunc adapts a function to the Summarizer interface.
type SummarizerFunc func(ctx context.Context, instructions, transcript string) (Result, error)

// Summarize calls the wrapped function.
func (f SummarizerFunc) Summarize(ctx context.Context, instructions, transcript string) (Result, error) {
	return f(ctx, instructions, transcript)
}

// Truncator is the model-free Summarizer: it derives the title from the first
// non-blank transcript line and the summary from the leading characters.
// Always succeeds.
type Truncator struct{}

// Summarize implements Summarizer.
func (Truncator) Summarize(_ context.Context, _, transcript string) (Result, error) {
	return Truncate(transcript), nil
}

// Truncate derives a Result mechanically from the transcript.
func Truncate(transcript string) Result {
	title := ""
	for _, line := range strings.Split(transcript, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			title = line
			break
		}
	}
	summary := strings.TrimSpace(strings.Join(strings.Fields(transcript), " "))
	return Clamp(Result{Title: title, Summary: summary})
}

// Clamp enforces the length bounds on both fields, cutting on a rune
// boundary.
func Clamp(r Result) Result {
	r.Title = clip(r.Title, MaxTitleLen)
	r.Summary = clip(r.Summary, MaxSummaryLen)
	return r
}

func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// ParseResult extracts a Result from a model reply. The providers ask for a
// bare JSON object; replies wrapped in prose or code fences are tolerated by
// scanning for the outermost braces.
func ParseResult(raw string) (Result, error) {
	var r Result
	if err := json.Unmarshal([]byte(raw), &r); err == nil && (r.Title != "" || r.Summary != "") {
		return Clamp(r), nil
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(raw[start:end+1]), &r); err == nil && (r.Title != "" || r.Summary != "") {
			return Clamp(r), nil
		}
	}
	return Result{}, fmt.Errorf("summarize: reply carries no usable result: %q", clip(raw, 80))
}

// Prompt renders the instruction sent to model-backed summarizers. Shared by
// the provider subpackages so both ask for the same JSON shape.
func Prompt(instructions, transcript string) string {
	var b strings.Builder
	b.WriteString("Condense the finished background task below.\n")
	fmt.Fprintf(&b, "Reply with only a JSON object: {\"title\": ..., \"summary\": ...}. ")
	fmt.Fprintf(&b, "The title must be at most %d characters, the summary at most %d characters, both single-line.\n\n", MaxTitleLen, MaxSummaryLen)
	b.WriteString("Task instructions:\n")
	b.WriteString(instructions)
	b.WriteString("\n\nTask result:\n")
	b.WriteString(transcript)
	return b.String()
}
