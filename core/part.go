package core

import "strings"

// Part represents a polymorphic segment of worker message content. Concrete
// part types implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text string
}

func (TextPart) isPart() {}

// ToolPart records a tool invocation the worker performed while working.
// Kept for transcript fidelity; excluded from transcript text extraction.
type ToolPart struct {
	Name   string
	Status string
}

func (ToolPart) isPart() {}

// FilePart references a file the worker attached to a message.
type FilePart struct {
	Name     string
	MimeType string
	URL      string
}

func (FilePart) isPart() {}

// Message is a role-attributed turn of a worker session transcript.
type Message struct {
	Role  string
	Parts []Part
}

// EmptyTranscript is the defined placeholder for a worker session that
// finished without producing any assistant text.
const EmptyTranscript = "(task completed with no output)"

// TranscriptText extracts the result text of a worker session: the text-kind
// parts of the last assistant-authored message, concatenated in order. When
// there is no assistant message, or its parts carry no text, the
// EmptyTranscript placeholder is returned.
func TranscriptText(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != "assistant" {
			continue
		}
		var b strings.Builder
		for _, p := range msgs[i].Parts {
			if tp, ok := p.(TextPart); ok {
				b.WriteString(tp.Text)
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
		break
	}
	return EmptyTranscript
}
