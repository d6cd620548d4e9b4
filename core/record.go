package core

import (
	"fmt"
	"strings"
	"time"
)

// ResultRecord is the durable artifact written for every delegation that
// reaches a persistable terminal state. Records are created once, at the
// terminal transition, and never mutated afterward; they remain the source of
// truth even after the in-memory delegation is lost to a process restart.
type ResultRecord struct {
	ID          string
	Title       string
	Summary     string
	WorkerKind  string
	State       State
	StartedAt   time.Time
	CompletedAt time.Time
	// Transcript is the raw result body, preserved verbatim.
	Transcript string
}

// recordSeparator divides the header block from the raw transcript body.
const recordSeparator = "---"

// Encode renders the record as a self-describing text document: a header
// block of "key: value" lines, the separator on its own line, then the raw
// transcript body. Header values are flattened to a single line; the body is
// written verbatim so Decode round-trips it exactly.
func (r ResultRecord) Encode() []byte {
	var b strings.Builder
	field := func(key, value string) {
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(flattenHeaderValue(value))
		b.WriteByte('\n')
	}
	field("title", r.Title)
	field("summary", r.Summary)
	field("id", r.ID)
	field("worker", r.WorkerKind)
	field("state", string(r.State))
	field("started", r.StartedAt.UTC().Format(time.RFC3339Nano))
	if !r.CompletedAt.IsZero() {
		field("completed", r.CompletedAt.UTC().Format(time.RFC3339Nano))
	}
	b.WriteString(recordSeparator)
	b.WriteByte('\n')
	b.WriteString(r.Transcript)
	return []byte(b.String())
}

// DecodeResultRecord parses a document produced by Encode. Unknown header
// keys are ignored so the layout can grow without breaking old readers.
func DecodeResultRecord(data []byte) (ResultRecord, error) {
	text := string(data)
	header, body, found := strings.Cut(text, recordSeparator+"\n")
	if !found {
		return ResultRecord{}, fmt.Errorf("malformed result record: missing %q separator", recordSeparator)
	}

	var rec ResultRecord
	for _, line := range strings.Split(header, "\n") {
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		switch key {
		case "title":
			rec.Title = value
		case "summary":
			rec.Summary = value
		case "id":
			rec.ID = value
		case "worker":
			rec.WorkerKind = value
		case "state":
			rec.State = State(value)
		case "started":
			if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
				rec.StartedAt = t
			}
		case "completed":
			if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
				rec.CompletedAt = t
			}
		}
	}
	rec.Transcript = body
	return rec, nil
}

// flattenHeaderValue keeps header values on a single line.
func flattenHeaderValue(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
