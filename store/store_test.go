package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kdcokenny/opencode-background-agents/core"
)

func sampleRecord(id string) core.ResultRecord {
	return core.ResultRecord{
		ID:          id,
		Title:       "Refactor parser",
		Summary:     "Split the tokenizer out of the parser package.",
		WorkerKind:  "coder",
		State:       core.StateComplete,
		StartedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		CompletedAt: time.Date(2026, 3, 1, 10, 4, 30, 0, time.UTC),
		Transcript:  "Done.\n\nMoved lexing into internal/lex.",
	}
}

func TestFilesystemStore_RoundTrip(t *testing.T) {
	s, err := NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	rec := sampleRecord("brisk-amber-heron")
	if err := s.Put(ctx, "root-scope", rec); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Get(ctx, "root-scope", rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != rec.Title || got.Transcript != rec.Transcript || got.State != rec.State {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
}

func TestFilesystemStore_GetMissing(t *testing.T) {
	s, err := NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	_, err = s.Get(context.Background(), "scope", "quiet-jade-otter")
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFilesystemStore_ListSortsAndSkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFilesystemStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	for _, id := range []string{"swift-teal-wren", "bold-onyx-lynx"} {
		if err := s.Put(ctx, "scope", sampleRecord(id)); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}
	// A stray file without the record layout must not break listing.
	if err := os.WriteFile(filepath.Join(dir, "scope", "notes.md"), []byte("scratch"), 0o644); err != nil {
		t.Fatalf("write stray file: %v", err)
	}

	recs, err := s.List(ctx, "scope")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].ID != "bold-onyx-lynx" || recs[1].ID != "swift-teal-wren" {
		t.Fatalf("records not sorted by id: %v, %v", recs[0].ID, recs[1].ID)
	}
}

func TestFilesystemStore_ListMissingScope(t *testing.T) {
	s, err := NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	recs, err := s.List(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected empty list, got %d records", len(recs))
	}
}

func TestFilesystemStore_Delete(t *testing.T) {
	s, err := NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	rec := sampleRecord("keen-ruby-fox")
	if err := s.Put(ctx, "scope", rec); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Delete(ctx, "scope", rec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "scope", rec.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete should report ErrNotFound, got %v", err)
	}
}

func TestFilesystemStore_EnsureScope(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFilesystemStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := s.EnsureScope("early-scope"); err != nil {
		t.Fatalf("ensure scope: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "early-scope")); err != nil {
		t.Fatalf("scope directory missing: %v", err)
	}
}

func TestFilesystemStore_SanitizesPathComponents(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFilesystemStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	rec := sampleRecord("odd/../id")
	if err := s.Put(ctx, "ses/../../etc", rec); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Get(ctx, "ses/../../etc", rec.ID)
	if err != nil {
		t.Fatalf("get after sanitized put: %v", err)
	}
	if got.ID != rec.ID {
		t.Fatalf("id mismatch: %q", got.ID)
	}
	// Nothing may have escaped the store root.
	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "etc")); err == nil {
		t.Fatal("record escaped the store root")
	}
}

func TestInMemoryStore_RoundTrip(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	rec := sampleRecord("spry-coral-ibis")
	if err := s.Put(ctx, "scope", rec); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Get(ctx, "scope", rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != rec {
		t.Fatalf("round-trip mismatch: %+v", got)
	}

	if _, err := s.Get(ctx, "scope", "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, "scope", rec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "scope", rec.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete should report ErrNotFound, got %v", err)
	}
}
