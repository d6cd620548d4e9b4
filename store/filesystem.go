package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kdcokenny/opencode-background-agents/core"
)

// resultExt is the filename extension for persisted result documents.
const resultExt = ".md"

// FilesystemStore persists result records as plain-text files, one per
// delegation, grouped in per-scope directories:
//
//	<root>/<scope>/<id>.md
//
// Files are written atomically (temp file + rename) so a crash mid-write
// never leaves a truncated record behind. The layout is deliberately
// human-browsable; records can be read and deleted with ordinary shell tools
// without confusing the store.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore creates a store rooted at dir, creating it if needed.
func NewFilesystemStore(dir string) (*FilesystemStore, error) {
	if dir == "" {
		return nil, errors.New("store: root directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create root %s: %w", dir, err)
	}
	return &FilesystemStore{root: dir}, nil
}

// Root returns the store's base directory.
func (s *FilesystemStore) Root() string { return s.root }

// EnsureScope creates the per-scope directory ahead of the first write.
func (s *FilesystemStore) EnsureScope(scope string) error {
	if err := os.MkdirAll(s.scopeDir(scope), 0o755); err != nil {
		return fmt.Errorf("store: ensure scope %s: %w", scope, err)
	}
	return nil
}

// Put writes the encoded record for (scope, rec.ID), overwriting any
// previous document for the same id.
func (s *FilesystemStore) Put(_ context.Context, scope string, rec core.ResultRecord) error {
	dir := s.scopeDir(scope)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: ensure scope %s: %w", scope, err)
	}
	target := filepath.Join(dir, sanitize(rec.ID)+resultExt)
	tmp, err := os.CreateTemp(dir, "."+sanitize(rec.ID)+".tmp-*")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	if _, err := tmp.Write(rec.Encode()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("store: write record %s: %w", rec.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: publish record %s: %w", rec.ID, err)
	}
	return nil
}

// Get reads and decodes the record for (scope, id) or returns
// core.ErrNotFound.
func (s *FilesystemStore) Get(_ context.Context, scope, id string) (core.ResultRecord, error) {
	data, err := os.ReadFile(s.recordPath(scope, id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return core.ResultRecord{}, core.ErrNotFound
		}
		return core.ResultRecord{}, fmt.Errorf("store: read record %s: %w", id, err)
	}
	rec, err := core.DecodeResultRecord(data)
	if err != nil {
		return core.ResultRecord{}, fmt.Errorf("store: decode record %s: %w", id, err)
	}
	return rec, nil
}

// List returns every record under the scope sorted by id. A missing scope
// directory yields an empty slice, not an error.
func (s *FilesystemStore) List(_ context.Context, scope string) ([]core.ResultRecord, error) {
	entries, err := os.ReadDir(s.scopeDir(scope))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []core.ResultRecord{}, nil
		}
		return nil, fmt.Errorf("store: list scope %s: %w", scope, err)
	}
	recs := make([]core.ResultRecord, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, resultExt) || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.scopeDir(scope), name))
		if err != nil {
			return nil, fmt.Errorf("store: read record %s: %w", name, err)
		}
		rec, err := core.DecodeResultRecord(data)
		if err != nil {
			// Skip foreign files dropped into the directory.
			continue
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	return recs, nil
}

// Delete removes the record for (scope, id) or returns core.ErrNotFound.
func (s *FilesystemStore) Delete(_ context.Context, scope, id string) error {
	err := os.Remove(s.recordPath(scope, id))
	if errors.Is(err, fs.ErrNotExist) {
		return core.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: delete record %s: %w", id, err)
	}
	return nil
}

func (s *FilesystemStore) scopeDir(scope string) string {
	return filepath.Join(s.root, sanitize(scope))
}

func (s *FilesystemStore) recordPath(scope, id string) string {
	return filepath.Join(s.scopeDir(scope), sanitize(id)+resultExt)
}

// sanitize keeps scope and id values safe as single path components.
func sanitize(v string) string {
	v = strings.ReplaceAll(v, string(os.PathSeparator), "_")
	v = strings.ReplaceAll(v, "/", "_")
	v = strings.ReplaceAll(v, "..", "_")
	if v == "" {
		return "_"
	}
	return v
}
