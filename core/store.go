package core

import "context"

// ResultStore persists terminal delegation records keyed by (scope, id).
// Scope is the root owner scope resolved via RootScope. Implementations must
// tolerate concurrent writers for distinct ids under the same scope; no
// cross-id coordination is required. Writes are append-only per id: a record,
// once written, is only ever removed by an explicit Delete.
type ResultStore interface {
	Put(ctx context.Context, scope string, rec ResultRecord) error
	Get(ctx context.Context, scope, id string) (ResultRecord, error)
	List(ctx context.Context, scope string) ([]ResultRecord, error)
	Delete(ctx context.Context, scope, id string) error
}

// ScopeEnsurer is optionally implemented by stores that benefit from
// preparing a scope's namespace ahead of the first write, e.g. creating the
// per-scope directory at submission time.
type ScopeEnsurer interface {
	EnsureScope(scope string) error
}
