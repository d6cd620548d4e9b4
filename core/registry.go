package core

import (
	"sync"
	"time"
)

// Registry is the in-memory source of truth for all in-flight and recently
// terminal delegations. Every mutation is serialized behind a single mutex so
// near-simultaneous terminal signals for different ids can never lose updates
// on a shared pending set.
//
// Contract:
//   - An id reserved via Allocate is invisible to reads but blocks reuse
//     until Insert or Release.
//   - Transition applies at most one terminal transition per delegation.
//   - Drain removes an id from its owner's pending set exactly once and
//     atomically decides whether the owner's batch is complete.
//   - Accessors return snapshot copies, never internal pointers.
type Registry struct {
	mu       sync.Mutex
	byID     map[string]*Delegation
	byHandle map[string]string
	reserved map[string]struct{}
	// pending tracks not-yet-drained ids per owner scope.
	pending map[string]map[string]struct{}
	// batch accumulates ids that reached a notification-worthy terminal state
	// since the owner's last triggering notification.
	batch map[string][]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[string]*Delegation),
		byHandle: make(map[string]string),
		reserved: make(map[string]struct{}),
		pending:  make(map[string]map[string]struct{}),
		batch:    make(map[string][]string),
	}
}

// Allocate rolls generate until it yields an id unknown to the registry and
// reserves it for a subsequent Insert. Collisions are re-rolled before
// insertion, never after; maxAttempts consecutive collisions fail with
// ErrAllocationExhausted.
func (r *Registry) Allocate(generate func() string, maxAttempts int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < maxAttempts; i++ {
		id := generate()
		if _, taken := r.byID[id]; taken {
			continue
		}
		if _, taken := r.reserved[id]; taken {
			continue
		}
		r.reserved[id] = struct{}{}
		return id, nil
	}
	return "", ErrAllocationExhausted
}

// Release drops a reservation without inserting, used when worker session
// acquisition fails after the id was already allocated.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reserved, id)
}

// Insert records a delegation, indexes its execution handle and adds its id
// to the owner's pending set. Inserting an id that is already registered
// fails with ErrDuplicateID.
func (r *Registry) Insert(d *Delegation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byID[d.ID]; taken {
		return ErrDuplicateID
	}
	delete(r.reserved, d.ID)
	cp := *d
	r.byID[d.ID] = &cp
	if cp.Handle != "" {
		r.byHandle[cp.Handle] = cp.ID
	}
	set, ok := r.pending[cp.OwnerScope]
	if !ok {
		set = make(map[string]struct{})
		r.pending[cp.OwnerScope] = set
	}
	set[cp.ID] = struct{}{}
	return nil
}

// Has reports whether an id is registered or reserved.
func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; ok {
		return true
	}
	_, ok := r.reserved[id]
	return ok
}

// Get returns a snapshot of the delegation with the given id.
func (r *Registry) Get(id string) (Delegation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[id]
	if !ok {
		return Delegation{}, false
	}
	return *d, true
}

// ByHandle resolves an execution handle to its delegation snapshot.
func (r *Registry) ByHandle(handle string) (Delegation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byHandle[handle]
	if !ok {
		return Delegation{}, false
	}
	d, ok := r.byID[id]
	if !ok {
		return Delegation{}, false
	}
	return *d, true
}

// Transition moves the delegation into a terminal state, recording the
// completion time and failure reason. It returns false when the id is
// unknown or the delegation is already terminal, which makes duplicate and
// late signals a no-op by construction.
func (r *Registry) Transition(id string, to State, failureReason string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[id]
	if !ok || d.State.Terminal() {
		return false
	}
	d.State = to
	d.CompletedAt = time.Now().UTC()
	if failureReason != "" {
		d.FailureReason = failureReason
	}
	return true
}

// SetResult stores the summarized title and summary for a delegation.
func (r *Registry) SetResult(id, title, summary string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.byID[id]; ok {
		d.Title = title
		d.Summary = summary
	}
}

// UpdateProgress records substrate activity for the delegation owning the
// handle. Unknown handles and terminal delegations are ignored.
func (r *Registry) UpdateProgress(handle, snippet string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byHandle[handle]
	if !ok {
		return
	}
	d, ok := r.byID[id]
	if !ok || d.State.Terminal() {
		return
	}
	d.Progress.LastActivity = time.Now().UTC()
	if snippet != "" {
		d.Progress.LastMessage = snippet
	}
}

// Drain removes id from its owner's pending set. The first call reports
// drained=true together with the number of sibling ids still pending; later
// calls report drained=false. When includeInBatch is set the id joins the
// owner's current batch. When the drain empties the pending set, the
// accumulated batch is returned and cleared in the same critical section, so
// the batch-complete decision cannot race a sibling's drain.
func (r *Registry) Drain(id string, includeInBatch bool) (remaining int, batch []string, drained bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[id]
	if !ok {
		return 0, nil, false
	}
	set, ok := r.pending[d.OwnerScope]
	if !ok {
		return 0, nil, false
	}
	if _, member := set[id]; !member {
		return len(set), nil, false
	}
	delete(set, id)
	if includeInBatch {
		r.batch[d.OwnerScope] = append(r.batch[d.OwnerScope], id)
	}
	if len(set) > 0 {
		return len(set), nil, true
	}
	batch = r.batch[d.OwnerScope]
	delete(r.batch, d.OwnerScope)
	return 0, batch, true
}

// PendingIDs returns the ids currently pending for an owner scope.
func (r *Registry) PendingIDs(ownerScope string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.pending[ownerScope]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// List returns snapshot copies of every registered delegation.
func (r *Registry) List() []Delegation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Delegation, 0, len(r.byID))
	for _, d := range r.byID {
		out = append(out, *d)
	}
	return out
}
