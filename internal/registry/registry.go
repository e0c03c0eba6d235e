// Package registry tracks workspace records and drives their lifecycle.
// It is the only component with authority to mutate workspace state: all
// transitions on a given id are serialized through a per-record lock, and
// branch uniqueness is enforced by an atomic check-and-insert on the
// (baseRepo, branch) claim key.
package registry

import (
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/benchwright/benchwright/internal/domain"
	"github.com/benchwright/benchwright/internal/workstore"
)

// Checkout materializes and releases workspace directories. The git-backed
// implementation lives in internal/checkout; tests substitute a fake.
type Checkout interface {
	Create(baseRepo, branch, id string) (string, error)
	Remove(baseRepo, path string) error
}

type entry struct {
	mu  sync.Mutex // serializes all transitions on this record
	rec *domain.WorkspaceRecord
}

// Registry is the process-wide workspace registry. It loads from the durable
// store on construction and flushes through it on every mutation.
type Registry struct {
	mu      sync.Mutex        // guards records and claims maps only
	records map[string]*entry // id -> entry
	claims  map[string]string // (baseRepo#branch) -> id, for Created|Active records

	store    *workstore.Store
	checkout Checkout
}

// New creates a Registry backed by the given store and checkout layer,
// loading all persisted records.
func New(store *workstore.Store, checkout Checkout) (*Registry, error) {
	r := &Registry{
		records:  make(map[string]*entry),
		claims:   make(map[string]string),
		store:    store,
		checkout: checkout,
	}

	recs, err := store.ListWorkspaces(workstore.WorkspaceListOptions{})
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		r.records[rec.ID] = &entry{rec: rec}
		if rec.State == domain.WorkspaceCreated || rec.State == domain.WorkspaceActive {
			r.claims[rec.Key()] = rec.ID
		}
	}

	return r, nil
}

// Create registers a new workspace for branch on baseRepo, materializes its
// directory, and persists it in Created state. Exactly one of any set of
// concurrent Create calls for the same (baseRepo, branch) succeeds; the
// others observe a ConflictError.
func (r *Registry) Create(baseRepo, branch string) (*domain.WorkspaceRecord, error) {
	rec := domain.NewWorkspaceRecord(baseRepo, branch)

	// Atomic check-and-insert on the claim key
	r.mu.Lock()
	if _, taken := r.claims[rec.Key()]; taken {
		r.mu.Unlock()
		return nil, &domain.ConflictError{Component: "registry", Key: rec.Key()}
	}
	e := &entry{rec: rec}
	r.records[rec.ID] = e
	r.claims[rec.Key()] = rec.ID
	r.mu.Unlock()

	path, err := r.checkout.Create(baseRepo, branch, rec.ID)
	if err != nil {
		// Materialization failed: withdraw the registration so the branch
		// is not left claimed by a workspace that never existed on disk.
		r.withdraw(rec)
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	rec.Path = path
	if err := r.store.UpsertWorkspace(rec); err != nil {
		r.withdraw(rec)
		return nil, err
	}

	return rec.Clone(), nil
}

func (r *Registry) withdraw(rec *domain.WorkspaceRecord) {
	r.mu.Lock()
	delete(r.records, rec.ID)
	if r.claims[rec.Key()] == rec.ID {
		delete(r.claims, rec.Key())
	}
	r.mu.Unlock()
}

// Activate transitions a Created or Stale workspace to Active. Reactivating
// a Stale workspace re-acquires the branch claim and fails with a
// ConflictError if another workspace holds it.
func (r *Registry) Activate(id string) (*domain.WorkspaceRecord, error) {
	e, err := r.get(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rec.State == domain.WorkspaceStale {
		r.mu.Lock()
		if holder, taken := r.claims[e.rec.Key()]; taken && holder != id {
			r.mu.Unlock()
			return nil, &domain.ConflictError{Component: "registry", Key: e.rec.Key()}
		}
		r.claims[e.rec.Key()] = id
		r.mu.Unlock()
	}

	if err := e.rec.Transition(domain.WorkspaceActive); err != nil {
		return nil, err
	}
	if err := r.store.UpsertWorkspace(e.rec); err != nil {
		return nil, err
	}
	return e.rec.Clone(), nil
}

// MarkStale transitions an Active workspace to Stale and releases its branch
// claim. Calling it on an already-Stale workspace is a no-op.
func (r *Registry) MarkStale(id string) (*domain.WorkspaceRecord, error) {
	e, err := r.get(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rec.State == domain.WorkspaceStale {
		return e.rec.Clone(), nil // idempotent
	}

	if err := e.rec.Transition(domain.WorkspaceStale); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.claims[e.rec.Key()] == id {
		delete(r.claims, e.rec.Key())
	}
	r.mu.Unlock()

	if err := r.store.UpsertWorkspace(e.rec); err != nil {
		return nil, err
	}
	return e.rec.Clone(), nil
}

// Reclaim transitions a Stale workspace to Reclaimed and releases its
// directory. Reclaiming an Active workspace is rejected: it must be marked
// stale first.
func (r *Registry) Reclaim(id string) (*domain.WorkspaceRecord, error) {
	e, err := r.get(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.rec.State.CanTransitionTo(domain.WorkspaceReclaimed) {
		return nil, &domain.InvalidStateError{
			Component: "registry",
			ID:        id,
			From:      string(e.rec.State),
			To:        string(domain.WorkspaceReclaimed),
		}
	}

	// Release the directory before committing the transition so a failed
	// removal leaves the record Stale and retryable by the caller.
	if e.rec.Path != "" {
		if err := r.checkout.Remove(e.rec.BaseRepo, e.rec.Path); err != nil {
			return nil, err
		}
	}

	if err := e.rec.Transition(domain.WorkspaceReclaimed); err != nil {
		return nil, err
	}
	if err := r.store.UpsertWorkspace(e.rec); err != nil {
		return nil, err
	}
	return e.rec.Clone(), nil
}

// Touch bumps a workspace's last-touched timestamp. Reclaimed records are
// immutable audit rows; touching one is rejected.
func (r *Registry) Touch(id string) error {
	e, err := r.get(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rec.State == domain.WorkspaceReclaimed {
		return &domain.InvalidStateError{
			Component: "registry",
			ID:        id,
			From:      string(e.rec.State),
			To:        string(e.rec.State),
		}
	}

	e.rec.LastTouched = time.Now()
	return r.store.UpsertWorkspace(e.rec)
}

// Get returns a snapshot of the record with the given id
func (r *Registry) Get(id string) (*domain.WorkspaceRecord, error) {
	e, err := r.get(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec.Clone(), nil
}

// Find returns a lazy sequence of records matching pred. Each iteration
// re-evaluates against a fresh snapshot of the registry.
func (r *Registry) Find(pred func(*domain.WorkspaceRecord) bool) iter.Seq[*domain.WorkspaceRecord] {
	return func(yield func(*domain.WorkspaceRecord) bool) {
		for _, rec := range r.List() {
			if pred(rec) {
				if !yield(rec) {
					return
				}
			}
		}
	}
}

// List returns snapshots of all records, ordered by creation time
func (r *Registry) List() []*domain.WorkspaceRecord {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.records))
	for _, e := range r.records {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	recs := make([]*domain.WorkspaceRecord, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		recs = append(recs, e.rec.Clone())
		e.mu.Unlock()
	}

	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
	return recs
}

func (r *Registry) get(id string) (*entry, error) {
	r.mu.Lock()
	e, ok := r.records[id]
	r.mu.Unlock()
	if !ok {
		return nil, &domain.NotFoundError{Component: "registry", ID: id}
	}
	return e, nil
}
