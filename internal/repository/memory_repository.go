package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/graphrapids/graphapi/internal/models"
	appErr "github.com/graphrapids/graphapi/pkg/errors"
)

type memoryKey struct {
	kind models.Kind
	id   string
}

// MemoryRepository keeps state in process memory. State survives store
// reloads within the process, which makes it useful in tests.
type MemoryRepository struct {
	mu   sync.Mutex
	rows map[memoryKey]*models.Entity
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: map[memoryKey]*models.Entity{}}
}

var _ Repository = (*MemoryRepository)(nil)

func (r *MemoryRepository) Migrate(ctx context.Context) error { return nil }

func (r *MemoryRepository) LoadAll(ctx context.Context, kind models.Kind) ([]*models.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Entity
	for k, e := range r.rows {
		if k.kind == kind {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) Insert(ctx context.Context, e *models.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := memoryKey{e.Kind, e.ID}
	if _, ok := r.rows[k]; ok {
		return appErr.Newf(appErr.CodeAlreadyExists, "%s %q already exists", e.Kind, e.ID)
	}
	r.rows[k] = e.Clone()
	return nil
}

func (r *MemoryRepository) SaveDraft(ctx context.Context, e *models.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := memoryKey{e.Kind, e.ID}
	cur, ok := r.rows[k]
	if !ok {
		return appErr.Newf(appErr.CodeNotFound, "%s %q not found", e.Kind, e.ID)
	}
	next := e.Clone()
	next.Published = cur.Published
	r.rows[k] = next
	return nil
}

func (r *MemoryRepository) Publish(ctx context.Context, e *models.Entity, snap models.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := memoryKey{e.Kind, e.ID}
	cur, ok := r.rows[k]
	if !ok {
		return appErr.Newf(appErr.CodeNotFound, "%s %q not found", e.Kind, e.ID)
	}
	if _, exists := cur.PublishedVersion(snap.Version); exists {
		return appErr.Newf(appErr.CodeConflict, "%s %q version %d already published", e.Kind, e.ID, snap.Version)
	}
	next := e.Clone()
	snap.Content = snap.Content.Clone()
	next.Published = append(append([]models.Snapshot(nil), cur.Published...), snap)
	r.rows[k] = next
	return nil
}

func (r *MemoryRepository) Ping(ctx context.Context) error { return nil }

func (r *MemoryRepository) Close() error { return nil }
