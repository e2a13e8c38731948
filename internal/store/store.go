// Package store implements the draft/publish lifecycle of one collection
// kind.
//
// Each id owns a head entity behind an atomic pointer and a weighted
// semaphore of size one. Writers hold the semaphore for the whole
// read-modify-persist-swap sequence, so mutations on one id are strictly
// serialized while different ids proceed independently. Readers only load
// the pointer: a head is never modified after it is stored, so a reader sees
// a version, content and checksum that belong together.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/graphrapids/graphapi/internal/kinds"
	"github.com/graphrapids/graphapi/internal/models"
	"github.com/graphrapids/graphapi/internal/repository"
	"github.com/graphrapids/graphapi/pkg/checksum"
	appErr "github.com/graphrapids/graphapi/pkg/errors"
)

// Observer receives one call per store operation.
type Observer interface {
	ObserveStoreOp(kind, op string, err error, elapsed time.Duration)
}

// Options tunes a Store.
type Options struct {
	// LockTimeout bounds the wait for a per-id writer lock. Zero waits for
	// as long as the caller's context allows.
	LockTimeout time.Duration
	Now         func() time.Time
	Observer    Observer
}

type slot struct {
	sem  *semaphore.Weighted
	head atomic.Pointer[models.Entity]
}

// Store is the versioned store of one collection kind.
type Store struct {
	kind  models.Kind
	rules kinds.Rules
	repo  repository.Repository
	opts  Options

	mu    sync.RWMutex
	slots map[string]*slot
}

// New creates an empty store. Call Load to hydrate it from repo.
func New(kind models.Kind, repo repository.Repository, opts Options) (*Store, error) {
	rules, err := kinds.For(kind)
	if err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		kind:  kind,
		rules: rules,
		repo:  repo,
		opts:  opts,
		slots: map[string]*slot{},
	}, nil
}

// Kind returns the collection kind served by s.
func (s *Store) Kind() models.Kind { return s.kind }

// Load replaces the in-memory state with the repository contents.
func (s *Store) Load(ctx context.Context) (int, error) {
	entities, err := s.repo.LoadAll(ctx, s.kind)
	if err != nil {
		return 0, err
	}
	slots := make(map[string]*slot, len(entities))
	for _, e := range entities {
		sl := &slot{sem: semaphore.NewWeighted(1)}
		sl.head.Store(e)
		slots[e.ID] = sl
	}
	s.mu.Lock()
	s.slots = slots
	s.mu.Unlock()
	return len(slots), nil
}

// Create stores a new collection at draft version 1.
func (s *Store) Create(ctx context.Context, id string, content models.Content) (e *models.Entity, err error) {
	defer s.observe("create", time.Now(), &err)

	if !models.ValidID(id) {
		return nil, s.errf(appErr.CodeMalformedContent, id, "invalid %s id %q", s.kind, id)
	}
	validated, err := s.validate(id, content)
	if err != nil {
		return nil, err
	}
	sum, err := s.checksum(validated)
	if err != nil {
		return nil, err
	}

	// Reserve the id with its writer lock held so concurrent creates and
	// mutations wait for the insert to settle.
	sl := &slot{sem: semaphore.NewWeighted(1)}
	sl.sem.TryAcquire(1)
	s.mu.Lock()
	if _, taken := s.slots[id]; taken {
		s.mu.Unlock()
		return nil, s.errf(appErr.CodeAlreadyExists, id, "%s %q already exists", s.kind, id)
	}
	s.slots[id] = sl
	s.mu.Unlock()
	defer sl.sem.Release(1)

	now := s.opts.Now().UTC()
	created := &models.Entity{
		Kind:         s.kind,
		ID:           id,
		DraftVersion: 1,
		UpdatedAt:    now,
		Checksum:     sum,
		Content:      validated,
	}
	if err := s.repo.Insert(ctx, created); err != nil {
		s.mu.Lock()
		delete(s.slots, id)
		s.mu.Unlock()
		return nil, err
	}
	sl.head.Store(created)
	return created.Clone(), nil
}

// GetDraft returns the entity with its current draft and published log.
func (s *Store) GetDraft(ctx context.Context, id string) (*models.Entity, error) {
	head, err := s.head(id)
	if err != nil {
		return nil, err
	}
	return head.Clone(), nil
}

// GetPublished returns a published snapshot. version <= 0 selects the latest.
func (s *Store) GetPublished(ctx context.Context, id string, version int) (*models.Revision, error) {
	head, err := s.head(id)
	if err != nil {
		return nil, err
	}
	return s.published(head, version)
}

// GetPublishedPinned is GetPublished plus a checksum check. An empty
// expected checksum skips the check.
func (s *Store) GetPublishedPinned(ctx context.Context, id string, version int, expected string) (*models.Revision, error) {
	rev, err := s.GetPublished(ctx, id, version)
	if err != nil {
		return nil, err
	}
	if expected != "" && expected != rev.Checksum {
		return nil, s.errf(appErr.CodeChecksumMismatch, id, "%s %q version %d checksum mismatch", s.kind, id, rev.Version).
			WithMeta("version", rev.Version).
			WithMeta("expectedChecksum", expected).
			WithMeta("actualChecksum", rev.Checksum)
	}
	return rev, nil
}

// Get returns a revision at a stage. For the draft stage a non-zero version
// must match the current draft version.
func (s *Store) Get(ctx context.Context, id string, stage models.Stage, version int) (*models.Revision, error) {
	head, err := s.head(id)
	if err != nil {
		return nil, err
	}
	switch stage {
	case models.StagePublished:
		return s.published(head, version)
	case models.StageDraft, "":
		if version > 0 && version != head.DraftVersion {
			return nil, s.errf(appErr.CodeNotFound, id, "%s %q draft version %d is not current (current %d)", s.kind, id, version, head.DraftVersion).
				WithMeta("version", version)
		}
		return head.Draft(), nil
	}
	return nil, appErr.Newf(appErr.CodeInvalid, "unknown stage %q", stage)
}

// List returns summaries sorted by id.
func (s *Store) List(ctx context.Context) []models.Summary {
	s.mu.RLock()
	heads := make([]*models.Entity, 0, len(s.slots))
	for _, sl := range s.slots {
		if h := sl.head.Load(); h != nil {
			heads = append(heads, h)
		}
	}
	s.mu.RUnlock()

	out := make([]models.Summary, 0, len(heads))
	for _, h := range heads {
		out = append(out, h.Summarize())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ReplaceDraft overwrites the whole draft content.
func (s *Store) ReplaceDraft(ctx context.Context, id string, content models.Content) (e *models.Entity, err error) {
	defer s.observe("replace", time.Now(), &err)

	validated, err := s.validate(id, content)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(next *models.Entity) (*models.Snapshot, error) {
		next.Content = validated
		return nil, s.bump(next)
	})
}

// UpsertEntry inserts or overwrites one entry under its normalized key.
func (s *Store) UpsertEntry(ctx context.Context, id, key string, value any) (e *models.Entity, err error) {
	defer s.observe("upsert", time.Now(), &err)

	nk, err := s.rules.NormalizeKey(key)
	if err != nil {
		return nil, withID(err, id)
	}
	return s.mutate(ctx, id, func(next *models.Entity) (*models.Snapshot, error) {
		c := next.Content.Clone()
		c.Entries[nk] = value
		validated, err := s.validate(id, c)
		if err != nil {
			return nil, err
		}
		next.Content = validated
		return nil, s.bump(next)
	})
}

// DeleteEntry removes one entry.
func (s *Store) DeleteEntry(ctx context.Context, id, key string) (e *models.Entity, err error) {
	defer s.observe("delete", time.Now(), &err)

	nk, normErr := s.rules.NormalizeKey(key)
	return s.mutate(ctx, id, func(next *models.Entity) (*models.Snapshot, error) {
		if _, ok := next.Content.Entries[nk]; normErr != nil || !ok {
			return nil, s.errf(appErr.CodeEntryNotFound, id, "%s %q has no entry %q", s.kind, id, key).WithMeta("key", key)
		}
		c := next.Content.Clone()
		delete(c.Entries, nk)
		validated, err := s.validate(id, c)
		if err != nil {
			return nil, err
		}
		next.Content = validated
		return nil, s.bump(next)
	})
}

// Publish appends the current draft content as a new immutable snapshot.
// The snapshot version is one past the last published version; the draft
// keeps its content and advances its own version.
func (s *Store) Publish(ctx context.Context, id string) (e *models.Entity, err error) {
	defer s.observe("publish", time.Now(), &err)

	return s.mutate(ctx, id, func(next *models.Entity) (*models.Snapshot, error) {
		now := s.opts.Now().UTC()
		snap := models.Snapshot{
			Version:     next.LastPublishedVersion() + 1,
			Checksum:    next.Checksum,
			Content:     next.Content.Clone(),
			PublishedAt: now,
		}
		next.Published = append(next.Published, snap)
		next.DraftVersion++
		next.UpdatedAt = now
		return &snap, nil
	})
}

type mutation func(next *models.Entity) (*models.Snapshot, error)

func (s *Store) mutate(ctx context.Context, id string, fn mutation) (*models.Entity, error) {
	sl, err := s.slot(id)
	if err != nil {
		return nil, err
	}
	if err := s.lock(ctx, sl, id); err != nil {
		return nil, err
	}
	defer sl.sem.Release(1)

	cur := sl.head.Load()
	if cur == nil {
		return nil, s.notFound(id)
	}
	next := cur.Clone()
	snap, err := fn(next)
	if err != nil {
		return nil, err
	}

	if snap != nil {
		err = s.repo.Publish(ctx, next, *snap)
	} else {
		err = s.repo.SaveDraft(ctx, next)
	}
	if err != nil {
		return nil, err
	}
	sl.head.Store(next)
	return next.Clone(), nil
}

func (s *Store) lock(ctx context.Context, sl *slot, id string) error {
	lockCtx := ctx
	if s.opts.LockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, s.opts.LockTimeout)
		defer cancel()
	}
	if err := sl.sem.Acquire(lockCtx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return s.errf(appErr.CodeBusy, id, "%s %q is busy, retry later", s.kind, id)
		}
		return appErr.Wrap(err, appErr.CodeDeadline, "canceled while waiting for collection lock").
			WithMeta("kind", string(s.kind)).
			WithMeta("id", id)
	}
	return nil
}

// bump advances the draft version and recomputes the checksum.
func (s *Store) bump(e *models.Entity) error {
	sum, err := s.checksum(e.Content)
	if err != nil {
		return err
	}
	e.Checksum = sum
	e.DraftVersion++
	e.UpdatedAt = s.opts.Now().UTC()
	return nil
}

func (s *Store) validate(id string, c models.Content) (models.Content, error) {
	if c.Entries == nil {
		c.Entries = map[string]any{}
	}
	validated, err := s.rules.Validate(c)
	if err != nil {
		return models.Content{}, withID(err, id)
	}
	return validated, nil
}

// checksum hashes the content of a collection. Ids, versions and timestamps
// are not part of it.
func (s *Store) checksum(c models.Content) (string, error) {
	payload := map[string]any{
		"kind":    string(s.kind),
		"entries": c.Entries,
	}
	if c.Name != "" {
		payload["name"] = c.Name
	}
	if len(c.Document) > 0 {
		payload["document"] = c.Document
	}
	sum, err := checksum.Sum(payload)
	if err != nil {
		return "", appErr.Wrap(err, appErr.CodeMalformedContent, "content cannot be checksummed").WithMeta("kind", string(s.kind))
	}
	return sum, nil
}

func (s *Store) published(head *models.Entity, version int) (*models.Revision, error) {
	if len(head.Published) == 0 {
		return nil, s.errf(appErr.CodeNoPublishedVersion, head.ID, "%s %q has no published version", s.kind, head.ID)
	}
	if version <= 0 {
		latest, _ := head.LatestPublished()
		return models.SnapshotRevision(s.kind, head.ID, latest), nil
	}
	snap, ok := head.PublishedVersion(version)
	if !ok {
		return nil, s.errf(appErr.CodeNotFound, head.ID, "%s %q has no published version %d", s.kind, head.ID, version).
			WithMeta("version", version)
	}
	return models.SnapshotRevision(s.kind, head.ID, snap), nil
}

func (s *Store) slot(id string) (*slot, error) {
	s.mu.RLock()
	sl, ok := s.slots[id]
	s.mu.RUnlock()
	if !ok {
		return nil, s.notFound(id)
	}
	return sl, nil
}

func (s *Store) head(id string) (*models.Entity, error) {
	sl, err := s.slot(id)
	if err != nil {
		return nil, err
	}
	h := sl.head.Load()
	if h == nil {
		return nil, s.notFound(id)
	}
	return h, nil
}

func (s *Store) notFound(id string) *appErr.AppError {
	return s.errf(appErr.CodeNotFound, id, "%s %q not found", s.kind, id)
}

func (s *Store) errf(code appErr.Code, id, format string, args ...any) *appErr.AppError {
	return appErr.Newf(code, format, args...).
		WithMeta("kind", string(s.kind)).
		WithMeta("id", id)
}

func (s *Store) observe(op string, start time.Time, err *error) {
	if s.opts.Observer != nil {
		s.opts.Observer.ObserveStoreOp(string(s.kind), op, *err, time.Since(start))
	}
}

// withID adds the collection id to content errors raised by the kind rules.
func withID(err error, id string) error {
	if ae, ok := appErr.As(err); ok {
		ae.WithMeta("id", id)
	}
	return err
}
