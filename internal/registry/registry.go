// Package registry holds one versioned store per collection kind over a
// shared repository.
package registry

import (
	"context"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/graphrapids/graphapi/internal/models"
	"github.com/graphrapids/graphapi/internal/repository"
	"github.com/graphrapids/graphapi/internal/store"
	appErr "github.com/graphrapids/graphapi/pkg/errors"
	"github.com/graphrapids/graphapi/pkg/logger"
)

// Registry is the CollectionRegistry.
type Registry struct {
	repo   repository.Repository
	stores map[models.Kind]*store.Store
	ready  atomic.Bool
}

// New creates a registry with an empty store for every kind.
func New(repo repository.Repository, opts store.Options) *Registry {
	r := &Registry{repo: repo, stores: make(map[models.Kind]*store.Store, len(models.AllKinds()))}
	for _, kind := range models.AllKinds() {
		r.stores[kind] = mustStore(kind, repo, opts)
	}
	return r
}

func mustStore(kind models.Kind, repo repository.Repository, opts store.Options) *store.Store {
	s, err := store.New(kind, repo, opts)
	if err != nil {
		panic(err)
	}
	return s
}

// Open migrates the repository and hydrates every store in parallel.
func (r *Registry) Open(ctx context.Context) error {
	if err := r.repo.Migrate(ctx); err != nil {
		return appErr.Wrap(err, appErr.CodeUnavailable, "migrate collection schema")
	}
	if err := r.Refresh(ctx); err != nil {
		return err
	}
	r.ready.Store(true)
	return nil
}

// Refresh reloads every store from the repository. Read-only replicas
// such as the worker call it to pick up collections written elsewhere.
func (r *Registry) Refresh(ctx context.Context) error {
	p := pool.New().WithMaxGoroutines(len(r.stores)).WithContext(ctx)
	for _, s := range r.stores {
		p.Go(func(ctx context.Context) error {
			n, err := s.Load(ctx)
			if err != nil {
				return appErr.Wrap(err, appErr.CodeUnavailable, "load "+string(s.Kind())).
					WithMeta("kind", string(s.Kind()))
			}
			logger.L().Info("collections loaded",
				zap.String("kind", string(s.Kind())),
				zap.Int("count", n),
			)
			return nil
		})
	}
	return p.Wait()
}

// Ready reports whether Open completed.
func (r *Registry) Ready() bool { return r.ready.Load() }

// Store returns the store of a kind.
func (r *Registry) Store(kind models.Kind) (*store.Store, error) {
	s, ok := r.stores[kind]
	if !ok {
		return nil, appErr.Newf(appErr.CodeInvalid, "unknown collection kind %q", kind)
	}
	return s, nil
}

// MustStore is Store for kinds known at compile time.
func (r *Registry) MustStore(kind models.Kind) *store.Store {
	s, err := r.Store(kind)
	if err != nil {
		panic(err)
	}
	return s
}

// Kinds returns the managed kinds in their canonical order.
func (r *Registry) Kinds() []models.Kind { return models.AllKinds() }

// Ping checks the repository.
func (r *Registry) Ping(ctx context.Context) error { return r.repo.Ping(ctx) }

// Close releases the repository.
func (r *Registry) Close() error {
	r.ready.Store(false)
	return r.repo.Close()
}
