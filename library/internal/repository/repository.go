package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/Astemirdum/library-catalog/library/internal/errs"
	"github.com/Astemirdum/library-catalog/library/internal/model"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Repository stores the catalog as one versioned snapshot.
//
// Save persists snap as a whole if the stored version still equals snap.Version,
// and returns the stored snapshot with the bumped version. A stale version
// yields errs.ErrConflict and nothing is written.
type Repository interface {
	Load(ctx context.Context) (model.Snapshot, error)
	Save(ctx context.Context, snap model.Snapshot) (model.Snapshot, error)
	Close() error
}

const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// cached keeps the last snapshot in memory so reads do not hit the backend;
// Refresh reconciles it with changes made by other processes.
type cached struct {
	backend Repository
	log     *zap.Logger

	mu     sync.RWMutex
	snap   model.Snapshot
	loaded bool
	// gen counts snapshots adopted from a successful Save.
	gen uint64
}

func NewCached(backend Repository, log *zap.Logger) *cached {
	return &cached{
		backend: backend,
		log:     log.Named("cache"),
	}
}

func (r *cached) Load(ctx context.Context) (model.Snapshot, error) {
	r.mu.RLock()
	if r.loaded {
		snap := r.snap.Clone()
		r.mu.RUnlock()
		return snap, nil
	}
	r.mu.RUnlock()
	if err := r.Refresh(ctx); err != nil {
		return model.Snapshot{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap.Clone(), nil
}

func (r *cached) Save(ctx context.Context, snap model.Snapshot) (model.Snapshot, error) {
	gen := r.generation()
	saved, err := r.backend.Save(ctx, snap)
	if err != nil {
		if errors.Is(err, errs.ErrConflict) {
			if rerr := r.Refresh(ctx); rerr != nil {
				r.log.Warn("refresh after conflict", zap.Error(rerr))
			}
		}
		return model.Snapshot{}, err
	}
	r.store(saved, gen, true)
	return saved.Clone(), nil
}

// Refresh adopts whatever the backend holds, even a lower version after the
// store was restored. It only keeps the cached snapshot when a Save landed
// during the load and is newer than what was read.
func (r *cached) Refresh(ctx context.Context) error {
	gen := r.generation()
	snap, err := r.backend.Load(ctx)
	if err != nil {
		return err
	}
	r.store(snap, gen, false)
	return nil
}

func (r *cached) generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gen
}

// store replaces the cached snapshot with one read or written at generation gen.
func (r *cached) store(snap model.Snapshot, gen uint64, saved bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if saved {
		defer func() { r.gen++ }()
	}
	if r.loaded && r.gen != gen && snap.Version < r.snap.Version {
		return
	}
	if r.loaded && snap.Version != r.snap.Version {
		r.log.Debug("snapshot updated", zap.Int64("from", r.snap.Version), zap.Int64("to", snap.Version))
	}
	r.snap = snap.Clone()
	r.loaded = true
}

func (r *cached) Close() error {
	return r.backend.Close()
}

func persistenceErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", errs.ErrPersistence, op, err)
}

func emptySnapshot() model.Snapshot {
	return model.Snapshot{
		Books:      []model.Book{},
		Categories: []model.Category{},
	}
}

func normalize(snap model.Snapshot) model.Snapshot {
	if snap.Books == nil {
		snap.Books = []model.Book{}
	}
	if snap.Categories == nil {
		snap.Categories = []model.Category{}
	}
	return snap
}
