package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Astemirdum/library-catalog/library/internal/errs"
	"github.com/Astemirdum/library-catalog/library/internal/model"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const lockRetryDelay = 10 * time.Millisecond

// fileRepository keeps the snapshot in a single JSON document that is
// rewritten in full (temp file + rename) on every save. A sibling .lock file
// serialises saves across processes sharing the document.
type fileRepository struct {
	path string
	log  *zap.Logger
	mu   sync.Mutex
	lock *flock.Flock
}

func NewFileRepository(path string, log *zap.Logger) (*fileRepository, error) {
	if path == "" {
		return nil, errors.New("data file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, persistenceErr("create data dir", err)
	}
	return &fileRepository{
		path: path,
		log:  log.Named("repo"),
		lock: flock.New(path + ".lock"),
	}, nil
}

func (r *fileRepository) Path() string {
	return r.path
}

func (r *fileRepository) Load(ctx context.Context) (model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return model.Snapshot{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read()
}

func (r *fileRepository) Save(ctx context.Context, snap model.Snapshot) (model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return model.Snapshot{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.lock.TryLockContext(ctx, lockRetryDelay); err != nil {
		return model.Snapshot{}, persistenceErr("lock data file", err)
	}
	defer r.lock.Unlock() //nolint:errcheck

	current, err := r.read()
	if err != nil {
		return model.Snapshot{}, err
	}
	if current.Version != snap.Version {
		return model.Snapshot{}, errors.Wrapf(errs.ErrConflict, "stored version %d, expected %d", current.Version, snap.Version)
	}

	next := normalize(snap.Clone())
	next.Version = current.Version + 1
	if err := r.write(next); err != nil {
		return model.Snapshot{}, err
	}
	r.log.Debug("snapshot saved",
		zap.Int64("version", next.Version),
		zap.Int("books", len(next.Books)),
		zap.Int("categories", len(next.Categories)))
	return next, nil
}

func (r *fileRepository) Close() error {
	return nil
}

func (r *fileRepository) read() (model.Snapshot, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return emptySnapshot(), nil
		}
		return model.Snapshot{}, persistenceErr("read data file", err)
	}
	if len(data) == 0 {
		return emptySnapshot(), nil
	}
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.Snapshot{}, persistenceErr("decode data file", err)
	}
	return normalize(snap), nil
}

func (r *fileRepository) write(snap model.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return persistenceErr("encode snapshot", err)
	}
	return writeFileAtomic(r.path, data)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return persistenceErr("create temp file", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return persistenceErr("write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck
		return persistenceErr("sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return persistenceErr("close temp file", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return persistenceErr("replace data file", err)
	}
	return nil
}
