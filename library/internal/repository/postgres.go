package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/Astemirdum/library-catalog/library/internal/errs"
	"github.com/Astemirdum/library-catalog/library/internal/model"
	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	snapshotTableName = `catalog_snapshot`
	snapshotRowID     = 1
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// postgresRepository keeps the snapshot as a single jsonb row guarded by its version column.
type postgresRepository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewPostgresRepository(db *sqlx.DB, log *zap.Logger) (*postgresRepository, error) {
	return &postgresRepository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

type snapshotRow struct {
	Version int64  `db:"version"`
	Data    []byte `db:"data"`
}

type snapshotData struct {
	Books      []model.Book     `json:"books"`
	Categories []model.Category `json:"categories"`
}

func (r *postgresRepository) Load(ctx context.Context) (model.Snapshot, error) {
	query, args, err := qb.Select("version", "data").
		From(snapshotTableName).
		Where(sq.Eq{"id": snapshotRowID}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Snapshot{}, err
	}

	var row snapshotRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return emptySnapshot(), nil
		}
		return model.Snapshot{}, persistenceErr("select snapshot", err)
	}

	var data snapshotData
	if err := json.Unmarshal(row.Data, &data); err != nil {
		return model.Snapshot{}, persistenceErr("decode snapshot", err)
	}
	return normalize(model.Snapshot{
		Version:    row.Version,
		Books:      data.Books,
		Categories: data.Categories,
	}), nil
}

func (r *postgresRepository) Save(ctx context.Context, snap model.Snapshot) (model.Snapshot, error) {
	next := normalize(snap.Clone())
	next.Version = snap.Version + 1

	data, err := json.Marshal(snapshotData{Books: next.Books, Categories: next.Categories})
	if err != nil {
		return model.Snapshot{}, persistenceErr("encode snapshot", err)
	}

	if snap.Version == 0 {
		err = r.insert(ctx, next.Version, data)
	} else {
		err = r.update(ctx, snap.Version, next.Version, data)
	}
	if err != nil {
		return model.Snapshot{}, err
	}
	r.log.Debug("snapshot saved", zap.Int64("version", next.Version))
	return next, nil
}

func (r *postgresRepository) insert(ctx context.Context, version int64, data []byte) error {
	query, args, err := qb.Insert(snapshotTableName).
		Columns("id", "version", "data", "updated_at").
		Values(snapshotRowID, version, data, time.Now().UTC()).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return errors.Wrap(errs.ErrConflict, "snapshot already initialised")
		}
		r.log.Error("insert snapshot", zap.String("q", query), zap.Error(err))
		return persistenceErr("insert snapshot", err)
	}
	return nil
}

func (r *postgresRepository) update(ctx context.Context, expected, version int64, data []byte) error {
	query, args, err := qb.Update(snapshotTableName).
		Set("version", version).
		Set("data", data).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": snapshotRowID, "version": expected}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.log.Error("update snapshot", zap.String("q", query), zap.Error(err))
		return persistenceErr("update snapshot", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistenceErr("update snapshot", err)
	}
	if n == 0 {
		return errors.Wrapf(errs.ErrConflict, "expected version %d", expected)
	}
	return nil
}

func (r *postgresRepository) Close() error {
	return r.db.Close()
}
