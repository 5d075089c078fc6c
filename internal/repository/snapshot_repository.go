package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/iliyamo/storefront-live/internal/model"
)

// Snapshot kinds stored in the snapshots table.
const (
	KindOrder   = "order"
	KindUser    = "user"
	KindProduct = "product"
)

// SnapshotRepo stores the latest copy of each entity as JSON. Writes are
// version-gated in SQL, so an older copy never overwrites a newer one even
// when two consoles share the database.
type SnapshotRepo struct{ DB *sql.DB }

func NewSnapshotRepo(db *sql.DB) *SnapshotRepo { return &SnapshotRepo{DB: db} }

// upsertSQL updates only when the incoming version is not older. version is
// assigned last because MySQL evaluates assignments left to right.
const upsertSQL = `INSERT INTO snapshots (kind, id, version, updated_at, body) VALUES (?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  body = IF(VALUES(version) >= version, VALUES(body), body),
  updated_at = IF(VALUES(version) >= version, VALUES(updated_at), updated_at),
  version = GREATEST(version, VALUES(version))`

// Upsert stores v under kind. It reports whether a row was inserted or
// changed.
func (r *SnapshotRepo) Upsert(ctx context.Context, kind string, v model.Snapshot) (bool, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return false, errors.Wrapf(err, "encode %s %s", kind, v.Key())
	}
	rev := v.Revision()
	var updated sql.NullTime
	if !rev.UpdatedAt.IsZero() {
		updated = sql.NullTime{Time: rev.UpdatedAt.UTC(), Valid: true}
	}
	res, err := r.DB.ExecContext(ctx, upsertSQL, kind, v.Key(), rev.Version, updated, body)
	if err != nil {
		return false, errors.Wrapf(err, "upsert %s %s", kind, v.Key())
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, nil
	}
	return n > 0, nil
}

func (r *SnapshotRepo) UpsertOrder(ctx context.Context, o model.Order) (bool, error) {
	return r.Upsert(ctx, KindOrder, o)
}

func (r *SnapshotRepo) UpsertUser(ctx context.Context, u model.User) (bool, error) {
	return r.Upsert(ctx, KindUser, u)
}

func (r *SnapshotRepo) UpsertProduct(ctx context.Context, p model.Product) (bool, error) {
	return r.Upsert(ctx, KindProduct, p)
}

// Delete removes one snapshot.
func (r *SnapshotRepo) Delete(ctx context.Context, kind, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM snapshots WHERE kind=? AND id=?", kind, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SnapshotRepo) LoadOrders(ctx context.Context) ([]model.Order, error) {
	return load[model.Order](ctx, r.DB, KindOrder)
}

func (r *SnapshotRepo) LoadUsers(ctx context.Context) ([]model.User, error) {
	return load[model.User](ctx, r.DB, KindUser)
}

func (r *SnapshotRepo) LoadProducts(ctx context.Context) ([]model.Product, error) {
	return load[model.Product](ctx, r.DB, KindProduct)
}

// load returns the snapshots of kind, oldest first, so merging them in
// order leaves the newest at the head of a store.
func load[T any](ctx context.Context, db *sql.DB, kind string) ([]T, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT body FROM snapshots WHERE kind=? ORDER BY stored_at ASC, id ASC", kind)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", kind)
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, errors.Wrapf(err, "decode %s", kind)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Prune drops snapshots last written before cutoff.
func (r *SnapshotRepo) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM snapshots WHERE stored_at < ?", cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
