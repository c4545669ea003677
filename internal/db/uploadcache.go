package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// UploadCacheRepo wraps the upload_cache table, grounded on
// r2_cache.py/cache.py's dedup-by-hash lookup table.
type UploadCacheRepo struct {
	db *sqlx.DB
}

func NewUploadCacheRepo(db *sqlx.DB) *UploadCacheRepo { return &UploadCacheRepo{db: db} }

// Lookup returns the cached object for a content hash, or (zero, false)
// on a miss.
func (r *UploadCacheRepo) Lookup(ctx context.Context, hash string) (UploadCache, bool, error) {
	var u UploadCache
	err := r.db.GetContext(ctx, &u, `SELECT * FROM upload_cache WHERE hash = $1`, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return UploadCache{}, false, nil
	}
	if err != nil {
		return UploadCache{}, false, err
	}
	return u, true, nil
}

// Insert records a new cache entry; a conflicting hash is a no-op rather
// than an error, since two concurrent uploads of identical content are
// an expected race, not a failure.
func (r *UploadCacheRepo) Insert(ctx context.Context, u UploadCache) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO upload_cache (hash, backend, url, size_bytes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (hash) DO NOTHING
	`, u.Hash, u.Backend, u.URL, u.SizeBytes)
	return err
}
