package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/findosh/quantdesk/internal/cache"
)

// CacheRepository persists cache entries in the cache_entries table. It
// satisfies cache.Store, so market data survives process restarts.
type CacheRepository struct {
	db  *DB
	now func() time.Time
}

// NewCacheRepository creates a new cache repository
func NewCacheRepository(db *DB) *CacheRepository {
	return &CacheRepository{db: db, now: time.Now}
}

// Get retrieves the value stored under key. Rows past their expiry are
// reported as missing.
func (r *CacheRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query := `SELECT value, expires_at FROM cache_entries WHERE key = ?`

	var value []byte
	var expiresAt int64
	err := r.db.QueryRowContext(ctx, query, key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if r.now().UnixNano() >= expiresAt {
		return nil, false, nil
	}
	return value, true, nil
}

// Set upserts value under key with the given ttl. A non-positive ttl uses
// cache.DefaultTTL, as the other stores do.
func (r *CacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}

	query := `
		INSERT INTO cache_entries (key, value, expires_at, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at
	`
	now := r.now()
	_, err := r.db.ExecContext(ctx, query, key, value, now.Add(ttl).UnixNano(), now.UnixNano())
	return err
}

// Delete removes key
func (r *CacheRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
	return err
}

// Purge removes all expired rows and returns how many were deleted
func (r *CacheRepository) Purge(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at <= ?`, r.now().UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Ping checks the database connection
func (r *CacheRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
