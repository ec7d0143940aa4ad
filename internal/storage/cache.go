package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Cache is a tenant-scoped key/value cache with per-entry expiry, backed by
// the report_cache table. Expired entries read as misses and are purged lazily.
type Cache struct {
	db     *sql.DB
	tenant string
	now    func() time.Time
}

// NewCache returns the cache for one tenant.
func NewCache(db *sql.DB, tenantID string) *Cache {
	return &Cache{db: db, tenant: tenantID, now: time.Now}
}

// Get returns the cached value for key, or ok=false on a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value   []byte
		expires string
	)
	err := c.db.QueryRowContext(ctx,
		"SELECT value, expires_at FROM report_cache WHERE tenant_id = ? AND key = ?;",
		c.tenant, key,
	).Scan(&value, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}

	exp, err := time.Parse(time.RFC3339Nano, expires)
	if err != nil {
		return nil, false, fmt.Errorf("parse cache expiry: %w", err)
	}
	if !c.now().Before(exp) {
		if _, err := c.db.ExecContext(ctx,
			"DELETE FROM report_cache WHERE tenant_id = ? AND key = ?;", c.tenant, key); err != nil {
			return nil, false, fmt.Errorf("purge expired cache entry: %w", err)
		}
		return nil, false, nil
	}
	return value, true, nil
}

// Set stores value under key for ttl.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %s", ttl)
	}
	if value == nil {
		value = []byte{}
	}
	expires := c.now().Add(ttl).UTC().Format(time.RFC3339Nano)
	_, err := c.db.ExecContext(ctx, `
INSERT INTO report_cache(tenant_id, key, value, expires_at)
VALUES(?, ?, ?, ?)
ON CONFLICT(tenant_id, key) DO UPDATE SET
  value = excluded.value,
  expires_at = excluded.expires_at;
`, c.tenant, key, value, expires)
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Delete removes the given keys. Missing keys are ignored.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if _, err := c.db.ExecContext(ctx,
			"DELETE FROM report_cache WHERE tenant_id = ? AND key = ?;", c.tenant, key); err != nil {
			return fmt.Errorf("delete cache entry %q: %w", key, err)
		}
	}
	return nil
}
