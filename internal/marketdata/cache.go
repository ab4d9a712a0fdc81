package marketdata

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/auravest/risk-engine/internal/database"
)

// Cache is a read-through store for provider responses. Entries expire
// after the configured TTL; stale rows are removed by the scheduler's
// prune job rather than on read.
type Cache struct {
	db  *database.DB
	ttl time.Duration
	log zerolog.Logger
}

// NewCache creates a cache on top of the shared database.
func NewCache(db *database.DB, ttl time.Duration, log zerolog.Logger) *Cache {
	return &Cache{
		db:  db,
		ttl: ttl,
		log: log.With().Str("component", "quote_cache").Logger(),
	}
}

// Get unmarshals a fresh cache entry into dest. Returns false on miss,
// expiry or decode failure.
func (c *Cache) Get(key string, dest interface{}) bool {
	var payload string
	var cachedAt int64
	row := c.db.QueryRow("SELECT payload, cached_at FROM quote_cache WHERE cache_key = ?", key)
	if err := row.Scan(&payload, &cachedAt); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return false
	}

	if time.Since(time.Unix(cachedAt, 0)) > c.ttl {
		return false
	}

	if err := json.Unmarshal([]byte(payload), dest); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache entry corrupt, ignoring")
		return false
	}
	return true
}

// Put stores a value under the given key, replacing any previous entry.
// Failures are logged and swallowed; the cache is best effort.
func (c *Cache) Put(key string, value interface{}) {
	payload, err := json.Marshal(value)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}

	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO quote_cache (cache_key, payload, cached_at) VALUES (?, ?, ?)",
		key, string(payload), time.Now().Unix(),
	)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// Prune deletes entries older than the TTL. Returns the number removed.
func (c *Cache) Prune() (int64, error) {
	cutoff := time.Now().Add(-c.ttl).Unix()
	result, err := c.db.Exec("DELETE FROM quote_cache WHERE cached_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		c.log.Debug().Int64("removed", removed).Msg("pruned expired cache entries")
	}
	return removed, nil
}
