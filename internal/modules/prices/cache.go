package prices

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/frontier/internal/modules/frontier"
)

// DefaultCacheTTL is how long a downloaded price set stays fresh.
const DefaultCacheTTL = time.Hour

// cachedSeries is the msgpack payload of a cache row.
type cachedSeries struct {
	Symbols []string    `msgpack:"symbols"`
	Dates   []time.Time `msgpack:"dates"`
	Prices  [][]float64 `msgpack:"prices"`
}

// CacheStats summarises the cache table.
type CacheStats struct {
	Entries int64 `json:"entries"`
	Fresh   int64 `json:"fresh"`
	Bytes   int64 `json:"bytes"`
}

// CacheRepository stores aligned price sets in the price_cache table with an
// expiration timestamp.
type CacheRepository struct {
	db *sql.DB
}

// NewCacheRepository creates a new price cache repository.
func NewCacheRepository(db *sql.DB) *CacheRepository {
	return &CacheRepository{db: db}
}

// CacheKey identifies a request: the source, the symbols in request order and
// the date range.
func CacheKey(source string, symbols []string, start, end time.Time) string {
	raw := strings.Join([]string{
		source,
		strings.Join(symbols, ","),
		start.Format(time.DateOnly),
		end.Format(time.DateOnly),
	}, "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Store saves series with expiration = now + ttl.
func (r *CacheRepository) Store(key, source string, series frontier.PriceSeries, ttl time.Duration) error {
	data, err := msgpack.Marshal(cachedSeries{
		Symbols: series.Symbols,
		Dates:   series.Dates,
		Prices:  series.Prices,
	})
	if err != nil {
		return fmt.Errorf("failed to encode price series: %w", err)
	}

	expiresAt := time.Now().Add(ttl).Unix()
	_, err = r.db.Exec(
		"INSERT OR REPLACE INTO price_cache (cache_key, source, data, expires_at) VALUES (?, ?, ?, ?)",
		key, source, data, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store price series: %w", err)
	}
	return nil
}

// GetIfFresh returns the cached series if it has not expired.
// The bool is false when the key is missing or stale.
func (r *CacheRepository) GetIfFresh(key string) (frontier.PriceSeries, bool, error) {
	return r.read(
		"SELECT data FROM price_cache WHERE cache_key = ? AND expires_at > ?",
		key, time.Now().Unix(),
	)
}

// Get returns the cached series regardless of expiration. Stale prices are
// used when the source is unreachable.
func (r *CacheRepository) Get(key string) (frontier.PriceSeries, bool, error) {
	return r.read("SELECT data FROM price_cache WHERE cache_key = ?", key)
}

func (r *CacheRepository) read(query string, args ...interface{}) (frontier.PriceSeries, bool, error) {
	var data []byte
	err := r.db.QueryRow(query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return frontier.PriceSeries{}, false, nil
	}
	if err != nil {
		return frontier.PriceSeries{}, false, fmt.Errorf("failed to read price cache: %w", err)
	}

	var payload cachedSeries
	if err := msgpack.Unmarshal(data, &payload); err != nil {
		return frontier.PriceSeries{}, false, fmt.Errorf("failed to decode price series: %w", err)
	}
	for i, d := range payload.Dates {
		payload.Dates[i] = d.UTC()
	}

	return frontier.PriceSeries{
		Symbols: payload.Symbols,
		Dates:   payload.Dates,
		Prices:  payload.Prices,
	}, true, nil
}

// Delete removes a specific entry.
func (r *CacheRepository) Delete(key string) error {
	if _, err := r.db.Exec("DELETE FROM price_cache WHERE cache_key = ?", key); err != nil {
		return fmt.Errorf("failed to delete from price cache: %w", err)
	}
	return nil
}

// DeleteExpired removes all rows where expires_at <= now and returns how many
// were deleted.
func (r *CacheRepository) DeleteExpired() (int64, error) {
	result, err := r.db.Exec("DELETE FROM price_cache WHERE expires_at <= ?", time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired price cache rows: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// Stats counts entries and payload bytes.
func (r *CacheRepository) Stats() (CacheStats, error) {
	var stats CacheStats
	err := r.db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN expires_at > ? THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(LENGTH(data)), 0)
		 FROM price_cache`,
		time.Now().Unix(),
	).Scan(&stats.Entries, &stats.Fresh, &stats.Bytes)
	if err != nil {
		return CacheStats{}, fmt.Errorf("failed to read price cache stats: %w", err)
	}
	return stats, nil
}
