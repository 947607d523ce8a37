// Package cache provides persistent caching for market data fetched through
// the server's market-data proxy. Entries are JSON blobs with an expiry
// timestamp; expired entries stay readable as a fallback for when the
// upstream is unavailable.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Tables lists every cache table.
var Tables = []string{
	"market_chart",
	"markets",
	"currency_rates",
}

var validTables = func() map[string]bool {
	m := make(map[string]bool, len(Tables))
	for _, t := range Tables {
		m[t] = true
	}
	return m
}()

// TTLs per table.
const (
	TTLMarketChart  = 10 * time.Minute
	TTLMarkets      = 2 * time.Minute
	TTLCurrencyRate = time.Hour
)

// Cache is a SQLite-backed key/value store with expiry.
type Cache struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// Open opens (or creates) the cache database and runs migrations.
// ":memory:" gives a private in-process cache.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and
	// serialises writers.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}

	c := &Cache{db: db, now: time.Now}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return c, nil
}

func (c *Cache) migrate() error {
	for _, table := range Tables {
		stmts := []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				key        TEXT PRIMARY KEY,
				data       TEXT NOT NULL,
				expires_at INTEGER NOT NULL
			)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_expires ON %s(expires_at)`, table, table),
		}
		for _, s := range stmts {
			if _, err := c.db.Exec(s); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func validateTable(table string) error {
	if !validTables[table] {
		return fmt.Errorf("invalid table name: %s", table)
	}
	return nil
}

// Store saves data with expiration = now + ttl, replacing any previous entry.
func (c *Cache) Store(table, key string, data interface{}, ttl time.Duration) error {
	if err := validateTable(table); err != nil {
		return err
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	expiresAt := c.now().Add(ttl).UnixMilli()

	c.mu.Lock()
	defer c.mu.Unlock()
	query := fmt.Sprintf("INSERT OR REPLACE INTO %s (key, data, expires_at) VALUES (?, ?, ?)", table)
	if _, err := c.db.Exec(query, key, string(jsonData), expiresAt); err != nil {
		return fmt.Errorf("failed to store data in %s: %w", table, err)
	}
	return nil
}

// GetIfFresh returns data only while it has not expired.
// Returns nil, nil if the key doesn't exist or data is expired.
func (c *Cache) GetIfFresh(table, key string) (json.RawMessage, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT data FROM %s WHERE key = ? AND expires_at > ?", table)
	return c.get(query, key, c.now().UnixMilli())
}

// Get returns data regardless of expiration status.
// Returns nil, nil if the key doesn't exist.
func (c *Cache) Get(table, key string) (json.RawMessage, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT data FROM %s WHERE key = ?", table)
	return c.get(query, key)
}

func (c *Cache) get(query string, args ...interface{}) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var data string
	err := c.db.QueryRow(query, args...).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}
	return json.RawMessage(data), nil
}

// DeleteExpired removes expired rows from every table and returns the
// number removed per table.
func (c *Cache) DeleteExpired() (map[string]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().UnixMilli()
	results := make(map[string]int64, len(Tables))
	for _, table := range Tables {
		res, err := c.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE expires_at <= ?", table), now)
		if err != nil {
			return results, fmt.Errorf("failed to delete expired from %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return results, fmt.Errorf("failed to get rows affected for %s: %w", table, err)
		}
		results[table] = n
	}
	return results, nil
}
