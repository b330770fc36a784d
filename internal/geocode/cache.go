package geocode

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// Cache memoizes lookups. A hit with a nil place records a lookup that found
// nothing. The same key always maps to the same value, so entries never
// expire.
type Cache interface {
	Get(ctx context.Context, key string) (place *Place, hit bool, err error)
	Put(ctx context.Context, key string, place *Place) error
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Place
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*Place)}
}

func (m *MemoryCache) Get(_ context.Context, key string) (*Place, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	place, ok := m.entries[key]
	return place, ok, nil
}

func (m *MemoryCache) Put(_ context.Context, key string, place *Place) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = place
	return nil
}

// SQLiteCache persists lookups across restarts.
type SQLiteCache struct {
	db *sql.DB
}

const createCacheSQL = `
CREATE TABLE IF NOT EXISTS geocode_cache (
    key          TEXT PRIMARY KEY,
    found        INTEGER NOT NULL,
    country_code TEXT NOT NULL DEFAULT '',
    city         TEXT NOT NULL DEFAULT '',
    region       TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`

// OpenSQLiteCache opens (or creates) the cache database at path.
func OpenSQLiteCache(ctx context.Context, path string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open geocode cache: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA journal_mode=WAL", createCacheSQL} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init geocode cache: %w", err)
		}
	}
	return &SQLiteCache{db: db}, nil
}

func (s *SQLiteCache) Get(ctx context.Context, key string) (*Place, bool, error) {
	var (
		found int
		place Place
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT found, country_code, city, region FROM geocode_cache WHERE key = ?`, key,
	).Scan(&found, &place.CountryCode, &place.City, &place.Region)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if found == 0 {
		return nil, true, nil
	}
	return &place, true, nil
}

func (s *SQLiteCache) Put(ctx context.Context, key string, place *Place) error {
	found := 0
	var p Place
	if place != nil {
		found = 1
		p = *place
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO geocode_cache (key, found, country_code, city, region)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (key) DO UPDATE
SET found = excluded.found,
    country_code = excluded.country_code,
    city = excluded.city,
    region = excluded.region`,
		key, found, p.CountryCode, p.City, p.Region)
	return err
}

// Close releases the database handle.
func (s *SQLiteCache) Close() error {
	return s.db.Close()
}
