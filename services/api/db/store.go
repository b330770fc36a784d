package db

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps database access helpers.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Device represents a device metadata record written by the watcher.
type Device struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Name        string    `json:"name"`
	Antenna     string    `json:"antenna,omitempty"`
	Bands       string    `json:"bands,omitempty"`
	Grid        string    `json:"grid,omitempty"`
	Lat         *float64  `json:"lat,omitempty"`
	Lon         *float64  `json:"lon,omitempty"`
	CountryCode string    `json:"country_code,omitempty"`
	City        string    `json:"city,omitempty"`
	Region      string    `json:"region,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const deviceByURLSQL = `
    SELECT id::text, url, source, name, antenna, bands, grid, lat, lon, country_code, city, region, created_at, updated_at
    FROM swl.devices
    WHERE url = $1
`

// GetDeviceByURL returns the stored device for url, nil when unknown.
func (s *Store) GetDeviceByURL(ctx context.Context, url string) (*Device, error) {
	var d Device
	err := s.pool.QueryRow(ctx, deviceByURLSQL, url).Scan(
		&d.ID,
		&d.URL,
		&d.Source,
		&d.Name,
		&d.Antenna,
		&d.Bands,
		&d.Grid,
		&d.Lat,
		&d.Lon,
		&d.CountryCode,
		&d.City,
		&d.Region,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Sample is one stored occupancy reading.
type Sample struct {
	Timestamp  time.Time `json:"ts"`
	Status     string    `json:"status"`
	Users      *float64  `json:"users"`
	MaxUsers   *float64  `json:"max_users"`
	UsersRatio float64   `json:"users_ratio"`
	SNR        *float64  `json:"snr"`
}

// SampleQuery holds filters for retrieving samples.
type SampleQuery struct {
	DeviceID string
	Limit    int
	Since    *time.Time
	Until    *time.Time
}

const samplesBase = `
    SELECT ts, status, users, max_users, users_ratio, snr
    FROM swl.device_samples
    WHERE device_id = $1::uuid
`

// FetchSamples returns samples for a device based on the query, oldest first.
// With a limit, the most recent samples are kept.
func (s *Store) FetchSamples(ctx context.Context, q SampleQuery) ([]Sample, error) {
	args := []any{q.DeviceID}
	clause := ""
	argPos := 2
	if q.Since != nil {
		clause += " AND ts >= $" + strconv.Itoa(argPos)
		args = append(args, *q.Since)
		argPos++
	}
	if q.Until != nil {
		clause += " AND ts <= $" + strconv.Itoa(argPos)
		args = append(args, *q.Until)
		argPos++
	}
	limit := ""
	if q.Limit > 0 {
		limit = " LIMIT $" + strconv.Itoa(argPos)
		args = append(args, q.Limit)
	}

	sql := "SELECT * FROM (" + samplesBase + clause + " ORDER BY ts DESC" + limit + ") recent ORDER BY ts"

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	samples := make([]Sample, 0)
	for rows.Next() {
		var m Sample
		if err := rows.Scan(
			&m.Timestamp,
			&m.Status,
			&m.Users,
			&m.MaxUsers,
			&m.UsersRatio,
			&m.SNR,
		); err != nil {
			return nil, err
		}
		samples = append(samples, m)
	}
	return samples, rows.Err()
}

// OccupancyAverages holds mean users_ratio over recent windows.
type OccupancyAverages struct {
	Avg1h  *float64 `json:"avg_1h"`
	Avg6h  *float64 `json:"avg_6h"`
	Avg24h *float64 `json:"avg_24h"`
	Avg7d  *float64 `json:"avg_7d"`
}

const averagesSQL = `
SELECT
  (SELECT AVG(users_ratio) FROM swl.device_samples WHERE status = 'active' AND ts >= now() - interval '1 hour') AS avg_1h,
  (SELECT AVG(users_ratio) FROM swl.device_samples WHERE status = 'active' AND ts >= now() - interval '6 hours') AS avg_6h,
  (SELECT AVG(users_ratio) FROM swl.device_samples WHERE status = 'active' AND ts >= now() - interval '24 hours') AS avg_24h,
  (SELECT AVG(users_ratio) FROM swl.device_samples WHERE status = 'active' AND ts >= now() - interval '7 days') AS avg_7d
`

// GetOccupancyAverages computes the average occupancy of active devices for
// the last hour, 6 hours, day and week. Null averages are possible when no
// samples exist in the given window.
func (s *Store) GetOccupancyAverages(ctx context.Context) (*OccupancyAverages, error) {
	row := s.pool.QueryRow(ctx, averagesSQL)
	var a OccupancyAverages
	if err := row.Scan(&a.Avg1h, &a.Avg6h, &a.Avg24h, &a.Avg7d); err != nil {
		return nil, err
	}
	return &a, nil
}
