package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/f5703swl/swl-web-sdr/services/watcher/internal/models"
)

// Schema creates the tables written by the watcher and read by the API.
const Schema = `
CREATE SCHEMA IF NOT EXISTS swl;

CREATE TABLE IF NOT EXISTS swl.devices (
    id           UUID PRIMARY KEY,
    url          TEXT NOT NULL UNIQUE,
    source       TEXT NOT NULL,
    name         TEXT NOT NULL DEFAULT '',
    antenna      TEXT NOT NULL DEFAULT '',
    bands        TEXT NOT NULL DEFAULT '',
    grid         TEXT NOT NULL DEFAULT '',
    lat          DOUBLE PRECISION,
    lon          DOUBLE PRECISION,
    country_code TEXT NOT NULL DEFAULT '',
    city         TEXT NOT NULL DEFAULT '',
    region       TEXT NOT NULL DEFAULT '',
    metadata     JSONB,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS swl.device_samples (
    device_id   UUID NOT NULL REFERENCES swl.devices(id) ON DELETE CASCADE,
    ts          TIMESTAMPTZ NOT NULL,
    run_id      UUID NOT NULL,
    status      TEXT NOT NULL DEFAULT '',
    users       DOUBLE PRECISION,
    max_users   DOUBLE PRECISION,
    users_ratio DOUBLE PRECISION NOT NULL,
    snr         DOUBLE PRECISION,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (device_id, ts)
);`

// EnsureSchema applies Schema; every statement is idempotent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, Schema)
	return err
}

// UpsertDevices inserts/updates device metadata records.
func UpsertDevices(ctx context.Context, pool *pgxpool.Pool, devices []models.DeviceRow) error {
	if len(devices) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `INSERT INTO swl.devices (id, url, source, name, antenna, bands, grid, lat, lon, country_code, city, region, metadata, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW(),NOW())
ON CONFLICT (id) DO UPDATE
SET source = EXCLUDED.source,
    name = EXCLUDED.name,
    antenna = EXCLUDED.antenna,
    bands = EXCLUDED.bands,
    grid = EXCLUDED.grid,
    lat = EXCLUDED.lat,
    lon = EXCLUDED.lon,
    country_code = EXCLUDED.country_code,
    city = EXCLUDED.city,
    region = EXCLUDED.region,
    metadata = EXCLUDED.metadata,
    updated_at = NOW()`

	for _, d := range devices {
		batch.Queue(query, d.ID, d.URL, d.Source, d.Name, d.Antenna, d.Bands, d.Grid, d.Lat, d.Lon, d.CountryCode, d.City, d.Region, d.Metadata)
	}

	res := pool.SendBatch(ctx, batch)
	defer res.Close()

	for range devices {
		if _, err := res.Exec(); err != nil {
			return err
		}
	}

	return nil
}

// FetchLastSamples loads the most recent stored sample per device.
func FetchLastSamples(ctx context.Context, pool *pgxpool.Pool, deviceIDs []uuid.UUID) (map[uuid.UUID]models.LastSample, error) {
	result := make(map[uuid.UUID]models.LastSample, len(deviceIDs))
	if len(deviceIDs) == 0 {
		return result, nil
	}

	rows, err := pool.Query(ctx, `
SELECT DISTINCT ON (device_id) device_id, status, users, ts
FROM swl.device_samples
WHERE device_id = ANY($1)
ORDER BY device_id, ts DESC`, deviceIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   uuid.UUID
			last models.LastSample
		)
		if err := rows.Scan(&id, &last.Status, &last.Users, &last.TS); err != nil {
			return nil, err
		}
		result[id] = last
	}

	return result, rows.Err()
}

// InsertSamples writes new occupancy samples.
func InsertSamples(ctx context.Context, pool *pgxpool.Pool, samples []models.SampleCandidate) error {
	if len(samples) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `INSERT INTO swl.device_samples (device_id, ts, run_id, status, users, max_users, users_ratio, snr, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
ON CONFLICT (device_id, ts) DO UPDATE
SET status = EXCLUDED.status,
    users = EXCLUDED.users,
    max_users = EXCLUDED.max_users,
    users_ratio = EXCLUDED.users_ratio,
    snr = EXCLUDED.snr`

	for _, s := range samples {
		batch.Queue(query, s.DeviceID, s.TS, s.RunID, s.Status, s.Users, s.MaxUsers, s.UsersRatio, s.SNR)
	}

	res := pool.SendBatch(ctx, batch)
	defer res.Close()

	for range samples {
		if _, err := res.Exec(); err != nil {
			return err
		}
	}

	return nil
}
