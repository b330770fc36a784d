package models

import (
	"time"

	"github.com/google/uuid"
)

// DeviceRow captures the normalized device metadata for DB operations.
type DeviceRow struct {
	ID          uuid.UUID
	URL         string
	Source      string
	Name        string
	Antenna     string
	Bands       string
	Grid        string
	Lat         *float64
	Lon         *float64
	CountryCode string
	City        string
	Region      string
	Metadata    map[string]any
}

// SampleCandidate is one occupancy reading ready for insertion.
type SampleCandidate struct {
	DeviceID   uuid.UUID
	RunID      uuid.UUID
	TS         time.Time
	Status     string
	Users      *float64
	MaxUsers   *float64
	UsersRatio float64
	SNR        *float64
}

// LastSample represents the most recent stored sample for comparison.
type LastSample struct {
	Status string
	Users  *float64
	TS     time.Time
}
