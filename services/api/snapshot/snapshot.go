// Package snapshot keeps the latest aggregated device collection in memory,
// one per dashboard language, and refreshes it on an interval.
package snapshot

import (
	"sync"
	"time"

	"golang.org/x/text/language"

	"github.com/f5703swl/swl-web-sdr/internal/devices"
	"github.com/f5703swl/swl-web-sdr/internal/i18n"
	"github.com/f5703swl/swl-web-sdr/internal/sources"
)

// SourceStatus reports how one enabled source fared during a refresh.
type SourceStatus struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Devices int    `json:"devices"`
}

// Snapshot is an immutable aggregate. Handlers must copy Records before
// reordering them and never mutate the records themselves.
type Snapshot struct {
	Records   []devices.Record `json:"devices"`
	Sources   []SourceStatus   `json:"sources"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Summary holds the dashboard headline metrics.
type Summary struct {
	TotalActive int `json:"total_active"`
	TotalUsers  int `json:"total_users"`
	TotalSDRs   int `json:"total_sdrs"`
}

// Summarize counts active devices and their listeners over all records.
func Summarize(records []devices.Record) Summary {
	s := Summary{TotalSDRs: len(records)}
	for _, rec := range records {
		if rec.Status() != devices.StatusActive {
			continue
		}
		s.TotalActive++
		if users, ok := rec.Float(devices.FieldUsers); ok && users > 0 {
			s.TotalUsers += int(users)
		}
	}
	return s
}

// Store holds the latest snapshot per language code.
type Store struct {
	mu     sync.RWMutex
	byLang map[string]*Snapshot
}

func NewStore() *Store {
	return &Store{byLang: make(map[string]*Snapshot)}
}

// Get returns the snapshot rendered for tag, false before the first refresh.
func (s *Store) Get(tag language.Tag) (*Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.byLang[i18n.Code(tag)]
	return snap, ok
}

// Set replaces the snapshot for tag.
func (s *Store) Set(tag language.Tag, snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byLang[i18n.Code(tag)] = snap
}

func sourceStatuses(reg *sources.Registry, payloads map[string]*devices.Payload) []SourceStatus {
	out := make([]SourceStatus, 0, reg.Len())
	for _, src := range reg.Enabled() {
		st := SourceStatus{ID: src.ID, Name: src.DisplayName()}
		if p := payloads[src.ID]; p != nil {
			st.OK = true
			st.Devices = len(p.Devices)
		}
		out = append(out, st)
	}
	return out
}
