package utils

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/f5703swl/swl-web-sdr/internal/devices"
	"github.com/f5703swl/swl-web-sdr/internal/geo"
	"github.com/f5703swl/swl-web-sdr/internal/sources"
	"github.com/f5703swl/swl-web-sdr/services/watcher/internal/models"
)

// DeviceID derives a stable identifier from a device url, so the same
// receiver maps to the same row across runs and sources.
func DeviceID(url string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url))
}

// RawCoordinates collects the parseable gps position of every record the
// aggregation keeps, keyed by CoordinatesKey. It walks the registry and
// dedupes each source the same way aggregation does, and it must run first
// because aggregation replaces gps with a display string.
func RawCoordinates(reg *sources.Registry, payloads map[string]*devices.Payload) map[string]geo.Coordinates {
	out := make(map[string]geo.Coordinates)
	for _, src := range reg.All() {
		p := payloads[src.ID]
		if p == nil {
			continue
		}
		for _, rec := range devices.Dedupe(p.Devices) {
			if c, err := geo.ParseCoordinates(rec[devices.FieldGPS]); err == nil {
				out[CoordinatesKey(src.DisplayName(), rec.URL())] = c
			}
		}
	}
	return out
}

// CoordinatesKey identifies one aggregated record: the same url may be listed
// by several sources with different positions.
func CoordinatesKey(source, url string) string {
	return source + "\x00" + url
}

// BuildDeviceRows converts enriched records into database-ready device rows.
func BuildDeviceRows(records []devices.Record, coords map[string]geo.Coordinates) []models.DeviceRow {
	rows := make([]models.DeviceRow, 0, len(records))
	for _, rec := range records {
		url := rec.URL()
		if url == "" {
			continue
		}
		row := models.DeviceRow{
			ID:          DeviceID(url),
			URL:         url,
			Source:      str(rec, devices.FieldSource),
			Name:        str(rec, devices.FieldName),
			Antenna:     str(rec, devices.FieldAntenna),
			Bands:       str(rec, devices.FieldBands),
			Grid:        str(rec, devices.FieldGrid),
			CountryCode: str(rec, devices.FieldCountryCode),
			City:        str(rec, devices.FieldCity),
			Region:      str(rec, devices.FieldRegion),
			Metadata: map[string]any{
				"gps":    rec[devices.FieldGPS],
				"uptime": rec[devices.FieldUptime],
			},
		}
		if c, ok := coords[CoordinatesKey(row.Source, url)]; ok {
			lat, lon := c.Lat, c.Lon
			row.Lat, row.Lon = &lat, &lon
		}
		rows = append(rows, row)
	}
	return rows
}

// DeviceIDs extracts device identifiers from device rows.
func DeviceIDs(rows []models.DeviceRow) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}

// BuildSampleCandidates turns enriched records into occupancy samples stamped
// with the run id and retrieval time.
func BuildSampleCandidates(records []devices.Record, runID uuid.UUID, retrievalTS time.Time) []models.SampleCandidate {
	candidates := make([]models.SampleCandidate, 0, len(records))
	for _, rec := range records {
		url := rec.URL()
		if url == "" {
			continue
		}
		ratio, _ := rec.Float(devices.FieldUsersRatio)
		candidates = append(candidates, models.SampleCandidate{
			DeviceID:   DeviceID(url),
			RunID:      runID,
			TS:         retrievalTS,
			Status:     rec.Status(),
			Users:      floatPtr(rec, devices.FieldUsers),
			MaxUsers:   floatPtr(rec, devices.FieldMaxUsers),
			UsersRatio: ratio,
			SNR:        floatPtr(rec, devices.FieldSNR),
		})
	}
	return candidates
}

// FilterNewSamples selects candidates that should be inserted: first samples,
// samples older than minInterval after the last one, and samples whose status
// or user count changed.
func FilterNewSamples(
	candidates []models.SampleCandidate,
	last map[uuid.UUID]models.LastSample,
	minInterval time.Duration,
	epsilon float64,
) []models.SampleCandidate {
	out := make([]models.SampleCandidate, 0, len(candidates))
	for _, cand := range candidates {
		prev, ok := last[cand.DeviceID]
		if !ok {
			out = append(out, cand)
			continue
		}

		if cand.TS.Sub(prev.TS) >= minInterval {
			out = append(out, cand)
			continue
		}

		if prev.Status != cand.Status || !ValuesEqual(prev.Users, cand.Users, epsilon) {
			out = append(out, cand)
		}
	}
	return out
}

// ValuesEqual compares two optional float values with tolerance.
func ValuesEqual(a, b *float64, epsilon float64) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil || b == nil:
		return false
	default:
		return math.Abs(*a-*b) <= epsilon
	}
}

// ValuePtrString prints pointer values for logging.
func ValuePtrString(v *float64) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%.3f", *v)
}

func str(rec devices.Record, key string) string {
	s, _ := rec.String(key)
	return s
}

func floatPtr(rec devices.Record, key string) *float64 {
	f, ok := rec.Float(key)
	if !ok {
		return nil
	}
	return &f
}
