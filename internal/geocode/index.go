// Package geocode resolves coordinates to the nearest known place using an
// offline GeoNames-style dataset.
package geocode

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/golang/geo/s2"

	"github.com/f5703swl/swl-web-sdr/internal/geo"
)

// Place is the reverse-geocoding result merged into device records.
type Place struct {
	CountryCode string `json:"country_code"`
	City        string `json:"city"`
	Region      string `json:"region"`
}

// Entry is one indexed place.
type Entry struct {
	Lat         float64
	Lon         float64
	Name        string
	Admin1      string
	CountryCode string
}

// Index answers nearest-place queries over a fixed set of entries.
type Index struct {
	mu      sync.Mutex
	shapes  *s2.ShapeIndex
	entries []Entry
}

var requiredColumns = []string{"lat", "lon", "name", "admin1", "cc"}

// NewIndex builds an index over entries.
func NewIndex(entries []Entry) *Index {
	points := make(s2.PointVector, 0, len(entries))
	kept := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Lat < -90 || e.Lat > 90 || e.Lon < -180 || e.Lon > 180 {
			continue
		}
		points = append(points, s2.PointFromLatLng(s2.LatLngFromDegrees(e.Lat, e.Lon)))
		kept = append(kept, e)
	}

	shapes := s2.NewShapeIndex()
	if len(points) > 0 {
		shapes.Add(&points)
	}
	return &Index{shapes: shapes, entries: kept}
}

// LoadIndex reads a dataset in the reverse_geocoder layout
// (lat,lon,name,admin1,admin2,cc with a header row). Rows with unreadable
// coordinates are skipped.
func LoadIndex(r io.Reader) (*Index, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read dataset header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, 0, fmt.Errorf("dataset missing column %q", name)
		}
	}

	var (
		entries []Entry
		skipped int
	)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read dataset row: %w", err)
		}

		field := func(name string) string {
			if i := cols[name]; i < len(row) {
				return strings.TrimSpace(row[i])
			}
			return ""
		}

		lat, errLat := strconv.ParseFloat(field("lat"), 64)
		lon, errLon := strconv.ParseFloat(field("lon"), 64)
		if errLat != nil || errLon != nil {
			skipped++
			continue
		}
		entries = append(entries, Entry{
			Lat:         lat,
			Lon:         lon,
			Name:        field("name"),
			Admin1:      field("admin1"),
			CountryCode: field("cc"),
		})
	}

	return NewIndex(entries), skipped, nil
}

// LoadIndexFile opens path and calls LoadIndex.
func LoadIndexFile(path string) (*Index, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return LoadIndex(f)
}

// Len reports the number of indexed places.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.entries)
}

// Nearest returns the indexed place closest to c.
func (ix *Index) Nearest(c geo.Coordinates) (Place, bool) {
	if ix.Len() == 0 {
		return Place{}, false
	}

	target := s2.NewMinDistanceToPointTarget(s2.PointFromLatLng(s2.LatLngFromDegrees(c.Lat, c.Lon)))

	// the shape index builds lazily on first query
	ix.mu.Lock()
	query := s2.NewClosestEdgeQuery(ix.shapes, s2.NewClosestEdgeQueryOptions().MaxResults(1))
	results := query.FindEdges(target)
	ix.mu.Unlock()

	if len(results) == 0 {
		return Place{}, false
	}
	id := int(results[0].EdgeID())
	if id < 0 || id >= len(ix.entries) {
		return Place{}, false
	}

	e := ix.entries[id]
	return Place{
		CountryCode: strings.ToUpper(e.CountryCode),
		City:        e.Name,
		Region:      e.Admin1,
	}, true
}
