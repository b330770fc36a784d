// Package geo parses receiver positions and derives grid locators and display
// strings from them.
package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrNoCoordinates is returned for a nil or empty gps value.
	ErrNoCoordinates = errors.New("no coordinates")
	// ErrMalformedCoordinates is returned for a gps value that is present but
	// cannot be read as a latitude/longitude pair.
	ErrMalformedCoordinates = errors.New("malformed coordinates")
)

// Coordinates is a WGS84 position in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ParseCoordinates reads the position shapes published by SDR directories:
//
//	"(48.8567, 2.3508)" or "48.8567,2.3508"
//	{"lat": 48.8567, "lon": 2.3508} or {"latitude": ..., "longitude": ...}
//	[48.8567, 2.3508, ...]
func ParseCoordinates(v any) (Coordinates, error) {
	switch t := v.(type) {
	case nil:
		return Coordinates{}, ErrNoCoordinates
	case string:
		if t == "" {
			return Coordinates{}, ErrNoCoordinates
		}
		return parseString(t)
	case map[string]any:
		if len(t) == 0 {
			return Coordinates{}, ErrNoCoordinates
		}
		return parseMap(t)
	case []any:
		if len(t) == 0 {
			return Coordinates{}, ErrNoCoordinates
		}
		if len(t) < 2 {
			return Coordinates{}, malformed("need two elements, got %d", len(t))
		}
		return pair(t[0], t[1])
	case []float64:
		if len(t) == 0 {
			return Coordinates{}, ErrNoCoordinates
		}
		if len(t) < 2 {
			return Coordinates{}, malformed("need two elements, got %d", len(t))
		}
		return finite(Coordinates{Lat: t[0], Lon: t[1]})
	case Coordinates:
		return finite(t)
	default:
		return Coordinates{}, malformed("unsupported type %T", v)
	}
}

func parseString(s string) (Coordinates, error) {
	clean := strings.ReplaceAll(strings.Trim(s, "() "), " ", "")
	parts := strings.Split(clean, ",")
	if len(parts) != 2 {
		return Coordinates{}, malformed("%q: expected lat,lon", s)
	}
	return pair(parts[0], parts[1])
}

func parseMap(m map[string]any) (Coordinates, error) {
	lat, ok := m["lat"]
	if !ok {
		lat = m["latitude"]
	}
	lon, ok := m["lon"]
	if !ok {
		lon = m["longitude"]
	}
	return pair(lat, lon)
}

func pair(lat, lon any) (Coordinates, error) {
	la, ok := number(lat)
	if !ok {
		return Coordinates{}, malformed("latitude %v", lat)
	}
	lo, ok := number(lon)
	if !ok {
		return Coordinates{}, malformed("longitude %v", lon)
	}
	return finite(Coordinates{Lat: la, Lon: lo})
}

func finite(c Coordinates) (Coordinates, error) {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lon) || math.IsInf(c.Lon, 0) {
		return Coordinates{}, malformed("non-finite value")
	}
	return c, nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedCoordinates, fmt.Sprintf(format, args...))
}
