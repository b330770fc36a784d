// Package devices turns raw directory listings into the enriched device
// collection served to the dashboard.
package devices

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Field names shared by directories and the enriched output.
const (
	FieldURL         = "url"
	FieldName        = "name"
	FieldStatus      = "status"
	FieldUsers       = "users"
	FieldMaxUsers    = "max_users"
	FieldSNR         = "snr"
	FieldBands       = "bands"
	FieldGPS         = "gps"
	FieldUptime      = "uptime"
	FieldAntenna     = "antenna"
	FieldSource      = "source"
	FieldGrid        = "grid"
	FieldCountryCode = "country_code"
	FieldCity        = "city"
	FieldRegion      = "region"
	FieldUsersRatio  = "users_ratio"
)

// StatusActive is the status value of a receiver accepting listeners.
const StatusActive = "active"

// Record is one device as published by a directory. Values keep whatever
// shape the directory used; enrichment adds and rewrites keys in place.
type Record map[string]any

// Payload is a parsed directory response. Devices is nil when the document
// carried no devices collection.
type Payload struct {
	Devices []Record `json:"devices"`
}

// String returns a string field. Non-string values report false.
func (r Record) String(key string) (string, bool) {
	s, ok := r[key].(string)
	return s, ok
}

// URL returns the device url. Numeric urls are rendered as text, zero counts
// as absent like an empty string; other types are absent.
func (r Record) URL() string {
	switch v := r[FieldURL].(type) {
	case string:
		return v
	case json.Number:
		if f, err := v.Float64(); err == nil && f == 0 {
			return ""
		}
		return v.String()
	case int, int64, int32, float64, float32:
		f, _ := toFloat(v)
		if f == 0 {
			return ""
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	default:
		return ""
	}
}

// Status returns the device status, empty when absent.
func (r Record) Status() string {
	s, _ := r.String(FieldStatus)
	return s
}

// Float reads a numeric field that may have been published as a number or a
// string.
func (r Record) Float(key string) (float64, bool) {
	return toFloat(r[key])
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
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

// isEmpty mirrors a directory's notion of "no value": nil, empty string,
// empty collection.
func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}

// Clone copies the payload so it can be enriched more than once. Records are
// copied one level deep, which is all enrichment rewrites.
func (p *Payload) Clone() *Payload {
	if p == nil {
		return nil
	}
	if p.Devices == nil {
		return &Payload{}
	}
	out := &Payload{Devices: make([]Record, len(p.Devices))}
	for i, rec := range p.Devices {
		out.Devices[i] = rec.Clone()
	}
	return out
}
