package devices

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FieldOutcome reports what a best-effort field conversion did.
type FieldOutcome int

const (
	// FieldAbsent means the field was missing or not of a convertible type.
	FieldAbsent FieldOutcome = iota
	// FieldConverted means the field was rewritten.
	FieldConverted
	// FieldUnchanged means the field was present but could not be parsed and
	// kept its original value.
	FieldUnchanged
)

func (o FieldOutcome) String() string {
	switch o {
	case FieldConverted:
		return "converted"
	case FieldUnchanged:
		return "unchanged"
	default:
		return "absent"
	}
}

// NormalizeSNR turns a comma-decimal snr string ("12,5") into a float. A value
// that still fails to parse is left untouched.
func NormalizeSNR(rec Record) FieldOutcome {
	switch v := rec[FieldSNR].(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(v, ",", ".")), 64)
		if err != nil {
			return FieldUnchanged
		}
		rec[FieldSNR] = f
		return FieldConverted
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return FieldUnchanged
		}
		rec[FieldSNR] = f
		return FieldConverted
	default:
		return FieldAbsent
	}
}

// ConvertBands rewrites a "start-end" hertz range as "x.xx-y.yy MHz". Any
// other shape is left as published.
func ConvertBands(rec Record) FieldOutcome {
	raw, ok := rec[FieldBands].(string)
	if !ok {
		return FieldAbsent
	}
	formatted, ok := FormatBandRange(raw)
	if !ok {
		return FieldUnchanged
	}
	rec[FieldBands] = formatted
	return FieldConverted
}

// FormatBandRange converts "3500000-3800000" to "3.50-3.80 MHz".
func FormatBandRange(raw string) (string, bool) {
	if !strings.Contains(raw, "-") {
		return "", false
	}
	parts := strings.Split(raw, "-")
	if len(parts) != 2 {
		return "", false
	}
	start, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return "", false
	}
	end, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%.2f-%.2f MHz", start/1e6, end/1e6), true
}

// UsersRatio is the occupancy in percent, clamped to [0, 100]. A missing or
// sub-1 max_users counts as 1.
func UsersRatio(rec Record) float64 {
	users, _ := rec.Float(FieldUsers)
	maxUsers, ok := rec.Float(FieldMaxUsers)
	if !ok || maxUsers < 1 {
		maxUsers = 1
	}

	ratio := users / maxUsers
	switch {
	case math.IsNaN(ratio) || ratio < 0:
		ratio = 0
	case ratio > 1:
		ratio = 1
	}
	return ratio * 100
}
