package devices

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f5703swl/swl-web-sdr/internal/geo"
	"github.com/f5703swl/swl-web-sdr/internal/geocode"
	"github.com/f5703swl/swl-web-sdr/internal/sources"
)

func TestDedupePrefersActive(t *testing.T) {
	in := []Record{
		{"url": "a", "status": "idle"},
		{"url": "a", "status": "active"},
	}
	out := Dedupe(in)
	require.Len(t, out, 1)
	assert.Equal(t, "active", out[0].Status())
}

func TestDedupeKeepsFirstOccurrence(t *testing.T) {
	in := []Record{
		{"url": "b", "status": "active", "name": "first-b"},
		{"url": "a", "status": "offline", "name": "first-a"},
		{"url": "b", "status": "active", "name": "second-b"},
		{"url": "a", "status": "offline", "name": "second-a"},
		{"url": "a", "status": "active", "name": "third-a"},
		{"url": "a", "status": "active", "name": "fourth-a"},
		{"name": "no-url"},
		{"url": "", "name": "empty-url"},
		{"url": 0, "name": "zero-url"},
		{"url": true, "name": "bool-url"},
	}

	out := Dedupe(in)
	require.Len(t, out, 2)
	assert.Equal(t, "first-b", out[0]["name"])
	assert.Equal(t, "third-a", out[1]["name"])
}

func TestDedupeNumericURL(t *testing.T) {
	in := []Record{
		{"url": json.Number("42"), "status": "offline", "name": "first"},
		{"url": 42, "status": "active", "name": "second"},
		{"url": json.Number("0"), "name": "zero"},
	}

	out := Dedupe(in)
	require.Len(t, out, 1)
	assert.Equal(t, "second", out[0]["name"])
	assert.Equal(t, "42", out[0].URL())
}

func TestDedupeInvariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	statuses := []string{"active", "offline", "idle"}

	for round := 0; round < 50; round++ {
		in := make([]Record, rng.IntN(40))
		for i := range in {
			in[i] = Record{
				"url":    fmt.Sprintf("http://rx%d", rng.IntN(8)),
				"status": statuses[rng.IntN(len(statuses))],
			}
		}

		out := Dedupe(in)
		assert.LessOrEqual(t, len(out), len(in))

		seen := map[string]bool{}
		for _, rec := range out {
			assert.False(t, seen[rec.URL()], "duplicate url %s", rec.URL())
			seen[rec.URL()] = true
		}

		for _, rec := range in {
			if rec.Status() == StatusActive {
				for _, kept := range out {
					if kept.URL() == rec.URL() {
						assert.Equal(t, StatusActive, kept.Status())
					}
				}
			}
		}
	}

	assert.Empty(t, Dedupe(nil))
}

func TestNormalizeSNR(t *testing.T) {
	rec := Record{"snr": "21,5"}
	assert.Equal(t, FieldConverted, NormalizeSNR(rec))
	assert.Equal(t, 21.5, rec["snr"])

	rec = Record{"snr": json.Number("18")}
	assert.Equal(t, FieldConverted, NormalizeSNR(rec))
	assert.Equal(t, 18.0, rec["snr"])

	rec = Record{"snr": "27,20,3"}
	assert.Equal(t, FieldUnchanged, NormalizeSNR(rec))
	assert.Equal(t, "27,20,3", rec["snr"])

	rec = Record{"snr": 12.0}
	assert.Equal(t, FieldAbsent, NormalizeSNR(rec))
	assert.Equal(t, 12.0, rec["snr"])

	rec = Record{}
	assert.Equal(t, FieldAbsent, NormalizeSNR(rec))
	_, ok := rec["snr"]
	assert.False(t, ok)
}

func TestConvertBands(t *testing.T) {
	tests := []struct {
		in      any
		want    any
		outcome FieldOutcome
	}{
		{in: "3500000-3800000", want: "3.50-3.80 MHz", outcome: FieldConverted},
		{in: "0-30000000", want: "0.00-30.00 MHz", outcome: FieldConverted},
		{in: " 10000 - 32000000 ", want: "0.01-32.00 MHz", outcome: FieldConverted},
		{in: "not-a-range", want: "not-a-range", outcome: FieldUnchanged},
		{in: "HF", want: "HF", outcome: FieldUnchanged},
		{in: "1-2-3", want: "1-2-3", outcome: FieldUnchanged},
		{in: 42.0, want: 42.0, outcome: FieldAbsent},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			rec := Record{"bands": tt.in}
			assert.Equal(t, tt.outcome, ConvertBands(rec))
			assert.Equal(t, tt.want, rec["bands"])
		})
	}
}

func TestUsersRatio(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want float64
	}{
		{name: "half", rec: Record{"users": 2, "max_users": 4}, want: 50},
		{name: "over capacity is capped", rec: Record{"users": 150, "max_users": 100}, want: 100},
		{name: "string numbers", rec: Record{"users": "1", "max_users": json.Number("8")}, want: 12.5},
		{name: "zero max counts as one", rec: Record{"users": 0, "max_users": 0}, want: 0},
		{name: "zero max with a user is full", rec: Record{"users": 1, "max_users": 0}, want: 100},
		{name: "missing fields", rec: Record{}, want: 0},
		{name: "negative users", rec: Record{"users": -3, "max_users": 4}, want: 0},
		{name: "garbage users", rec: Record{"users": "many", "max_users": 4}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UsersRatio(tt.rec)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 100.0)
		})
	}
}

type stubGeocoder struct {
	calls []geo.Coordinates
	place *geocode.Place
}

func (s *stubGeocoder) Reverse(_ context.Context, c geo.Coordinates) *geocode.Place {
	s.calls = append(s.calls, c)
	return s.place
}

func testRegistry(t *testing.T) *sources.Registry {
	t.Helper()
	reg, err := sources.New(
		sources.Source{ID: "a", Name: "Source A", URL: "http://a", Format: sources.FormatJSON, Enabled: true},
		sources.Source{ID: "b", Name: "Source B", URL: "http://b", Format: sources.FormatJSON},
	)
	require.NoError(t, err)
	return reg
}

func TestAggregateEndToEnd(t *testing.T) {
	gc := &stubGeocoder{place: &geocode.Place{CountryCode: "FR", City: "Paris", Region: "Ile-de-France"}}
	agg := NewAggregator(testRegistry(t), gc)

	payloads := map[string]*Payload{
		"a": {Devices: []Record{{
			"url":       "http://rx1.example:8073",
			"status":    "active",
			"users":     json.Number("2"),
			"max_users": json.Number("4"),
			"snr":       "21,5",
			"bands":     "0-30000000",
			"gps":       "(48.8567, 2.3508)",
		}}},
		"b": nil,
	}

	out := agg.Aggregate(context.Background(), payloads)
	require.Len(t, out, 1)

	rec := out[0]
	assert.Equal(t, "Source A", rec["source"])
	assert.Equal(t, "JN18eu", rec["grid"])
	assert.Equal(t, "48.8567°N, 2.3508°E", rec["gps"])
	assert.Equal(t, 50.0, rec["users_ratio"])
	assert.Equal(t, 21.5, rec["snr"])
	assert.Equal(t, "0.00-30.00 MHz", rec["bands"])
	assert.Equal(t, "FR", rec["country_code"])
	assert.Equal(t, "Paris", rec["city"])
	assert.Equal(t, "Ile-de-France", rec["region"])

	require.Len(t, gc.calls, 1)
	assert.InDelta(t, 48.8567, gc.calls[0].Lat, 1e-9)
	assert.InDelta(t, 2.3508, gc.calls[0].Lon, 1e-9)
}

func TestAggregateBadAndMissingGPS(t *testing.T) {
	gc := &stubGeocoder{}
	agg := NewAggregator(testRegistry(t), gc)

	payloads := map[string]*Payload{
		"a": {Devices: []Record{
			{"url": "http://bad", "status": "active", "gps": "somewhere nice"},
			{"url": "http://none", "status": "active"},
			{"url": "http://empty", "status": "active", "gps": ""},
		}},
	}

	out := agg.Aggregate(context.Background(), payloads)
	require.Len(t, out, 3)

	assert.Nil(t, out[0]["grid"])
	assert.Equal(t, "somewhere nice", out[0]["gps"])
	_, hasCountry := out[0]["country_code"]
	assert.False(t, hasCountry)

	assert.Nil(t, out[1]["grid"])
	_, hasGPS := out[1]["gps"]
	assert.False(t, hasGPS)

	assert.Equal(t, "", out[2]["gps"])
	assert.Empty(t, gc.calls)
}

func TestAggregateOrderAndPerSourceDedupe(t *testing.T) {
	reg, err := sources.New(
		sources.Source{ID: "first", Name: "First", URL: "http://1", Format: sources.FormatJSON, Enabled: true},
		sources.Source{ID: "second", Name: "Second", URL: "http://2", Format: sources.FormatJSON, Enabled: true},
		sources.Source{ID: "third", Name: "Third", URL: "http://3", Format: sources.FormatJSON, Enabled: true},
	)
	require.NoError(t, err)

	payloads := map[string]*Payload{
		"second": {Devices: []Record{{"url": "shared"}, {"url": "s2"}}},
		"first":  {Devices: []Record{{"url": "shared"}, {"url": "shared"}}},
		"third":  {},
	}

	out := NewAggregator(reg, nil).Aggregate(context.Background(), payloads)
	require.Len(t, out, 3)
	assert.Equal(t, "First", out[0]["source"])
	assert.Equal(t, "Second", out[1]["source"])
	assert.Equal(t, "shared", out[1].URL())
	assert.Equal(t, "s2", out[2].URL())
}

func TestAggregateWithLabels(t *testing.T) {
	french := geo.DirectionLabels{North: "N", South: "S", East: "E", West: "O"}
	agg := NewAggregator(testRegistry(t), nil).WithLabels(french)

	out := agg.Aggregate(context.Background(), map[string]*Payload{
		"a": {Devices: []Record{{"url": "x", "gps": map[string]any{"latitude": -12.5, "longitude": -77.0}}}},
	})
	require.Len(t, out, 1)
	assert.Equal(t, "12.5000°S, 77.0000°O", out[0]["gps"])
	assert.Equal(t, "FH17mm", out[0]["grid"])
}

func TestPayloadClone(t *testing.T) {
	orig := &Payload{Devices: []Record{{"url": "x", "gps": "1,2"}}}
	cp := orig.Clone()
	cp.Devices[0]["gps"] = "changed"
	assert.Equal(t, "1,2", orig.Devices[0]["gps"])

	assert.Nil(t, (*Payload)(nil).Clone())
	assert.Nil(t, (&Payload{}).Clone().Devices)
}

func TestPickRandomAvailable(t *testing.T) {
	_, ok := PickRandomAvailable(nil, nil)
	assert.False(t, ok)

	ineligible := []Record{
		{"url": "full", "status": "active", "users_ratio": 100.0},
		{"url": "off", "status": "offline", "users_ratio": 10.0},
		{"url": "", "status": "active", "users_ratio": 10.0},
		{"url": "unknown", "status": "active"},
	}
	_, ok = PickRandomAvailable(ineligible, nil)
	assert.False(t, ok)

	only := Record{"url": "http://free", "status": "active", "users_ratio": 25.0}
	records := append(append([]Record{}, ineligible...), only)
	rng := rand.New(rand.NewPCG(7, 7))
	for i := 0; i < 20; i++ {
		got, ok := PickRandomAvailable(records, rng)
		require.True(t, ok)
		assert.Equal(t, "http://free", got.URL())
	}
}

func TestPickRandomAvailableCoversAllEligible(t *testing.T) {
	records := []Record{
		{"url": "a", "status": "active", "users_ratio": 0.0},
		{"url": "b", "status": "active", "users_ratio": 99.9},
	}
	rng := rand.New(rand.NewPCG(3, 4))
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		got, ok := PickRandomAvailable(records, rng)
		require.True(t, ok)
		seen[got.URL()] = true
	}
	assert.Len(t, seen, 2)
}
