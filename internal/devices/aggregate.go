package devices

import (
	"context"

	"github.com/f5703swl/swl-web-sdr/internal/geo"
	"github.com/f5703swl/swl-web-sdr/internal/geocode"
	"github.com/f5703swl/swl-web-sdr/internal/sources"
)

// ReverseGeocoder resolves coordinates to a place, nil when unknown.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, c geo.Coordinates) *geocode.Place
}

// Aggregator merges per-source payloads into one enriched collection.
type Aggregator struct {
	Registry *sources.Registry
	Geocoder ReverseGeocoder
	Labels   geo.DirectionLabels
}

// NewAggregator returns an Aggregator with English direction labels. A nil
// geocoder leaves country, city and region unset.
func NewAggregator(reg *sources.Registry, geocoder ReverseGeocoder) *Aggregator {
	return &Aggregator{Registry: reg, Geocoder: geocoder, Labels: geo.EnglishLabels}
}

// WithLabels returns a copy of a that renders gps with labels.
func (a *Aggregator) WithLabels(labels geo.DirectionLabels) *Aggregator {
	cp := *a
	cp.Labels = labels
	return &cp
}

// Aggregate walks the registry in declaration order, dedupes each source's
// devices and enriches them. Sources with a nil payload or no devices
// collection contribute nothing. Records are modified in place.
func (a *Aggregator) Aggregate(ctx context.Context, payloads map[string]*Payload) []Record {
	out := make([]Record, 0)
	for _, src := range a.Registry.All() {
		payload := payloads[src.ID]
		if payload == nil || payload.Devices == nil {
			continue
		}

		for _, rec := range Dedupe(payload.Devices) {
			a.enrich(ctx, src, rec)
			out = append(out, rec)
		}
	}
	return out
}

func (a *Aggregator) enrich(ctx context.Context, src sources.Source, rec Record) {
	rec[FieldSource] = src.DisplayName()
	NormalizeSNR(rec)

	// grid and place come from the published gps; the display string that
	// replaces it below is not meant to be parsed again
	rawGPS := rec[FieldGPS]
	coords, gpsErr := geo.ParseCoordinates(rawGPS)

	rec[FieldGrid] = nil
	if gpsErr == nil {
		if grid, err := geo.GridLocator(coords); err == nil {
			rec[FieldGrid] = grid
		}
	}

	ConvertBands(rec)

	if gpsErr == nil && a.Geocoder != nil {
		if place := a.Geocoder.Reverse(ctx, coords); place != nil {
			rec[FieldCountryCode] = place.CountryCode
			rec[FieldCity] = place.City
			rec[FieldRegion] = place.Region
		}
	}

	rec[FieldUsersRatio] = UsersRatio(rec)

	if !isEmpty(rawGPS) {
		if gpsErr == nil {
			rec[FieldGPS] = geo.FormatDisplay(coords, a.Labels)
		} else {
			rec[FieldGPS] = rawGPS
		}
	}
}
