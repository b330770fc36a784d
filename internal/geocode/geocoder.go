package geocode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/f5703swl/swl-web-sdr/internal/geo"
)

// Geocoder is an Index lookup memoized through a Cache.
type Geocoder struct {
	index *Index
	cache Cache
	log   zerolog.Logger
}

// New returns a Geocoder. A nil cache disables memoization; a nil or empty
// index makes every lookup miss.
func New(index *Index, cache Cache, log zerolog.Logger) *Geocoder {
	return &Geocoder{index: index, cache: cache, log: log}
}

// CacheKey rounds c to 4 decimals (about 11 m), enough to collapse repeated
// reports from the same receiver.
func CacheKey(c geo.Coordinates) string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
}

// Reverse returns the nearest place to c, or nil when nothing is indexed.
// Cache failures are logged and fall through to the index.
func (g *Geocoder) Reverse(ctx context.Context, c geo.Coordinates) *Place {
	if g == nil || g.index.Len() == 0 {
		return nil
	}

	key := CacheKey(c)
	if g.cache != nil {
		place, hit, err := g.cache.Get(ctx, key)
		if err != nil {
			g.log.Warn().Err(err).Str("key", key).Msg("geocode cache read failed")
		} else if hit {
			return place
		}
	}

	var place *Place
	if p, ok := g.index.Nearest(c); ok {
		place = &p
	}

	if g.cache != nil {
		if err := g.cache.Put(ctx, key, place); err != nil {
			g.log.Warn().Err(err).Str("key", key).Msg("geocode cache write failed")
		}
	}
	return place
}
