package geocode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Open builds a Geocoder from service configuration. An empty datasetPath
// yields a Geocoder that never finds anything; an empty cachePath keeps the
// memo in memory. The returned close function releases the cache.
func Open(ctx context.Context, datasetPath, cachePath string, log zerolog.Logger) (*Geocoder, func() error, error) {
	noop := func() error { return nil }

	var index *Index
	if datasetPath != "" {
		ix, skipped, err := LoadIndexFile(datasetPath)
		if err != nil {
			return nil, noop, fmt.Errorf("load geocoder dataset: %w", err)
		}
		log.Info().Str("path", datasetPath).Int("places", ix.Len()).Int("skipped", skipped).Msg("geocoder dataset loaded")
		index = ix
	} else {
		log.Warn().Msg("no geocoder dataset configured; country, city and region stay empty")
	}

	if cachePath == "" {
		return New(index, NewMemoryCache(), log), noop, nil
	}

	cache, err := OpenSQLiteCache(ctx, cachePath)
	if err != nil {
		return nil, noop, err
	}
	return New(index, cache, log), cache.Close, nil
}
