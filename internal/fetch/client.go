// Package fetch retrieves directory listings over HTTP.
package fetch

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/f5703swl/swl-web-sdr/internal/devices"
	"github.com/f5703swl/swl-web-sdr/internal/sources"
)

const (
	defaultUserAgent   = "swl-web-sdr"
	defaultConcurrency = 4
)

// Fetcher downloads and decodes source payloads. It keeps no cache.
type Fetcher struct {
	client    *http.Client
	parsers   map[sources.Format]Parser
	userAgent string
	log       zerolog.Logger
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithUserAgent sets the User-Agent header sent to directories.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithParser registers or replaces the parser for a format.
func WithParser(format sources.Format, p Parser) Option {
	return func(f *Fetcher) { f.parsers[format] = p }
}

// WithLogger sets the logger used for per-source failures in FetchAll.
func WithLogger(log zerolog.Logger) Option {
	return func(f *Fetcher) { f.log = log }
}

// New returns a Fetcher using client for all requests.
func New(client *http.Client, opts ...Option) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := &Fetcher{
		client:    client,
		parsers:   DefaultParsers(),
		userAgent: defaultUserAgent,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Validate checks that every source in reg has a parser. It is meant to run
// at startup so format typos fail fast.
func (f *Fetcher) Validate(reg *sources.Registry) error {
	for _, src := range reg.All() {
		if _, ok := f.parsers[src.Format]; !ok {
			return &UnsupportedFormatError{Source: src.ID, Format: src.Format}
		}
	}
	return nil
}

// Fetch downloads one source. Disabled sources return nil without touching
// the network.
func (f *Fetcher) Fetch(ctx context.Context, src sources.Source) (*devices.Payload, error) {
	if !src.Enabled {
		return nil, nil
	}

	parse, ok := f.parsers[src.Format]
	if !ok {
		return nil, &UnsupportedFormatError{Source: src.ID, Format: src.Format}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, http.NoBody)
	if err != nil {
		return nil, &FetchError{Source: src.ID, URL: src.URL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Source: src.ID, URL: src.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{
			Source:     src.ID,
			URL:        src.URL,
			StatusCode: resp.StatusCode,
			Err:        errors.New(resp.Status),
		}
	}

	payload, err := parse(resp.Body)
	if err != nil {
		return nil, &FetchError{Source: src.ID, URL: src.URL, Err: err}
	}
	return payload, nil
}

// FetchAll downloads every enabled source concurrently. A source that fails
// to fetch is logged and maps to nil; an unsupported format aborts the run.
// Disabled sources are present in the result with a nil payload.
func (f *Fetcher) FetchAll(ctx context.Context, reg *sources.Registry) (map[string]*devices.Payload, error) {
	all := reg.All()
	out := make(map[string]*devices.Payload, len(all))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultConcurrency)

	for _, src := range all {
		out[src.ID] = nil
	}

	for _, src := range all {
		if !src.Enabled {
			continue
		}
		g.Go(func() error {
			payload, err := f.Fetch(gctx, src)
			if err != nil {
				if errors.Is(err, ErrUnsupportedFormat) {
					return err
				}
				f.log.Warn().Err(err).Str("source", src.ID).Msg("source unavailable, skipping")
				payload = nil
			} else if payload != nil {
				f.log.Debug().Str("source", src.ID).Int("devices", len(payload.Devices)).Msg("source fetched")
			}

			mu.Lock()
			out[src.ID] = payload
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
