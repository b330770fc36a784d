// Package sources holds the static registry of public SDR directories.
package sources

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Format names the payload encoding served by a directory endpoint.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// DeviceListURL is the public device list published by rx-888.com,
// refreshed upstream every 15 minutes.
const DeviceListURL = "https://www.rx-888.com/api/devices"

// Source describes one directory endpoint.
type Source struct {
	ID      string `mapstructure:"id"`
	Name    string `mapstructure:"name"`
	URL     string `mapstructure:"url"`
	Format  Format `mapstructure:"format"`
	Enabled bool   `mapstructure:"enabled"`
}

// DisplayName falls back to the identifier when no name is configured.
func (s Source) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// Registry is an ordered, read-only set of sources.
type Registry struct {
	sources []Source
	byID    map[string]int
}

// New validates sources and returns them as a registry in the given order.
func New(list ...Source) (*Registry, error) {
	reg := &Registry{
		sources: make([]Source, 0, len(list)),
		byID:    make(map[string]int, len(list)),
	}
	for i, src := range list {
		src.ID = strings.TrimSpace(src.ID)
		src.URL = strings.TrimSpace(src.URL)
		src.Format = Format(strings.ToLower(strings.TrimSpace(string(src.Format))))

		switch {
		case src.ID == "":
			return nil, fmt.Errorf("source #%d: id is required", i)
		case src.URL == "":
			return nil, fmt.Errorf("source %q: url is required", src.ID)
		case src.Format == "":
			return nil, fmt.Errorf("source %q: format is required", src.ID)
		}
		if _, dup := reg.byID[src.ID]; dup {
			return nil, fmt.Errorf("source %q: duplicate id", src.ID)
		}

		reg.byID[src.ID] = len(reg.sources)
		reg.sources = append(reg.sources, src)
	}
	return reg, nil
}

// Defaults mirrors the directories known to the dashboard.
func Defaults() *Registry {
	reg, _ := New(
		Source{ID: "kiwisdr", Name: "KiwiSDR", URL: DeviceListURL, Format: FormatJSON, Enabled: false},
		Source{ID: "web888", Name: "Web-888", URL: DeviceListURL, Format: FormatJSON, Enabled: true},
	)
	return reg
}

// Load reads the registry from a config file (yaml, json or toml). An empty
// path yields Defaults.
func Load(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return Defaults(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var list []Source
	if err := v.UnmarshalKey("sources", &list); err != nil {
		return nil, fmt.Errorf("decode sources: %w", err)
	}
	if len(list) == 0 {
		return nil, errors.New("sources file declares no sources")
	}
	return New(list...)
}

// All returns every source in declaration order.
func (r *Registry) All() []Source {
	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// Enabled returns the enabled sources in declaration order.
func (r *Registry) Enabled() []Source {
	out := make([]Source, 0, len(r.sources))
	for _, src := range r.sources {
		if src.Enabled {
			out = append(out, src)
		}
	}
	return out
}

// Get looks a source up by identifier.
func (r *Registry) Get(id string) (Source, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Source{}, false
	}
	return r.sources[i], true
}

// Len reports the number of declared sources.
func (r *Registry) Len() int {
	return len(r.sources)
}
