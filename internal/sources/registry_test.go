package sources

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	reg := Defaults()
	require.Equal(t, 2, reg.Len())

	all := reg.All()
	assert.Equal(t, "kiwisdr", all[0].ID)
	assert.Equal(t, "web888", all[1].ID)

	enabled := reg.Enabled()
	require.Len(t, enabled, 1)
	assert.Equal(t, "Web-888", enabled[0].DisplayName())
	assert.Equal(t, FormatJSON, enabled[0].Format)
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		list []Source
	}{
		{name: "missing id", list: []Source{{URL: "http://x", Format: FormatJSON}}},
		{name: "missing url", list: []Source{{ID: "a", Format: FormatJSON}}},
		{name: "missing format", list: []Source{{ID: "a", URL: "http://x"}}},
		{name: "duplicate id", list: []Source{
			{ID: "a", URL: "http://x", Format: FormatJSON},
			{ID: "a", URL: "http://y", Format: FormatCSV},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.list...)
			require.Error(t, err)
		})
	}
}

func TestLoadYAMLKeepsOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	content := `sources:
  - id: zeta
    name: Zeta Directory
    url: https://zeta.example/devices.csv
    format: CSV
    enabled: true
  - id: alpha
    url: https://alpha.example/api/devices
    format: json
    enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	reg, err := Load(path)
	require.NoError(t, err)

	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, "zeta", all[0].ID)
	assert.Equal(t, FormatCSV, all[0].Format)
	assert.Equal(t, "alpha", all[1].ID)
	assert.Equal(t, "alpha", all[1].DisplayName())

	src, ok := reg.Get("zeta")
	require.True(t, ok)
	assert.Equal(t, "Zeta Directory", src.Name)

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	reg, err := Load("  ")
	require.NoError(t, err)
	assert.Equal(t, Defaults().All(), reg.All())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
