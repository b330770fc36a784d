package http

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/f5703swl/swl-web-sdr/internal/devices"
	"github.com/f5703swl/swl-web-sdr/internal/live"
	"github.com/f5703swl/swl-web-sdr/internal/logger"
	"github.com/f5703swl/swl-web-sdr/internal/sources"
	"github.com/f5703swl/swl-web-sdr/services/api/config"
	"github.com/f5703swl/swl-web-sdr/services/api/db"
	"github.com/f5703swl/swl-web-sdr/services/api/snapshot"
)

var updatedAt = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeHistory struct {
	device  *db.Device
	samples []db.Sample
	err     error
	query   db.SampleQuery
}

func (f *fakeHistory) GetDeviceByURL(_ context.Context, url string) (*db.Device, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.device == nil || f.device.URL != url {
		return nil, nil
	}
	return f.device, nil
}

func (f *fakeHistory) FetchSamples(_ context.Context, q db.SampleQuery) ([]db.Sample, error) {
	f.query = q
	return f.samples, nil
}

func (f *fakeHistory) GetOccupancyAverages(context.Context) (*db.OccupancyAverages, error) {
	v := 42.5
	return &db.OccupancyAverages{Avg1h: &v}, nil
}

func testRecords() []devices.Record {
	return []devices.Record{
		{"url": "http://a", "name": "Bravo", "status": "active", "users": 2, "max_users": 4, "users_ratio": 50.0, "source": "Web-888", "country_code": "FR"},
		{"url": "http://b", "name": "alpha", "status": "active", "users": 4, "max_users": 4, "users_ratio": 100.0, "source": "Web-888", "country_code": "DE"},
		{"url": "http://c", "name": "Charlie", "status": "offline", "users": 0, "max_users": 4, "users_ratio": 0.0, "source": "KiwiSDR"},
		{"url": "http://d", "name": "Delta", "status": "active", "users": 1, "max_users": 8, "users_ratio": 12.5, "source": "KiwiSDR", "country_code": "FR"},
	}
}

func testRegistry(t *testing.T) *sources.Registry {
	t.Helper()
	reg, err := sources.New(
		sources.Source{ID: "kiwisdr", Name: "KiwiSDR", URL: "http://k", Format: sources.FormatJSON},
		sources.Source{ID: "web888", Name: "Web-888", URL: "http://w", Format: sources.FormatJSON, Enabled: true},
	)
	require.NoError(t, err)
	return reg
}

func newTestServer(t *testing.T, cfg config.Config, mutate func(*Deps)) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := snapshot.NewStore()
	store.Set(language.English, &snapshot.Snapshot{
		Records:   testRecords(),
		Sources:   []snapshot.SourceStatus{{ID: "web888", Name: "Web-888", OK: true, Devices: 2}},
		UpdatedAt: updatedAt,
	})

	deps := Deps{
		Registry:  testRegistry(t),
		Snapshots: store,
		Log:       logger.Nop(),
		Rand:      rand.New(rand.NewPCG(1, 2)),
	}
	if mutate != nil {
		mutate(&deps)
	}
	if cfg.DefaultLimit == 0 {
		cfg.DefaultLimit = 200
		cfg.DefaultDays = 7
	}
	return New(cfg, deps)
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Meta  map[string]any  `json:"meta"`
	Error string          `json:"error"`
}

func get(t *testing.T, srv *Server, target string, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)

	var body envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func names(t *testing.T, raw json.RawMessage) []string {
	t.Helper()
	var recs []map[string]any
	require.NoError(t, json.Unmarshal(raw, &recs))
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r["name"].(string))
	}
	return out
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, config.Config{}, nil)
	w, _ := get(t, srv, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBearerAuth(t *testing.T) {
	srv := newTestServer(t, config.Config{BearerToken: "secret"}, nil)

	w, _ := get(t, srv, "/api/v1/devices")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = get(t, srv, "/api/v1/devices", "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = get(t, srv, "/api/v1/devices", "Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListDevicesDefaultsToActive(t *testing.T) {
	srv := newTestServer(t, config.Config{}, nil)

	w, body := get(t, srv, "/api/v1/devices")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "v1", w.Header().Get("X-API-Version"))
	assert.Equal(t, []string{"Bravo", "alpha", "Delta"}, names(t, body.Data))

	assert.EqualValues(t, 3, body.Meta["count"])
	assert.Equal(t, "en", body.Meta["lang"])
	assert.Equal(t, "2025-05-01T12:00:00Z", body.Meta["updated_at"])
	assert.Equal(t, map[string]any{"total_active": 3.0, "total_users": 7.0, "total_sdrs": 4.0}, body.Meta["summary"])
}

func TestListDevicesFilters(t *testing.T) {
	srv := newTestServer(t, config.Config{}, nil)

	tests := []struct {
		query string
		want  []string
	}{
		{"?status=all", []string{"Bravo", "alpha", "Charlie", "Delta"}},
		{"?status=all&source=kiwisdr", []string{"Charlie", "Delta"}},
		{"?source=Web-888", []string{"Bravo", "alpha"}},
		{"?country=fr", []string{"Bravo", "Delta"}},
		{"?sort=name", []string{"alpha", "Bravo", "Delta"}},
		{"?sort=users&order=desc", []string{"alpha", "Bravo", "Delta"}},
		{"?sort=users_ratio", []string{"Delta", "Bravo", "alpha"}},
		{"?status=all&sort=country_code", []string{"alpha", "Bravo", "Delta", "Charlie"}},
		{"?status=all&sort=country_code&order=desc", []string{"Bravo", "Delta", "alpha", "Charlie"}},
		{"?sort=name&limit=2&page=2", []string{"Delta"}},
		{"?limit=2&page=5", []string{}},
		{"?limit=2&page=9223372036854775807", []string{}},
		{"?limit=1000&page=9223372036854775807", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w, body := get(t, srv, "/api/v1/devices"+tt.query)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, names(t, body.Data))
		})
	}
}

func TestListDevicesBadQuery(t *testing.T) {
	srv := newTestServer(t, config.Config{}, nil)
	for _, q := range []string{"?status=maybe", "?sort=password", "?order=up", "?page=0", "?limit=x"} {
		w, body := get(t, srv, "/api/v1/devices"+q)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
		assert.NotEmpty(t, body.Error, q)
	}
}

func TestListDevicesBeforeFirstRefresh(t *testing.T) {
	srv := newTestServer(t, config.Config{}, func(d *Deps) { d.Snapshots = snapshot.NewStore() })

	w, body := get(t, srv, "/api/v1/devices?lang=fr")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "Les données des appareils ne sont pas encore disponibles", body.Error)
}

func TestSummary(t *testing.T) {
	srv := newTestServer(t, config.Config{}, nil)
	w, body := get(t, srv, "/api/v1/devices/summary")
	require.Equal(t, http.StatusOK, w.Code)

	var sum snapshot.Summary
	require.NoError(t, json.Unmarshal(body.Data, &sum))
	assert.Equal(t, snapshot.Summary{TotalActive: 3, TotalUsers: 7, TotalSDRs: 4}, sum)
}

func TestRandomDevice(t *testing.T) {
	srv := newTestServer(t, config.Config{}, nil)

	for i := 0; i < 20; i++ {
		w, body := get(t, srv, "/api/v1/devices/random")
		require.Equal(t, http.StatusOK, w.Code)

		var rec map[string]any
		require.NoError(t, json.Unmarshal(body.Data, &rec))
		// alpha is full and Charlie offline
		assert.Contains(t, []string{"Bravo", "Delta"}, rec["name"])
	}
}

func TestRandomDeviceNoneAvailable(t *testing.T) {
	srv := newTestServer(t, config.Config{}, func(d *Deps) {
		store := snapshot.NewStore()
		store.Set(language.French, &snapshot.Snapshot{Records: []devices.Record{
			{"url": "http://b", "status": "active", "users_ratio": 100.0},
		}})
		d.Snapshots = store
	})

	w, body := get(t, srv, "/api/v1/devices/random", "Accept-Language", "fr-FR,fr;q=0.9")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Aucun WebSDR disponible pour le moment", body.Error)
}

func TestHistoryDisabled(t *testing.T) {
	srv := newTestServer(t, config.Config{}, nil)

	w, body := get(t, srv, "/api/v1/devices/history?url=http://a")
	assert.Equal(t, http.StatusNotImplemented, w.Code)
	assert.Equal(t, "History is not available on this server", body.Error)

	w, _ = get(t, srv, "/api/v1/devices/averages")
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestHistory(t *testing.T) {
	users := 2.0
	history := &fakeHistory{
		device:  &db.Device{ID: "7d2c1f5e-0000-5000-8000-000000000001", URL: "http://a", Name: "Bravo"},
		samples: []db.Sample{{Timestamp: updatedAt, Status: "active", Users: &users, UsersRatio: 50}},
	}
	srv := newTestServer(t, config.Config{}, func(d *Deps) { d.History = history })

	w, body := get(t, srv, "/api/v1/devices/history?url=http://a&last_n=10&end=2025-05-02T00:00:00Z")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body.Meta["count"])
	assert.Equal(t, history.device.ID, history.query.DeviceID)
	assert.Equal(t, 10, history.query.Limit)
	require.NotNil(t, history.query.Since)
	require.NotNil(t, history.query.Until)
	assert.Equal(t, time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC), *history.query.Until)

	w, body = get(t, srv, "/api/v1/devices/history?url=http://zzz")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Device not found", body.Error)

	for _, q := range []string{"", "?url=http://a&last_n=0", "?url=http://a&last_n_days=x", "?url=http://a&start=yesterday"} {
		w, _ = get(t, srv, "/api/v1/devices/history"+q)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}

	history.err = errors.New("connection refused")
	w, _ = get(t, srv, "/api/v1/devices/history?url=http://a")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAverages(t *testing.T) {
	srv := newTestServer(t, config.Config{}, func(d *Deps) { d.History = &fakeHistory{} })

	w, body := get(t, srv, "/api/v1/devices/averages")
	require.Equal(t, http.StatusOK, w.Code)

	var avg db.OccupancyAverages
	require.NoError(t, json.Unmarshal(body.Data, &avg))
	require.NotNil(t, avg.Avg1h)
	assert.Equal(t, 42.5, *avg.Avg1h)
	assert.Nil(t, avg.Avg24h)
}

func TestInfo(t *testing.T) {
	srv := newTestServer(t, config.Config{}, nil)
	w, body := get(t, srv, "/api/v1/info")
	require.Equal(t, http.StatusOK, w.Code)

	var info struct {
		Author    string           `json:"author"`
		Version   string           `json:"version"`
		Languages []string         `json:"languages"`
		Sources   []map[string]any `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &info))
	assert.Equal(t, AppAuthor, info.Author)
	assert.Equal(t, AppVersion, info.Version)
	assert.Equal(t, []string{"en", "fr"}, info.Languages)
	require.Len(t, info.Sources, 2)
	assert.Equal(t, "kiwisdr", info.Sources[0]["id"])
	assert.Equal(t, false, info.Sources[0]["enabled"])
}

func TestRealtimeNow(t *testing.T) {
	srv := newTestServer(t, config.Config{}, nil)
	w, body := get(t, srv, "/api/v1/realtime/now")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2025-05-01T12:00:00Z", body.Meta["updated_at"])
	assert.EqualValues(t, 0, body.Meta["subscribers"])
}

func TestRealtimeWebsocket(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := live.NewHub(logger.Nop())
	go hub.Run(ctx)

	srv := newTestServer(t, config.Config{}, func(d *Deps) {
		d.Hubs = map[string]*live.Hub{"en": hub}
	})
	ts := httptest.NewServer(srv.Engine())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/realtime/ws?lang=en", nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first struct {
		Type    string        `json:"type"`
		Payload snapshot.View `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, snapshot.MessageType, first.Type)
	assert.Len(t, first.Payload.Devices, 4)
	assert.Equal(t, 3, first.Payload.Summary.TotalActive)

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Publish(snapshot.MessageType, snapshot.View{UpdatedAt: updatedAt.Add(time.Hour)}))

	var next struct {
		Type    string        `json:"type"`
		Payload snapshot.View `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, updatedAt.Add(time.Hour), next.Payload.UpdatedAt)

	// French has no hub
	w, _ := get(t, srv, "/api/v1/realtime/ws?lang=fr")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
