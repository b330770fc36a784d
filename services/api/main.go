package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/f5703swl/swl-web-sdr/internal/devices"
	"github.com/f5703swl/swl-web-sdr/internal/fetch"
	"github.com/f5703swl/swl-web-sdr/internal/geocode"
	"github.com/f5703swl/swl-web-sdr/internal/i18n"
	"github.com/f5703swl/swl-web-sdr/internal/live"
	"github.com/f5703swl/swl-web-sdr/internal/logger"
	"github.com/f5703swl/swl-web-sdr/internal/sources"
	"github.com/f5703swl/swl-web-sdr/services/api/config"
	"github.com/f5703swl/swl-web-sdr/services/api/db"
	httpserver "github.com/f5703swl/swl-web-sdr/services/api/http"
	"github.com/f5703swl/swl-web-sdr/services/api/snapshot"
)

func main() {
	if err := run(); err != nil {
		logger.Error().Err(err).Msg("api failed")
		os.Exit(1)
	}
}

func run() error {
	if err := logger.Init(logger.ConfigFromEnv()); err != nil {
		return err
	}
	log := logger.WithComponent("api")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	reg, err := sources.Load(cfg.SourcesFile)
	if err != nil {
		return err
	}

	fetcher := fetch.New(&http.Client{Timeout: cfg.RequestTimeout},
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithLogger(logger.WithComponent("fetch")),
	)
	if err := fetcher.Validate(reg); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	geocoder, closeGeocoder, err := geocode.Open(ctx, cfg.GeocoderDataset, cfg.GeocoderCache, logger.WithComponent("geocode"))
	if err != nil {
		return err
	}
	defer closeGeocoder()

	var history httpserver.HistoryStore
	if cfg.DatabaseURL != "" {
		store, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer store.Close()
		history = store
	} else {
		log.Warn().Msg("DATABASE_URL not set; history endpoints disabled")
	}

	hubs := make(map[string]*live.Hub, len(i18n.Supported))
	publishers := make(map[string]snapshot.Publisher, len(i18n.Supported))
	for _, tag := range i18n.Supported {
		code := i18n.Code(tag)
		hub := live.NewHub(logger.WithComponent("live").With().Str("lang", code).Logger())
		hubs[code] = hub
		publishers[code] = hub
	}

	snapshots := snapshot.NewStore()
	refresher := snapshot.NewRefresher(
		fetcher, reg, devices.NewAggregator(reg, geocoder), snapshots, publishers,
		cfg.RefreshInterval, cfg.RequestTimeout, logger.WithComponent("refresh"),
	)

	srv := httpserver.New(cfg, httpserver.Deps{
		Registry:  reg,
		Snapshots: snapshots,
		Hubs:      hubs,
		History:   history,
		Log:       logger.WithComponent("http"),
	})

	g, gctx := errgroup.WithContext(ctx)
	for _, hub := range hubs {
		g.Go(func() error {
			hub.Run(gctx)
			return nil
		})
	}
	g.Go(func() error { return refresher.Run(gctx) })
	g.Go(func() error {
		log.Info().Str("addr", cfg.ListenAddr()).Int("sources", len(reg.Enabled())).Msg("REST API listening")
		return srv.Run(gctx)
	})

	return g.Wait()
}
