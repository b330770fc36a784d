package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/f5703swl/swl-web-sdr/internal/devices"
	"github.com/f5703swl/swl-web-sdr/internal/fetch"
	"github.com/f5703swl/swl-web-sdr/internal/geocode"
	"github.com/f5703swl/swl-web-sdr/internal/logger"
	"github.com/f5703swl/swl-web-sdr/internal/sources"
	"github.com/f5703swl/swl-web-sdr/services/watcher/internal/config"
	"github.com/f5703swl/swl-web-sdr/services/watcher/internal/db"
	"github.com/f5703swl/swl-web-sdr/services/watcher/internal/utils"
)

func main() {
	if err := run(); err != nil {
		logger.Error().Err(err).Msg("watcher failed")
		os.Exit(1)
	}
}

func run() error {
	if err := logger.Init(logger.ConfigFromEnv()); err != nil {
		return err
	}
	log := logger.WithComponent("watcher")

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

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout+30*time.Second)
	defer cancel()

	geocoder, closeGeocoder, err := geocode.Open(ctx, cfg.GeocoderDataset, cfg.GeocoderCache, logger.WithComponent("geocode"))
	if err != nil {
		return err
	}
	defer closeGeocoder()

	runID := uuid.New()
	retrievalTS := time.Now().UTC().Truncate(time.Second)
	log = log.With().Str("run_id", runID.String()).Logger()

	payloads, err := fetcher.FetchAll(ctx, reg)
	if err != nil {
		return err
	}

	coords := utils.RawCoordinates(reg, payloads)
	records := devices.NewAggregator(reg, geocoder).Aggregate(ctx, payloads)
	log.Info().Int("devices", len(records)).Int("sources", len(reg.Enabled())).Msg("fetched device lists")

	deviceRows := utils.BuildDeviceRows(records, coords)
	candidates := utils.BuildSampleCandidates(records, runID, retrievalTS)

	if cfg.DryRun {
		log.Info().Int("devices", len(deviceRows)).Int("samples", len(candidates)).Msg("dry-run: skipping database writes")
		for _, cand := range candidates {
			log.Debug().
				Str("device", cand.DeviceID.String()).
				Str("status", cand.Status).
				Str("users", utils.ValuePtrString(cand.Users)).
				Float64("users_ratio", cand.UsersRatio).
				Msg("dry-run: would insert sample")
		}
		return nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		return err
	}
	if err := db.UpsertDevices(ctx, pool, deviceRows); err != nil {
		return err
	}

	lastMap, err := db.FetchLastSamples(ctx, pool, utils.DeviceIDs(deviceRows))
	if err != nil {
		return err
	}

	pending := utils.FilterNewSamples(candidates, lastMap, cfg.MinInterval, cfg.UsersEpsilon)
	if len(pending) == 0 {
		log.Info().Time("retrieval", retrievalTS).Msg("no new samples to insert")
		return nil
	}

	if err := db.InsertSamples(ctx, pool, pending); err != nil {
		return err
	}

	log.Info().Int("samples", len(pending)).Int("devices", len(deviceRows)).Msg("inserted samples")
	return nil
}
