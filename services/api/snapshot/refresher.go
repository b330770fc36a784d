package snapshot

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/f5703swl/swl-web-sdr/internal/devices"
	"github.com/f5703swl/swl-web-sdr/internal/i18n"
	"github.com/f5703swl/swl-web-sdr/internal/sources"
)

// MessageType tags refreshed snapshots pushed to subscribers.
const MessageType = "devices"

// Fetcher retrieves every enabled source of a registry.
type Fetcher interface {
	FetchAll(ctx context.Context, reg *sources.Registry) (map[string]*devices.Payload, error)
}

// Publisher pushes a refreshed snapshot to live subscribers.
type Publisher interface {
	Publish(msgType string, payload any) error
}

// Refresher rebuilds the snapshots on an interval.
type Refresher struct {
	fetcher    Fetcher
	registry   *sources.Registry
	aggregator *devices.Aggregator
	store      *Store
	publishers map[string]Publisher
	interval   time.Duration
	timeout    time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

// NewRefresher wires a Refresher. publishers is keyed by language code and
// may be nil.
func NewRefresher(
	fetcher Fetcher,
	reg *sources.Registry,
	aggregator *devices.Aggregator,
	store *Store,
	publishers map[string]Publisher,
	interval, timeout time.Duration,
	log zerolog.Logger,
) *Refresher {
	return &Refresher{
		fetcher:    fetcher,
		registry:   reg,
		aggregator: aggregator,
		store:      store,
		publishers: publishers,
		interval:   interval,
		timeout:    timeout,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Refresh fetches all sources once and replaces every language's snapshot.
// Only a fatal fetch error (unsupported format) is returned; failing sources
// simply contribute nothing.
func (r *Refresher) Refresh(ctx context.Context) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	payloads, err := r.fetcher.FetchAll(ctx, r.registry)
	if err != nil {
		return err
	}

	updated := r.now()
	statuses := sourceStatuses(r.registry, payloads)

	count := 0
	for _, tag := range i18n.Supported {
		// enrichment rewrites records in place, so every language works on
		// its own copy
		cloned := make(map[string]*devices.Payload, len(payloads))
		for id, p := range payloads {
			cloned[id] = p.Clone()
		}

		snap := &Snapshot{
			Records:   r.aggregator.WithLabels(i18n.Labels(tag)).Aggregate(ctx, cloned),
			Sources:   statuses,
			UpdatedAt: updated,
		}
		r.store.Set(tag, snap)
		count = len(snap.Records)

		code := i18n.Code(tag)
		if pub := r.publishers[code]; pub != nil {
			if err := pub.Publish(MessageType, NewView(snap)); err != nil {
				r.log.Warn().Err(err).Str("lang", code).Msg("publish snapshot failed")
			}
		}
	}

	r.log.Info().
		Int("devices", count).
		Int("sources", len(statuses)).
		Msg("device snapshot refreshed")
	return nil
}

// Run refreshes immediately and then on every tick until ctx is done.
func (r *Refresher) Run(ctx context.Context) error {
	if err := r.Refresh(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				return err
			}
		}
	}
}

// View is the wire shape of a snapshot, with its summary metrics.
type View struct {
	Devices   []devices.Record `json:"devices"`
	Summary   Summary          `json:"summary"`
	Sources   []SourceStatus   `json:"sources"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NewView renders snap for subscribers.
func NewView(snap *Snapshot) View {
	return View{
		Devices:   snap.Records,
		Summary:   Summarize(snap.Records),
		Sources:   snap.Sources,
		UpdatedAt: snap.UpdatedAt,
	}
}
