package vehicletracker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/rs/zerolog/log"
	"github.com/transito/transito/pkg/bods"
	"github.com/transito/transito/pkg/redis_client"
)

// Reports that haven't been updated in over 20 minutes are skipped
const staleReportCutoff = 20 * time.Minute

const dedupeCacheExpiry = 90 * time.Minute

// ReportSource yields one pull's worth of vehicle reports in feed order.
type ReportSource interface {
	Fetch(ctx context.Context) ([]bods.Report, error)
}

// Pipeline runs one feed pull: fetch, then per report vehicle lookup,
// journey match, location build and persist, strictly in feed order.
type Pipeline struct {
	Source  ReportSource
	Matcher *Matcher
	Sink    Sink

	dedupeCache *cache.Cache[string]
}

func NewPipeline(source ReportSource, matcher *Matcher, sink Sink) *Pipeline {
	return &Pipeline{
		Source:  source,
		Matcher: matcher,
		Sink:    sink,
	}
}

// SetupDedupeCache enables the redis-backed report deduplication cache.
// Requires redis_client.Connect to have been called.
func (p *Pipeline) SetupDedupeCache() {
	redisStore := redisstore.NewRedis(redis_client.Client, store.WithExpiration(dedupeCacheExpiry))

	p.dedupeCache = cache.New[string](redisStore)
}

// Run performs a single pull. Transport and decode failures abort the whole
// pull; everything after a successful fetch degrades per report.
func (p *Pipeline) Run(ctx context.Context) error {
	startTime := time.Now()

	reports, err := p.Source.Fetch(ctx)
	if err != nil {
		return err
	}

	var processed, duplicate, stale, dropped int

	for _, report := range reports {
		if time.Since(report.RecordedAt()) > staleReportCutoff {
			stale++
			continue
		}

		if p.seenBefore(ctx, report) {
			duplicate++
			continue
		}

		if err := p.processReport(ctx, report); err != nil {
			if errors.Is(err, ErrMissingStartDate) {
				log.Warn().
					Str("trip", report.Trip.TripID).
					Str("vehicle", report.VehicleIdentity()).
					Msg("Trip has no start date")
			} else {
				log.Error().Err(err).
					Str("vehicle", report.VehicleIdentity()).
					Msg("Failed to process report")
			}
			dropped++
			continue
		}

		p.markSeen(ctx, report)
		processed++
	}

	log.Info().
		Int("processed", processed).
		Int("duplicate", duplicate).
		Int("stale", stale).
		Int("dropped", dropped).
		Str("duration", time.Since(startTime).String()).
		Msg("Feed pull complete")

	return nil
}

func (p *Pipeline) processReport(ctx context.Context, report bods.Report) error {
	vehicle, err := p.Sink.GetOrCreateVehicle(ctx, report.VehicleIdentity())
	if err != nil {
		return err
	}

	journey, err := p.Matcher.GetJourney(ctx, report, vehicle)
	if err != nil {
		return err
	}

	// A reused journey already has an identifier and needs no re-save
	if journey.PrimaryIdentifier == "" {
		if err := p.Sink.SaveJourney(ctx, vehicle, journey); err != nil {
			return err
		}
	}

	location := CreateVehicleLocation(report)

	return p.Sink.SaveLocation(ctx, vehicle, journey, location)
}

func (p *Pipeline) seenBefore(ctx context.Context, report bods.Report) bool {
	if p.dedupeCache == nil {
		return false
	}

	cached, _ := p.dedupeCache.Get(ctx, p.dedupeKey(report))

	return cached == strconv.FormatInt(report.ReportIdentity(), 10)
}

func (p *Pipeline) markSeen(ctx context.Context, report bods.Report) {
	if p.dedupeCache == nil {
		return
	}

	err := p.dedupeCache.Set(ctx, p.dedupeKey(report), strconv.FormatInt(report.ReportIdentity(), 10))
	if err != nil {
		log.Error().Err(err).Msg("Failed to update dedupe cache")
	}
}

func (p *Pipeline) dedupeKey(report bods.Report) string {
	return fmt.Sprintf("%s-report-%s", p.Matcher.DataSource, report.VehicleIdentity())
}
