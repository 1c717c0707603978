// Package detect produces reproducible synthetic fire detections for a query.
package detect

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/couchcryptid/fire-detection-service/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

const (
	minFireHa       = 5.0
	maxFireHa       = 500.0
	minConfidence   = 0.60
	confidenceSpan  = 0.39
	metersPerDegLat = 111_320.0

	// streamMix decorrelates the second PCG word from the seed.
	streamMix = 0x9e3779b97f4a7c15
)

// Engine turns query parameters into a detection result. The same parameters
// always produce the same detections.
type Engine struct {
	geocoder domain.Geocoder
	clock    clockwork.Clock
	latency  time.Duration
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithGeocoder labels detection locations through g.
func WithGeocoder(g domain.Geocoder) Option {
	return func(e *Engine) {
		e.geocoder = g
	}
}

// WithClock replaces the real clock.
func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLatency delays every Detect call by d.
func WithLatency(d time.Duration) Option {
	return func(e *Engine) {
		e.latency = d
	}
}

// NewEngine creates an Engine.
func NewEngine(logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		clock:  clockwork.NewRealClock(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Detect validates params and synthesizes exactly Quantize(seed, bounds)
// detections from a generator seeded by the query seed.
func (e *Engine) Detect(ctx context.Context, params domain.QueryParameters) (domain.Result, error) {
	start := e.clock.Now()

	if err := params.Validate(); err != nil {
		return domain.Result{}, err
	}
	ev, err := domain.Evaluate(params)
	if err != nil {
		return domain.Result{}, err
	}

	if e.latency > 0 {
		select {
		case <-ctx.Done():
			return domain.Result{}, ctx.Err()
		case <-e.clock.After(e.latency):
		}
	}

	detections, err := e.generate(ctx, params, ev)
	if err != nil {
		return domain.Result{}, err
	}

	e.logger.Debug("detections generated",
		"seed", uint32(ev.Seed),
		"combined_value", ev.Combined,
		"count", len(detections),
	)

	return domain.Result{
		Summary:    domain.Summarize(detections),
		Detections: detections,
		Metadata: domain.Metadata{
			Seed:           ev.Seed,
			ProcessingTime: e.clock.Since(start).Seconds(),
			AreaHash:       ev.AreaHash,
			CombinedValue:  ev.Combined,
			Satellite:      params.Satellite,
			StartDate:      params.StartDate,
			EndDate:        params.EndDate,
			MaxCloudCover:  params.MaxCloudCover,
		},
	}, nil
}

func (e *Engine) generate(ctx context.Context, params domain.QueryParameters, ev domain.Evaluation) ([]domain.Detection, error) {
	startDate, endDate, err := params.DateRange()
	if err != nil {
		return nil, err
	}
	days := int(endDate.Sub(startDate).Hours()/24) + 1

	rng := newRand(ev.Seed)
	b := params.Bounds
	detections := make([]domain.Detection, 0, int(ev.Count))

	for i := range int(ev.Count) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		lon := b[0] + rng.Float64()*(b[2]-b[0])
		lat := b[1] + rng.Float64()*(b[3]-b[1])
		sizeHa := minFireHa + rng.Float64()*(maxFireHa-minFireHa)
		confidence := minConfidence + rng.Float64()*confidenceSpan
		detectedAt := startDate.AddDate(0, 0, rng.IntN(days))

		footprint := Footprint(lon, lat, sizeHa)

		detections = append(detections, domain.Detection{
			ID:         fmt.Sprintf("fire-%08x-%d", uint32(ev.Seed), i+1),
			AreaHa:     round(AreaHa(footprint), 2),
			Confidence: round(confidence, 3),
			Location:   domain.LocationLabel(ctx, lat, lon, e.geocoder, e.logger),
			Lat:        round(lat, 6),
			Lon:        round(lon, 6),
			DetectedAt: detectedAt.Format(domain.DateLayout),
			Satellite:  params.Satellite,
			Geometry:   geojson.NewGeometry(footprint),
		})
	}
	return detections, nil
}

// newRand returns the generator for a seed. PCG output is fixed by the
// algorithm, so the stream is the same in every process.
func newRand(seed domain.Seed) *rand.Rand {
	s := uint64(seed)
	return rand.New(rand.NewPCG(s, s^streamMix))
}

// Footprint returns a square polygon of roughly sizeHa hectares centered on
// (lon, lat).
func Footprint(lon, lat, sizeHa float64) orb.Polygon {
	side := math.Sqrt(sizeHa * 10_000)
	halfLat := side / metersPerDegLat / 2
	halfLon := halfLat / math.Max(math.Cos(lat*math.Pi/180), 0.01)

	ring := orb.Ring{
		{lon - halfLon, lat - halfLat},
		{lon + halfLon, lat - halfLat},
		{lon + halfLon, lat + halfLat},
		{lon - halfLon, lat + halfLat},
		{lon - halfLon, lat - halfLat},
	}
	return orb.Polygon{ring}
}

// AreaHa returns the spherical area of p in hectares.
func AreaHa(p orb.Polygon) float64 {
	return math.Abs(geo.Area(p)) / 10_000
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
