package engine

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/talgya/graindeer/internal/config"
	"github.com/talgya/graindeer/internal/entropy"
	"github.com/talgya/graindeer/internal/weather"
)

// Role names.
const (
	RolePopulation = "population"
	RoleResource   = "resource"
	RolePopularity = "popularity"
	RoleReporter   = "reporter"
)

// Role is one of the fixed participants of the monthly cycle. Compute reads
// the settled state and keeps its result private; Publish writes only the
// role's own field; Report runs after every role has published.
type Role interface {
	Name() string
	Compute(s *State)
	Publish(s *State)
	Report(ctx context.Context, s *State) error
}

// passive is embedded by roles that have nothing to do in the report slot.
type passive struct{}

func (passive) Report(context.Context, *State) error { return nil }

// NextPopulation moves the population one head toward the resource level.
// It never returns a negative count.
func NextPopulation(population int, resource float64) int {
	next := population
	switch {
	case float64(population) > resource:
		next--
	case float64(population) < resource:
		next++
	}
	if next < 0 {
		next = 0
	}
	return next
}

// Suitability returns the growth factor for the given conditions: the product
// of two Gaussian falloffs around the ideal temperature and precipitation.
func Suitability(cfg config.Resource, env weather.Drivers) float64 {
	tf := math.Exp(-sqr((env.Temp - cfg.IdealTemp) / cfg.TempSpread))
	pf := math.Exp(-sqr((env.Precip - cfg.IdealPrecip) / cfg.PrecipSpread))
	return tf * pf
}

// NextResource grows the resource by the month's suitability and depletes it
// by population consumption and by popularity. It never returns a negative level.
func NextResource(cfg config.Resource, s State) float64 {
	next := s.Resource
	next += Suitability(cfg, s.Env) * cfg.GrowthPerMonth
	next -= float64(s.Population) * cfg.ConsumptionPerCapita
	next -= s.Popularity * cfg.PopularityDepletion
	if next < 0 {
		next = 0
	}
	return next
}

// NoiseSource draws the popularity role's random walk steps.
type NoiseSource interface {
	Float(low, high float64) float64
}

// NextPopularity advances the popularity index one month: a bounded random
// step, a pull back toward the baseline, then the seasonal boost or decay for
// month. It never returns a negative index.
func NextPopularity(cfg config.Popularity, month int, popularity float64, rng NoiseSource) float64 {
	next := popularity + rng.Float(-cfg.Noise, cfg.Noise)
	next += cfg.Reversion * (cfg.Baseline - next)
	next = SeasonalPopularity(cfg, month, next)
	if next < 0 {
		next = 0
	}
	return next
}

func sqr(x float64) float64 { return x * x }

type populationRole struct {
	passive
	next int
}

func (r *populationRole) Name() string { return RolePopulation }

func (r *populationRole) Compute(s *State) { r.next = NextPopulation(s.Population, s.Resource) }

func (r *populationRole) Publish(s *State) { s.Population = r.next }

type resourceRole struct {
	passive
	cfg  config.Resource
	next float64
}

func (r *resourceRole) Name() string { return RoleResource }

func (r *resourceRole) Compute(s *State) { r.next = NextResource(r.cfg, *s) }

func (r *resourceRole) Publish(s *State) { s.Resource = r.next }

type popularityRole struct {
	passive
	cfg  config.Popularity
	rng  *entropy.Source
	next float64
}

func (r *popularityRole) Name() string { return RolePopularity }

func (r *popularityRole) Compute(s *State) {
	r.next = NextPopularity(r.cfg, s.Clock.Month, s.Popularity, r.rng)
}

func (r *popularityRole) Publish(s *State) { s.Popularity = r.next }

// reporter owns the clock, the environment and the termination flag.
type reporter struct {
	model    *weather.Model
	rng      *entropy.Source
	endYear  int
	recorder Recorder
}

func (r *reporter) Name() string { return RoleReporter }

func (r *reporter) Compute(*State) {}

func (r *reporter) Publish(*State) {}

// Report emits the month's record, advances the clock, recomputes the
// environment for the new month and decides whether the run continues.
// A recorder error or a cancelled context stops the run at the end of this
// cycle; every role sees the same Done value after DonePrinting. Recorders
// never see the cancellation, so the last month reaches all of them.
func (r *reporter) Report(ctx context.Context, s *State) error {
	rec := NewRecord(*s)
	err := r.recorder.Record(context.WithoutCancel(ctx), rec)
	if err != nil {
		err = fmt.Errorf("record month %d: %w", rec.MonthIndex, err)
	}

	trace.SpanFromContext(ctx).AddEvent("month reported", trace.WithAttributes(
		attribute.Int("month_index", rec.MonthIndex),
		attribute.Int("population", rec.Population),
		attribute.Float64("resource", rec.ResourceIn),
		attribute.Float64("popularity", rec.Popularity),
	))

	s.Clock.Advance()
	s.Env = r.model.Drivers(s.Clock.Month, s.Clock.MonthIndex, r.rng)

	if err == nil && !s.Clock.Reached(r.endYear) {
		err = ctx.Err()
	}
	s.Done = err != nil || s.Clock.Reached(r.endYear)
	return err
}
