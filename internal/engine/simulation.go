// Simulation owns the shared state and runs the four role goroutines.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/graindeer/internal/config"
	"github.com/talgya/graindeer/internal/entropy"
	"github.com/talgya/graindeer/internal/weather"
)

// ErrAlreadyRan is returned by Run on a simulation that has already run.
var ErrAlreadyRan = errors.New("simulation already ran")

// ObserveFunc is called by every role at the start of its compute phase with
// a copy of the state it is about to read. It is called concurrently from all
// role goroutines.
type ObserveFunc func(role string, snapshot State)

// Option configures a Simulation.
type Option func(*Simulation)

// WithObserver installs a compute-phase observer.
func WithObserver(fn ObserveFunc) Option {
	return func(s *Simulation) {
		s.observe = fn
	}
}

// WithTracer overrides the tracer; the global otel provider is used otherwise.
func WithTracer(t trace.Tracer) Option {
	return func(s *Simulation) {
		s.tracer = t
	}
}

// Simulation runs one configured scenario to completion.
type Simulation struct {
	cfg     config.Config
	state   *State
	barrier *Barrier
	roles   []Role
	observe ObserveFunc
	tracer  trace.Tracer
	ran     atomic.Bool
}

// New validates cfg and builds the shared state, the barrier and the four
// roles. A zero seed is replaced with a fresh one from crypto/rand. The
// initial environment is drawn from the reporter's random stream.
func New(cfg config.Config, recorder Recorder, opts ...Option) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if recorder == nil {
		recorder = Discard
	}
	if cfg.Seed == 0 {
		seed, err := entropy.NewSeed()
		if err != nil {
			return nil, fmt.Errorf("draw seed: %w", err)
		}
		cfg.Seed = seed
	}

	model := weather.NewModel(cfg.Environment, cfg.Seed)
	rep := &reporter{
		model:    model,
		rng:      entropy.New(cfg.Seed, entropy.StreamReporter),
		endYear:  cfg.EndYear,
		recorder: recorder,
	}

	clock := Clock{Year: cfg.StartYear, Month: cfg.Initial.Month, MonthIndex: 1}
	state := &State{
		Clock:      clock,
		Env:        model.Drivers(clock.Month, clock.MonthIndex, rep.rng),
		Population: cfg.Initial.Population,
		Resource:   cfg.Initial.Resource,
		Popularity: cfg.Initial.Popularity,
		Done:       clock.Reached(cfg.EndYear),
	}

	roles := []Role{
		&populationRole{},
		&resourceRole{cfg: cfg.Resource},
		&popularityRole{cfg: cfg.Popularity, rng: entropy.New(cfg.Seed, entropy.StreamPopularity)},
		rep,
	}

	s := &Simulation{
		cfg:     cfg,
		state:   state,
		barrier: NewBarrier(len(roles)),
		roles:   roles,
		tracer:  otel.Tracer("github.com/talgya/graindeer/internal/engine"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Seed returns the master seed actually in use.
func (s *Simulation) Seed() uint64 { return s.cfg.Seed }

// Config returns the resolved configuration.
func (s *Simulation) Config() config.Config { return s.cfg }

// State returns a copy of the shared state. Call it before Run or after Run
// has returned; during Run the roles own the state.
func (s *Simulation) State() State { return *s.state }

// Run launches one goroutine per role and blocks until they have all
// terminated. Only the first call runs; later or concurrent calls return
// ErrAlreadyRan. It returns the first recorder error, or the context error if
// ctx was cancelled before the configured end year.
func (s *Simulation) Run(ctx context.Context) error {
	if !s.ran.CompareAndSwap(false, true) {
		return ErrAlreadyRan
	}

	ctx, span := s.tracer.Start(ctx, "simulation.run", trace.WithAttributes(
		attribute.String("seed", strconv.FormatUint(s.cfg.Seed, 10)),
		attribute.Int("start_year", s.cfg.StartYear),
		attribute.Int("end_year", s.cfg.EndYear),
	))
	defer span.End()

	slog.Info("simulation started",
		"seed", s.cfg.Seed,
		"start", s.state.Clock.String(),
		"end_year", s.cfg.EndYear,
		"months", s.cfg.Months(),
		"roles", len(s.roles),
	)
	start := time.Now()

	var g errgroup.Group
	for _, r := range s.roles {
		g.Go(func() error {
			return s.runRole(ctx, r)
		})
	}
	err := g.Wait()

	final := s.State()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("simulation stopped", "at", final.Clock.String(), "error", err)
		return err
	}

	slog.Info("simulation finished",
		"months", final.Clock.MonthIndex-1,
		"at", final.Clock.String(),
		"population", final.Population,
		"resource", fmt.Sprintf("%.2f", final.Resource),
		"popularity", fmt.Sprintf("%.2f", final.Popularity),
		"elapsed", time.Since(start),
	)
	return nil
}

// runRole is the per-role cycle. Every role runs the same three Await calls
// per iteration and leaves the loop only on the shared Done flag, read after
// DonePrinting, so all roles stop in the same cycle.
func (s *Simulation) runRole(ctx context.Context, r Role) error {
	var firstErr error
	for !s.state.Done {
		if s.observe != nil {
			s.observe(r.Name(), *s.state)
		}
		r.Compute(s.state)
		s.barrier.Await(DoneComputing)

		r.Publish(s.state)
		s.barrier.Await(DoneAssigning)

		if err := r.Report(ctx, s.state); err != nil && firstErr == nil {
			firstErr = err
		}
		s.barrier.Await(DonePrinting)
	}
	return firstErr
}
