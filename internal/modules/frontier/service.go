package frontier

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PriceProvider fetches aligned daily closes for symbols over [start, end].
// Implementations return ErrNoData when nothing is available.
type PriceProvider interface {
	FetchPrices(ctx context.Context, symbols []string, start, end time.Time) (PriceSeries, error)
}

// Request describes one simulation run.
type Request struct {
	Symbols      []string
	Start        time.Time
	End          time.Time
	Samples      int
	RiskFreeRate float64
	// Seed makes the run reproducible. Nil draws from an unseeded source.
	Seed *uint64
}

// Normalize trims, uppercases and de-duplicates symbols, keeping first
// occurrence order, and validates the rest of the request.
func (r Request) Normalize(maxSamples int) (Request, error) {
	seen := make(map[string]bool, len(r.Symbols))
	symbols := make([]string, 0, len(r.Symbols))
	for _, s := range r.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		symbols = append(symbols, s)
	}
	if len(symbols) == 0 {
		return r, invalid("symbols", "at least one symbol is required")
	}
	if r.Start.IsZero() || r.End.IsZero() {
		return r, invalid("date_range", "start and end are required")
	}
	if !r.Start.Before(r.End) {
		return r, invalid("date_range", "start %s must be before end %s",
			r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly))
	}
	if r.Samples < 1 || r.Samples > maxSamples {
		return r, invalid("samples", "must be between 1 and %d, got %d", maxSamples, r.Samples)
	}
	if math.IsNaN(r.RiskFreeRate) || math.IsInf(r.RiskFreeRate, 0) {
		return r, invalid("risk_free_rate", "must be finite")
	}

	out := r
	out.Symbols = symbols
	return out, nil
}

// Service runs simulations end to end.
type Service struct {
	provider  PriceProvider
	estimator *ReturnEstimator
	sampler   *Sampler
	registry  *Registry
	newSource func(seed *uint64) RandomSource
	log       zerolog.Logger
}

// NewService creates a simulation service. registry may be nil.
func NewService(provider PriceProvider, sampler *Sampler, registry *Registry, log zerolog.Logger) *Service {
	return &Service{
		provider:  provider,
		estimator: NewReturnEstimator(log),
		sampler:   sampler,
		registry:  registry,
		newSource: NewRandomSource,
		log:       log.With().Str("component", "frontier_service").Logger(),
	}
}

// SetRandomSourceFactory replaces how per-run random sources are built.
func (s *Service) SetRandomSourceFactory(factory func(seed *uint64) RandomSource) {
	s.newSource = factory
}

// MaxSamples returns the sample cap enforced by Run.
func (s *Service) MaxSamples() int {
	return s.sampler.MaxSamples()
}

// Run validates req, fetches prices, estimates moments, samples portfolios and
// selects the named ones. Either every stage succeeds or an error is returned.
func (s *Service) Run(ctx context.Context, req Request) (*SimulationResult, error) {
	startTime := time.Now()

	req, err := req.Normalize(s.sampler.MaxSamples())
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	log := s.log.With().Str("run_id", runID).Logger()
	log.Info().
		Strs("symbols", req.Symbols).
		Str("start", req.Start.Format(time.DateOnly)).
		Str("end", req.End.Format(time.DateOnly)).
		Int("samples", req.Samples).
		Float64("risk_free_rate", req.RiskFreeRate).
		Msg("Starting simulation")

	prices, err := s.provider.FetchPrices(ctx, req.Symbols, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}
	if prices.Len() == 0 {
		return nil, fmt.Errorf("%w: no prices for %s", ErrNoData, strings.Join(req.Symbols, ","))
	}
	log.Debug().Int("rows", prices.Len()).Dur("elapsed", time.Since(startTime)).Msg("Fetched prices")

	_, moments, err := s.estimator.Estimate(prices)
	if err != nil {
		return nil, err
	}

	portfolios, err := s.sampler.Sample(ctx, moments, req.Samples, req.RiskFreeRate, s.newSource(req.Seed))
	if err != nil {
		return nil, err
	}

	sel := Select(moments, portfolios, req.RiskFreeRate)
	if sel.MaxSharpe == nil {
		log.Warn().Msg("No portfolio has a defined Sharpe ratio")
	}

	result := &SimulationResult{
		RunID:         runID,
		Symbols:       moments.Symbols,
		Start:         req.Start,
		End:           req.End,
		Observations:  moments.Observations,
		Samples:       req.Samples,
		RiskFreeRate:  req.RiskFreeRate,
		Prices:        prices,
		Moments:       moments,
		Portfolios:    portfolios,
		MaxSharpe:     sel.MaxSharpe,
		MinVolatility: sel.MinVolatility,
		EqualWeight:   sel.EqualWeight,
		Elapsed:       time.Since(startTime),
	}

	if s.registry != nil {
		s.registry.Put(result)
	}

	log.Info().
		Int("observations", result.Observations).
		Dur("elapsed", result.Elapsed).
		Msg("Simulation completed")

	return result, nil
}

// Get returns a recent result by run id.
func (s *Service) Get(id string) (*SimulationResult, bool) {
	if s.registry == nil {
		return nil, false
	}
	return s.registry.Get(id)
}

// Recent returns the ids of retained results, newest first.
func (s *Service) Recent() []string {
	if s.registry == nil {
		return nil
	}
	return s.registry.IDs()
}
