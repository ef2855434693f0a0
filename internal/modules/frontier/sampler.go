package frontier

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// DefaultMaxSamples is the upper bound on samples per run.
	DefaultMaxSamples = 20000
	// DefaultBatchSize is the number of portfolios evaluated per matrix product.
	DefaultBatchSize = 1024
	// maxRedraws bounds retries of a degenerate weight draw.
	maxRedraws = 100
	// varianceTolerance absorbs rounding that pushes wᵀΣw slightly below zero.
	varianceTolerance = 1e-12
)

// SamplerConfig bounds and tunes the Monte Carlo sampler.
type SamplerConfig struct {
	MaxSamples int
	BatchSize  int
	Workers    int
}

// Sampler draws random long-only weight vectors and evaluates them against a
// fixed set of moments.
type Sampler struct {
	cfg SamplerConfig
	log zerolog.Logger
}

// NewSampler creates a sampler. Zero config values fall back to defaults.
func NewSampler(cfg SamplerConfig, log zerolog.Logger) *Sampler {
	if cfg.MaxSamples <= 0 {
		cfg.MaxSamples = DefaultMaxSamples
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Sampler{
		cfg: cfg,
		log: log.With().Str("component", "sampler").Logger(),
	}
}

// MaxSamples returns the configured sample cap.
func (s *Sampler) MaxSamples() int {
	return s.cfg.MaxSamples
}

// Sample draws samples weight vectors from rng and evaluates each one.
//
// Each vector is n uniform draws divided by their sum. This is not a uniform
// distribution over the simplex (it is denser near equal weights); it is the
// documented sampling policy. Weights are drawn sequentially so a seeded source
// always yields the same table; statistics are then computed in batches that may
// run concurrently, each writing only its own index range.
func (s *Sampler) Sample(ctx context.Context, m *Moments, samples int, riskFreeRate float64, rng RandomSource) ([]Portfolio, error) {
	if m.Assets() == 0 {
		return nil, invalid("moments", "no assets")
	}
	if samples < 1 || samples > s.cfg.MaxSamples {
		return nil, invalid("samples", "must be between 1 and %d, got %d", s.cfg.MaxSamples, samples)
	}
	if math.IsNaN(riskFreeRate) || math.IsInf(riskFreeRate, 0) {
		return nil, invalid("risk_free_rate", "must be finite")
	}
	if rng == nil {
		return nil, invalid("random_source", "must not be nil")
	}

	startTime := time.Now()
	n := m.Assets()

	// Row-major weights, one row per sample.
	weights := make([]float64, samples*n)
	for i := 0; i < samples; i++ {
		if err := drawWeights(rng, weights[i*n:(i+1)*n]); err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
	}

	portfolios := make([]Portfolio, samples)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for lo := 0; lo < samples; lo += s.cfg.BatchSize {
		hi := min(lo+s.cfg.BatchSize, samples)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			evaluateBatch(m, weights[lo*n:hi*n], lo, riskFreeRate, portfolios[lo:hi])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("sampling interrupted: %w", err)
	}

	s.log.Debug().
		Int("samples", samples).
		Int("num_assets", n).
		Dur("elapsed", time.Since(startTime)).
		Msg("Sampled portfolios")

	return portfolios, nil
}

// drawWeights fills w with normalized uniform draws, redrawing when the draw
// cannot be normalized onto the simplex.
func drawWeights(rng RandomSource, w []float64) error {
	for attempt := 0; attempt < maxRedraws; attempt++ {
		sum := 0.0
		ok := true
		for j := range w {
			u := rng.Float64()
			if u < 0 || math.IsNaN(u) || math.IsInf(u, 0) {
				ok = false
			}
			w[j] = u
			sum += u
		}
		if !ok || sum <= 0 || math.IsInf(sum, 0) {
			continue
		}
		floats.Scale(1/sum, w)
		return nil
	}
	return fmt.Errorf("random source produced %d degenerate weight draws in a row", maxRedraws)
}

// evaluateBatch computes return W·μ and variance diag(W·Σ·Wᵀ) for a block of
// weight rows and writes the results into out.
func evaluateBatch(m *Moments, raw []float64, offset int, riskFreeRate float64, out []Portfolio) {
	n := m.Assets()
	rows := len(out)

	w := mat.NewDense(rows, n, raw)

	rets := mat.NewVecDense(rows, nil)
	rets.MulVec(w, m.Mean)

	var ws mat.Dense
	ws.Mul(w, m.Cov)

	for k := 0; k < rows; k++ {
		row := w.RawRowView(k)
		weights := make([]float64, n)
		copy(weights, row)

		ret := rets.AtVec(k)
		vol := volatilityFromVariance(floats.Dot(ws.RawRowView(k), row))
		out[k] = Portfolio{
			Index:      offset + k,
			Return:     ret,
			Volatility: vol,
			Sharpe:     sharpe(ret, vol, riskFreeRate),
			Weights:    weights,
		}
	}
}

// Evaluate computes the statistics of a single weight vector.
func Evaluate(m *Moments, weights []float64, riskFreeRate float64) Portfolio {
	w := mat.NewVecDense(len(weights), append([]float64(nil), weights...))
	ret := mat.Dot(w, m.Mean)
	vol := volatilityFromVariance(mat.Inner(w, m.Cov, w))
	return Portfolio{
		Index:      EqualWeightIndex,
		Return:     ret,
		Volatility: vol,
		Sharpe:     sharpe(ret, vol, riskFreeRate),
		Weights:    w.RawVector().Data,
	}
}

func volatilityFromVariance(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return math.NaN()
	case v < 0 && v >= -varianceTolerance:
		return 0
	case v < 0:
		return math.NaN()
	}
	return math.Sqrt(v)
}

// sharpe is absent when volatility is zero or not finite.
func sharpe(ret, vol, riskFreeRate float64) Optional {
	if !(vol > 0) || math.IsInf(vol, 0) || math.IsNaN(ret) {
		return None()
	}
	s := (ret - riskFreeRate) / vol
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return None()
	}
	return Some(s)
}
