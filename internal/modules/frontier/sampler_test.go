package frontier

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// scriptedSource replays a fixed sequence of draws, cycling when exhausted.
type scriptedSource struct {
	draws []float64
	next  int
}

func (s *scriptedSource) Float64() float64 {
	v := s.draws[s.next%len(s.draws)]
	s.next++
	return v
}

func newMoments(mean []float64, cov []float64) *Moments {
	n := len(mean)
	symbols := make([]string, n)
	for i := range symbols {
		symbols[i] = string(rune('A' + i))
	}
	return &Moments{
		Symbols:      symbols,
		Mean:         mat.NewVecDense(n, mean),
		Cov:          mat.NewSymDense(n, cov),
		Observations: 100,
	}
}

func testSampler(cfg SamplerConfig) *Sampler {
	return NewSampler(cfg, zerolog.Nop())
}

func TestSampler_ForcedDrawScenario(t *testing.T) {
	m := newMoments([]float64{0.10, 0.20}, []float64{0.04, 0, 0, 0.09})
	src := &scriptedSource{draws: []float64{0.3, 0.3}}

	portfolios, err := testSampler(SamplerConfig{}).Sample(context.Background(), m, 1, 0.05, src)
	require.NoError(t, err)
	require.Len(t, portfolios, 1)

	p := portfolios[0]
	assert.Equal(t, 0, p.Index)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, p.Weights, 1e-12)
	assert.InDelta(t, 0.15, p.Return, 1e-12)
	assert.InDelta(t, math.Sqrt(0.0325), p.Volatility, 1e-12)
	assert.InDelta(t, 0.1803, p.Volatility, 1e-4)
	require.True(t, p.Sharpe.Valid)
	assert.InDelta(t, 0.5547, p.Sharpe.Value, 1e-4)
	assert.InDelta(t, 0.10/math.Sqrt(0.0325), p.Sharpe.Value, 1e-12)
}

func TestSampler_WeightsOnSimplex(t *testing.T) {
	m := newMoments(
		[]float64{0.05, 0.10, 0.15, 0.08},
		[]float64{
			0.04, 0.01, 0.00, 0.01,
			0.01, 0.09, 0.02, 0.00,
			0.00, 0.02, 0.16, 0.01,
			0.01, 0.00, 0.01, 0.05,
		},
	)
	seed := uint64(7)
	portfolios, err := testSampler(SamplerConfig{BatchSize: 64, Workers: 4}).
		Sample(context.Background(), m, 1000, 0.02, NewRandomSource(&seed))
	require.NoError(t, err)
	require.Len(t, portfolios, 1000)

	for i, p := range portfolios {
		assert.Equal(t, i, p.Index, "portfolios are in sampling order")
		require.Len(t, p.Weights, 4)
		sum := 0.0
		for _, w := range p.Weights {
			assert.GreaterOrEqual(t, w, 0.0)
			sum += w
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestSampler_MatchesSingleEvaluation(t *testing.T) {
	m := newMoments(
		[]float64{0.07, 0.12, 0.03},
		[]float64{
			0.05, 0.02, -0.01,
			0.02, 0.08, 0.00,
			-0.01, 0.00, 0.02,
		},
	)
	seed := uint64(11)
	portfolios, err := testSampler(SamplerConfig{BatchSize: 7, Workers: 3}).
		Sample(context.Background(), m, 50, 0.01, NewRandomSource(&seed))
	require.NoError(t, err)

	for _, p := range portfolios {
		want := Evaluate(m, p.Weights, 0.01)
		assert.InDelta(t, want.Return, p.Return, 1e-12)
		assert.InDelta(t, want.Volatility, p.Volatility, 1e-12)
		require.Equal(t, want.Sharpe.Valid, p.Sharpe.Valid)
		assert.InDelta(t, want.Sharpe.Value, p.Sharpe.Value, 1e-12)
	}
}

func TestSampler_DeterministicWithSeed(t *testing.T) {
	m := newMoments([]float64{0.1, 0.2, 0.05}, []float64{
		0.04, 0.01, 0.00,
		0.01, 0.09, 0.01,
		0.00, 0.01, 0.02,
	})
	seed := uint64(42)

	first, err := testSampler(SamplerConfig{BatchSize: 16, Workers: 8}).
		Sample(context.Background(), m, 500, 0.03, NewRandomSource(&seed))
	require.NoError(t, err)
	second, err := testSampler(SamplerConfig{BatchSize: 16, Workers: 1}).
		Sample(context.Background(), m, 500, 0.03, NewRandomSource(&seed))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSampler_VolatilityNonNegativeForRandomPSD(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for trial := 0; trial < 25; trial++ {
		n := 2 + r.IntN(6)
		a := mat.NewDense(n, n, nil)
		mean := make([]float64, n)
		for i := 0; i < n; i++ {
			mean[i] = r.Float64()*0.4 - 0.1
			for j := 0; j < n; j++ {
				a.Set(i, j, r.NormFloat64()*0.2)
			}
		}
		// AᵀA is positive semi-definite.
		cov := mat.NewSymDense(n, nil)
		cov.SymOuterK(1, a.T())

		m := &Moments{Symbols: make([]string, n), Mean: mat.NewVecDense(n, mean), Cov: cov}
		seed := uint64(trial)
		portfolios, err := testSampler(SamplerConfig{BatchSize: 32}).
			Sample(context.Background(), m, 200, 0.02, NewRandomSource(&seed))
		require.NoError(t, err)

		for _, p := range portfolios {
			require.False(t, math.IsNaN(p.Volatility))
			assert.GreaterOrEqual(t, p.Volatility, 0.0)
		}
	}
}

func TestSampler_SharpeAbsentIffZeroVolatility(t *testing.T) {
	t.Run("zero covariance", func(t *testing.T) {
		m := newMoments([]float64{0.1, 0.2}, []float64{0, 0, 0, 0})
		seed := uint64(3)
		portfolios, err := testSampler(SamplerConfig{}).
			Sample(context.Background(), m, 20, 0.05, NewRandomSource(&seed))
		require.NoError(t, err)
		for _, p := range portfolios {
			assert.Equal(t, 0.0, p.Volatility)
			assert.False(t, p.Sharpe.Valid)
		}
	})

	t.Run("positive covariance", func(t *testing.T) {
		m := newMoments([]float64{0.1, 0.2}, []float64{0.04, 0, 0, 0.09})
		seed := uint64(4)
		portfolios, err := testSampler(SamplerConfig{}).
			Sample(context.Background(), m, 20, 0.05, NewRandomSource(&seed))
		require.NoError(t, err)
		for _, p := range portfolios {
			require.Greater(t, p.Volatility, 0.0)
			require.True(t, p.Sharpe.Valid)
			assert.InDelta(t, (p.Return-0.05)/p.Volatility, p.Sharpe.Value, 1e-12)
		}
	})
}

func TestSampler_RedrawsDegenerateDraws(t *testing.T) {
	m := newMoments([]float64{0.1, 0.2}, []float64{0.04, 0, 0, 0.09})
	src := &scriptedSource{draws: []float64{0, 0, 0.2, 0.6}}

	portfolios, err := testSampler(SamplerConfig{}).Sample(context.Background(), m, 1, 0.05, src)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.25, 0.75}, portfolios[0].Weights, 1e-12)
}

func TestSampler_FailsOnAlwaysDegenerateSource(t *testing.T) {
	m := newMoments([]float64{0.1}, []float64{0.04})
	_, err := testSampler(SamplerConfig{}).Sample(context.Background(), m, 1, 0.05, &scriptedSource{draws: []float64{0}})
	assert.Error(t, err)
}

func TestSampler_InvalidConfiguration(t *testing.T) {
	m := newMoments([]float64{0.1}, []float64{0.04})
	s := testSampler(SamplerConfig{MaxSamples: 100})
	src := &scriptedSource{draws: []float64{0.5}}

	tests := []struct {
		name    string
		m       *Moments
		samples int
		rf      float64
		src     RandomSource
	}{
		{"zero samples", m, 0, 0.05, src},
		{"above cap", m, 101, 0.05, src},
		{"nan risk free rate", m, 10, math.NaN(), src},
		{"no assets", &Moments{}, 10, 0.05, src},
		{"nil source", m, 10, 0.05, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Sample(context.Background(), tt.m, tt.samples, tt.rf, tt.src)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestSampler_HonorsCancellation(t *testing.T) {
	m := newMoments([]float64{0.1, 0.2}, []float64{0.04, 0, 0, 0.09})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	seed := uint64(1)
	portfolios, err := testSampler(SamplerConfig{BatchSize: 10}).Sample(ctx, m, 100, 0.05, NewRandomSource(&seed))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, portfolios)
}

func TestVolatilityFromVariance(t *testing.T) {
	assert.Equal(t, 0.0, volatilityFromVariance(-1e-15))
	assert.True(t, math.IsNaN(volatilityFromVariance(-1e-3)))
	assert.InDelta(t, 0.2, volatilityFromVariance(0.04), 1e-12)
}
