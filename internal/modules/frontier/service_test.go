package frontier

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	prices PriceSeries
	err    error
	calls  int
	got    []string
}

func (f *fakeProvider) FetchPrices(_ context.Context, symbols []string, _, _ time.Time) (PriceSeries, error) {
	f.calls++
	f.got = symbols
	if f.err != nil {
		return PriceSeries{}, f.err
	}
	return f.prices, nil
}

func samplePrices() PriceSeries {
	return PriceSeries{
		Symbols: []string{"AAA", "BBB"},
		Dates:   dates(6),
		Prices: [][]float64{
			{100, 50},
			{101, 49},
			{103, 51},
			{102, 52},
			{105, 50},
			{107, 53},
		},
	}
}

func validRequest() Request {
	return Request{
		Symbols:      []string{" aaa", "BBB", "aaa"},
		Start:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:          time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Samples:      200,
		RiskFreeRate: 0.02,
	}
}

func newTestService(provider PriceProvider, registry *Registry) *Service {
	return NewService(provider, NewSampler(SamplerConfig{MaxSamples: 1000}, zerolog.Nop()), registry, zerolog.Nop())
}

func TestRequest_Normalize(t *testing.T) {
	req, err := validRequest().Normalize(1000)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, req.Symbols)

	tests := []struct {
		name  string
		mod   func(r *Request)
		field string
	}{
		{"no symbols", func(r *Request) { r.Symbols = []string{" ", ""} }, "symbols"},
		{"start equals end", func(r *Request) { r.End = r.Start }, "date_range"},
		{"start after end", func(r *Request) { r.Start = r.End.AddDate(0, 0, 1) }, "date_range"},
		{"missing dates", func(r *Request) { r.Start = time.Time{} }, "date_range"},
		{"zero samples", func(r *Request) { r.Samples = 0 }, "samples"},
		{"samples above cap", func(r *Request) { r.Samples = 1001 }, "samples"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mod(&req)
			_, err := req.Normalize(1000)
			require.ErrorIs(t, err, ErrInvalidConfiguration)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestService_Run(t *testing.T) {
	provider := &fakeProvider{prices: samplePrices()}
	registry := NewRegistry(5)
	svc := newTestService(provider, registry)

	seed := uint64(99)
	req := validRequest()
	req.Seed = &seed

	result, err := svc.Run(context.Background(), req)
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, []string{"AAA", "BBB"}, provider.got)
	assert.Equal(t, []string{"AAA", "BBB"}, result.Symbols)
	assert.Equal(t, 5, result.Observations)
	assert.Equal(t, samplePrices().Prices, result.Prices.Prices, "aligned prices are kept on the result")
	assert.Len(t, result.Portfolios, 200)
	require.NotNil(t, result.MaxSharpe)
	require.NotNil(t, result.MinVolatility)
	assert.Equal(t, []float64{0.5, 0.5}, result.EqualWeight.Weights)

	stored, ok := svc.Get(result.RunID)
	require.True(t, ok)
	assert.Same(t, result, stored)

	again, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, result.Portfolios, again.Portfolios, "same seed gives the same table")
	assert.NotEqual(t, result.RunID, again.RunID)
	assert.Equal(t, []string{again.RunID, result.RunID}, svc.Recent())
}

func TestService_Run_ScriptedSource(t *testing.T) {
	svc := newTestService(&fakeProvider{prices: samplePrices()}, nil)
	svc.SetRandomSourceFactory(func(*uint64) RandomSource {
		return &scriptedSource{draws: []float64{0.3, 0.3}}
	})

	req := validRequest()
	req.Samples = 3
	result, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	for _, p := range result.Portfolios {
		assert.InDeltaSlice(t, []float64{0.5, 0.5}, p.Weights, 1e-12)
	}
	assert.InDelta(t, result.EqualWeight.Return, result.Portfolios[0].Return, 1e-12)

	_, ok := svc.Get(result.RunID)
	assert.False(t, ok)
}

func TestService_Run_Errors(t *testing.T) {
	t.Run("invalid request skips the provider", func(t *testing.T) {
		provider := &fakeProvider{prices: samplePrices()}
		req := validRequest()
		req.Symbols = nil
		_, err := newTestService(provider, nil).Run(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
		assert.Zero(t, provider.calls)
	})

	t.Run("provider has no data", func(t *testing.T) {
		provider := &fakeProvider{err: fmt.Errorf("%w: nothing for AAA", ErrNoData)}
		_, err := newTestService(provider, nil).Run(context.Background(), validRequest())
		assert.ErrorIs(t, err, ErrNoData)
	})

	t.Run("provider returns empty series", func(t *testing.T) {
		_, err := newTestService(&fakeProvider{}, nil).Run(context.Background(), validRequest())
		assert.ErrorIs(t, err, ErrNoData)
	})

	t.Run("too few prices", func(t *testing.T) {
		prices := samplePrices()
		prices.Dates = prices.Dates[:2]
		prices.Prices = prices.Prices[:2]
		registry := NewRegistry(5)
		_, err := newTestService(&fakeProvider{prices: prices}, registry).Run(context.Background(), validRequest())
		assert.ErrorIs(t, err, ErrInsufficientData)
		assert.Zero(t, registry.Len(), "failed runs are not stored")
	})
}

func TestRegistry_EvictsOldest(t *testing.T) {
	r := NewRegistry(2)
	r.Put(&SimulationResult{RunID: "a"})
	r.Put(&SimulationResult{RunID: "b"})
	r.Put(&SimulationResult{RunID: "c"})

	_, ok := r.Get("a")
	assert.False(t, ok)
	assert.Equal(t, []string{"c", "b"}, r.IDs())

	r.Put(&SimulationResult{RunID: "b", Samples: 7})
	got, ok := r.Get("b")
	require.True(t, ok)
	assert.Equal(t, 7, got.Samples)
	assert.Equal(t, 2, r.Len())
}
