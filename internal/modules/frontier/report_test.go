package frontier

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPortfolio(t *testing.T) {
	p := &Portfolio{Return: 0.1234, Volatility: 0.2, Sharpe: Some(0.5547), Weights: []float64{0.5, 0.5}}

	out := FormatPortfolio(NameMaxSharpe, p, []string{"AAPL", "MSFT"})
	assert.Contains(t, out, "Max Sharpe\n")
	assert.Contains(t, out, "Return: 12.34%")
	assert.Contains(t, out, "Volatility: 20.00%")
	assert.Contains(t, out, "Sharpe: 0.55")
	assert.Contains(t, out, "AAPL: 50.00%")
	assert.Contains(t, out, "MSFT: 50.00%")
}

func TestFormatPortfolio_Absent(t *testing.T) {
	assert.Contains(t, FormatPortfolio(NameMaxSharpe, nil, nil), "not available")

	p := &Portfolio{Return: 0.1, Volatility: 0, Sharpe: None(), Weights: []float64{1}}
	assert.Contains(t, FormatPortfolio(NameEqualWeight, p, []string{"A"}), "Sharpe: n/a")
}

func TestFormatReport(t *testing.T) {
	result := &SimulationResult{
		Symbols:     []string{"A", "B"},
		MaxSharpe:   &Portfolio{Return: 0.1, Volatility: 0.1, Sharpe: Some(1), Weights: []float64{0.3, 0.7}},
		EqualWeight: Portfolio{Return: 0.05, Volatility: 0.1, Sharpe: Some(0.5), Weights: []float64{0.5, 0.5}},
	}

	out := FormatReport(result)
	assert.Contains(t, out, NameMaxSharpe)
	assert.Contains(t, out, NameMinVolatility+"\n  not available")
	assert.Contains(t, out, NameEqualWeight)
	assert.Contains(t, out, "B: 70.00%")
}

func TestFormatTable(t *testing.T) {
	out := FormatTable(table()[:3], []string{"A", "B"})
	assert.Contains(t, out, "Sharpe")
	assert.Contains(t, out, "0.47")
	assert.Contains(t, out, "n/a")
}

func TestTopBySharpe(t *testing.T) {
	top := TopBySharpe(table(), 3)
	require.Len(t, top, 3)
	assert.Equal(t, []int{1, 3, 0}, []int{top[0].Index, top[1].Index, top[2].Index})

	all := TopBySharpe(table(), 10)
	assert.Len(t, all, 4, "undefined Sharpe is never ranked")

	assert.Empty(t, TopBySharpe(table(), 0))
	assert.Empty(t, TopBySharpe(nil, 10))
}

func TestEnvelope(t *testing.T) {
	portfolios := []Portfolio{
		{Index: 0, Volatility: 0.10, Return: 0.05},
		{Index: 1, Volatility: 0.11, Return: 0.07},
		{Index: 2, Volatility: 0.20, Return: 0.06},
		{Index: 3, Volatility: 0.25, Return: 0.12},
		{Index: 4, Volatility: 0.30, Return: 0.10},
		{Index: 5, Volatility: math.NaN(), Return: 0.50},
	}

	env := Envelope(portfolios, 4)
	require.NotEmpty(t, env)
	for i := 1; i < len(env); i++ {
		assert.Greater(t, env[i].Volatility, env[i-1].Volatility)
		assert.Greater(t, env[i].Return, env[i-1].Return)
	}
	for _, p := range env {
		assert.NotEqual(t, 5, p.Index)
	}
	assert.Equal(t, 1, env[0].Index)
	assert.Equal(t, 3, env[len(env)-1].Index)
}

func TestEnvelope_Degenerate(t *testing.T) {
	assert.Empty(t, Envelope(nil, 10))

	same := []Portfolio{
		{Index: 0, Volatility: 0, Return: 0.1},
		{Index: 1, Volatility: 0, Return: 0.2},
	}
	env := Envelope(same, 10)
	require.Len(t, env, 1)
	assert.Equal(t, 1, env[0].Index)
}

func TestOptional_JSON(t *testing.T) {
	data, err := json.Marshal(Portfolio{Index: 1, Sharpe: None(), Weights: []float64{1}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sharpe":null`)

	data, err = json.Marshal(Some(0.5))
	require.NoError(t, err)
	assert.Equal(t, "0.5", string(data))

	var o Optional
	require.NoError(t, json.Unmarshal([]byte("null"), &o))
	assert.False(t, o.Valid)
	assert.Nil(t, o.Ptr())
}

func TestFormatAssets(t *testing.T) {
	m := newMoments([]float64{0.10, 0.05}, []float64{0.04, 0.01, 0.01, 0.01})

	out := FormatAssets(m)
	assert.Contains(t, out, "A           10.00%      20.00%")
	assert.Contains(t, out, "B            5.00%      10.00%")
	assert.Contains(t, out, "A            1.00     0.50")
	assert.Empty(t, FormatAssets(&Moments{}))
}

func TestFormatPrices(t *testing.T) {
	ps := PriceSeries{
		Symbols: []string{"AAA", "BBB"},
		Dates:   dates(2),
		Prices:  [][]float64{{100, 50.5}, {101.25, math.NaN()}},
	}

	lines := strings.Split(strings.TrimRight(FormatPrices(ps), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date              AAA        BBB", lines[0])
	assert.Equal(t, "2024-01-02     100.00      50.50", lines[1])
	assert.Equal(t, "2024-01-03     101.25        n/a", lines[2])
}
