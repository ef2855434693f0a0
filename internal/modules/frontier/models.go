// Package frontier estimates the risk/return trade-off of a basket of assets by
// Monte Carlo sampling of long-only portfolio weights.
//
// The pipeline is:
//  1. ReturnEstimator: prices -> daily simple returns -> annualized mean vector and covariance
//  2. Sampler: N random weight vectors -> per-portfolio return, volatility and Sharpe ratio
//  3. Select: maximum-Sharpe, minimum-volatility and equal-weight (1/N) portfolios
//
// Service ties the stages to a PriceProvider and is what the HTTP handlers and the CLI use.
package frontier

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"gonum.org/v1/gonum/mat"
)

// TradingDaysPerYear scales daily moments to annual ones. Fixed policy.
const TradingDaysPerYear = 252

// PriceSeries holds aligned closing prices. Prices[t][i] is the price of
// Symbols[i] on Dates[t]. Dates are strictly increasing and, once cleaned,
// no value is missing.
type PriceSeries struct {
	Symbols []string
	Dates   []time.Time
	Prices  [][]float64
}

// Len returns the number of dated rows.
func (ps PriceSeries) Len() int {
	return len(ps.Dates)
}

// ReturnSeries holds per-period simple returns aligned across assets.
// Dates[t] is the date the return was realised (the later of the two prices).
type ReturnSeries struct {
	Symbols []string
	Dates   []time.Time
	Returns [][]float64
}

// Len returns the number of return observations.
func (rs ReturnSeries) Len() int {
	return len(rs.Returns)
}

// Moments is the annualized mean-return vector and covariance matrix of a set
// of assets. It is built once per run and must not be mutated afterwards.
type Moments struct {
	Symbols      []string
	Mean         *mat.VecDense
	Cov          *mat.SymDense
	Observations int
}

// Assets returns the number of assets.
func (m *Moments) Assets() int {
	if m == nil || m.Mean == nil {
		return 0
	}
	return m.Mean.Len()
}

// Volatilities returns the annualized standard deviation of each asset.
func (m *Moments) Volatilities() []float64 {
	n := m.Assets()
	vols := make([]float64, n)
	for i := 0; i < n; i++ {
		vols[i] = math.Sqrt(math.Max(m.Cov.At(i, i), 0))
	}
	return vols
}

// Correlation derives the correlation matrix from the covariance matrix.
// Pairs involving a zero-variance asset are reported as 0 off the diagonal.
func (m *Moments) Correlation() *mat.SymDense {
	n := m.Assets()
	vols := m.Volatilities()
	corr := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		corr.SetSym(i, i, 1)
		for j := i + 1; j < n; j++ {
			if vols[i] > 0 && vols[j] > 0 {
				corr.SetSym(i, j, m.Cov.At(i, j)/(vols[i]*vols[j]))
			}
		}
	}
	return corr
}

// Optional is a float that may be absent. It replaces NaN sentinels for
// values such as an undefined Sharpe ratio.
type Optional struct {
	Value float64
	Valid bool
}

// Some wraps a present value.
func Some(v float64) Optional {
	return Optional{Value: v, Valid: true}
}

// None is the absent value.
func None() Optional {
	return Optional{}
}

// Ptr returns nil when absent.
func (o Optional) Ptr() *float64 {
	if !o.Valid {
		return nil
	}
	v := o.Value
	return &v
}

// MarshalJSON renders an absent value as null.
func (o Optional) MarshalJSON() ([]byte, error) {
	if !o.Valid || math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(o.Value, 'g', -1, 64)), nil
}

// UnmarshalJSON accepts null or a number.
func (o *Optional) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = None()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// Portfolio is one evaluated weight vector. Index is the position in sampling
// order; the equal-weight portfolio is not sampled and carries Index -1.
type Portfolio struct {
	Index      int       `json:"index"`
	Return     float64   `json:"return"`
	Volatility float64   `json:"volatility"`
	Sharpe     Optional  `json:"sharpe"`
	Weights    []float64 `json:"weights"`
}

// EqualWeightIndex marks the deterministic 1/N portfolio.
const EqualWeightIndex = -1

// SimulationResult is the full output of one run. Portfolios are in sampling
// order. MaxSharpe and MinVolatility are nil when no optimum exists.
type SimulationResult struct {
	RunID         string
	Symbols       []string
	Start         time.Time
	End           time.Time
	Observations  int
	Samples       int
	RiskFreeRate  float64
	Prices        PriceSeries // aligned closes the moments were estimated from
	Moments       *Moments
	Portfolios    []Portfolio
	MaxSharpe     *Portfolio
	MinVolatility *Portfolio
	EqualWeight   Portfolio
	Elapsed       time.Duration
}
