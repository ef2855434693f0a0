package frontier

import (
	"math"
)

// Selection holds the named portfolios of a run.
type Selection struct {
	MaxSharpe     *Portfolio
	MinVolatility *Portfolio
	EqualWeight   Portfolio
}

// Select picks the maximum-Sharpe and minimum-volatility portfolios from the
// sampled table and evaluates the equal-weight portfolio.
func Select(m *Moments, portfolios []Portfolio, riskFreeRate float64) Selection {
	return Selection{
		MaxSharpe:     SelectMaxSharpe(portfolios),
		MinVolatility: SelectMinVolatility(portfolios),
		EqualWeight:   EqualWeight(m, riskFreeRate),
	}
}

// SelectMaxSharpe returns a copy of the portfolio with the highest defined
// Sharpe ratio, or nil if none has one. On ties the earliest sample wins.
func SelectMaxSharpe(portfolios []Portfolio) *Portfolio {
	best := -1
	for i := range portfolios {
		s := portfolios[i].Sharpe
		if !s.Valid || math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			continue
		}
		if best < 0 || s.Value > portfolios[best].Sharpe.Value {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	return clonePortfolio(portfolios[best])
}

// SelectMinVolatility returns a copy of the portfolio with the lowest finite
// volatility, or nil if none is finite. On ties the earliest sample wins.
func SelectMinVolatility(portfolios []Portfolio) *Portfolio {
	best := -1
	for i := range portfolios {
		v := portfolios[i].Volatility
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if best < 0 || v < portfolios[best].Volatility {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	return clonePortfolio(portfolios[best])
}

// EqualWeight evaluates the 1/n portfolio. It is never sampled.
func EqualWeight(m *Moments, riskFreeRate float64) Portfolio {
	n := m.Assets()
	if n == 0 {
		return Portfolio{Index: EqualWeightIndex, Sharpe: None()}
	}
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1 / float64(n)
	}
	return Evaluate(m, weights, riskFreeRate)
}

func clonePortfolio(p Portfolio) *Portfolio {
	out := p
	out.Weights = append([]float64(nil), p.Weights...)
	return &out
}
