package frontier

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ReturnEstimator turns aligned prices into returns and annualized moments.
type ReturnEstimator struct {
	log zerolog.Logger
}

// NewReturnEstimator creates a new return estimator.
func NewReturnEstimator(log zerolog.Logger) *ReturnEstimator {
	return &ReturnEstimator{
		log: log.With().Str("component", "return_estimator").Logger(),
	}
}

// Estimate computes the return series and the annualized moments for prices.
// It fails with ErrNoData for an empty series and ErrInsufficientData when
// fewer than two aligned return observations remain.
func (e *ReturnEstimator) Estimate(prices PriceSeries) (ReturnSeries, *Moments, error) {
	returns, err := CalculateReturns(prices)
	if err != nil {
		return ReturnSeries{}, nil, err
	}

	if dropped := prices.Len() - 1 - returns.Len(); dropped > 0 {
		e.log.Warn().
			Int("dropped_rows", dropped).
			Msg("Dropped return rows with undefined values")
	}

	moments, err := EstimateMoments(returns)
	if err != nil {
		return ReturnSeries{}, nil, err
	}

	e.log.Debug().
		Int("num_assets", moments.Assets()).
		Int("observations", moments.Observations).
		Msg("Estimated annualized moments")

	return returns, moments, nil
}

// CalculateReturns computes r[t] = p[t]/p[t-1] - 1 per asset. A row where any
// asset's return is undefined (missing or non-positive previous price, NaN,
// Inf) is dropped for every asset so the series stay aligned.
func CalculateReturns(prices PriceSeries) (ReturnSeries, error) {
	n := len(prices.Symbols)
	if n == 0 || prices.Len() == 0 {
		return ReturnSeries{}, fmt.Errorf("%w: empty price series", ErrNoData)
	}
	if len(prices.Prices) != prices.Len() {
		return ReturnSeries{}, fmt.Errorf("price rows %d don't match dates %d", len(prices.Prices), prices.Len())
	}
	for t, row := range prices.Prices {
		if len(row) != n {
			return ReturnSeries{}, fmt.Errorf("price row %d has %d values, expected %d", t, len(row), n)
		}
	}
	if prices.Len() < 2 {
		return ReturnSeries{}, fmt.Errorf("%w: need at least 2 prices, got %d", ErrInsufficientData, prices.Len())
	}

	out := ReturnSeries{
		Symbols: prices.Symbols,
		Dates:   make([]time.Time, 0, prices.Len()-1),
		Returns: make([][]float64, 0, prices.Len()-1),
	}

	for t := 1; t < prices.Len(); t++ {
		prev, curr := prices.Prices[t-1], prices.Prices[t]
		row := make([]float64, n)
		ok := true
		for i := 0; i < n; i++ {
			r := curr[i]/prev[i] - 1
			if prev[i] <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
				ok = false
				break
			}
			row[i] = r
		}
		if !ok {
			continue
		}
		out.Dates = append(out.Dates, prices.Dates[t])
		out.Returns = append(out.Returns, row)
	}

	if out.Len() == 0 {
		return ReturnSeries{}, fmt.Errorf("%w: no valid return observations", ErrInsufficientData)
	}

	return out, nil
}

// EstimateMoments annualizes the sample mean and the sample covariance
// (n-1 denominator) of returns by TradingDaysPerYear.
func EstimateMoments(returns ReturnSeries) (*Moments, error) {
	n := len(returns.Symbols)
	obs := returns.Len()
	if n == 0 {
		return nil, fmt.Errorf("%w: no assets", ErrNoData)
	}
	if obs < 2 {
		return nil, fmt.Errorf("%w: need at least 2 return observations, got %d", ErrInsufficientData, obs)
	}

	data := mat.NewDense(obs, n, nil)
	for t, row := range returns.Returns {
		data.SetRow(t, row)
	}

	mean := mat.NewVecDense(n, nil)
	col := make([]float64, obs)
	for i := 0; i < n; i++ {
		mat.Col(col, i, data)
		mean.SetVec(i, stat.Mean(col, nil)*TradingDaysPerYear)
	}

	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, data, nil)
	cov.ScaleSym(TradingDaysPerYear, cov)

	return &Moments{
		Symbols:      returns.Symbols,
		Mean:         mean,
		Cov:          cov,
		Observations: obs,
	}, nil
}
