package frontier

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Names of the three reported portfolios.
const (
	NameMaxSharpe     = "Max Sharpe"
	NameMinVolatility = "Min Volatility"
	NameEqualWeight   = "Equal Weight"
)

// FormatPortfolio renders a portfolio as percentages, the Sharpe ratio with two
// decimals ("n/a" when absent) and one weight line per symbol.
func FormatPortfolio(name string, p *Portfolio, symbols []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", name)
	if p == nil {
		b.WriteString("  not available\n")
		return b.String()
	}
	fmt.Fprintf(&b, "  Return: %s\n", percent(p.Return))
	fmt.Fprintf(&b, "  Volatility: %s\n", percent(p.Volatility))
	if p.Sharpe.Valid {
		fmt.Fprintf(&b, "  Sharpe: %.2f\n", p.Sharpe.Value)
	} else {
		b.WriteString("  Sharpe: n/a\n")
	}
	for i, w := range p.Weights {
		sym := fmt.Sprintf("#%d", i)
		if i < len(symbols) {
			sym = symbols[i]
		}
		fmt.Fprintf(&b, "  %s: %s\n", sym, percent(w))
	}
	return b.String()
}

// FormatReport renders the three named portfolios of a run.
func FormatReport(result *SimulationResult) string {
	eq := result.EqualWeight
	sections := []string{
		FormatPortfolio(NameMaxSharpe, result.MaxSharpe, result.Symbols),
		FormatPortfolio(NameMinVolatility, result.MinVolatility, result.Symbols),
		FormatPortfolio(NameEqualWeight, &eq, result.Symbols),
	}
	return strings.Join(sections, "\n")
}

// FormatTable renders portfolios as a fixed-width table with one weight column
// per symbol.
func FormatTable(portfolios []Portfolio, symbols []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%6s %9s %11s %7s", "#", "Return", "Volatility", "Sharpe")
	for _, s := range symbols {
		fmt.Fprintf(&b, " %8s", s)
	}
	b.WriteString("\n")
	for _, p := range portfolios {
		sharpe := "n/a"
		if p.Sharpe.Valid {
			sharpe = fmt.Sprintf("%.2f", p.Sharpe.Value)
		}
		fmt.Fprintf(&b, "%6d %9s %11s %7s", p.Index, percent(p.Return), percent(p.Volatility), sharpe)
		for _, w := range p.Weights {
			fmt.Fprintf(&b, " %8s", percent(w))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatAssets renders each asset's annualized mean return and volatility
// followed by the correlation matrix.
func FormatAssets(m *Moments) string {
	if m.Assets() == 0 {
		return ""
	}
	var b strings.Builder
	vols := m.Volatilities()
	fmt.Fprintf(&b, "%-8s %9s %11s\n", "Asset", "Return", "Volatility")
	for i, sym := range m.Symbols {
		fmt.Fprintf(&b, "%-8s %9s %11s\n", sym, percent(m.Mean.AtVec(i)), percent(vols[i]))
	}

	corr := m.Correlation()
	fmt.Fprintf(&b, "\n%-8s", "Corr")
	for _, sym := range m.Symbols {
		fmt.Fprintf(&b, " %8s", sym)
	}
	b.WriteString("\n")
	for i, sym := range m.Symbols {
		fmt.Fprintf(&b, "%-8s", sym)
		for j := range m.Symbols {
			fmt.Fprintf(&b, " %8.2f", corr.At(i, j))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatPrices renders the aligned price table, one dated row per line.
func FormatPrices(ps PriceSeries) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-10s", "Date")
	for _, sym := range ps.Symbols {
		fmt.Fprintf(&b, " %10s", sym)
	}
	b.WriteString("\n")
	for t, row := range ps.Prices {
		fmt.Fprintf(&b, "%-10s", ps.Dates[t].Format(time.DateOnly))
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				fmt.Fprintf(&b, " %10s", "n/a")
				continue
			}
			fmt.Fprintf(&b, " %10.2f", v)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func percent(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", v*100)
}

// TopBySharpe returns copies of the k sampled portfolios with the highest
// defined Sharpe ratio, best first. Equal ratios keep sampling order.
func TopBySharpe(portfolios []Portfolio, k int) []Portfolio {
	if k <= 0 {
		return []Portfolio{}
	}
	ranked := make([]Portfolio, 0, len(portfolios))
	for _, p := range portfolios {
		if p.Sharpe.Valid && !math.IsNaN(p.Sharpe.Value) && !math.IsInf(p.Sharpe.Value, 0) {
			ranked = append(ranked, p)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Sharpe.Value > ranked[j].Sharpe.Value
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	for i := range ranked {
		ranked[i].Weights = append([]float64(nil), ranked[i].Weights...)
	}
	return ranked
}

// EnvelopePoint is one point on the upper edge of the sampled cloud.
type EnvelopePoint struct {
	Index      int     `json:"index"`
	Volatility float64 `json:"volatility"`
	Return     float64 `json:"return"`
}

// Envelope approximates the efficient frontier from the sampled cloud. The
// finite volatility range is split into equal-width buckets and the highest
// return in each bucket is kept; points whose return does not exceed an
// earlier, less volatile point are dropped.
func Envelope(portfolios []Portfolio, buckets int) []EnvelopePoint {
	if buckets < 1 {
		buckets = 1
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range portfolios {
		if !finitePoint(p) {
			continue
		}
		lo = math.Min(lo, p.Volatility)
		hi = math.Max(hi, p.Volatility)
	}
	if math.IsInf(lo, 1) {
		return []EnvelopePoint{}
	}

	width := (hi - lo) / float64(buckets)
	best := make([]int, buckets)
	for i := range best {
		best[i] = -1
	}
	for i, p := range portfolios {
		if !finitePoint(p) {
			continue
		}
		b := 0
		if width > 0 {
			b = min(int((p.Volatility-lo)/width), buckets-1)
		}
		if best[b] < 0 || p.Return > portfolios[best[b]].Return {
			best[b] = i
		}
	}

	out := make([]EnvelopePoint, 0, buckets)
	for _, idx := range best {
		if idx < 0 {
			continue
		}
		p := portfolios[idx]
		if len(out) > 0 && p.Return <= out[len(out)-1].Return {
			continue
		}
		out = append(out, EnvelopePoint{Index: p.Index, Volatility: p.Volatility, Return: p.Return})
	}
	return out
}

func finitePoint(p Portfolio) bool {
	return !math.IsNaN(p.Volatility) && !math.IsInf(p.Volatility, 0) &&
		!math.IsNaN(p.Return) && !math.IsInf(p.Return, 0)
}
