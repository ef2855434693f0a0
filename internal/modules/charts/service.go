// Package charts renders simulation results as PNG charts. The frontier is a
// go-chart scatter plot; weight pies use go-charts.
package charts

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"github.com/vicanso/go-charts/v2"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"gonum.org/v1/gonum/floats"

	"github.com/aristath/frontier/internal/modules/frontier"
)

const (
	// frontierBuckets is the number of volatility buckets used for the envelope line.
	frontierBuckets = 24
	width           = 900
	height          = 600

	cloudDotWidth  = 2.5
	markerDotWidth = 9
)

// Marker colours for the named portfolios.
var (
	colorMaxSharpe     = drawing.ColorFromHex("d62728")
	colorMinVolatility = drawing.ColorFromHex("1f77b4")
	colorEqualWeight   = drawing.ColorFromHex("2ca02c")
	colorEnvelope      = drawing.ColorFromHex("333333")
	colorCML           = drawing.ColorFromHex("ff7f0e")
)

// ErrNothingToPlot is returned when a result has no finite points to draw.
var ErrNothingToPlot = errors.New("nothing to plot")

// Marker is a named portfolio drawn on top of the cloud.
type Marker struct {
	Label      string
	Volatility float64
	Return     float64
	Color      drawing.Color
}

// FrontierData is the plotted content of a frontier chart. Values are fractions.
type FrontierData struct {
	// Sampled cloud, finite points only, in sampling order.
	Volatility []float64
	Return     []float64
	Sharpe     []float64 // colour value per point; points without a Sharpe take SharpeMin

	SharpeMin, SharpeMax float64

	Envelope []frontier.EnvelopePoint
	// Capital market line through the max-Sharpe portfolio, empty if absent.
	CMLVolatility []float64
	CMLReturn     []float64

	Markers []Marker
}

// Service renders charts.
type Service struct {
	log zerolog.Logger
}

// NewService creates a new charts service
func NewService(log zerolog.Logger) *Service {
	return &Service{
		log: log.With().Str("service", "charts").Logger(),
	}
}

// BuildFrontierData turns a result into chart series: the sampled cloud
// coloured by Sharpe ratio, its upper envelope, the line rf + Sharpe·vol
// through the max-Sharpe portfolio and one marker per named portfolio.
func BuildFrontierData(result *frontier.SimulationResult) (FrontierData, error) {
	var data FrontierData
	data.SharpeMin, data.SharpeMax = math.Inf(1), math.Inf(-1)
	for _, p := range result.Portfolios {
		if !finite(p.Volatility) || !finite(p.Return) {
			continue
		}
		data.Volatility = append(data.Volatility, p.Volatility)
		data.Return = append(data.Return, p.Return)
		sharpe := math.NaN()
		if p.Sharpe.Valid && finite(p.Sharpe.Value) {
			sharpe = p.Sharpe.Value
			data.SharpeMin = math.Min(data.SharpeMin, sharpe)
			data.SharpeMax = math.Max(data.SharpeMax, sharpe)
		}
		data.Sharpe = append(data.Sharpe, sharpe)
	}
	if len(data.Volatility) == 0 {
		return FrontierData{}, ErrNothingToPlot
	}
	if math.IsInf(data.SharpeMin, 1) {
		data.SharpeMin, data.SharpeMax = 0, 0
	}
	for i, v := range data.Sharpe {
		if math.IsNaN(v) {
			data.Sharpe[i] = data.SharpeMin
		}
	}

	data.Envelope = frontier.Envelope(result.Portfolios, frontierBuckets)

	if ms := result.MaxSharpe; ms != nil && ms.Sharpe.Valid {
		lo, hi := floats.Min(data.Volatility), floats.Max(data.Volatility)
		data.CMLVolatility = []float64{lo, hi}
		data.CMLReturn = []float64{
			result.RiskFreeRate + ms.Sharpe.Value*lo,
			result.RiskFreeRate + ms.Sharpe.Value*hi,
		}
	}

	eq := result.EqualWeight
	for _, m := range []struct {
		name  string
		p     *frontier.Portfolio
		color drawing.Color
	}{
		{frontier.NameMaxSharpe, result.MaxSharpe, colorMaxSharpe},
		{frontier.NameMinVolatility, result.MinVolatility, colorMinVolatility},
		{frontier.NameEqualWeight, &eq, colorEqualWeight},
	} {
		if m.p == nil || !finite(m.p.Volatility) || !finite(m.p.Return) {
			continue
		}
		data.Markers = append(data.Markers, Marker{
			Label:      markerLabel(m.name, m.p),
			Volatility: m.p.Volatility,
			Return:     m.p.Return,
			Color:      m.color,
		})
	}
	return data, nil
}

// RenderFrontier draws the sampled cloud in the volatility/return plane with
// the named portfolios marked.
func (s *Service) RenderFrontier(result *frontier.SimulationResult) ([]byte, error) {
	data, err := BuildFrontierData(result)
	if err != nil {
		return nil, err
	}

	sharpe := data.Sharpe
	series := []chart.Series{
		chart.ContinuousSeries{
			Name: "Sampled portfolios (colour: Sharpe)",
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    cloudDotWidth,
				DotColorProvider: func(_, _ chart.Range, index int, _, _ float64) drawing.Color {
					return sharpeColor(sharpe[index], data.SharpeMin, data.SharpeMax)
				},
			},
			XValues: data.Volatility,
			YValues: data.Return,
		},
	}

	if len(data.Envelope) > 1 {
		xs := make([]float64, len(data.Envelope))
		ys := make([]float64, len(data.Envelope))
		for i, p := range data.Envelope {
			xs[i], ys[i] = p.Volatility, p.Return
		}
		series = append(series, chart.ContinuousSeries{
			Name:    "Frontier",
			Style:   chart.Style{StrokeColor: colorEnvelope, StrokeWidth: 1.5},
			XValues: xs,
			YValues: ys,
		})
	}
	if len(data.CMLVolatility) > 0 {
		series = append(series, chart.ContinuousSeries{
			Name:    "Capital market line",
			Style:   chart.Style{StrokeColor: colorCML, StrokeWidth: 1.5, StrokeDashArray: []float64{5, 5}},
			XValues: data.CMLVolatility,
			YValues: data.CMLReturn,
		})
	}
	for _, m := range data.Markers {
		series = append(series, chart.ContinuousSeries{
			Name: m.Label,
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotColor:    m.Color,
				DotWidth:    markerDotWidth,
			},
			XValues: []float64{m.Volatility},
			YValues: []float64{m.Return},
		})
	}

	xMin, xMax := bounds(data.Volatility, data.CMLVolatility)
	yMin, yMax := bounds(data.Return, data.CMLReturn)

	graph := chart.Chart{
		Title:  "Efficient frontier (" + strings.Join(result.Symbols, ", ") + ")",
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:           "Volatility",
			ValueFormatter: chart.PercentValueFormatter,
			Range:          &chart.ContinuousRange{Min: xMin, Max: xMax},
		},
		YAxis: chart.YAxis{
			Name:           "Return",
			ValueFormatter: chart.PercentValueFormatter,
			Range:          &chart.ContinuousRange{Min: yMin, Max: yMax},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.LegendLeft(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render frontier chart: %w", err)
	}

	s.log.Debug().Str("run_id", result.RunID).Int("bytes", buf.Len()).Msg("Rendered frontier chart")
	return buf.Bytes(), nil
}

// RenderWeights draws a pie of a portfolio's weights. Zero weights are omitted.
func (s *Service) RenderWeights(title string, symbols []string, weights []float64) ([]byte, error) {
	if len(symbols) != len(weights) {
		return nil, fmt.Errorf("symbols and weights length mismatch")
	}

	var values []float64
	var labels []string
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		values = append(values, w*100)
		labels = append(labels, fmt.Sprintf("%s (%.1f%%)", symbols[i], w*100))
	}
	if len(values) == 0 {
		return nil, ErrNothingToPlot
	}

	p, err := charts.PieRender(
		values,
		charts.TitleTextOptionFunc(title),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: labels,
			Top:  charts.PositionBottom,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(800),
		charts.HeightOptionFunc(600),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render weights chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	return buf, nil
}

func markerLabel(name string, p *frontier.Portfolio) string {
	sharpe := "n/a"
	if p.Sharpe.Valid {
		sharpe = fmt.Sprintf("%.2f", p.Sharpe.Value)
	}
	return fmt.Sprintf("%s: %.1f%% / %.1f%% / %s", name, p.Return*100, p.Volatility*100, sharpe)
}

// bounds returns a padded range covering all values.
func bounds(series ...[]float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, values := range series {
		for _, v := range values {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	padding := (hi - lo) * 0.05
	if padding == 0 {
		padding = 0.01
	}
	return lo - padding, hi + padding
}

// sharpeColor maps v onto the viridis scale; a flat range uses the middle colour.
func sharpeColor(v, lo, hi float64) drawing.Color {
	if !(hi > lo) {
		return chart.Viridis(0.5, 0, 1)
	}
	return chart.Viridis(math.Min(math.Max(v, lo), hi), lo, hi)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
