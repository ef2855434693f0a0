// Package handlers provides HTTP handlers for simulation runs.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/frontier/internal/modules/charts"
	"github.com/aristath/frontier/internal/modules/export"
	"github.com/aristath/frontier/internal/modules/frontier"
)

const (
	topPortfolios         = 10
	defaultPortfolioLimit = 100
	maxPortfolioLimit     = 5000
)

// Weight chart kinds accepted by /weights/{kind}.png
const (
	KindMaxSharpe     = "max-sharpe"
	KindMinVolatility = "min-volatility"
	KindEqualWeight   = "equal-weight"
)

// Defaults fill request fields the client leaves out
type Defaults struct {
	Samples      int
	RiskFreeRate float64
}

// Handler handles simulation HTTP requests
type Handler struct {
	service  *frontier.Service
	charts   *charts.Service
	defaults Defaults
	log      zerolog.Logger
}

// NewHandler creates a new simulation handler
func NewHandler(
	service *frontier.Service,
	chartService *charts.Service,
	defaults Defaults,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service:  service,
		charts:   chartService,
		defaults: defaults,
		log:      log.With().Str("handler", "simulations").Logger(),
	}
}

// SimulationRequest is the POST /api/simulations body. Dates use YYYY-MM-DD.
type SimulationRequest struct {
	Symbols      []string `json:"symbols"`
	Start        string   `json:"start"`
	End          string   `json:"end"`
	Samples      *int     `json:"samples,omitempty"`
	RiskFreeRate *float64 `json:"risk_free_rate,omitempty"`
	Seed         *uint64  `json:"seed,omitempty"`
}

// PortfolioResponse renders a portfolio with weights keyed by symbol.
// Volatility is null when the variance was numerically invalid.
type PortfolioResponse struct {
	Index      int                `json:"index"`
	Return     float64            `json:"return"`
	Volatility frontier.Optional  `json:"volatility"`
	Sharpe     frontier.Optional  `json:"sharpe"`
	Weights    map[string]float64 `json:"weights"`
}

// AssetResponse holds one asset's annualized moments.
type AssetResponse struct {
	Symbol     string  `json:"symbol"`
	Return     float64 `json:"return"`
	Volatility float64 `json:"volatility"`
}

// PriceRow is one dated row of aligned closes. Missing closes are null.
type PriceRow struct {
	Date   string                       `json:"date"`
	Closes map[string]frontier.Optional `json:"closes"`
}

// SimulationSummary is returned by POST /api/simulations and GET /api/simulations/{id}
type SimulationSummary struct {
	RunID         string              `json:"run_id"`
	Symbols       []string            `json:"symbols"`
	Start         string              `json:"start"`
	End           string              `json:"end"`
	Observations  int                 `json:"observations"`
	Samples       int                 `json:"samples"`
	RiskFreeRate  float64             `json:"risk_free_rate"`
	ElapsedMs     int64               `json:"elapsed_ms"`
	Assets        []AssetResponse     `json:"assets"`
	Correlation   [][]float64         `json:"correlation"`
	MaxSharpe     *PortfolioResponse  `json:"max_sharpe"`
	MinVolatility *PortfolioResponse  `json:"min_volatility"`
	EqualWeight   PortfolioResponse   `json:"equal_weight"`
	Top           []PortfolioResponse `json:"top"`
	Report        string              `json:"report"`
}

// HandleCreateSimulation handles POST /api/simulations
func (h *Handler) HandleCreateSimulation(w http.ResponseWriter, r *http.Request) {
	var body SimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	req, err := h.toRequest(body)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	result, err := h.service.Run(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, envelope(summarize(result)))
}

// HandleListSimulations handles GET /api/simulations
func (h *Handler) HandleListSimulations(w http.ResponseWriter, r *http.Request) {
	ids := h.service.Recent()
	if ids == nil {
		ids = []string{}
	}
	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"runs":  ids,
		"count": len(ids),
	}))
}

// HandleGetSimulation handles GET /api/simulations/{id}
func (h *Handler) HandleGetSimulation(w http.ResponseWriter, r *http.Request, id string) {
	result, ok := h.lookup(w, id)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(summarize(result)))
}

// HandleGetPortfolios handles GET /api/simulations/{id}/portfolios
func (h *Handler) HandleGetPortfolios(w http.ResponseWriter, r *http.Request, id string) {
	result, ok := h.lookup(w, id)
	if !ok {
		return
	}

	limit := defaultPortfolioLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = min(parsedLimit, maxPortfolioLimit)
		}
	}
	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsedOffset, err := strconv.Atoi(offsetStr); err == nil && parsedOffset > 0 {
			offset = parsedOffset
		}
	}

	total := len(result.Portfolios)
	from := min(offset, total)
	to := min(from+limit, total)

	page := make([]PortfolioResponse, 0, to-from)
	for i := from; i < to; i++ {
		page = append(page, toResponse(result.Portfolios[i], result.Symbols))
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"run_id":     result.RunID,
		"portfolios": page,
		"offset":     from,
		"count":      len(page),
		"total":      total,
	}))
}

// HandleGetPrices handles GET /api/simulations/{id}/prices
func (h *Handler) HandleGetPrices(w http.ResponseWriter, r *http.Request, id string) {
	result, ok := h.lookup(w, id)
	if !ok {
		return
	}

	ps := result.Prices
	rows := make([]PriceRow, len(ps.Prices))
	for t, row := range ps.Prices {
		closes := make(map[string]frontier.Optional, len(ps.Symbols))
		for i, sym := range ps.Symbols {
			if i < len(row) {
				closes[sym] = frontier.Some(row[i])
			}
		}
		rows[t] = PriceRow{Date: ps.Dates[t].Format(time.DateOnly), Closes: closes}
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"run_id":  result.RunID,
		"symbols": ps.Symbols,
		"rows":    rows,
		"count":   len(rows),
	}))
}

// HandleFrontierChart handles GET /api/simulations/{id}/chart.png
func (h *Handler) HandleFrontierChart(w http.ResponseWriter, r *http.Request, id string) {
	result, ok := h.lookup(w, id)
	if !ok {
		return
	}

	buf, err := h.charts.RenderFrontier(result)
	if err != nil {
		h.writeChartError(w, err, id)
		return
	}
	h.writePNG(w, buf)
}

// HandleWeightsChart handles GET /api/simulations/{id}/weights/{kind}.png
func (h *Handler) HandleWeightsChart(w http.ResponseWriter, r *http.Request, id, kind string) {
	result, ok := h.lookup(w, id)
	if !ok {
		return
	}

	var (
		p    *frontier.Portfolio
		name string
	)
	switch kind {
	case KindMaxSharpe:
		p, name = result.MaxSharpe, frontier.NameMaxSharpe
	case KindMinVolatility:
		p, name = result.MinVolatility, frontier.NameMinVolatility
	case KindEqualWeight:
		p, name = &result.EqualWeight, frontier.NameEqualWeight
	default:
		h.writeError(w, http.StatusBadRequest, "Unknown portfolio kind: "+kind, "kind")
		return
	}
	if p == nil {
		h.writeError(w, http.StatusNotFound, name+" portfolio is not available for this run", "")
		return
	}

	buf, err := h.charts.RenderWeights(name, result.Symbols, p.Weights)
	if err != nil {
		h.writeChartError(w, err, id)
		return
	}
	h.writePNG(w, buf)
}

// HandleExport handles GET /api/simulations/{id}/export.parquet
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request, id string) {
	result, ok := h.lookup(w, id)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, result); err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to export simulation")
		http.Error(w, "Failed to export simulation", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.apache.parquet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+id+`.parquet"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.log.Error().Err(err).Msg("Failed to write parquet response")
	}
}

func (h *Handler) toRequest(body SimulationRequest) (frontier.Request, error) {
	req := frontier.Request{
		Symbols:      body.Symbols,
		Samples:      h.defaults.Samples,
		RiskFreeRate: h.defaults.RiskFreeRate,
		Seed:         body.Seed,
	}
	if body.Samples != nil {
		req.Samples = *body.Samples
	}
	if body.RiskFreeRate != nil {
		req.RiskFreeRate = *body.RiskFreeRate
	}

	var err error
	if req.Start, err = parseDate(body.Start); err != nil {
		return req, &frontier.ValidationError{Field: "start", Reason: err.Error()}
	}
	if req.End, err = parseDate(body.End); err != nil {
		return req, &frontier.ValidationError{Field: "end", Reason: err.Error()}
	}
	return req, nil
}

func parseDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, errors.New("date is required")
	}
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, errors.New("date must use YYYY-MM-DD")
	}
	return t, nil
}

func (h *Handler) lookup(w http.ResponseWriter, id string) (*frontier.SimulationResult, bool) {
	result, ok := h.service.Get(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, "Simulation not found", "")
		return nil, false
	}
	return result, true
}

func summarize(result *frontier.SimulationResult) SimulationSummary {
	top := frontier.TopBySharpe(result.Portfolios, topPortfolios)
	topResp := make([]PortfolioResponse, len(top))
	for i, p := range top {
		topResp[i] = toResponse(p, result.Symbols)
	}

	var (
		assets      []AssetResponse
		correlation [][]float64
	)
	if m := result.Moments; m.Assets() > 0 {
		vols := m.Volatilities()
		corr := m.Correlation()
		assets = make([]AssetResponse, m.Assets())
		correlation = make([][]float64, m.Assets())
		for i, sym := range m.Symbols {
			assets[i] = AssetResponse{Symbol: sym, Return: m.Mean.AtVec(i), Volatility: vols[i]}
			correlation[i] = mat.Row(nil, i, corr)
		}
	}

	return SimulationSummary{
		RunID:         result.RunID,
		Symbols:       result.Symbols,
		Start:         result.Start.Format(time.DateOnly),
		End:           result.End.Format(time.DateOnly),
		Observations:  result.Observations,
		Samples:       result.Samples,
		RiskFreeRate:  result.RiskFreeRate,
		ElapsedMs:     result.Elapsed.Milliseconds(),
		Assets:        assets,
		Correlation:   correlation,
		MaxSharpe:     optionalResponse(result.MaxSharpe, result.Symbols),
		MinVolatility: optionalResponse(result.MinVolatility, result.Symbols),
		EqualWeight:   toResponse(result.EqualWeight, result.Symbols),
		Top:           topResp,
		Report:        frontier.FormatReport(result),
	}
}

func optionalResponse(p *frontier.Portfolio, symbols []string) *PortfolioResponse {
	if p == nil {
		return nil
	}
	resp := toResponse(*p, symbols)
	return &resp
}

func toResponse(p frontier.Portfolio, symbols []string) PortfolioResponse {
	weights := make(map[string]float64, len(symbols))
	for i, s := range symbols {
		if i < len(p.Weights) {
			weights[s] = p.Weights[i]
		}
	}
	return PortfolioResponse{
		Index:      p.Index,
		Return:     p.Return,
		Volatility: frontier.Some(p.Volatility),
		Sharpe:     p.Sharpe,
		Weights:    weights,
	}
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

// writeServiceError maps simulation errors onto status codes
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var verr *frontier.ValidationError
	switch {
	case errors.As(err, &verr):
		h.writeError(w, http.StatusBadRequest, err.Error(), verr.Field)
	case errors.Is(err, frontier.ErrInvalidConfiguration):
		h.writeError(w, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, frontier.ErrNoData), errors.Is(err, frontier.ErrInsufficientData):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error(), "")
	case errors.Is(err, context.DeadlineExceeded):
		h.log.Warn().Err(err).Msg("Simulation timed out")
		h.writeError(w, http.StatusGatewayTimeout, "Simulation timed out", "")
	case errors.Is(err, context.Canceled):
		h.log.Warn().Err(err).Msg("Simulation canceled")
		h.writeError(w, http.StatusServiceUnavailable, "Simulation canceled", "")
	default:
		h.log.Error().Err(err).Msg("Simulation failed")
		h.writeError(w, http.StatusBadGateway, "Simulation failed: "+err.Error(), "")
	}
}

func (h *Handler) writeChartError(w http.ResponseWriter, err error, id string) {
	if errors.Is(err, charts.ErrNothingToPlot) {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error(), "")
		return
	}
	h.log.Error().Err(err).Str("run_id", id).Msg("Failed to render chart")
	http.Error(w, "Failed to render chart", http.StatusInternalServerError)
}

func (h *Handler) writePNG(w http.ResponseWriter, buf []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "max-age=3600")
	if _, err := w.Write(buf); err != nil {
		h.log.Error().Err(err).Msg("Failed to write chart response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, field string) {
	body := map[string]string{"error": message}
	if field != "" {
		body["field"] = field
	}
	h.writeJSON(w, status, body)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
