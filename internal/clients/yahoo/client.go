// Package yahoo downloads daily price history from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/frontier/internal/modules/prices"
)

const (
	// DefaultBaseURL is the Yahoo Finance chart endpoint.
	DefaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart/"
	// maxConcurrentRequests bounds parallel symbol downloads.
	maxConcurrentRequests = 4
)

// HistoricalPrice is one daily bar.
type HistoricalPrice struct {
	Date     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64
	Volume   int64
}

// Client is a Yahoo Finance API client
type Client struct {
	client  *http.Client
	baseURL string
	log     zerolog.Logger
}

// NewClient creates a new Yahoo Finance client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
		log:     log.With().Str("client", "yahoo").Logger(),
	}
}

// Name identifies the source in cache keys and logs.
func (c *Client) Name() string {
	return "yahoo"
}

// chartResponse mirrors the chart API. Values are pointers because Yahoo
// returns null for days without a trade.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetHistoricalPrices fetches daily bars for symbol in [start, end).
// Days with a null close are skipped; AdjClose falls back to Close.
func (c *Client) GetHistoricalPrices(ctx context.Context, symbol string, start, end time.Time) ([]HistoricalPrice, error) {
	params := url.Values{}
	params.Add("interval", "1d")
	params.Add("period1", strconv.FormatInt(start.Unix(), 10))
	params.Add("period2", strconv.FormatInt(end.Unix(), 10))
	params.Add("events", "div,splits")

	reqURL := c.baseURL + url.PathEscape(symbol) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Yahoo rejects requests without a browser-like user agent
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch historical data for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var result chartResponse
	if err := json.Unmarshal(body, &result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("Yahoo Finance API returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// An unknown symbol comes back as 404 with a "Not Found" chart error.
	if result.Chart.Error != nil {
		if result.Chart.Error.Code == "Not Found" {
			c.log.Warn().Str("symbol", symbol).Msg("Symbol not found")
			return []HistoricalPrice{}, nil
		}
		return nil, fmt.Errorf("Yahoo Finance API error for %s: %s", symbol, result.Chart.Error.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Yahoo Finance API returned status %d: %s", resp.StatusCode, string(body))
	}

	if len(result.Chart.Result) == 0 || len(result.Chart.Result[0].Indicators.Quote) == 0 {
		c.log.Warn().Str("symbol", symbol).Msg("No historical data returned")
		return []HistoricalPrice{}, nil
	}

	chartData := result.Chart.Result[0]
	quote := chartData.Indicators.Quote[0]

	var adjCloseData []*float64
	if len(chartData.Indicators.AdjClose) > 0 {
		adjCloseData = chartData.Indicators.AdjClose[0].AdjClose
	}

	out := make([]HistoricalPrice, 0, len(chartData.Timestamp))
	for i, ts := range chartData.Timestamp {
		closePrice := valueAt(quote.Close, i)
		if closePrice == 0 {
			continue
		}

		adjClose := valueAt(adjCloseData, i)
		if adjClose == 0 {
			adjClose = closePrice
		}

		var volume int64
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			volume = *quote.Volume[i]
		}

		out = append(out, HistoricalPrice{
			Date:     time.Unix(ts, 0).UTC(),
			Open:     valueAt(quote.Open, i),
			High:     valueAt(quote.High, i),
			Low:      valueAt(quote.Low, i),
			Close:    closePrice,
			AdjClose: adjClose,
			Volume:   volume,
		})
	}

	c.log.Debug().Str("symbol", symbol).Int("bars", len(out)).Msg("Fetched historical prices")
	return out, nil
}

func valueAt(values []*float64, i int) float64 {
	if i >= len(values) || values[i] == nil {
		return 0
	}
	return *values[i]
}

// FetchHistory downloads adjusted closes for every symbol, a few at a time.
// Symbols Yahoo does not know are absent from the result.
func (c *Client) FetchHistory(ctx context.Context, symbols []string, start, end time.Time) (map[string][]prices.DailyClose, error) {
	var mu sync.Mutex
	out := make(map[string][]prices.DailyClose, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentRequests)
	for _, symbol := range symbols {
		g.Go(func() error {
			bars, err := c.GetHistoricalPrices(gctx, symbol, start, end)
			if err != nil {
				return err
			}
			if len(bars) == 0 {
				return nil
			}
			closes := make([]prices.DailyClose, len(bars))
			for i, b := range bars {
				closes[i] = prices.DailyClose{Date: b.Date, Close: b.AdjClose}
			}
			mu.Lock()
			out[symbol] = closes
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
