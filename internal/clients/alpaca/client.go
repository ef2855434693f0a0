// Package alpaca downloads daily bars from the Alpaca market data API.
package alpaca

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/modules/prices"
)

// Config holds Alpaca credentials. Feed is "iex" (default) or "sip".
type Config struct {
	APIKey    string
	APISecret string
	DataURL   string
	Feed      string
}

// barsClient is the part of *marketdata.Client used here.
type barsClient interface {
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

// Client fetches split- and dividend-adjusted daily bars.
type Client struct {
	client barsClient
	feed   marketdata.Feed
	log    zerolog.Logger
}

// NewClient creates a new Alpaca market data client.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	opts := marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.DataURL != "" {
		opts.BaseURL = cfg.DataURL
	}

	feed := marketdata.IEX
	if strings.EqualFold(cfg.Feed, "sip") {
		feed = marketdata.SIP
	}

	return &Client{
		client: marketdata.NewClient(opts),
		feed:   feed,
		log:    log.With().Str("client", "alpaca").Logger(),
	}
}

// Name identifies the source in cache keys and logs.
func (c *Client) Name() string {
	return "alpaca"
}

// FetchHistory downloads daily bars for all symbols in one request.
func (c *Client) FetchHistory(ctx context.Context, symbols []string, start, end time.Time) (map[string][]prices.DailyClose, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	multiBars, err := c.client.GetMultiBars(symbols, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.All,
		Start:      start,
		End:        end,
		Feed:       c.feed,
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	history := convertBars(multiBars)
	c.log.Debug().
		Int("requested", len(symbols)).
		Int("returned", len(history)).
		Msg("Fetched daily bars")
	return history, nil
}

// convertBars keys closes by upper-case symbol and drops empty series.
func convertBars(multiBars map[string][]marketdata.Bar) map[string][]prices.DailyClose {
	out := make(map[string][]prices.DailyClose, len(multiBars))
	for symbol, bars := range multiBars {
		if len(bars) == 0 {
			continue
		}
		closes := make([]prices.DailyClose, 0, len(bars))
		for _, b := range bars {
			closes = append(closes, prices.DailyClose{Date: b.Timestamp, Close: b.Close})
		}
		out[strings.ToUpper(symbol)] = closes
	}
	return out
}
