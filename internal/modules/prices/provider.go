package prices

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/modules/frontier"
)

// HistorySource downloads daily closes for several symbols.
type HistorySource interface {
	Name() string
	FetchHistory(ctx context.Context, symbols []string, start, end time.Time) (map[string][]DailyClose, error)
}

// Provider adapts a HistorySource to frontier.PriceProvider.
type Provider struct {
	source HistorySource
	log    zerolog.Logger
}

// NewProvider creates a price provider backed by source.
func NewProvider(source HistorySource, log zerolog.Logger) *Provider {
	return &Provider{
		source: source,
		log:    log.With().Str("component", "price_provider").Str("source", source.Name()).Logger(),
	}
}

// Name returns the underlying source name.
func (p *Provider) Name() string {
	return p.source.Name()
}

// FetchPrices downloads and aligns closes. A symbol without any close, or an
// empty alignment, is reported as frontier.ErrNoData.
func (p *Provider) FetchPrices(ctx context.Context, symbols []string, start, end time.Time) (frontier.PriceSeries, error) {
	history, err := p.source.FetchHistory(ctx, symbols, start, end)
	if err != nil {
		return frontier.PriceSeries{}, fmt.Errorf("%s: %w", p.source.Name(), err)
	}

	var missing []string
	for _, sym := range symbols {
		if len(history[sym]) == 0 {
			missing = append(missing, sym)
		}
	}
	if len(missing) > 0 {
		return frontier.PriceSeries{}, fmt.Errorf("%w: no prices for %s between %s and %s",
			frontier.ErrNoData, strings.Join(missing, ","),
			start.Format(time.DateOnly), end.Format(time.DateOnly))
	}

	series := Align(symbols, history)
	if series.Len() == 0 {
		return frontier.PriceSeries{}, fmt.Errorf("%w: no common trading dates for %s",
			frontier.ErrNoData, strings.Join(symbols, ","))
	}

	p.log.Debug().
		Strs("symbols", symbols).
		Int("rows", series.Len()).
		Msg("Fetched aligned prices")

	return series, nil
}
