package prices

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/aristath/frontier/internal/modules/frontier"
)

// sharedFetchTimeout bounds a source download that outlives the caller
// who started it.
const sharedFetchTimeout = 2 * time.Minute

// NamedProvider is a price provider that identifies its data source.
type NamedProvider interface {
	frontier.PriceProvider
	Name() string
}

// CachedProvider serves price sets from the cache while fresh and collapses
// concurrent identical downloads into one.
type CachedProvider struct {
	provider NamedProvider
	repo     *CacheRepository
	ttl      time.Duration
	group    singleflight.Group
	log      zerolog.Logger
}

// NewCachedProvider wraps provider with a cache. ttl <= 0 uses DefaultCacheTTL.
func NewCachedProvider(provider NamedProvider, repo *CacheRepository, ttl time.Duration, log zerolog.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedProvider{
		provider: provider,
		repo:     repo,
		ttl:      ttl,
		log:      log.With().Str("component", "price_cache").Logger(),
	}
}

// FetchPrices implements frontier.PriceProvider.
func (c *CachedProvider) FetchPrices(ctx context.Context, symbols []string, start, end time.Time) (frontier.PriceSeries, error) {
	key := CacheKey(c.provider.Name(), symbols, start, end)

	if series, ok, err := c.repo.GetIfFresh(key); err != nil {
		c.log.Warn().Err(err).Msg("Failed to read price cache, fetching from source")
	} else if ok {
		c.log.Debug().Str("key", key[:12]).Msg("Price cache hit")
		return series, nil
	}

	// Shared downloads outlive the caller that started them.
	ch := c.group.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()

		series, err := c.provider.FetchPrices(fetchCtx, symbols, start, end)
		if err != nil {
			return nil, err
		}
		if err := c.repo.Store(key, c.provider.Name(), series, c.ttl); err != nil {
			c.log.Warn().Err(err).Msg("Failed to store prices in cache")
		}
		return series, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return frontier.PriceSeries{}, ctx.Err()
	case res = <-ch:
	}

	v, err, shared := res.Val, res.Err, res.Shared
	if err != nil {
		if errors.Is(err, frontier.ErrNoData) {
			return frontier.PriceSeries{}, err
		}
		// Source unreachable: stale prices beat no prices.
		if stale, ok, serr := c.repo.Get(key); serr == nil && ok {
			c.log.Warn().Err(err).Msg("Price source failed, serving stale cache entry")
			return stale, nil
		}
		return frontier.PriceSeries{}, err
	}

	c.log.Debug().Bool("shared", shared).Msg("Fetched prices from source")
	return v.(frontier.PriceSeries), nil
}

// Stats returns cache statistics.
func (c *CachedProvider) Stats() (CacheStats, error) {
	return c.repo.Stats()
}
