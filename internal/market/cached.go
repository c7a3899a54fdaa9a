// Package market provides market-data provider implementations and the
// caching decorator that keeps the scanner and engines inside external call
// budgets.
package market

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/alanyoungcy/arbscan/internal/ttlcache"
)

// CachedConfig tunes the decorator's freshness windows and call budget.
type CachedConfig struct {
	QuoteTTL    time.Duration
	MetadataTTL time.Duration
	// CallsPerVenue/CallWindow bound upstream calls per venue when a rate
	// limiter is attached.
	CallsPerVenue int
	CallWindow    time.Duration
}

// CachedProvider decorates a MarketDataProvider with per-namespace expiring
// caches and an optional per-venue rate limiter. Quotes live in a
// seconds-scale namespace; venue metadata (fee schedules, venue lists) in an
// hour-scale one. When the venue's call budget is exhausted the decorator
// reports ErrRateLimited, which callers treat as "absent this cycle".
type CachedProvider struct {
	inner   domain.MarketDataProvider
	limiter domain.RateLimiter // may be nil
	cfg     CachedConfig
	logger  *slog.Logger

	quotes *ttlcache.Cache[string, domain.Quote]
	fees   *ttlcache.Cache[string, float64]
	venues *ttlcache.Cache[string, []string]
}

// NewCached wraps inner with caching. limiter may be nil to disable call
// budgeting.
func NewCached(inner domain.MarketDataProvider, limiter domain.RateLimiter, cfg CachedConfig, logger *slog.Logger) *CachedProvider {
	return &CachedProvider{
		inner:   inner,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "cached_provider")),
		quotes:  ttlcache.New[string, domain.Quote](),
		fees:    ttlcache.New[string, float64](),
		venues:  ttlcache.New[string, []string](),
	}
}

func quoteKey(venue, base, quote string) string {
	return venue + "/" + base + "/" + quote
}

// allow consults the rate limiter for one upstream call against venue.
func (p *CachedProvider) allow(ctx context.Context, venue string) error {
	if p.limiter == nil {
		return nil
	}
	ok, err := p.limiter.Allow(ctx, venue, p.cfg.CallsPerVenue, p.cfg.CallWindow)
	if err != nil {
		// A broken limiter must not take the scanner down with it.
		p.logger.Warn("rate limiter unavailable, allowing call",
			slog.String("venue", venue),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if !ok {
		return domain.ErrRateLimited
	}
	return nil
}

// FetchQuote returns a cached quote when fresh, otherwise spends one call
// from the venue's budget.
func (p *CachedProvider) FetchQuote(ctx context.Context, venue, base, quote string) (domain.Quote, error) {
	key := quoteKey(venue, base, quote)
	if q, ok := p.quotes.Get(key); ok {
		return q, nil
	}
	if err := p.allow(ctx, venue); err != nil {
		return domain.Quote{}, err
	}

	q, err := p.inner.FetchQuote(ctx, venue, base, quote)
	if err != nil {
		return domain.Quote{}, err
	}
	p.quotes.Set(key, q, p.cfg.QuoteTTL)
	return q, nil
}

// FetchQuotesBulk serves what it can from cache and fetches only the misses
// upstream in one bulk call.
func (p *CachedProvider) FetchQuotesBulk(ctx context.Context, venue string, bases []string, quote string) (map[string]domain.Quote, error) {
	out := make(map[string]domain.Quote, len(bases))
	var misses []string
	for _, base := range bases {
		if q, ok := p.quotes.Get(quoteKey(venue, base, quote)); ok {
			out[base] = q
			continue
		}
		misses = append(misses, base)
	}
	if len(misses) == 0 {
		return out, nil
	}
	if err := p.allow(ctx, venue); err != nil {
		// Partial result: the cached portion is still usable.
		return out, nil
	}

	fetched, err := p.inner.FetchQuotesBulk(ctx, venue, misses, quote)
	if err != nil {
		return out, nil
	}
	for base, q := range fetched {
		p.quotes.Set(quoteKey(venue, base, quote), q, p.cfg.QuoteTTL)
		out[base] = q
	}
	return out, nil
}

// Venues caches the venue list under the metadata TTL.
func (p *CachedProvider) Venues(ctx context.Context) ([]string, error) {
	if v, ok := p.venues.Get("venues"); ok {
		return v, nil
	}
	v, err := p.inner.Venues(ctx)
	if err != nil {
		return nil, err
	}
	p.venues.Set("venues", v, p.cfg.MetadataTTL)
	return v, nil
}

// TradingFeeRate caches fee schedules under the metadata TTL.
func (p *CachedProvider) TradingFeeRate(ctx context.Context, venue string) (float64, error) {
	key := "fee/" + venue
	if f, ok := p.fees.Get(key); ok {
		return f, nil
	}
	f, err := p.inner.TradingFeeRate(ctx, venue)
	if err != nil {
		return 0, err
	}
	p.fees.Set(key, f, p.cfg.MetadataTTL)
	return f, nil
}

// WithdrawalFee caches withdrawal fees under the metadata TTL.
func (p *CachedProvider) WithdrawalFee(ctx context.Context, venue, asset string) (float64, error) {
	key := "wfee/" + venue + "/" + asset
	if f, ok := p.fees.Get(key); ok {
		return f, nil
	}
	f, err := p.inner.WithdrawalFee(ctx, venue, asset)
	if err != nil {
		return 0, err
	}
	p.fees.Set(key, f, p.cfg.MetadataTTL)
	return f, nil
}

// SweepCaches evicts expired entries from every namespace and returns the
// total removed.
func (p *CachedProvider) SweepCaches() int {
	return p.quotes.Sweep() + p.fees.Sweep() + p.venues.Sweep()
}

// Compile-time interface check.
var _ domain.MarketDataProvider = (*CachedProvider)(nil)
