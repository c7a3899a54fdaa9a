package market

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// countingProvider wraps Synthetic and counts upstream calls.
type countingProvider struct {
	domain.MarketDataProvider
	mu    sync.Mutex
	calls int
}

func (c *countingProvider) FetchQuote(ctx context.Context, venue, base, quote string) (domain.Quote, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.MarketDataProvider.FetchQuote(ctx, venue, base, quote)
}

func (c *countingProvider) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// denyAllLimiter exhausts every budget immediately.
type denyAllLimiter struct{}

func (denyAllLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, nil
}

func testVenues() []SyntheticVenue {
	return []SyntheticVenue{
		{Name: "alpha", Kind: domain.VenueCentralized, FeeRate: 0.001},
		{Name: "bravo", Kind: domain.VenueCentralized, Skew: 0.002, FeeRate: 0.002},
	}
}

func TestCachedProviderServesRepeatFromCache(t *testing.T) {
	inner := &countingProvider{MarketDataProvider: NewSynthetic(testVenues(), 7)}
	p := NewCached(inner, nil, CachedConfig{
		QuoteTTL:    time.Minute,
		MetadataTTL: time.Hour,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx := context.Background()
	first, err := p.FetchQuote(ctx, "alpha", "BTC", "USDT")
	require.NoError(t, err)

	second, err := p.FetchQuote(ctx, "alpha", "BTC", "USDT")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.callCount(), "second read must not hit the venue")
	assert.Equal(t, first.Price, second.Price)
}

func TestCachedProviderBudgetExhaustedReadsAsAbsent(t *testing.T) {
	inner := NewSynthetic(testVenues(), 7)
	p := NewCached(inner, denyAllLimiter{}, CachedConfig{
		QuoteTTL:      time.Minute,
		MetadataTTL:   time.Hour,
		CallsPerVenue: 10,
		CallWindow:    time.Minute,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := p.FetchQuote(context.Background(), "alpha", "BTC", "USDT")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestCachedProviderBulkPartialFromCache(t *testing.T) {
	inner := NewSynthetic(testVenues(), 7)
	p := NewCached(inner, nil, CachedConfig{
		QuoteTTL:    time.Minute,
		MetadataTTL: time.Hour,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	// Warm one symbol, then bulk-fetch two.
	warm, err := p.FetchQuote(ctx, "alpha", "BTC", "USDT")
	require.NoError(t, err)

	got, err := p.FetchQuotesBulk(ctx, "alpha", []string{"BTC", "ETH"}, "USDT")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, warm.Price, got["BTC"].Price, "cached entry reused in bulk")
}

func TestCachedProviderMetadataNamespace(t *testing.T) {
	inner := NewSynthetic(testVenues(), 7)
	p := NewCached(inner, nil, CachedConfig{
		QuoteTTL:    time.Minute,
		MetadataTTL: time.Hour,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	fee, err := p.TradingFeeRate(ctx, "alpha")
	require.NoError(t, err)
	assert.InDelta(t, 0.001, fee, 1e-9)

	venues, err := p.Venues(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "bravo"}, venues)
}

func TestSyntheticUnknownVenue(t *testing.T) {
	s := NewSynthetic(testVenues(), 7)
	_, err := s.FetchQuote(context.Background(), "nowhere", "BTC", "USDT")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStaticEligibility(t *testing.T) {
	e := NewStaticEligibility([]string{"alpha/SOL"})
	ctx := context.Background()

	blocked, err := e.IsTransferBlocked(ctx, "alpha", "SOL")
	require.NoError(t, err)
	assert.True(t, blocked)

	blocked, err = e.IsTransferBlocked(ctx, "bravo", "SOL")
	require.NoError(t, err)
	assert.False(t, blocked)
}
