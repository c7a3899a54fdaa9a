package domain

import (
	"context"
	"time"
)

// MarketDataProvider is the capability surface the scanner and both engines
// depend on. Implementations wrap one or more venue APIs; every method may
// fail independently and failure is reported as an error the caller treats as
// "no data this cycle", never as fatal.
type MarketDataProvider interface {
	// Venues lists the venue identifiers this provider can quote.
	Venues(ctx context.Context) ([]string, error)
	// FetchQuote returns the top-of-book quote for base/quote on a venue.
	// It returns ErrNotFound when the venue does not list the pair.
	FetchQuote(ctx context.Context, venue, base, quote string) (Quote, error)
	// FetchQuotesBulk fetches quotes for many base assets against one quote
	// currency. Best-effort: missing symbols are simply absent from the map.
	FetchQuotesBulk(ctx context.Context, venue string, bases []string, quote string) (map[string]Quote, error)
	// TradingFeeRate returns the venue's taker fee as a fraction (0.001 = 10 bps).
	TradingFeeRate(ctx context.Context, venue string) (float64, error)
	// WithdrawalFee returns the withdrawal fee for an asset in base-asset units.
	WithdrawalFee(ctx context.Context, venue, asset string) (float64, error)
}

// TransferEligibility reports whether deposits/withdrawals of an asset are
// currently suspended at a venue. The pairwise engine vetoes pairs whose
// capital cannot move.
type TransferEligibility interface {
	IsTransferBlocked(ctx context.Context, venue, asset string) (bool, error)
}

// UniverseProvider supplies the candidate symbol list the scanner samples.
type UniverseProvider interface {
	Symbols(ctx context.Context) ([]string, error)
}

// OpportunitySink receives reported opportunities for delivery. Delivery is
// best-effort; a sink failure must never stall the evaluation cycle.
type OpportunitySink interface {
	Deliver(ctx context.Context, opp ArbitrageOpportunity) error
}

// RateLimiter enforces per-venue call budgets.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus provides pub/sub and durable streams for reported opportunities.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

// OpportunityStore persists reported opportunities.
type OpportunityStore interface {
	Insert(ctx context.Context, opp ArbitrageOpportunity) error
	ListRecent(ctx context.Context, limit int) ([]ArbitrageOpportunity, error)
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]ArbitrageOpportunity, error)
	DeleteIDs(ctx context.Context, ids []string) (int64, error)
}

// HistoricalStatStore persists per-symbol profitability stats across restarts.
type HistoricalStatStore interface {
	Upsert(ctx context.Context, stat HistoricalStat) error
	ListSince(ctx context.Context, since time.Time) ([]HistoricalStat, error)
}
