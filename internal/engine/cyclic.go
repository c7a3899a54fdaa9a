package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// CyclicConfig tunes the single-venue triangular engine.
type CyclicConfig struct {
	TradeAmount     float64
	ThresholdPct    float64
	FundingCurrency string
	// Intermediates are the candidate bridge currencies. Stable quote
	// currencies do not belong in this list.
	Intermediates []string
	Venues        []string
}

// CyclicEngine evaluates 3-leg conversion cycles F → symbol → intermediate
// → F on a single venue. Every leg's output carries its fee deduction
// forward into the next leg, so the simulated profit reflects what a real
// sequence of conversions would return.
type CyclicEngine struct {
	provider domain.MarketDataProvider
	cfg      CyclicConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewCyclic creates a CyclicEngine.
func NewCyclic(provider domain.MarketDataProvider, cfg CyclicConfig, logger *slog.Logger) *CyclicEngine {
	return &CyclicEngine{
		provider: provider,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "cyclic_engine")),
		now:      time.Now,
	}
}

// Evaluate runs one pass over the given symbols, which the caller has
// already reduced to a small head slice of the active set.
func (e *CyclicEngine) Evaluate(ctx context.Context, symbols []string) []domain.ArbitrageOpportunity {
	var out []domain.ArbitrageOpportunity
	for _, symbol := range symbols {
		if symbol == e.cfg.FundingCurrency {
			continue
		}
		for _, venue := range e.cfg.Venues {
			out = append(out, e.evaluateVenue(ctx, venue, symbol)...)
		}
	}
	return out
}

// evaluateVenue tries every configured intermediate currency for one symbol
// on one venue.
func (e *CyclicEngine) evaluateVenue(ctx context.Context, venue, symbol string) []domain.ArbitrageOpportunity {
	feeRate, err := e.provider.TradingFeeRate(ctx, venue)
	if err != nil {
		return nil
	}

	var out []domain.ArbitrageOpportunity
	for _, inter := range e.cfg.Intermediates {
		if inter == symbol || inter == e.cfg.FundingCurrency {
			continue
		}
		if opp, ok := e.evaluateCycle(ctx, venue, symbol, inter, feeRate); ok {
			out = append(out, opp)
		}
	}
	return out
}

// evaluateCycle simulates F → symbol → intermediate → F with amount A.
// All three legs must resolve to non-zero quotes on the same venue or the
// cycle is discarded.
func (e *CyclicEngine) evaluateCycle(ctx context.Context, venue, symbol, inter string, feeRate float64) (domain.ArbitrageOpportunity, bool) {
	fund := e.cfg.FundingCurrency

	q1, err := e.provider.FetchQuote(ctx, venue, symbol, fund)
	if err != nil || q1.AskPrice() <= 0 {
		return domain.ArbitrageOpportunity{}, false
	}
	q2, err := e.provider.FetchQuote(ctx, venue, symbol, inter)
	if err != nil || q2.BidPrice() <= 0 {
		return domain.ArbitrageOpportunity{}, false
	}
	q3, err := e.provider.FetchQuote(ctx, venue, inter, fund)
	if err != nil || q3.BidPrice() <= 0 {
		return domain.ArbitrageOpportunity{}, false
	}

	amount := e.cfg.TradeAmount

	// Leg 1: buy the asset with funding currency at the ask.
	assetAmount := amount / q1.AskPrice()
	assetAmount *= 1 - feeRate

	// Leg 2: sell the asset into the intermediate at the bid.
	interAmount := assetAmount * q2.BidPrice()
	interAmount *= 1 - feeRate

	// Leg 3: sell the intermediate back into funding at the bid.
	finalAmount := interAmount * q3.BidPrice()
	finalAmount *= 1 - feeRate

	// Fee-free replay of the same legs isolates the gross edge.
	grossFinal := amount / q1.AskPrice() * q2.BidPrice() * q3.BidPrice()

	netProfit := finalAmount - amount
	netProfitPct := netProfit / amount * 100
	if netProfit <= 0 || netProfitPct < e.cfg.ThresholdPct {
		return domain.ArbitrageOpportunity{}, false
	}

	grossProfit := grossFinal - amount
	fees := domain.FeeBreakdown{
		EntryFee: grossProfit - netProfit, // total trading fees across the three legs
	}
	fees.Sum()

	opp := domain.ArbitrageOpportunity{
		ID:     uuid.New().String(),
		Symbol: symbol,
		Kind:   domain.OpportunityCyclic,
		Legs: []domain.OpportunityLeg{
			{Venue: venue, Price: q1.AskPrice(), Side: domain.LegBuy},
			{Venue: venue, Price: q2.BidPrice(), Side: domain.LegConvert},
			{Venue: venue, Price: q3.BidPrice(), Side: domain.LegSell},
		},
		GrossDiffPct: grossProfit / amount * 100,
		GrossProfit:  grossProfit,
		Fees:         fees,
		NetProfit:    netProfit,
		NetProfitPct: netProfitPct,
		TradeAmount:  amount,
		Path:         []string{fund, symbol, inter, fund},
		ObservedAt:   e.now(),
	}

	e.logger.Info("cyclic opportunity",
		slog.String("symbol", symbol),
		slog.String("venue", venue),
		slog.String("via", inter),
		slog.Float64("net_profit_pct", netProfitPct),
	)
	return opp, true
}
