// Package engine implements the evaluation tier: the pairwise cross-venue
// engine and the single-venue cyclic engine. Both run only against the
// active set and emit fee-adjusted opportunities that clear the configured
// profit threshold.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// PairwiseConfig tunes the cross-venue engine.
type PairwiseConfig struct {
	TradeAmount  float64
	ThresholdPct float64
	// GasFeeEstimate is the network fee charged when either side of a pair
	// is a decentralized venue, in quote-currency units.
	GasFeeEstimate float64
	Venues         []string
	QuoteCurrency  string
}

// PairwiseEngine compares simultaneous quotes for each active symbol across
// all configured venues and reports fee-adjusted price gaps.
type PairwiseEngine struct {
	provider  domain.MarketDataProvider
	transfers domain.TransferEligibility
	cfg       PairwiseConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewPairwise creates a PairwiseEngine.
func NewPairwise(
	provider domain.MarketDataProvider,
	transfers domain.TransferEligibility,
	cfg PairwiseConfig,
	logger *slog.Logger,
) *PairwiseEngine {
	return &PairwiseEngine{
		provider:  provider,
		transfers: transfers,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "pairwise_engine")),
		now:       time.Now,
	}
}

// Evaluate runs one evaluation pass over the given symbols. Symbols are
// processed concurrently; a symbol's failure never aborts its siblings.
// Opportunity ordering across symbols is unspecified.
func (e *PairwiseEngine) Evaluate(ctx context.Context, symbols []string) []domain.ArbitrageOpportunity {
	var (
		mu  sync.Mutex
		out []domain.ArbitrageOpportunity
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			opps := e.evaluateSymbol(gctx, symbol)
			if len(opps) > 0 {
				mu.Lock()
				out = append(out, opps...)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// evaluateSymbol fetches simultaneous quotes across venues and evaluates
// every unordered venue pair. A symbol with fewer than two usable quotes is
// skipped.
func (e *PairwiseEngine) evaluateSymbol(ctx context.Context, symbol string) []domain.ArbitrageOpportunity {
	quotes := make([]domain.Quote, 0, len(e.cfg.Venues))
	for _, venue := range e.cfg.Venues {
		q, err := e.provider.FetchQuote(ctx, venue, symbol, e.cfg.QuoteCurrency)
		if err != nil || q.Price <= 0 {
			continue
		}
		quotes = append(quotes, q)
	}
	if len(quotes) < 2 {
		return nil
	}

	var out []domain.ArbitrageOpportunity
	for i := 0; i < len(quotes); i++ {
		for j := i + 1; j < len(quotes); j++ {
			opp, ok := e.evaluatePair(ctx, symbol, quotes[i], quotes[j])
			if ok {
				out = append(out, opp)
			}
		}
	}
	return out
}

// evaluatePair applies the full economic model to one venue pair.
func (e *PairwiseEngine) evaluatePair(ctx context.Context, symbol string, qA, qB domain.Quote) (domain.ArbitrageOpportunity, bool) {
	buy, sell := qA, qB
	if buy.Price > sell.Price {
		buy, sell = sell, buy
	}
	if sell.Price <= buy.Price {
		return domain.ArbitrageOpportunity{}, false
	}

	// Capital must be able to leave the buy venue and enter the sell venue;
	// otherwise the gap is unrealizable and silently skipped. An eligibility
	// check failure is treated the same way: an unverifiable pair is not
	// reported.
	if blocked, err := e.transfers.IsTransferBlocked(ctx, buy.Venue, symbol); err != nil || blocked {
		return domain.ArbitrageOpportunity{}, false
	}
	if blocked, err := e.transfers.IsTransferBlocked(ctx, sell.Venue, symbol); err != nil || blocked {
		return domain.ArbitrageOpportunity{}, false
	}

	buyFeeRate, err := e.provider.TradingFeeRate(ctx, buy.Venue)
	if err != nil {
		return domain.ArbitrageOpportunity{}, false
	}
	sellFeeRate, err := e.provider.TradingFeeRate(ctx, sell.Venue)
	if err != nil {
		return domain.ArbitrageOpportunity{}, false
	}

	amount := e.cfg.TradeAmount
	grossDiffPct := (sell.Price - buy.Price) / buy.Price * 100
	grossProfit := (sell.Price - buy.Price) / buy.Price * amount

	fees := domain.FeeBreakdown{
		EntryFee: amount * buyFeeRate,
		ExitFee:  amount * sellFeeRate,
	}

	// Withdrawal fee is quoted in base-asset units; convert to quote units
	// at the buy price. An unavailable fee contributes zero this cycle.
	if wfee, err := e.provider.WithdrawalFee(ctx, buy.Venue, symbol); err == nil && wfee > 0 {
		fees.TransferFee = wfee * buy.Price
	}

	// Venue-to-venue transfers that do not touch a blockchain carry no
	// network fee.
	if buy.VenueKind == domain.VenueDecentralized || sell.VenueKind == domain.VenueDecentralized {
		fees.NetworkFee = e.cfg.GasFeeEstimate
	}
	fees.Sum()

	netProfit := grossProfit - fees.Total
	netProfitPct := netProfit / amount * 100

	if netProfit <= 0 || netProfitPct < e.cfg.ThresholdPct {
		return domain.ArbitrageOpportunity{}, false
	}

	opp := domain.ArbitrageOpportunity{
		ID:     uuid.New().String(),
		Symbol: symbol,
		Kind:   domain.OpportunityPairwise,
		Legs: []domain.OpportunityLeg{
			{Venue: buy.Venue, Price: buy.Price, Side: domain.LegBuy},
			{Venue: sell.Venue, Price: sell.Price, Side: domain.LegSell},
		},
		GrossDiffPct: grossDiffPct,
		GrossProfit:  grossProfit,
		Fees:         fees,
		NetProfit:    netProfit,
		NetProfitPct: netProfitPct,
		TradeAmount:  amount,
		ObservedAt:   e.now(),
	}

	e.logger.Info("pairwise opportunity",
		slog.String("symbol", symbol),
		slog.String("buy_venue", buy.Venue),
		slog.String("sell_venue", sell.Venue),
		slog.Float64("net_profit_pct", netProfitPct),
	)
	return opp, true
}
