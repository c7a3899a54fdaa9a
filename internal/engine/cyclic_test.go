package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

func cyclicUnderTest(p *stubProvider, thresholdPct float64) *CyclicEngine {
	return NewCyclic(p, CyclicConfig{
		TradeAmount:     100,
		ThresholdPct:    thresholdPct,
		FundingCurrency: "USDT",
		Intermediates:   []string{"BTC"},
		Venues:          []string{"alpha"},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// seedProfitableCycle sets up USDT → SOL → BTC → USDT with a 5% gross edge:
// leg 1 buys SOL at ask 10, leg 2 converts to BTC at bid 5, leg 3 sells BTC
// at bid 2.1 (10 units × 5 × 2.1 = 105 before fees).
func seedProfitableCycle(p *stubProvider) {
	p.setQuote("alpha", "SOL", "USDT", domain.Quote{Ask: 10, Price: 10})
	p.setQuote("alpha", "SOL", "BTC", domain.Quote{Bid: 5, Price: 5})
	p.setQuote("alpha", "BTC", "USDT", domain.Quote{Bid: 2.1, Price: 2.1})
	p.feeRates["alpha"] = 0.001
}

func TestCyclicFeeAdjustedCarryForward(t *testing.T) {
	p := newStubProvider()
	seedProfitableCycle(p)

	e := cyclicUnderTest(p, 1.0)
	opps := e.Evaluate(context.Background(), []string{"SOL"})
	require.Len(t, opps, 1)

	opp := opps[0]
	assert.Equal(t, domain.OpportunityCyclic, opp.Kind)

	// Each leg's fee reduces the amount the next leg converts:
	// 100/10 = 10 SOL → 9.99 after fee
	// 9.99 × 5 = 49.95 BTC → 49.90005 after fee
	// 49.90005 × 2.1 = 104.7901050 USDT → 104.685314895 after fee
	wantFinal := 100.0 / 10 * 0.999 * 5 * 0.999 * 2.1 * 0.999
	assert.InDelta(t, wantFinal-100, opp.NetProfit, 1e-9)
	assert.InDelta(t, (wantFinal - 100), opp.NetProfitPct, 1e-9) // amount is 100

	// Gross replays the same legs fee-free.
	assert.InDelta(t, 5.0, opp.GrossProfit, 1e-9)
	assert.InDelta(t, opp.GrossProfit-opp.NetProfit, opp.Fees.Total, 1e-9)
}

func TestCyclicPathAttached(t *testing.T) {
	p := newStubProvider()
	seedProfitableCycle(p)

	e := cyclicUnderTest(p, 1.0)
	opps := e.Evaluate(context.Background(), []string{"SOL"})
	require.Len(t, opps, 1)
	assert.Equal(t, []string{"USDT", "SOL", "BTC", "USDT"}, opps[0].Path)

	require.Len(t, opps[0].Legs, 3)
	for _, leg := range opps[0].Legs {
		assert.Equal(t, "alpha", leg.Venue, "cyclic legs never cross venues")
	}
}

func TestCyclicDiscardsIncompleteCycle(t *testing.T) {
	p := newStubProvider()
	seedProfitableCycle(p)
	// Remove the third leg.
	delete(p.quotes, "alpha/BTC/USDT")

	e := cyclicUnderTest(p, 1.0)
	assert.Empty(t, e.Evaluate(context.Background(), []string{"SOL"}))
}

func TestCyclicThresholdGate(t *testing.T) {
	p := newStubProvider()
	seedProfitableCycle(p)

	// Net is ≈4.685%; a threshold above that suppresses the cycle.
	e := cyclicUnderTest(p, 4.7)
	assert.Empty(t, e.Evaluate(context.Background(), []string{"SOL"}))
}

func TestCyclicUnprofitableCycleSuppressed(t *testing.T) {
	p := newStubProvider()
	p.setQuote("alpha", "SOL", "USDT", domain.Quote{Ask: 10, Price: 10})
	p.setQuote("alpha", "SOL", "BTC", domain.Quote{Bid: 5, Price: 5})
	p.setQuote("alpha", "BTC", "USDT", domain.Quote{Bid: 2.0, Price: 2.0}) // round trip exactly 100 gross
	p.feeRates["alpha"] = 0.001

	e := cyclicUnderTest(p, 0.1)
	assert.Empty(t, e.Evaluate(context.Background(), []string{"SOL"}))
}

func TestCyclicSkipsDegenerateCurrencies(t *testing.T) {
	p := newStubProvider()
	seedProfitableCycle(p)

	e := cyclicUnderTest(p, 1.0)
	// The funding currency itself is never cycled.
	assert.Empty(t, e.Evaluate(context.Background(), []string{"USDT"}))
	// An intermediate equal to the symbol is skipped.
	assert.Empty(t, e.Evaluate(context.Background(), []string{"BTC"}))
}
