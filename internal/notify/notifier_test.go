package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

type recordingSender struct {
	mu     sync.Mutex
	name   string
	titles []string
	fail   bool
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("channel down")
	}
	r.titles = append(r.titles, title)
	return nil
}

func (r *recordingSender) Name() string { return r.name }

func TestNotifierEventFilter(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventPairwise}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	require.NoError(t, n.Notify(ctx, EventPairwise, "pair", "body"))
	require.NoError(t, n.Notify(ctx, EventCyclic, "cycle", "body"))

	assert.Equal(t, []string{"pair"}, s.titles, "only allowed events reach senders")
}

func TestNotifierEmptyFilterAllowsAll(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, n.Notify(context.Background(), EventCyclic, "cycle", "body"))
	assert.Len(t, s.titles, 1)
}

func TestNotifierSenderFailureIsolated(t *testing.T) {
	broken := &recordingSender{name: "broken", fail: true}
	healthy := &recordingSender{name: "healthy"}
	n := NewNotifier([]Sender{broken, healthy}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := n.Notify(context.Background(), EventPairwise, "pair", "body")
	assert.Error(t, err, "failure is reported")
	assert.Len(t, healthy.titles, 1, "remaining senders still deliver")
}

func TestFormatOpportunity(t *testing.T) {
	opp := domain.ArbitrageOpportunity{
		ID:     "opp-1",
		Symbol: "BTC",
		Kind:   domain.OpportunityCyclic,
		Legs: []domain.OpportunityLeg{
			{Venue: "alpha", Price: 10, Side: domain.LegBuy},
			{Venue: "alpha", Price: 5, Side: domain.LegConvert},
			{Venue: "alpha", Price: 2.1, Side: domain.LegSell},
		},
		GrossProfit:  5,
		NetProfit:    4.69,
		NetProfitPct: 4.69,
		TradeAmount:  100,
		Path:         []string{"USDT", "BTC", "ETH", "USDT"},
		Fees:         domain.FeeBreakdown{Total: 0.31},
	}

	title, message := FormatOpportunity(opp)
	assert.Contains(t, title, "BTC")
	assert.Contains(t, title, "cyclic")
	assert.Contains(t, message, "USDT -> BTC -> ETH -> USDT")
	assert.Contains(t, message, "leg 3: sell alpha")
}

func TestEventFor(t *testing.T) {
	assert.Equal(t, EventPairwise, EventFor(domain.OpportunityPairwise))
	assert.Equal(t, EventCyclic, EventFor(domain.OpportunityCyclic))
}
