// Package service hosts the reporting layer that sits between the profit
// engines and the delivery backends.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/alanyoungcy/arbscan/internal/notify"
)

// Pub/sub channel and stream names for reported opportunities.
const (
	OpportunityChannel = "arbscan:opportunities"
	OpportunityStream  = "arbscan:opportunities:stream"
)

// notifyTimeout bounds the background chat delivery of one opportunity.
const notifyTimeout = 15 * time.Second

// OutcomeRecorder receives the profit outcome for a symbol so its history
// feeds reinstatement decisions.
type OutcomeRecorder interface {
	RecordOutcome(symbol string, profitPct float64)
	HistoryFor(symbol string) (domain.HistoricalStat, bool)
}

// Reporter delivers opportunities the engines cleared: it records the outcome
// for the active set, persists the row, publishes to the signal bus, and
// notifies chat channels. Every backend is optional and best-effort except
// the outcome recording, which is synchronous.
type Reporter struct {
	recorder OutcomeRecorder
	store    domain.OpportunityStore
	stats    domain.HistoricalStatStore
	bus      domain.SignalBus
	notifier *notify.Notifier
	logger   *slog.Logger
}

// NewReporter creates a Reporter. store, stats, bus and notifier may each be
// nil when the corresponding backend is disabled.
func NewReporter(
	recorder OutcomeRecorder,
	store domain.OpportunityStore,
	stats domain.HistoricalStatStore,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *Reporter {
	return &Reporter{
		recorder: recorder,
		store:    store,
		stats:    stats,
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "reporter")),
	}
}

// Deliver reports one opportunity through every configured backend. Backend
// failures are logged and swallowed; an opportunity is never re-evaluated
// because delivery stumbled.
func (r *Reporter) Deliver(ctx context.Context, opp domain.ArbitrageOpportunity) error {
	r.logger.InfoContext(ctx, "opportunity reported",
		slog.String("id", opp.ID),
		slog.String("symbol", opp.Symbol),
		slog.String("kind", string(opp.Kind)),
		slog.Float64("net_profit", opp.NetProfit),
		slog.Float64("net_profit_pct", opp.NetProfitPct),
	)

	if r.recorder != nil {
		r.recorder.RecordOutcome(opp.Symbol, opp.NetProfitPct)
		r.persistStat(ctx, opp.Symbol)
	}

	if r.store != nil {
		if err := r.store.Insert(ctx, opp); err != nil {
			r.logger.ErrorContext(ctx, "persist failed",
				slog.String("id", opp.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if r.bus != nil {
		r.publish(ctx, opp)
	}

	if r.notifier != nil {
		// Chat APIs are slow; deliver off the evaluation path.
		go r.notifyAsync(opp)
	}

	return nil
}

// persistStat mirrors the in-memory history row for the symbol to the stat
// store so reinstatement survives restarts.
func (r *Reporter) persistStat(ctx context.Context, symbol string) {
	if r.stats == nil {
		return
	}
	stat, ok := r.recorder.HistoryFor(symbol)
	if !ok {
		return
	}
	if err := r.stats.Upsert(ctx, stat); err != nil {
		r.logger.ErrorContext(ctx, "historical stat upsert failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
	}
}

func (r *Reporter) publish(ctx context.Context, opp domain.ArbitrageOpportunity) {
	payload, err := json.Marshal(opp)
	if err != nil {
		r.logger.ErrorContext(ctx, "marshal opportunity failed",
			slog.String("id", opp.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := r.bus.Publish(ctx, OpportunityChannel, payload); err != nil {
		r.logger.ErrorContext(ctx, "bus publish failed",
			slog.String("id", opp.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := r.bus.StreamAppend(ctx, OpportunityStream, payload); err != nil {
		r.logger.ErrorContext(ctx, "stream append failed",
			slog.String("id", opp.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (r *Reporter) notifyAsync(opp domain.ArbitrageOpportunity) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	title, message := notify.FormatOpportunity(opp)
	if err := r.notifier.Notify(ctx, notify.EventFor(opp.Kind), title, message); err != nil {
		r.logger.Error("notification failed",
			slog.String("id", opp.ID),
			slog.String("error", err.Error()),
		)
	}
}

// Compile-time interface check.
var _ domain.OpportunitySink = (*Reporter)(nil)
