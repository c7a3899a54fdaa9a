// Package pipeline coordinates the scanner, active set and profit engines
// into the discovery, evaluation and maintenance loops.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbscan/internal/activeset"
	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/alanyoungcy/arbscan/internal/engine"
	"github.com/alanyoungcy/arbscan/internal/scanner"
)

// CacheSweeper evicts expired entries from the quote/metadata caches.
type CacheSweeper interface {
	SweepCaches() int
}

// Config holds the loop cadence and the cyclic head size.
type Config struct {
	DiscoveryInterval  time.Duration
	EvaluationInterval time.Duration
	SweepInterval      time.Duration
	CyclicHeadSize     int
}

// Orchestrator runs the three recurring loops: discovery (volume scan and
// admission), evaluation (both engines over the active set), and maintenance
// (TTL sweeps). Each loop carries a reentrancy guard so a slow cycle is
// skipped rather than stacked.
type Orchestrator struct {
	universe domain.UniverseProvider
	scanner  *scanner.Scanner
	active   *activeset.Manager
	pairwise *engine.PairwiseEngine
	cyclic   *engine.CyclicEngine
	sink     domain.OpportunitySink
	sweeper  CacheSweeper
	cfg      Config
	logger   *slog.Logger

	discovering atomic.Bool
	evaluating  atomic.Bool
}

// NewOrchestrator creates an Orchestrator. cyclic and sweeper may be nil;
// the corresponding work is skipped.
func NewOrchestrator(
	universe domain.UniverseProvider,
	sc *scanner.Scanner,
	active *activeset.Manager,
	pairwise *engine.PairwiseEngine,
	cyclic *engine.CyclicEngine,
	sink domain.OpportunitySink,
	sweeper CacheSweeper,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		universe: universe,
		scanner:  sc,
		active:   active,
		pairwise: pairwise,
		cyclic:   cyclic,
		sink:     sink,
		sweeper:  sweeper,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "orchestrator")),
	}
}

// Run starts all loops and blocks until the context is cancelled or a loop
// fails with a non-context error.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("orchestrator starting",
		slog.Duration("discovery_interval", o.cfg.DiscoveryInterval),
		slog.Duration("evaluation_interval", o.cfg.EvaluationInterval),
		slog.Duration("sweep_interval", o.cfg.SweepInterval),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := o.runDiscoveryLoop(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("discovery loop: %w", err)
	})

	g.Go(func() error {
		err := o.runEvaluationLoop(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("evaluation loop: %w", err)
	})

	g.Go(func() error {
		err := o.runSweepLoop(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("sweep loop: %w", err)
	})

	err := g.Wait()
	if err != nil {
		o.logger.Error("orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}

	o.logger.Info("orchestrator stopped cleanly")
	return nil
}

// RunScanOnly runs only the discovery and sweep loops, for operators who
// want to watch what the scanner surfaces without evaluating it.
func (o *Orchestrator) RunScanOnly(ctx context.Context) error {
	o.logger.Info("orchestrator starting in scan-only mode",
		slog.Duration("discovery_interval", o.cfg.DiscoveryInterval),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := o.runDiscoveryLoop(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("discovery loop: %w", err)
	})

	g.Go(func() error {
		err := o.runSweepLoop(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("sweep loop: %w", err)
	})

	return g.Wait()
}

// runDiscoveryLoop scans the universe on a ticker, running once immediately
// so a fresh process has an active set before the first evaluation.
func (o *Orchestrator) runDiscoveryLoop(ctx context.Context) error {
	o.RunDiscoveryOnce(ctx)

	ticker := time.NewTicker(o.cfg.DiscoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			o.RunDiscoveryOnce(ctx)
		}
	}
}

// RunDiscoveryOnce performs a single discovery cycle: sample volumes across
// the universe, admit flagged symbols, then reinstate historical performers.
// A cycle still in flight causes the new one to be skipped.
func (o *Orchestrator) RunDiscoveryOnce(ctx context.Context) {
	if !o.discovering.CompareAndSwap(false, true) {
		o.logger.Warn("discovery cycle still running, skipping")
		return
	}
	defer o.discovering.Store(false)

	started := time.Now()

	symbols, err := o.universe.Symbols(ctx)
	if err != nil {
		o.logger.Error("universe fetch failed", slog.String("error", err.Error()))
		return
	}

	samples, err := o.scanner.Scan(ctx, symbols)
	if err != nil {
		o.logger.Error("volume scan failed", slog.String("error", err.Error()))
		return
	}

	admitted := 0
	for _, p := range o.scanner.Classify(samples) {
		if o.active.Admit(p.Symbol, p.Reason, p.Sample) {
			admitted++
		}
	}

	reinstated := o.active.ReinstateHistorical()

	o.logger.Info("discovery cycle complete",
		slog.Int("universe", len(symbols)),
		slog.Int("admitted", admitted),
		slog.Int("reinstated", reinstated),
		slog.Int("active", o.active.Size()),
		slog.Duration("elapsed", time.Since(started)),
	)
}

// runEvaluationLoop runs both engines over the active set on a ticker.
func (o *Orchestrator) runEvaluationLoop(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.EvaluationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			o.RunEvaluationOnce(ctx)
		}
	}
}

// RunEvaluationOnce performs a single evaluation cycle: the pairwise engine
// covers the whole active set, the cyclic engine only its most recent head,
// and every cleared opportunity goes to the sink. Skipped when the previous
// cycle has not finished.
func (o *Orchestrator) RunEvaluationOnce(ctx context.Context) {
	if !o.evaluating.CompareAndSwap(false, true) {
		o.logger.Warn("evaluation cycle still running, skipping")
		return
	}
	defer o.evaluating.Store(false)

	members := o.active.Members()
	if len(members) == 0 {
		return
	}

	started := time.Now()

	opps := o.pairwise.Evaluate(ctx, members)
	if o.cyclic != nil && o.cfg.CyclicHeadSize > 0 {
		head := o.active.Recent(o.cfg.CyclicHeadSize)
		opps = append(opps, o.cyclic.Evaluate(ctx, head)...)
	}

	for _, opp := range opps {
		if err := o.sink.Deliver(ctx, opp); err != nil {
			o.logger.Error("delivery failed",
				slog.String("id", opp.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	o.logger.Info("evaluation cycle complete",
		slog.Int("active", len(members)),
		slog.Int("opportunities", len(opps)),
		slog.Duration("elapsed", time.Since(started)),
	)
}

// runSweepLoop evicts expired active-set entries and cache entries.
func (o *Orchestrator) runSweepLoop(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			expired := o.active.SweepExpired()
			swept := 0
			if o.sweeper != nil {
				swept = o.sweeper.SweepCaches()
			}
			if expired > 0 || swept > 0 {
				o.logger.Debug("sweep complete",
					slog.Int("active_expired", expired),
					slog.Int("cache_evicted", swept),
				)
			}
		}
	}
}
