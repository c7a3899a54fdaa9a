// Package activeset maintains the bounded, TTL-governed working set of
// symbols the arbitrage engines evaluate, plus long-run per-symbol
// profitability stats used to reinstate chronically profitable assets.
package activeset

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// Config bounds the set and tunes historical reinstatement.
type Config struct {
	MaxSize           int
	EntryTTL          time.Duration
	ReinstateMinCount int
	ReinstateWindow   time.Duration
}

// Manager owns ActiveSetEntry lifetimes. The scanner proposes admissions;
// only the manager ever removes entries. A single mutex makes admit+evict
// atomic so no reader can observe the set above capacity.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*domain.ActiveSetEntry
	order   []string // symbols in admission order, oldest first
	history map[string]*domain.HistoricalStat
	now     func() time.Time
}

// New creates a Manager.
func New(cfg Config, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "active_set")),
		entries: make(map[string]*domain.ActiveSetEntry),
		history: make(map[string]*domain.HistoricalStat),
		now:     time.Now,
	}
}

// Admit inserts a symbol with the given reason and evidence. It is a no-op
// when the symbol is already present. At capacity the globally oldest entry
// is evicted first; eviction and insertion happen under one lock.
func (m *Manager) Admit(symbol string, reason domain.AdmitReason, snapshot domain.VolumeSample) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[symbol]; ok {
		return false
	}

	if len(m.entries) >= m.cfg.MaxSize {
		m.evictOldestLocked()
	}

	m.entries[symbol] = &domain.ActiveSetEntry{
		Symbol:     symbol,
		Reason:     reason,
		AdmittedAt: m.now(),
		Snapshot:   snapshot,
	}
	m.order = append(m.order, symbol)

	m.logger.Info("symbol admitted",
		slog.String("symbol", symbol),
		slog.String("reason", string(reason)),
		slog.Int("size", len(m.entries)),
	)
	return true
}

// evictOldestLocked removes the entry with the smallest AdmittedAt. The
// order slice is admission-ordered, so its head is that entry.
func (m *Manager) evictOldestLocked() {
	if len(m.order) == 0 {
		return
	}
	oldest := m.order[0]
	m.order = m.order[1:]
	delete(m.entries, oldest)

	m.logger.Info("symbol evicted for capacity", slog.String("symbol", oldest))
}

// SweepExpired removes every entry older than the TTL and returns the count.
func (m *Manager) SweepExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	kept := m.order[:0]
	for _, symbol := range m.order {
		e := m.entries[symbol]
		if e != nil && now.Sub(e.AdmittedAt) > m.cfg.EntryTTL {
			delete(m.entries, symbol)
			removed++
			continue
		}
		kept = append(kept, symbol)
	}
	m.order = kept

	if removed > 0 {
		m.logger.Info("expired entries swept", slog.Int("removed", removed))
	}
	return removed
}

// RunSweeper sweeps on a fixed interval until ctx is cancelled.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.SweepExpired()
		}
	}
}

// RecordOutcome folds a reported opportunity's profit into the symbol's
// historical running average.
func (m *Manager) RecordOutcome(symbol string, profitPct float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stat, ok := m.history[symbol]
	if !ok {
		stat = &domain.HistoricalStat{Symbol: symbol}
		m.history[symbol] = stat
	}
	stat.Observe(profitPct, m.now())
}

// ReinstateHistorical admits every symbol that has produced at least the
// configured number of opportunities within the trailing window, is not
// already present, and fits without evicting anyone. Returns how many were
// admitted.
func (m *Manager) ReinstateHistorical() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	admitted := 0
	for symbol, stat := range m.history {
		if stat.OccurrenceCount < m.cfg.ReinstateMinCount {
			continue
		}
		if now.Sub(stat.LastSeenAt) > m.cfg.ReinstateWindow {
			continue
		}
		if _, present := m.entries[symbol]; present {
			continue
		}
		if len(m.entries) >= m.cfg.MaxSize {
			continue
		}

		m.entries[symbol] = &domain.ActiveSetEntry{
			Symbol:     symbol,
			Reason:     domain.AdmitHistoricalPattern,
			AdmittedAt: now,
		}
		m.order = append(m.order, symbol)
		admitted++

		m.logger.Info("symbol reinstated from history",
			slog.String("symbol", symbol),
			slog.Int("occurrences", stat.OccurrenceCount),
			slog.Float64("avg_profit_pct", stat.AvgProfitPct),
		)
	}
	return admitted
}

// Members returns the current symbols in admission order, oldest first.
func (m *Manager) Members() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Recent returns up to n of the most recently admitted symbols, newest first.
// The cyclic engine evaluates only this head slice to bound venue calls.
func (m *Manager) Recent(n int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n > len(m.order) {
		n = len(m.order)
	}
	out := make([]string, 0, n)
	for i := len(m.order) - 1; i >= len(m.order)-n; i-- {
		out = append(out, m.order[i])
	}
	return out
}

// Size returns the current member count.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Stats returns member counts grouped by admission reason.
func (m *Manager) Stats() map[domain.AdmitReason]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[domain.AdmitReason]int)
	for _, e := range m.entries {
		out[e.Reason]++
	}
	return out
}

// Clear removes every entry.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*domain.ActiveSetEntry)
	m.order = nil
}

// SeedHistory loads persisted stats, typically at startup. Existing
// in-memory stats for the same symbol are replaced.
func (m *Manager) SeedHistory(stats []domain.HistoricalStat) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range stats {
		copied := s
		m.history[s.Symbol] = &copied
	}
}

// HistorySnapshot returns a copy of every historical stat, for persistence.
func (m *Manager) HistorySnapshot() []domain.HistoricalStat {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.HistoricalStat, 0, len(m.history))
	for _, s := range m.history {
		out = append(out, *s)
	}
	return out
}

// HistoryFor returns the stat for one symbol, if any.
func (m *Manager) HistoryFor(symbol string) (domain.HistoricalStat, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.history[symbol]
	if !ok {
		return domain.HistoricalStat{}, false
	}
	return *s, true
}

// SetClock overrides the time source. Intended for tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}
