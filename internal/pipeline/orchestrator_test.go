package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscan/internal/activeset"
	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/alanyoungcy/arbscan/internal/engine"
	"github.com/alanyoungcy/arbscan/internal/scanner"
)

type fakeUniverse struct{ symbols []string }

func (f *fakeUniverse) Symbols(context.Context) ([]string, error) {
	return f.symbols, nil
}

// volumeProvider serves fixed volumes per symbol, switchable between scans.
type volumeProvider struct {
	mu      sync.Mutex
	volumes map[string]float64
}

func (p *volumeProvider) setVolume(symbol string, vol float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volumes[symbol] = vol
}

func (p *volumeProvider) Venues(context.Context) ([]string, error) {
	return []string{"alpha"}, nil
}

func (p *volumeProvider) FetchQuote(_ context.Context, venue, base, _ string) (domain.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	vol, ok := p.volumes[base]
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	return domain.Quote{Venue: venue, Symbol: base, Price: 100, Volume: vol}, nil
}

func (p *volumeProvider) FetchQuotesBulk(ctx context.Context, venue string, bases []string, quote string) (map[string]domain.Quote, error) {
	out := make(map[string]domain.Quote, len(bases))
	for _, b := range bases {
		q, err := p.FetchQuote(ctx, venue, b, quote)
		if err != nil {
			continue
		}
		out[b] = q
	}
	return out, nil
}

func (p *volumeProvider) TradingFeeRate(context.Context, string) (float64, error) {
	return 0.001, nil
}

func (p *volumeProvider) WithdrawalFee(context.Context, string, string) (float64, error) {
	return 0, nil
}

type collectingSink struct {
	mu        sync.Mutex
	delivered []domain.ArbitrageOpportunity
	block     chan struct{}
}

func (s *collectingSink) Deliver(_ context.Context, opp domain.ArbitrageOpportunity) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, opp)
	return nil
}

func (s *collectingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestOrchestrator(provider *volumeProvider, sink domain.OpportunitySink) (*Orchestrator, *activeset.Manager) {
	sc := scanner.New(provider, scanner.Config{
		SpikeThreshold: 3.0,
		MinVolume:      80_000,
		BatchSize:      10,
		WindowSize:     12,
		Venues:         []string{"alpha"},
		QuoteCurrency:  "USDT",
	}, testLogger())

	active := activeset.New(activeset.Config{
		MaxSize:           50,
		EntryTTL:          30 * time.Minute,
		ReinstateMinCount: 3,
		ReinstateWindow:   7 * 24 * time.Hour,
	}, testLogger())

	pw := engine.NewPairwise(provider, nil, engine.PairwiseConfig{
		TradeAmount:   100,
		ThresholdPct:  0.5,
		Venues:        []string{"alpha"},
		QuoteCurrency: "USDT",
	}, testLogger())

	o := NewOrchestrator(
		&fakeUniverse{symbols: []string{"BTC", "ETH"}},
		sc, active, pw, nil, sink, nil,
		Config{
			DiscoveryInterval:  time.Hour,
			EvaluationInterval: time.Hour,
			SweepInterval:      time.Hour,
		},
		testLogger(),
	)
	return o, active
}

func TestDiscoveryAdmitsSpikedSymbol(t *testing.T) {
	provider := &volumeProvider{volumes: map[string]float64{"BTC": 100_000, "ETH": 100_000}}
	o, active := newTestOrchestrator(provider, &collectingSink{})
	ctx := context.Background()

	// First cycle seeds the rolling windows; nothing spikes.
	o.RunDiscoveryOnce(ctx)
	assert.Equal(t, 0, len(active.Members()))

	// BTC volume jumps to five times its average.
	provider.setVolume("BTC", 500_000)
	o.RunDiscoveryOnce(ctx)

	members := active.Members()
	require.Contains(t, members, "BTC")
	assert.NotContains(t, members, "ETH")
}

func TestEvaluationSkipsWhenActiveSetEmpty(t *testing.T) {
	provider := &volumeProvider{volumes: map[string]float64{"BTC": 100_000}}
	sink := &collectingSink{}
	o, _ := newTestOrchestrator(provider, sink)

	o.RunEvaluationOnce(context.Background())
	assert.Equal(t, 0, sink.count())
}

func TestEvaluationReentrancyGuard(t *testing.T) {
	provider := &volumeProvider{volumes: map[string]float64{"BTC": 100_000}}
	sink := &collectingSink{block: make(chan struct{})}
	o, active := newTestOrchestrator(provider, sink)

	// A single venue cannot produce a pairwise opportunity, so force
	// delivery by admitting and evaluating against a two-venue engine is
	// unnecessary: the guard is observable through the in-flight flag.
	active.Admit("BTC", domain.AdmitVolumeSpike, domain.VolumeSample{Symbol: "BTC"})

	require.True(t, o.evaluating.CompareAndSwap(false, true))
	done := make(chan struct{})
	go func() {
		// Second entry must bail out immediately while the flag is held.
		o.RunEvaluationOnce(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("guarded cycle did not return promptly")
	}
	o.evaluating.Store(false)
	assert.Equal(t, 0, sink.count())
}

type pagedStore struct {
	mu   sync.Mutex
	rows []domain.ArbitrageOpportunity
}

func (s *pagedStore) Insert(context.Context, domain.ArbitrageOpportunity) error { return nil }

func (s *pagedStore) ListRecent(context.Context, int) ([]domain.ArbitrageOpportunity, error) {
	return nil, nil
}

func (s *pagedStore) ListBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.ArbitrageOpportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ArbitrageOpportunity
	for _, r := range s.rows {
		if r.ObservedAt.Before(cutoff) {
			out = append(out, r)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *pagedStore) DeleteIDs(_ context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	var kept []domain.ArbitrageOpportunity
	var deleted int64
	for _, r := range s.rows {
		if drop[r.ID] {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.rows = kept
	return deleted, nil
}

type memWriter struct {
	mu   sync.Mutex
	objs map[string][]byte
	fail bool
}

func (w *memWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if w.fail {
		return errors.New("upload failed")
	}
	payload, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.objs == nil {
		w.objs = make(map[string][]byte)
	}
	w.objs[path] = payload
	return nil
}

func TestArchiverMovesOldRows(t *testing.T) {
	old := time.Now().UTC().Add(-40 * 24 * time.Hour)
	store := &pagedStore{rows: []domain.ArbitrageOpportunity{
		{ID: "old-1", Symbol: "BTC", ObservedAt: old},
		{ID: "old-2", Symbol: "ETH", ObservedAt: old},
		{ID: "fresh", Symbol: "SOL", ObservedAt: time.Now().UTC()},
	}}
	writer := &memWriter{}

	a := NewArchiver(store, writer, 30, testLogger())
	require.NoError(t, a.Run(context.Background()))

	assert.Len(t, writer.objs, 1, "one batch uploaded")
	require.Len(t, store.rows, 1, "fresh row survives")
	assert.Equal(t, "fresh", store.rows[0].ID)
}

func TestArchiverKeepsRowsWhenUploadFails(t *testing.T) {
	old := time.Now().UTC().Add(-40 * 24 * time.Hour)
	store := &pagedStore{rows: []domain.ArbitrageOpportunity{
		{ID: "old-1", Symbol: "BTC", ObservedAt: old},
	}}
	writer := &memWriter{fail: true}

	a := NewArchiver(store, writer, 30, testLogger())
	require.Error(t, a.Run(context.Background()))
	assert.Len(t, store.rows, 1, "rows kept for the next run")
}

func TestArchiverNoEligibleRows(t *testing.T) {
	store := &pagedStore{rows: []domain.ArbitrageOpportunity{
		{ID: "fresh", Symbol: "BTC", ObservedAt: time.Now().UTC()},
	}}
	writer := &memWriter{}

	a := NewArchiver(store, writer, 30, testLogger())
	require.NoError(t, a.Run(context.Background()))
	assert.Empty(t, writer.objs)
}
