package service

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

	"github.com/alanyoungcy/arbscan/internal/domain"
)

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes map[string][]float64
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{outcomes: make(map[string][]float64)}
}

func (f *fakeRecorder) RecordOutcome(symbol string, profitPct float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[symbol] = append(f.outcomes[symbol], profitPct)
}

func (f *fakeRecorder) HistoryFor(symbol string) (domain.HistoricalStat, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	vals, ok := f.outcomes[symbol]
	if !ok {
		return domain.HistoricalStat{}, false
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return domain.HistoricalStat{
		Symbol:          symbol,
		OccurrenceCount: len(vals),
		AvgProfitPct:    sum / float64(len(vals)),
		LastSeenAt:      time.Now(),
	}, true
}

type fakeStore struct {
	mu       sync.Mutex
	inserted []domain.ArbitrageOpportunity
	fail     bool
}

func (f *fakeStore) Insert(_ context.Context, opp domain.ArbitrageOpportunity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("store down")
	}
	f.inserted = append(f.inserted, opp)
	return nil
}

func (f *fakeStore) ListRecent(context.Context, int) ([]domain.ArbitrageOpportunity, error) {
	return nil, nil
}

func (f *fakeStore) ListBefore(context.Context, time.Time, int) ([]domain.ArbitrageOpportunity, error) {
	return nil, nil
}

func (f *fakeStore) DeleteIDs(context.Context, []string) (int64, error) {
	return 0, nil
}

type fakeBus struct {
	mu        sync.Mutex
	published [][]byte
	appended  [][]byte
	failPub   bool
}

func (f *fakeBus) Publish(_ context.Context, _ string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPub {
		return errors.New("bus down")
	}
	f.published = append(f.published, payload)
	return nil
}

func (f *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeBus) StreamAppend(_ context.Context, _ string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, payload)
	return nil
}

func sampleOpportunity() domain.ArbitrageOpportunity {
	return domain.ArbitrageOpportunity{
		ID:           "opp-1",
		Symbol:       "BTC",
		Kind:         domain.OpportunityPairwise,
		NetProfit:    4.8,
		NetProfitPct: 4.8,
		TradeAmount:  100,
	}
}

func TestReporterRecordsOutcomeAndPersists(t *testing.T) {
	rec := newFakeRecorder()
	store := &fakeStore{}
	r := NewReporter(rec, store, nil, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := r.Deliver(context.Background(), sampleOpportunity())
	require.NoError(t, err)

	assert.Equal(t, []float64{4.8}, rec.outcomes["BTC"])
	require.Len(t, store.inserted, 1)
	assert.Equal(t, "opp-1", store.inserted[0].ID)
}

func TestReporterPublishesToBus(t *testing.T) {
	bus := &fakeBus{}
	r := NewReporter(newFakeRecorder(), nil, nil, bus, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := r.Deliver(context.Background(), sampleOpportunity())
	require.NoError(t, err)

	assert.Len(t, bus.published, 1, "pub/sub fan-out")
	assert.Len(t, bus.appended, 1, "durable stream")
}

func TestReporterStoreFailureDoesNotFailDelivery(t *testing.T) {
	rec := newFakeRecorder()
	store := &fakeStore{fail: true}
	bus := &fakeBus{}
	r := NewReporter(rec, store, nil, bus, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := r.Deliver(context.Background(), sampleOpportunity())
	require.NoError(t, err)

	// The outcome and bus delivery still happen.
	assert.Equal(t, []float64{4.8}, rec.outcomes["BTC"])
	assert.Len(t, bus.published, 1)
}

func TestReporterBusFailureDoesNotFailDelivery(t *testing.T) {
	bus := &fakeBus{failPub: true}
	r := NewReporter(newFakeRecorder(), nil, nil, bus, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := r.Deliver(context.Background(), sampleOpportunity())
	assert.NoError(t, err)
	// Stream append is attempted even after publish fails.
	assert.Len(t, bus.appended, 1)
}

func TestReporterAllBackendsNil(t *testing.T) {
	r := NewReporter(nil, nil, nil, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NoError(t, r.Deliver(context.Background(), sampleOpportunity()))
}
