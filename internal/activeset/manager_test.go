package activeset

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func testManager(maxSize int, ttl time.Duration) (*Manager, *fakeClock) {
	m := New(Config{
		MaxSize:           maxSize,
		EntryTTL:          ttl,
		ReinstateMinCount: 3,
		ReinstateWindow:   7 * 24 * time.Hour,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	clock := newFakeClock()
	m.SetClock(clock.Now)
	return m, clock
}

func TestAdmitIsNoOpWhenPresent(t *testing.T) {
	m, _ := testManager(10, time.Hour)

	require.True(t, m.Admit("BTC", domain.AdmitVolumeSpike, domain.VolumeSample{}))
	assert.False(t, m.Admit("BTC", domain.AdmitHighVolume, domain.VolumeSample{}))
	assert.Equal(t, 1, m.Size())

	// The original reason survives.
	assert.Equal(t, map[domain.AdmitReason]int{domain.AdmitVolumeSpike: 1}, m.Stats())
}

func TestCapacityInvariantHolds(t *testing.T) {
	m, clock := testManager(50, time.Hour)

	for i := 0; i < 51; i++ {
		m.Admit(fmt.Sprintf("SYM%02d", i), domain.AdmitHighVolume, domain.VolumeSample{})
		assert.LessOrEqual(t, m.Size(), 50, "capacity invariant violated after admission %d", i)
		clock.Advance(time.Second) // distinct AdmittedAt per entry
	}

	assert.Equal(t, 50, m.Size())

	// The 51st admission evicted exactly the oldest entry.
	members := m.Members()
	assert.NotContains(t, members, "SYM00")
	assert.Contains(t, members, "SYM01")
	assert.Contains(t, members, "SYM50")
}

func TestTTLEviction(t *testing.T) {
	m, clock := testManager(10, 1800*time.Second)

	m.Admit("SOL", domain.AdmitVolumeSpike, domain.VolumeSample{})

	clock.Advance(1799 * time.Second)
	assert.Zero(t, m.SweepExpired())
	assert.Equal(t, 1, m.Size(), "entry within TTL survives the sweep")

	clock.Advance(2 * time.Second) // now at T+1801
	assert.Equal(t, 1, m.SweepExpired())
	assert.Zero(t, m.Size())
}

func TestMembersAdmissionOrdered(t *testing.T) {
	m, clock := testManager(10, time.Hour)

	for _, s := range []string{"A", "B", "C"} {
		m.Admit(s, domain.AdmitHighVolume, domain.VolumeSample{})
		clock.Advance(time.Second)
	}

	assert.Equal(t, []string{"A", "B", "C"}, m.Members())
	assert.Equal(t, []string{"C", "B"}, m.Recent(2))
	assert.Equal(t, []string{"C", "B", "A"}, m.Recent(99))
}

func TestRecordOutcomeRunningAverage(t *testing.T) {
	m, _ := testManager(10, time.Hour)

	m.RecordOutcome("ETH", 1.0)
	m.RecordOutcome("ETH", 2.0)
	m.RecordOutcome("ETH", 6.0)

	stat, ok := m.HistoryFor("ETH")
	require.True(t, ok)
	assert.Equal(t, 3, stat.OccurrenceCount)
	assert.InDelta(t, 3.0, stat.AvgProfitPct, 1e-9)
}

func TestReinstateHistorical(t *testing.T) {
	m, clock := testManager(10, time.Hour)

	// Three opportunities, last seen two days ago.
	m.RecordOutcome("DOT", 1.5)
	m.RecordOutcome("DOT", 2.5)
	m.RecordOutcome("DOT", 2.0)
	clock.Advance(2 * 24 * time.Hour)

	admitted := m.ReinstateHistorical()
	assert.Equal(t, 1, admitted)
	assert.Contains(t, m.Members(), "DOT")
	assert.Equal(t, map[domain.AdmitReason]int{domain.AdmitHistoricalPattern: 1}, m.Stats())
}

func TestReinstateSkipsStaleAndBelowCount(t *testing.T) {
	m, clock := testManager(10, time.Hour)

	// Enough occurrences, but last seen 8 days ago.
	m.RecordOutcome("OLD", 1.0)
	m.RecordOutcome("OLD", 1.0)
	m.RecordOutcome("OLD", 1.0)
	clock.Advance(8 * 24 * time.Hour)

	// Recent but only two occurrences.
	m.RecordOutcome("FEW", 1.0)
	m.RecordOutcome("FEW", 1.0)

	assert.Zero(t, m.ReinstateHistorical())
	assert.Zero(t, m.Size())
}

func TestReinstateRespectsCapacity(t *testing.T) {
	m, _ := testManager(1, time.Hour)

	m.Admit("HOT", domain.AdmitVolumeSpike, domain.VolumeSample{})
	for i := 0; i < 3; i++ {
		m.RecordOutcome("HIST", 1.0)
	}

	// Reinstatement never evicts; the set is full, so nothing happens.
	assert.Zero(t, m.ReinstateHistorical())
	assert.Equal(t, []string{"HOT"}, m.Members())
}

func TestSeedHistorySurvivesSnapshotRoundTrip(t *testing.T) {
	m, _ := testManager(10, time.Hour)
	m.RecordOutcome("ATOM", 4.0)

	snap := m.HistorySnapshot()
	require.Len(t, snap, 1)

	m2, _ := testManager(10, time.Hour)
	m2.SeedHistory(snap)
	stat, ok := m2.HistoryFor("ATOM")
	require.True(t, ok)
	assert.Equal(t, 1, stat.OccurrenceCount)
	assert.InDelta(t, 4.0, stat.AvgProfitPct, 1e-9)
}
