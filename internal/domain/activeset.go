package domain

import "time"

// AdmitReason records why a symbol entered the active set.
type AdmitReason string

const (
	AdmitVolumeSpike         AdmitReason = "volume_spike"
	AdmitHighVolume          AdmitReason = "high_volume"
	AdmitCrossVenueDisparity AdmitReason = "cross_venue_disparity"
	AdmitHistoricalPattern   AdmitReason = "historical_pattern"
)

// ActiveSetEntry is one member of the bounded active set. Entries are unique
// by symbol and owned exclusively by the active set manager.
type ActiveSetEntry struct {
	Symbol     string
	Reason     AdmitReason
	AdmittedAt time.Time
	Snapshot   VolumeSample // evidence at admission time
}

// HistoricalStat tracks long-run profitability per symbol. The running
// average is maintained incrementally: avg' = (avg*n + x) / (n+1).
type HistoricalStat struct {
	Symbol          string
	OccurrenceCount int
	AvgProfitPct    float64
	LastSeenAt      time.Time
}

// Observe folds one more profit observation into the running average.
func (h *HistoricalStat) Observe(profitPct float64, at time.Time) {
	n := float64(h.OccurrenceCount)
	h.AvgProfitPct = (h.AvgProfitPct*n + profitPct) / (n + 1)
	h.OccurrenceCount++
	h.LastSeenAt = at
}
