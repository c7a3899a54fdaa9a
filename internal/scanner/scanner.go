// Package scanner implements the discovery tier: it samples volume across a
// broad symbol universe on a slow cadence, maintains rolling per-symbol
// volume history, and classifies anomalies into admission proposals for the
// active set. The scanner never reports opportunities itself.
package scanner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// disparityRatio is the max/min cross-venue volume ratio that flags a symbol.
const disparityRatio = 3.0

// Config holds the scanner's detection and pacing parameters.
type Config struct {
	SpikeThreshold float64
	MinVolume      float64
	BatchSize      int
	BatchDelay     time.Duration
	WindowSize     int
	Venues         []string
	QuoteCurrency  string
}

// Proposal asks the active set manager to admit a symbol, with the
// triggering sample as evidence.
type Proposal struct {
	Symbol string
	Reason domain.AdmitReason
	Sample domain.VolumeSample
}

// Scanner aggregates current volumes across venues and keeps a rolling
// window per symbol to detect spikes.
type Scanner struct {
	provider domain.MarketDataProvider
	cfg      Config
	logger   *slog.Logger

	mu      sync.Mutex
	windows map[string][]float64
	now     func() time.Time
}

// New creates a Scanner.
func New(provider domain.MarketDataProvider, cfg Config, logger *slog.Logger) *Scanner {
	return &Scanner{
		provider: provider,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "scanner")),
		windows:  make(map[string][]float64),
		now:      time.Now,
	}
}

// Scan samples current volume for every symbol, in fixed-size batches with a
// pacing delay between batches. Individual venue failures contribute zero
// volume and never abort the symbol; a symbol failure never aborts the batch.
func (s *Scanner) Scan(ctx context.Context, symbols []string) ([]domain.VolumeSample, error) {
	samples := make([]domain.VolumeSample, 0, len(symbols))

	for start := 0; start < len(symbols); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		batch := symbols[start:end]

		batchSamples := s.scanBatch(ctx, batch)
		samples = append(samples, batchSamples...)

		// Pace between batches, but not after the last one.
		if end < len(symbols) && s.cfg.BatchDelay > 0 {
			timer := time.NewTimer(s.cfg.BatchDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return samples, ctx.Err()
			case <-timer.C:
			}
		}
	}

	s.logger.Debug("scan complete",
		slog.Int("symbols", len(symbols)),
		slog.Int("samples", len(samples)),
	)
	return samples, nil
}

// scanBatch samples one batch of symbols concurrently.
func (s *Scanner) scanBatch(ctx context.Context, batch []string) []domain.VolumeSample {
	var (
		mu  sync.Mutex
		out = make([]domain.VolumeSample, 0, len(batch))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, symbol := range batch {
		symbol := symbol
		g.Go(func() error {
			sample := s.sampleSymbol(gctx, symbol)
			mu.Lock()
			out = append(out, sample)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures degrade to zero volume
	return out
}

// sampleSymbol aggregates the symbol's current volume across all configured
// venues, then folds the result into the rolling window.
func (s *Scanner) sampleSymbol(ctx context.Context, symbol string) domain.VolumeSample {
	venueVolumes := make(map[string]float64, len(s.cfg.Venues))
	var current float64

	for _, venue := range s.cfg.Venues {
		q, err := s.provider.FetchQuote(ctx, venue, symbol, s.cfg.QuoteCurrency)
		if err != nil {
			// Transient data-unavailable: contributes zero, never aborts.
			venueVolumes[venue] = 0
			continue
		}
		venueVolumes[venue] = q.Volume
		current += q.Volume
	}

	avg := s.updateWindow(symbol, current)

	ratio := 1.0
	if avg > 0 {
		ratio = current / avg
	}

	return domain.VolumeSample{
		Symbol:        symbol,
		CurrentVolume: current,
		AverageVolume: avg,
		SpikeRatio:    ratio,
		VenueVolumes:  venueVolumes,
		ObservedAt:    s.now(),
	}
}

// updateWindow returns the rolling average over the window as it stood
// before this observation, then appends the observation and drops the oldest
// sample once the window is full.
func (s *Scanner) updateWindow(symbol string, current float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	win := s.windows[symbol]

	avg := current
	if len(win) > 0 {
		var sum float64
		for _, v := range win {
			sum += v
		}
		avg = sum / float64(len(win))
	}

	win = append(win, current)
	if len(win) > s.cfg.WindowSize {
		win = win[len(win)-s.cfg.WindowSize:]
	}
	s.windows[symbol] = win

	return avg
}

// Classify evaluates the full sample set of one discovery cycle and returns
// admission proposals. A symbol may match several rules; the active set
// manager deduplicates on admission.
func (s *Scanner) Classify(samples []domain.VolumeSample) []Proposal {
	var proposals []Proposal

	for _, sample := range samples {
		if sample.SpikeRatio >= s.cfg.SpikeThreshold && sample.CurrentVolume >= s.cfg.MinVolume {
			proposals = append(proposals, Proposal{
				Symbol: sample.Symbol,
				Reason: domain.AdmitVolumeSpike,
				Sample: sample,
			})
		}
		if sample.CurrentVolume >= 2*s.cfg.MinVolume {
			proposals = append(proposals, Proposal{
				Symbol: sample.Symbol,
				Reason: domain.AdmitHighVolume,
				Sample: sample,
			})
		}
		if hasVenueDisparity(sample.VenueVolumes) {
			proposals = append(proposals, Proposal{
				Symbol: sample.Symbol,
				Reason: domain.AdmitCrossVenueDisparity,
				Sample: sample,
			})
		}
	}

	return proposals
}

// hasVenueDisparity reports whether at least two venues report non-zero
// volume and the spread between the busiest and quietest is at least 3x.
func hasVenueDisparity(venueVolumes map[string]float64) bool {
	var (
		minV, maxV float64
		reporting  int
	)
	for _, v := range venueVolumes {
		if v <= 0 {
			continue
		}
		reporting++
		if reporting == 1 {
			minV, maxV = v, v
			continue
		}
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	return reporting >= 2 && maxV/minV >= disparityRatio
}
