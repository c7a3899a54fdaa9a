package market

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// SyntheticVenue describes one simulated venue.
type SyntheticVenue struct {
	Name string
	Kind domain.VenueKind
	// Skew shifts this venue's prices relative to the reference price, as a
	// fraction (0.002 = 20 bps rich).
	Skew float64
	// FeeRate is the venue's taker fee.
	FeeRate float64
}

// Synthetic is a random-walk multi-venue quote source for paper operation
// and development. Prices drift per symbol; each venue applies its own skew
// and jitter, so cross-venue gaps and occasional volume spikes appear
// organically. It also serves as the universe provider.
type Synthetic struct {
	mu     sync.Mutex
	rng    *rand.Rand
	venues []SyntheticVenue
	prices map[string]float64 // reference price per symbol
	vols   map[string]float64 // base volume per symbol
}

// defaultSymbols seeds the synthetic universe.
var defaultSymbols = map[string]float64{
	"BTC":  50_000,
	"ETH":  3_000,
	"SOL":  150,
	"XRP":  0.6,
	"ADA":  0.5,
	"DOGE": 0.25,
	"DOT":  7.5,
	"AVAX": 40,
	"LINK": 18,
	"TON":  5.5,
}

// NewSynthetic creates a Synthetic provider. A zero seed derives one from
// the wall clock.
func NewSynthetic(venues []SyntheticVenue, seed int64) *Synthetic {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := &Synthetic{
		rng:    rand.New(rand.NewSource(seed)),
		venues: venues,
		prices: make(map[string]float64),
		vols:   make(map[string]float64),
	}
	for sym, price := range defaultSymbols {
		s.prices[sym] = price
	}
	return s
}

// Symbols implements domain.UniverseProvider.
func (s *Synthetic) Symbols(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.prices))
	for sym := range s.prices {
		out = append(out, sym)
	}
	return out, nil
}

// Venues implements domain.MarketDataProvider.
func (s *Synthetic) Venues(context.Context) ([]string, error) {
	out := make([]string, len(s.venues))
	for i, v := range s.venues {
		out[i] = v.Name
	}
	return out, nil
}

// FetchQuote synthesises a quote: the symbol's reference price takes a small
// random step, then the venue's skew and jitter are applied.
func (s *Synthetic) FetchQuote(_ context.Context, venue, base, _ string) (domain.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.venueByName(venue)
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	ref, ok := s.prices[base]
	if !ok {
		// Unknown symbols get a price so config-supplied universes work.
		ref = 1 + s.rng.Float64()*100
	}

	// Random walk on the reference, ±0.5% per observation.
	ref *= 1 + (s.rng.Float64()-0.5)*0.01
	s.prices[base] = ref

	jitter := (s.rng.Float64() - 0.5) * 0.004
	mid := ref * (1 + v.Skew + jitter)
	spread := mid * 0.0008

	vol := s.vols[base]
	if vol == 0 {
		vol = 100_000 + s.rng.Float64()*400_000
	}
	// Occasional volume spike to exercise the discovery tier.
	if s.rng.Intn(20) == 0 {
		vol *= 3 + s.rng.Float64()*2
	} else {
		vol *= 0.9 + s.rng.Float64()*0.2
	}
	s.vols[base] = vol

	return domain.Quote{
		Venue:      venue,
		Symbol:     base,
		Price:      mid,
		Bid:        mid - spread/2,
		Ask:        mid + spread/2,
		Volume:     vol,
		VenueKind:  v.Kind,
		ObservedAt: time.Now(),
	}, nil
}

// FetchQuotesBulk synthesises quotes for every requested base.
func (s *Synthetic) FetchQuotesBulk(ctx context.Context, venue string, bases []string, quote string) (map[string]domain.Quote, error) {
	out := make(map[string]domain.Quote, len(bases))
	for _, base := range bases {
		q, err := s.FetchQuote(ctx, venue, base, quote)
		if err != nil {
			return nil, err
		}
		out[base] = q
	}
	return out, nil
}

// TradingFeeRate returns the venue's configured taker fee.
func (s *Synthetic) TradingFeeRate(_ context.Context, venue string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.venueByName(venue)
	if !ok {
		return 0, domain.ErrNotFound
	}
	return v.FeeRate, nil
}

// WithdrawalFee returns a nominal flat withdrawal fee in base-asset units.
func (s *Synthetic) WithdrawalFee(_ context.Context, venue, asset string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.venueByName(venue); !ok {
		return 0, domain.ErrNotFound
	}
	price := s.prices[asset]
	if price <= 0 {
		return 0, nil
	}
	// Roughly one dollar's worth of the asset.
	return 1 / price, nil
}

func (s *Synthetic) venueByName(name string) (SyntheticVenue, bool) {
	for _, v := range s.venues {
		if v.Name == name {
			return v, true
		}
	}
	return SyntheticVenue{}, false
}

// Compile-time interface checks.
var (
	_ domain.MarketDataProvider = (*Synthetic)(nil)
	_ domain.UniverseProvider   = (*Synthetic)(nil)
)
