package domain

import "time"

// VenueKind distinguishes centralized exchanges from on-chain venues. It
// determines whether a cross-venue transfer touches a blockchain and
// therefore incurs a network fee.
type VenueKind string

const (
	VenueCentralized   VenueKind = "centralized"
	VenueDecentralized VenueKind = "decentralized"
)

// Quote is an immutable top-of-book snapshot for a base/quote pair on a
// single venue. Bid and Ask may be zero when the venue only reports a last
// price; callers should fall back to Price in that case.
type Quote struct {
	Venue      string
	Symbol     string // base asset, e.g. "SOL"
	Price      float64
	Bid        float64
	Ask        float64
	Volume     float64 // 24h quote-currency volume
	VenueKind  VenueKind
	ObservedAt time.Time
}

// AskPrice returns the best ask, falling back to the last price.
func (q Quote) AskPrice() float64 {
	if q.Ask > 0 {
		return q.Ask
	}
	return q.Price
}

// BidPrice returns the best bid, falling back to the last price.
func (q Quote) BidPrice() float64 {
	if q.Bid > 0 {
		return q.Bid
	}
	return q.Price
}

// VolumeSample is the Activity Scanner's per-symbol output for one discovery
// cycle: aggregate current volume across venues, the rolling average over the
// trailing window, and the ratio between the two.
type VolumeSample struct {
	Symbol        string
	CurrentVolume float64
	AverageVolume float64
	SpikeRatio    float64 // CurrentVolume / AverageVolume
	VenueVolumes  map[string]float64
	ObservedAt    time.Time
}
