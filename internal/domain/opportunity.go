package domain

import "time"

// OpportunityKind distinguishes the two profit engines.
type OpportunityKind string

const (
	OpportunityPairwise OpportunityKind = "pairwise"
	OpportunityCyclic   OpportunityKind = "cyclic"
)

// LegSide is the direction of a single opportunity leg.
type LegSide string

const (
	LegBuy     LegSide = "buy"
	LegSell    LegSide = "sell"
	LegConvert LegSide = "convert"
)

// OpportunityLeg is one venue/price step of an opportunity.
type OpportunityLeg struct {
	Venue string  `json:"venue"`
	Price float64 `json:"price"`
	Side  LegSide `json:"side"`
}

// FeeBreakdown itemises everything subtracted from gross profit, expressed in
// quote-currency units. All fields are non-negative and Total is their sum.
type FeeBreakdown struct {
	EntryFee    float64 `json:"entry_fee"`
	ExitFee     float64 `json:"exit_fee"`
	TransferFee float64 `json:"transfer_fee"`
	NetworkFee  float64 `json:"network_fee"`
	Total       float64 `json:"total"`
}

// Sum recomputes Total from the four components.
func (f *FeeBreakdown) Sum() {
	f.Total = f.EntryFee + f.ExitFee + f.TransferFee + f.NetworkFee
}

// ArbitrageOpportunity is a fee-adjusted, threshold-cleared profit signal.
// Invariant: a reported opportunity has NetProfit > 0 and NetProfitPct at or
// above the configured threshold.
type ArbitrageOpportunity struct {
	ID           string
	Symbol       string
	Kind         OpportunityKind
	Legs         []OpportunityLeg
	GrossDiffPct float64
	GrossProfit  float64
	Fees         FeeBreakdown
	NetProfit    float64
	NetProfitPct float64
	TradeAmount  float64
	Path         []string // ordered currency sequence, cyclic only
	ObservedAt   time.Time
}
