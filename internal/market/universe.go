package market

import (
	"context"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// StaticUniverse serves a fixed, config-supplied symbol list.
type StaticUniverse struct {
	symbols []string
}

// NewStaticUniverse creates a StaticUniverse.
func NewStaticUniverse(symbols []string) *StaticUniverse {
	return &StaticUniverse{symbols: symbols}
}

// Symbols implements domain.UniverseProvider.
func (u *StaticUniverse) Symbols(context.Context) ([]string, error) {
	out := make([]string, len(u.symbols))
	copy(out, u.symbols)
	return out, nil
}

// StaticEligibility answers transfer-eligibility queries from a fixed block
// list. An empty list permits everything, which suits paper operation.
type StaticEligibility struct {
	blocked map[string]bool // venue + "/" + asset
}

// NewStaticEligibility creates a StaticEligibility from venue/asset pairs
// formatted as "venue/ASSET".
func NewStaticEligibility(blocked []string) *StaticEligibility {
	m := make(map[string]bool, len(blocked))
	for _, b := range blocked {
		m[b] = true
	}
	return &StaticEligibility{blocked: m}
}

// IsTransferBlocked implements domain.TransferEligibility.
func (e *StaticEligibility) IsTransferBlocked(_ context.Context, venue, asset string) (bool, error) {
	return e.blocked[venue+"/"+asset], nil
}

// Compile-time interface checks.
var (
	_ domain.UniverseProvider    = (*StaticUniverse)(nil)
	_ domain.TransferEligibility = (*StaticEligibility)(nil)
)
