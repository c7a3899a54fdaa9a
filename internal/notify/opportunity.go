package notify

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// EventFor maps an opportunity kind to its notification event type.
func EventFor(kind domain.OpportunityKind) string {
	if kind == domain.OpportunityCyclic {
		return EventCyclic
	}
	return EventPairwise
}

// FormatOpportunity renders an opportunity as a title and message body for
// the chat channels.
func FormatOpportunity(opp domain.ArbitrageOpportunity) (title, message string) {
	title = fmt.Sprintf("%s arbitrage: %s +%.2f%%", opp.Kind, opp.Symbol, opp.NetProfitPct)

	var b strings.Builder
	for i, leg := range opp.Legs {
		fmt.Fprintf(&b, "leg %d: %s %s @ %.6f\n", i+1, leg.Side, leg.Venue, leg.Price)
	}
	if len(opp.Path) > 0 {
		fmt.Fprintf(&b, "path: %s\n", strings.Join(opp.Path, " -> "))
	}
	fmt.Fprintf(&b, "gross %.4f, fees %.4f, net %.4f on %.2f",
		opp.GrossProfit, opp.Fees.Total, opp.NetProfit, opp.TradeAmount)

	return title, b.String()
}
