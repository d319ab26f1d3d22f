package copytrade

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the precision of every scaled quantity and PnL
const Places int32 = 8

// SkipReason explains why a follower did not receive a leader trade
type SkipReason string

const (
	SkipNone             SkipReason = ""
	SkipNonPositiveRatio SkipReason = "non_positive_ratio"
	SkipZeroQuantity     SkipReason = "zero_quantity"
)

// Leg is one follower's share of a leader trade
type Leg struct {
	Quantity decimal.Decimal
	Pnl      decimal.Decimal
	Reason   SkipReason
}

func (l Leg) Eligible() bool {
	return l.Reason == SkipNone
}

// Scale computes a follower's quantity and PnL from the leader's. Both are
// rounded half away from zero to Places decimals. A nil leaderPnl scales to zero.
func Scale(leaderQuantity decimal.Decimal, leaderPnl *decimal.Decimal, ratio decimal.Decimal) Leg {
	if !ratio.IsPositive() {
		return Leg{Reason: SkipNonPositiveRatio}
	}

	quantity := leaderQuantity.Mul(ratio).Round(Places)
	if !quantity.IsPositive() {
		return Leg{Reason: SkipZeroQuantity}
	}

	pnl := decimal.Zero
	if leaderPnl != nil {
		pnl = leaderPnl.Mul(ratio).Round(Places)
	}
	return Leg{Quantity: quantity, Pnl: pnl}
}

// Summary renders a fan-out outcome for display
func Summary(created, nonPositiveRatio, zeroQuantity int) string {
	if created == 0 && nonPositiveRatio == 0 && zeroQuantity == 0 {
		return "no active followers"
	}

	parts := []string{fmt.Sprintf("%d copy trade(s) created", created)}
	if nonPositiveRatio > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped due to non-positive ratio", nonPositiveRatio))
	}
	if zeroQuantity > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped due to zero scaled quantity", zeroQuantity))
	}
	return strings.Join(parts, ", ")
}
