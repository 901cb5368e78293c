package resolver

import (
	"fmt"
	"strings"

	"settlement/domain/entities"

	"github.com/shopspring/decimal"
)

// CrashParams configures the crash curve
type CrashParams struct {
	HouseEdge     decimal.Decimal
	MinTarget     decimal.Decimal
	MaxMultiplier decimal.Decimal
}

// DefaultCrashParams is a 1% edge curve capped at 100x
func DefaultCrashParams() CrashParams {
	return CrashParams{
		HouseEdge:     decimal.RequireFromString("0.01"),
		MinTarget:     decimal.RequireFromString("1.01"),
		MaxMultiplier: decimal.NewFromInt(100),
	}
}

// Crash draws a crash point; a wager pays its target when the target is
// strictly below the drawn point
type Crash struct {
	params CrashParams
}

// NewCrash creates the crash game
func NewCrash(params CrashParams) *Crash {
	return &Crash{params: params}
}

func (g *Crash) Type() entities.GameType {
	return entities.GameTypeCrash
}

func (g *Crash) NormalizeSelection(selection string, _ int64) (string, error) {
	s := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(selection)), "x")
	target, err := decimal.NewFromString(s)
	if err != nil {
		return "", entities.NewValidationError("selection", "target %q is not a number", selection)
	}
	if !target.Equal(target.Truncate(2)) {
		return "", entities.NewValidationError("selection", "target supports at most two decimals")
	}
	if target.LessThan(g.params.MinTarget) || target.GreaterThan(g.params.MaxMultiplier) {
		return "", entities.NewValidationError("selection", "target must be between %s and %s",
			g.params.MinTarget.StringFixed(2), g.params.MaxMultiplier.StringFixed(2))
	}
	return target.StringFixed(2), nil
}

func (g *Crash) Draw(rng RandomSource, _ []*entities.Wager) entities.SessionOutcome {
	point := g.crashPoint(rng.Float64())
	return entities.SessionOutcome{
		Value: point.StringFixed(2),
		Label: fmt.Sprintf("crashed at %sx", point.StringFixed(2)),
	}
}

// crashPoint maps a uniform draw in [0,1) onto (1-edge)/(1-u), floored to
// two decimals and clamped to [1.00, max]
func (g *Crash) crashPoint(u float64) decimal.Decimal {
	one := decimal.NewFromInt(1)
	remaining := one.Sub(decimal.NewFromFloat(u))
	if remaining.Sign() <= 0 {
		return g.params.MaxMultiplier
	}
	point := one.Sub(g.params.HouseEdge).DivRound(remaining, 8).Truncate(2)
	if point.LessThan(one) {
		return one
	}
	if point.GreaterThan(g.params.MaxMultiplier) {
		return g.params.MaxMultiplier
	}
	return point
}

func (g *Crash) Multipliers(outcome entities.SessionOutcome, _ []*entities.Wager) (MultiplierFunc, error) {
	point, err := decimal.NewFromString(outcome.Value)
	if err != nil {
		return nil, fmt.Errorf("invalid crash outcome %q: %w", outcome.Value, err)
	}

	return func(selection string) (decimal.Decimal, bool) {
		target, err := decimal.NewFromString(selection)
		if err != nil || target.LessThan(g.params.MinTarget) || target.GreaterThan(g.params.MaxMultiplier) {
			return decimal.Zero, false
		}
		if target.LessThan(point) {
			return target, true
		}
		return decimal.Zero, true
	}, nil
}

func (g *Crash) PayoutCap(wagers []*entities.Wager) int64 {
	var total int64
	for _, w := range wagers {
		total += Payout(w.Amount, g.params.MaxMultiplier)
	}
	return total
}
