package resolver

import (
	"fmt"
	"strconv"
	"strings"

	"settlement/domain/entities"

	"github.com/shopspring/decimal"
)

const roulettePockets = 37 // European wheel, 0-36

var rouletteRed = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true, 14: true, 16: true, 18: true,
	19: true, 21: true, 23: true, 25: true, 27: true, 30: true, 32: true, 34: true, 36: true,
}

var (
	rouletteEvenMoney = decimal.NewFromInt(2)
	rouletteStraight  = decimal.NewFromInt(36)
)

// outside bets and their win condition
var rouletteOutside = map[string]func(n int) bool{
	"red":   func(n int) bool { return n != 0 && rouletteRed[n] },
	"black": func(n int) bool { return n != 0 && !rouletteRed[n] },
	"odd":   func(n int) bool { return n != 0 && n%2 == 1 },
	"even":  func(n int) bool { return n != 0 && n%2 == 0 },
	"low":   func(n int) bool { return n >= 1 && n <= 18 },
	"high":  func(n int) bool { return n >= 19 && n <= 36 },
}

// Roulette is a single-zero wheel with color, parity, half and straight bets
type Roulette struct{}

// NewRoulette creates the roulette game
func NewRoulette() *Roulette {
	return &Roulette{}
}

func (g *Roulette) Type() entities.GameType {
	return entities.GameTypeRoulette
}

func (g *Roulette) NormalizeSelection(selection string, _ int64) (string, error) {
	s := strings.ToLower(strings.TrimSpace(selection))
	if s == "green" {
		return "0", nil
	}
	if _, ok := rouletteOutside[s]; ok {
		return s, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n >= roulettePockets {
		return "", entities.NewValidationError("selection", "pick red, black, odd, even, low, high, green or a number 0-36")
	}
	return strconv.Itoa(n), nil
}

func (g *Roulette) Draw(rng RandomSource, _ []*entities.Wager) entities.SessionOutcome {
	n := rng.IntN(roulettePockets)
	color := rouletteColor(n)
	return entities.SessionOutcome{
		Value:   strconv.Itoa(n),
		Label:   fmt.Sprintf("%d %s", n, color),
		Details: map[string]string{"color": color},
	}
}

func (g *Roulette) Multipliers(outcome entities.SessionOutcome, _ []*entities.Wager) (MultiplierFunc, error) {
	n, err := strconv.Atoi(outcome.Value)
	if err != nil || n < 0 || n >= roulettePockets {
		return nil, fmt.Errorf("invalid roulette outcome %q", outcome.Value)
	}

	return func(selection string) (decimal.Decimal, bool) {
		if wins, ok := rouletteOutside[selection]; ok {
			if wins(n) {
				return rouletteEvenMoney, true
			}
			return decimal.Zero, true
		}
		pick, err := strconv.Atoi(selection)
		if err != nil || pick < 0 || pick >= roulettePockets {
			return decimal.Zero, false
		}
		if pick == n {
			return rouletteStraight, true
		}
		return decimal.Zero, true
	}, nil
}

func (g *Roulette) PayoutCap(wagers []*entities.Wager) int64 {
	var total int64
	for _, w := range wagers {
		total += Payout(w.Amount, rouletteStraight)
	}
	return total
}

func rouletteColor(n int) string {
	switch {
	case n == 0:
		return "green"
	case rouletteRed[n]:
		return "red"
	default:
		return "black"
	}
}
