package resolver

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"settlement/domain/entities"

	"github.com/shopspring/decimal"
)

const raffleEntryPrefix = "entry:"

// Raffle draws one winner among all entries, weighted by stake. The winner
// takes the pot; the remainder of an inexact split is not paid out.
type Raffle struct{}

// NewRaffle creates the raffle game
func NewRaffle() *Raffle {
	return &Raffle{}
}

func (g *Raffle) Type() entities.GameType {
	return entities.GameTypeRaffle
}

// NormalizeSelection ignores the input: every actor holds exactly one entry
func (g *Raffle) NormalizeSelection(_ string, discordID int64) (string, error) {
	if discordID <= 0 {
		return "", entities.NewValidationError("selection", "raffle entries need an actor")
	}
	return raffleEntryPrefix + strconv.FormatInt(discordID, 10), nil
}

func (g *Raffle) Draw(rng RandomSource, wagers []*entities.Wager) entities.SessionOutcome {
	entries := sortedEntries(wagers)
	pot := potOf(entries)
	if pot <= 0 {
		return entities.SessionOutcome{Value: "", Label: "no entries"}
	}

	ticket := int64(rng.IntN(int(pot)))
	winner := entries[len(entries)-1]
	var cumulative int64
	for _, w := range entries {
		cumulative += w.Amount
		if ticket < cumulative {
			winner = w
			break
		}
	}

	return entities.SessionOutcome{
		Value: winner.Selection,
		Label: fmt.Sprintf("<@%d> wins %d", winner.DiscordID, pot),
		Details: map[string]string{
			"pot":     strconv.FormatInt(pot, 10),
			"entries": strconv.Itoa(len(entries)),
		},
	}
}

// Multipliers pays the winner pot/stake truncated to 8 decimals. When the
// stake does not divide the pot the floored payout falls short of it, at most
// by one unit for any pot below 10^8 (pot 10, stake 3 pays 9). The shortfall
// is never credited and stays with the house like a losing stake.
func (g *Raffle) Multipliers(outcome entities.SessionOutcome, wagers []*entities.Wager) (MultiplierFunc, error) {
	pot := potOf(wagers)
	var winner *entities.Wager
	for _, w := range wagers {
		if w.Selection == outcome.Value {
			winner = w
			break
		}
	}
	if len(wagers) > 0 && winner == nil {
		return nil, fmt.Errorf("raffle winner %q is not among the entries", outcome.Value)
	}

	// Truncated quotient so amount x multiplier never exceeds the pot
	winnerMultiplier := decimal.Zero
	if winner != nil {
		winnerMultiplier, _ = decimal.NewFromInt(pot).QuoRem(decimal.NewFromInt(winner.Amount), 8)
	}

	return func(selection string) (decimal.Decimal, bool) {
		if !strings.HasPrefix(selection, raffleEntryPrefix) {
			return decimal.Zero, false
		}
		if winner != nil && selection == winner.Selection {
			return winnerMultiplier, true
		}
		return decimal.Zero, true
	}, nil
}

func (g *Raffle) PayoutCap(wagers []*entities.Wager) int64 {
	return potOf(wagers)
}

// sortedEntries orders wagers by actor so the draw does not depend on input order
func sortedEntries(wagers []*entities.Wager) []*entities.Wager {
	entries := make([]*entities.Wager, len(wagers))
	copy(entries, wagers)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].DiscordID < entries[j].DiscordID
	})
	return entries
}

func potOf(wagers []*entities.Wager) int64 {
	var pot int64
	for _, w := range wagers {
		pot += w.Amount
	}
	return pot
}
