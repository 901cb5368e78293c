// Package resolver draws session outcomes and maps wager selections to payout
// multipliers. Nothing in here touches money or storage.
package resolver

import (
	"fmt"

	"settlement/domain/entities"

	"github.com/shopspring/decimal"
)

// MultiplierFunc returns the total-return multiplier of a selection.
// The bool is false for a selection the game does not recognize.
type MultiplierFunc func(selection string) (decimal.Decimal, bool)

// Game defines one game's outcome space and payout table
type Game interface {
	// Type returns the game this implementation resolves
	Type() entities.GameType

	// NormalizeSelection validates a selection at join time and returns its canonical form
	NormalizeSelection(selection string, discordID int64) (string, error)

	// Draw picks an outcome using only the given random source
	Draw(rng RandomSource, wagers []*entities.Wager) entities.SessionOutcome

	// Multipliers builds the payout table for a drawn outcome
	Multipliers(outcome entities.SessionOutcome, wagers []*entities.Wager) (MultiplierFunc, error)

	// PayoutCap is the most the given wagers can ever be paid in total
	PayoutCap(wagers []*entities.Wager) int64
}

// Resolver dispatches to the registered games
type Resolver struct {
	games map[entities.GameType]Game
	rng   RandomSource
}

// New creates a resolver for the given games
func New(rng RandomSource, games ...Game) *Resolver {
	r := &Resolver{
		games: make(map[entities.GameType]Game, len(games)),
		rng:   rng,
	}
	for _, g := range games {
		r.games[g.Type()] = g
	}
	return r
}

// NewDefault creates a resolver with roulette, crash and raffle registered
func NewDefault(rng RandomSource) *Resolver {
	return New(rng, NewRoulette(), NewCrash(DefaultCrashParams()), NewRaffle())
}

func (r *Resolver) game(gameType entities.GameType) (Game, error) {
	g, ok := r.games[gameType]
	if !ok {
		return nil, entities.NewValidationError("game", "no resolver registered for %q", gameType)
	}
	return g, nil
}

// NormalizeSelection validates a selection for a game
func (r *Resolver) NormalizeSelection(gameType entities.GameType, selection string, discordID int64) (string, error) {
	g, err := r.game(gameType)
	if err != nil {
		return "", err
	}
	return g.NormalizeSelection(selection, discordID)
}

// Resolve draws a fresh outcome and returns its payout table
func (r *Resolver) Resolve(gameType entities.GameType, wagers []*entities.Wager) (*Resolution, error) {
	g, err := r.game(gameType)
	if err != nil {
		return nil, err
	}
	return r.build(g, g.Draw(r.rng, wagers), wagers)
}

// Replay rebuilds the payout table of an outcome drawn earlier
func (r *Resolver) Replay(gameType entities.GameType, outcome entities.SessionOutcome, wagers []*entities.Wager) (*Resolution, error) {
	g, err := r.game(gameType)
	if err != nil {
		return nil, err
	}
	return r.build(g, outcome, wagers)
}

func (r *Resolver) build(g Game, outcome entities.SessionOutcome, wagers []*entities.Wager) (*Resolution, error) {
	multiplierOf, err := g.Multipliers(outcome, wagers)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s payout table: %w", g.Type(), err)
	}

	res := &Resolution{
		GameType:     g.Type(),
		Outcome:      outcome,
		multiplierOf: multiplierOf,
		payoutCap:    g.PayoutCap(wagers),
	}

	// Every accepted selection must map to a multiplier
	var total int64
	for _, w := range wagers {
		payout, _, err := res.PayoutFor(w)
		if err != nil {
			return nil, err
		}
		total += payout
	}
	if total > res.payoutCap {
		return nil, fmt.Errorf("%s payouts %d exceed cap %d", g.Type(), total, res.payoutCap)
	}

	return res, nil
}

// Resolution is a drawn outcome together with its payout table
type Resolution struct {
	GameType     entities.GameType
	Outcome      entities.SessionOutcome
	multiplierOf MultiplierFunc
	payoutCap    int64
}

// MultiplierOf returns the multiplier of a selection under this outcome
func (r *Resolution) MultiplierOf(selection string) (decimal.Decimal, error) {
	m, ok := r.multiplierOf(selection)
	if !ok {
		return decimal.Zero, entities.NewValidationError("selection", "%q is not a %s selection", selection, r.GameType)
	}
	return m, nil
}

// PayoutFor returns floor(amount x multiplier) for a wager
func (r *Resolution) PayoutFor(w *entities.Wager) (int64, decimal.Decimal, error) {
	m, err := r.MultiplierOf(w.Selection)
	if err != nil {
		return 0, decimal.Zero, err
	}
	return Payout(w.Amount, m), m, nil
}

// PayoutCap is the bound on the sum of payouts of the resolved wagers
func (r *Resolution) PayoutCap() int64 {
	return r.payoutCap
}

// Payout multiplies and floors to the smallest currency unit
func Payout(amount int64, multiplier decimal.Decimal) int64 {
	if multiplier.Sign() <= 0 {
		return 0
	}
	return decimal.NewFromInt(amount).Mul(multiplier).Floor().IntPart()
}
