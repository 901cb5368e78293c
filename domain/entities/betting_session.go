package entities

import (
	"fmt"
	"strings"
	"time"
)

// GameType identifies a game with its own outcome space and payout table
type GameType string

const (
	GameTypeRoulette GameType = "roulette"
	GameTypeCrash    GameType = "crash"
	GameTypeRaffle   GameType = "raffle"
)

// sessionWindows holds the open-window duration per game type
var sessionWindows = map[GameType]time.Duration{
	GameTypeRoulette: 30 * time.Second,
	GameTypeCrash:    45 * time.Second,
	GameTypeRaffle:   60 * time.Second,
}

// ParseGameType converts user input into a GameType
func ParseGameType(s string) (GameType, error) {
	gt := GameType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := sessionWindows[gt]; !ok {
		return "", NewValidationError("game", "unknown game %q", s)
	}
	return gt, nil
}

// Window returns how long a session of this game accepts joins
func (g GameType) Window() time.Duration {
	return sessionWindows[g]
}

// SessionStatus represents the state of a betting session
type SessionStatus string

const (
	SessionStatusOpen      SessionStatus = "open"
	SessionStatusLocked    SessionStatus = "locked"
	SessionStatusResolving SessionStatus = "resolving"
	SessionStatusResolved  SessionStatus = "resolved"
	SessionStatusExpired   SessionStatus = "expired"
)

// IsTerminal reports whether no further writes are accepted in this status
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusResolved || s == SessionStatusExpired
}

// SessionScope is the table a session runs at
type SessionScope struct {
	GuildID   int64
	ChannelID int64
}

// SessionOutcome is the drawn result of a session, persisted so an
// interrupted resolution settles against the same draw
type SessionOutcome struct {
	Value   string            `json:"value"`
	Label   string            `json:"label"`
	Details map[string]string `json:"details,omitempty"`
}

// BettingSession is a time-boxed round of one game at one table
type BettingSession struct {
	ID         int64           `db:"id"`
	GuildID    int64           `db:"guild_id"`
	ChannelID  int64           `db:"channel_id"`
	GameType   GameType        `db:"game_type"`
	Status     SessionStatus   `db:"status"`
	WagerCount int             `db:"wager_count"`
	Outcome    *SessionOutcome `db:"outcome"`
	OpenedAt   time.Time       `db:"opened_at"`
	ClosesAt   time.Time       `db:"closes_at"`
	LockedAt   *time.Time      `db:"locked_at"`
	ResolvedAt *time.Time      `db:"resolved_at"`
	UpdatedAt  time.Time       `db:"updated_at"`
	Wagers     []*Wager        `db:"-"`
}

// Scope returns the table the session belongs to
func (s *BettingSession) Scope() SessionScope {
	return SessionScope{GuildID: s.GuildID, ChannelID: s.ChannelID}
}

// IsOpen checks if the session is in the open state
func (s *BettingSession) IsOpen() bool {
	return s.Status == SessionStatusOpen
}

// IsTerminal checks if the session is resolved or expired
func (s *BettingSession) IsTerminal() bool {
	return s.Status.IsTerminal()
}

// AcceptsJoinsAt checks if a join at the given time falls inside the window
func (s *BettingSession) AcceptsJoinsAt(now time.Time) bool {
	return s.IsOpen() && now.Before(s.ClosesAt)
}

// IsWindowClosed checks if the open window has elapsed
func (s *BettingSession) IsWindowClosed(now time.Time) bool {
	return !now.Before(s.ClosesAt)
}

// TotalStaked sums the escrowed amounts of all wagers
func (s *BettingSession) TotalStaked() int64 {
	var total int64
	for _, w := range s.Wagers {
		total += w.Amount
	}
	return total
}

// WagerBy returns the actor's wager in this session, if any
func (s *BettingSession) WagerBy(discordID int64) *Wager {
	for _, w := range s.Wagers {
		if w.DiscordID == discordID {
			return w
		}
	}
	return nil
}

// Wager is one actor's escrowed stake in a session
type Wager struct {
	ID         int64      `db:"id"`
	SessionID  int64      `db:"session_id"`
	GuildID    int64      `db:"guild_id"`
	DiscordID  int64      `db:"discord_id"`
	Amount     int64      `db:"amount"`
	Instrument Instrument `db:"instrument"`
	Selection  string     `db:"selection"`
	PlacedAt   time.Time  `db:"placed_at"`
	Multiplier *string    `db:"multiplier"`
	Payout     *int64     `db:"payout"`
	SettledAt  *time.Time `db:"settled_at"`
}

// IsSettled checks if the wager's payout has been recorded
func (w *Wager) IsSettled() bool {
	return w.SettledAt != nil
}

// EscrowReference fences the escrow debit of one join attempt. Attempts with
// different keys escrow separately, so a refunded attempt does not block the next.
func EscrowReference(sessionID, discordID int64, attempt string) string {
	if attempt == "" {
		return fmt.Sprintf("session:%d:actor:%d:escrow", sessionID, discordID)
	}
	return fmt.Sprintf("session:%d:actor:%d:escrow:%s", sessionID, discordID, attempt)
}

// EscrowRefundReference fences the refund of an escrow that never became a wager
func EscrowRefundReference(escrowReference string) string {
	return escrowReference + ":refund"
}

// PayoutReference fences the payout credit of a wager
func PayoutReference(wagerID int64) string {
	return fmt.Sprintf("wager:%d:payout", wagerID)
}

// SessionSettlement summarizes a resolved session
type SessionSettlement struct {
	Session     *BettingSession
	Outcome     SessionOutcome
	Payouts     map[int64]int64 // Discord ID -> payout amount
	TotalStaked int64
	TotalPaid   int64
}
