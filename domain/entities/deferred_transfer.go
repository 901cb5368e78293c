package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxAmount bounds any single amount accepted from an actor
const MaxAmount int64 = 1_000_000_000_000

// TransferKind identifies the product that created a deferred transfer
type TransferKind string

const (
	TransferKindDeposit    TransferKind = "deposit"
	TransferKindPostal     TransferKind = "postal"
	TransferKindInvestment TransferKind = "investment"
)

// TransferRoute describes where a kind of deferred transfer moves money
type TransferRoute struct {
	Delay              time.Duration
	SenderInstrument   Instrument
	ReceiverInstrument Instrument
	ToSelf             bool // Receiver is always the sender
}

var transferRoutes = map[TransferKind]TransferRoute{
	TransferKindDeposit: {
		Delay:              5 * time.Minute,
		SenderInstrument:   InstrumentCash,
		ReceiverInstrument: InstrumentBank,
		ToSelf:             true,
	},
	TransferKindPostal: {
		Delay:              4 * time.Hour,
		SenderInstrument:   InstrumentCash,
		ReceiverInstrument: InstrumentCash,
	},
	TransferKindInvestment: {
		Delay:              7 * 24 * time.Hour,
		SenderInstrument:   InstrumentBank,
		ReceiverInstrument: InstrumentBank,
		ToSelf:             true,
	},
}

// ParseTransferKind converts user input into a TransferKind
func ParseTransferKind(s string) (TransferKind, error) {
	kind := TransferKind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := transferRoutes[kind]; !ok {
		return "", NewValidationError("kind", "unknown transfer kind %q", s)
	}
	return kind, nil
}

// Route returns the delay and instruments of the kind
func (k TransferKind) Route() TransferRoute {
	return transferRoutes[k]
}

// ApplyBps returns floor(amount * bps / 10000)
func ApplyBps(amount, bps int64) int64 {
	return amount * bps / 10000
}

// TransferStatus represents the state of a deferred transfer
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusReleased  TransferStatus = "released"
	TransferStatusCancelled TransferStatus = "cancelled"
)

// DeferredTransfer is a money movement whose receiving leg matures later
type DeferredTransfer struct {
	ID                 int64          `db:"id"`
	Reference          uuid.UUID      `db:"reference"`
	GuildID            int64          `db:"guild_id"`
	Kind               TransferKind   `db:"kind"`
	SenderID           int64          `db:"sender_id"`
	SenderInstrument   Instrument     `db:"sender_instrument"`
	ReceiverID         int64          `db:"receiver_id"`
	ReceiverInstrument Instrument     `db:"receiver_instrument"`
	Amount             int64          `db:"amount"` // Principal taken from the sender
	Fee                int64          `db:"fee"`    // Charged on top of the principal, never paid out
	Payout             int64          `db:"payout"` // Credited to the receiver at maturity
	Reason             string         `db:"reason"`
	ReleaseAt          time.Time      `db:"release_at"`
	Status             TransferStatus `db:"status"`
	SettledAt          *time.Time     `db:"settled_at"`
	ReleasedAt         *time.Time     `db:"released_at"`
	CancelledAt        *time.Time     `db:"cancelled_at"`
	CreatedAt          time.Time      `db:"created_at"`
}

// TotalDebit is what the sender paid at scheduling time
func (t *DeferredTransfer) TotalDebit() int64 {
	return t.Amount + t.Fee
}

// IsPending checks if the transfer is still waiting for maturity
func (t *DeferredTransfer) IsPending() bool {
	return t.Status == TransferStatusPending
}

// IsDue checks if the transfer has matured
func (t *DeferredTransfer) IsDue(now time.Time) bool {
	return t.IsPending() && !now.Before(t.ReleaseAt)
}

// NeedsSettlement reports a flipped transfer whose credit or refund has not landed
func (t *DeferredTransfer) NeedsSettlement() bool {
	return t.Status != TransferStatusPending && t.SettledAt == nil
}

// DebitReference fences the sender debit made at scheduling time
func (t *DeferredTransfer) DebitReference() string {
	return DeferredReference(t.Reference, "debit")
}

// CreditReference fences the receiver credit made at release
func (t *DeferredTransfer) CreditReference() string {
	return DeferredReference(t.Reference, "credit")
}

// RefundReference fences the sender refund made on cancel or failed scheduling
func (t *DeferredTransfer) RefundReference() string {
	return DeferredReference(t.Reference, "refund")
}

// DeferredReference builds a ledger reference for one leg of a deferred transfer
func DeferredReference(ref uuid.UUID, leg string) string {
	return fmt.Sprintf("deferred:%s:%s", ref, leg)
}
