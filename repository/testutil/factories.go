package testutil

import (
	"fmt"
	"time"

	"settlement/domain/entities"

	"github.com/google/uuid"
)

// CreateTestMutation creates a cash mutation with a unique reference
func CreateTestMutation(discordID, delta int64) entities.LedgerMutation {
	return entities.LedgerMutation{
		DiscordID:       discordID,
		Instrument:      entities.InstrumentCash,
		Delta:           delta,
		TransactionType: entities.TransactionTypeAdjustment,
		Memo:            "test",
		Reference:       fmt.Sprintf("test:%s", uuid.NewString()),
		Metadata: map[string]any{
			"test": true,
		},
	}
}

// CreateTestMutationOn creates a mutation against a specific instrument
func CreateTestMutationOn(discordID int64, instrument entities.Instrument, delta int64) entities.LedgerMutation {
	mutation := CreateTestMutation(discordID, delta)
	mutation.Instrument = instrument
	return mutation
}

// CreateTestWager creates a roulette-style wager for a session
func CreateTestWager(sessionID, discordID, amount int64, selection string) *entities.Wager {
	return &entities.Wager{
		SessionID:  sessionID,
		DiscordID:  discordID,
		Amount:     amount,
		Instrument: entities.InstrumentCash,
		Selection:  selection,
	}
}

// CreateTestDeferredTransfer creates a pending deposit maturing at releaseAt
func CreateTestDeferredTransfer(senderID, amount int64, releaseAt time.Time) *entities.DeferredTransfer {
	return &entities.DeferredTransfer{
		Reference:          uuid.New(),
		Kind:               entities.TransferKindDeposit,
		SenderID:           senderID,
		SenderInstrument:   entities.InstrumentCash,
		ReceiverID:         senderID,
		ReceiverInstrument: entities.InstrumentBank,
		Amount:             amount,
		Payout:             amount,
		ReleaseAt:          releaseAt,
		Status:             entities.TransferStatusPending,
	}
}

// CreateTestPostalTransfer creates a pending postal transfer with a fee
func CreateTestPostalTransfer(senderID, receiverID, amount, fee int64, releaseAt time.Time) *entities.DeferredTransfer {
	transfer := CreateTestDeferredTransfer(senderID, amount, releaseAt)
	transfer.Kind = entities.TransferKindPostal
	transfer.ReceiverID = receiverID
	transfer.ReceiverInstrument = entities.InstrumentCash
	transfer.Fee = fee
	return transfer
}
