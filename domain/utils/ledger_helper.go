package utils

import (
	"settlement/domain/entities"
	"settlement/domain/events"
	"settlement/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// PublishBalanceChange emits the balance change event of a landed ledger entry.
// Publishing failures are logged; the mutation itself already stands.
func PublishBalanceChange(eventPublisher interfaces.EventPublisher, entry *entities.LedgerEntry) {
	if entry == nil {
		return
	}

	event := events.BalanceChangeEvent{
		GuildID:         entry.GuildID,
		DiscordID:       entry.DiscordID,
		Instrument:      entry.Instrument,
		OldBalance:      entry.BalanceBefore,
		NewBalance:      entry.BalanceAfter,
		ChangeAmount:    entry.Delta,
		TransactionType: entry.TransactionType,
		Reference:       entry.ReferenceOrEmpty(),
	}
	log.WithFields(log.Fields{
		"discordID":       event.DiscordID,
		"guildID":         event.GuildID,
		"instrument":      event.Instrument,
		"oldBalance":      event.OldBalance,
		"newBalance":      event.NewBalance,
		"transactionType": event.TransactionType,
		"changeAmount":    event.ChangeAmount,
	}).Debug("Publishing BalanceChangeEvent")
	if err := eventPublisher.Publish(event); err != nil {
		log.WithError(err).Error("Failed to publish balance change event")
	}
}
