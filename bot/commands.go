package bot

import (
	"fmt"

	"settlement/application"
	"settlement/domain/entities"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// ephemeralCommands answer only the actor
var ephemeralCommands = map[string]bool{
	application.CommandBalance:        true,
	application.CommandHistory:        true,
	application.CommandWithdraw:       true,
	application.CommandMove:           true,
	application.CommandTransfer:       true,
	application.CommandCancelTransfer: true,
	application.CommandTransfers:      true,
}

func gameChoices() []*discordgo.ApplicationCommandOptionChoice {
	games := []entities.GameType{entities.GameTypeRoulette, entities.GameTypeCrash, entities.GameTypeRaffle}
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(games))
	for _, g := range games {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: string(g), Value: string(g)})
	}
	return choices
}

func instrumentChoices() []*discordgo.ApplicationCommandOptionChoice {
	instruments := []entities.Instrument{
		entities.InstrumentCash,
		entities.InstrumentBank,
		entities.InstrumentDebit,
		entities.InstrumentCredit,
	}
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(instruments))
	for _, in := range instruments {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: string(in), Value: string(in)})
	}
	return choices
}

func transferKindChoices() []*discordgo.ApplicationCommandOptionChoice {
	kinds := []entities.TransferKind{
		entities.TransferKindDeposit,
		entities.TransferKindPostal,
		entities.TransferKindInvestment,
	}
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(kinds))
	for _, k := range kinds {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: string(k), Value: string(k)})
	}
	return choices
}

func amountOption(required bool) *discordgo.ApplicationCommandOption {
	minAmount := float64(1)
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        "amount",
		Description: "Amount in coins",
		Required:    required,
		MinValue:    &minAmount,
	}
}

// slashCommands describes every command the engine understands
func slashCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        application.CommandBet,
			Description: "Place a bet in the current round at this table",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "game",
					Description: "Game to bet on",
					Required:    true,
					Choices:     gameChoices(),
				},
				amountOption(true),
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "selection",
					Description: "What you bet on (red, 17, a cash-out multiplier...)",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "instrument",
					Description: "Where the stake comes from (defaults to cash)",
					Required:    false,
					Choices:     instrumentChoices(),
				},
			},
		},
		{
			Name:        application.CommandResolve,
			Description: "Close betting and resolve the current round at this table",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "game",
					Description: "Game whose round to resolve",
					Required:    true,
					Choices:     gameChoices(),
				},
			},
		},
		{
			Name:        application.CommandBalance,
			Description: "Check your cash, bank and credit",
		},
		{
			Name:        application.CommandHistory,
			Description: "Show your latest ledger entries",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "limit",
					Description: "How many entries to show",
					Required:    false,
				},
			},
		},
		{
			Name:        application.CommandWithdraw,
			Description: "Withdraw coins from your bank to cash",
			Options:     []*discordgo.ApplicationCommandOption{amountOption(true)},
		},
		{
			Name:        application.CommandMove,
			Description: "Move coins between your instruments",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "from",
					Description: "Instrument to take from",
					Required:    true,
					Choices:     instrumentChoices(),
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "to",
					Description: "Instrument to put into",
					Required:    true,
					Choices:     instrumentChoices(),
				},
				amountOption(true),
			},
		},
		{
			Name:        application.CommandPay,
			Description: "Pay another player in cash right away",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Who to pay",
					Required:    true,
				},
				amountOption(true),
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "What the payment is for",
					Required:    false,
				},
			},
		},
		{
			Name:        application.CommandTransfer,
			Description: "Schedule a deposit, postal transfer or investment",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "kind",
					Description: "Kind of transfer",
					Required:    true,
					Choices:     transferKindChoices(),
				},
				amountOption(false),
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Receiver of a postal transfer",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "Note for the receiver",
					Required:    false,
				},
			},
		},
		{
			Name:        application.CommandCancelTransfer,
			Description: "Cancel one of your pending transfers",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "id",
					Description: "Transfer number",
					Required:    true,
				},
			},
		},
		{
			Name:        application.CommandTransfers,
			Description: "List your pending transfers",
		},
		{
			Name:        application.CommandRounds,
			Description: "Show the latest rounds played in this channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "limit",
					Description: "How many rounds to show",
					Required:    false,
				},
			},
		},
	}
}

// registerCommands registers all slash commands with Discord
func (b *Bot) registerCommands() error {
	commands := slashCommands()

	registered, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, b.config.GuildID, commands)
	if err != nil {
		return fmt.Errorf("cannot register commands: %w", err)
	}

	log.WithFields(log.Fields{
		"count":   len(registered),
		"guildID": b.config.GuildID,
	}).Info("Registered slash commands")
	return nil
}
