package bot

import (
	"context"
	"fmt"
	"strconv"

	"settlement/application"
	"settlement/domain/events"
	"settlement/infrastructure"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// LocalHandlerRegistrar registers in-process event handlers
type LocalHandlerRegistrar interface {
	RegisterLocalHandler(eventType events.EventType, handler infrastructure.LocalEventHandler)
}

// RegisterBotSubscriptions announces settled rounds in their channel and
// tells receivers when a deferred transfer arrives
func RegisterBotSubscriptions(registrar LocalHandlerRegistrar, bot *Bot) {
	registrar.RegisterLocalHandler(events.EventTypeSessionResolved, bot.handleSessionResolved)
	registrar.RegisterLocalHandler(events.EventTypeTransferReleased, bot.handleTransferReleased)
	log.Info("Bot event subscriptions registered successfully")
}

func (b *Bot) handleSessionResolved(ctx context.Context, event events.Event) error {
	resolved, ok := event.(events.SessionResolvedEvent)
	if !ok {
		return fmt.Errorf("received non-SessionResolvedEvent in session resolved handler")
	}

	message := application.RenderOutcome(resolved.GameType, resolved.SessionID, resolved.Outcome,
		resolved.Payouts, resolved.TotalStaked, resolved.TotalPaid)
	return b.send(ctx, strconv.FormatInt(resolved.ChannelID, 10), message)
}

func (b *Bot) handleTransferReleased(ctx context.Context, event events.Event) error {
	released, ok := event.(events.TransferReleasedEvent)
	if !ok {
		return fmt.Errorf("received non-TransferReleasedEvent in transfer released handler")
	}

	channel, err := b.session.UserChannelCreate(strconv.FormatInt(released.ReceiverID, 10), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to open DM with %d: %w", released.ReceiverID, err)
	}

	message := application.RenderReleased(released.Kind, released.TransferID, released.ReceiverID, released.Payout)
	return b.send(ctx, channel.ID, message)
}

// Notify posts a message for an actor in a channel
func (b *Bot) Notify(ctx context.Context, channelID, actorID int64, message string) error {
	return b.send(ctx, strconv.FormatInt(channelID, 10), fmt.Sprintf("<@%d> %s", actorID, message))
}

func (b *Bot) send(ctx context.Context, channelID, content string) error {
	ctx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()

	_, err := b.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:         content,
		AllowedMentions: &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers}},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to send message to channel %s: %w", channelID, err)
	}
	return nil
}
