package bot

import (
	"context"
	"fmt"
	"time"

	"settlement/application"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Config holds bot configuration
type Config struct {
	Token   string
	GuildID string
	// Timeout bounds every Discord API call the bot makes outside an interaction
	Timeout time.Duration
}

// IntentEngine handles translated intents
type IntentEngine interface {
	Handle(ctx context.Context, intent application.Intent) *application.Result
	AwaitingReply(key application.CollectorKey) bool
}

// Bot translates Discord interactions into intents and renders their results.
// It holds no economy state of its own.
type Bot struct {
	config  Config
	session *discordgo.Session
	engine  IntentEngine
}

// New creates the bot, opens the gateway and registers slash commands
func New(config Config, engine IntentEngine) (*Bot, error) {
	dg, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	bot := &Bot{
		config:  config,
		session: dg,
		engine:  engine,
	}

	dg.AddHandler(bot.handleInteractions)
	dg.AddHandler(bot.handleMessageCreate)

	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("error opening connection: %w", err)
	}

	if err := bot.registerCommands(); err != nil {
		dg.Close()
		return nil, fmt.Errorf("error registering commands: %w", err)
	}

	return bot, nil
}

// Close gracefully shuts down the bot
func (b *Bot) Close() error {
	return b.session.Close()
}

// handleInteractions routes slash commands and component interactions to the engine
func (b *Bot) handleInteractions(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(s, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(s, i)
	}
}

func (b *Bot) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	intent, err := commandIntent(i)
	if err != nil {
		log.WithError(err).WithField("interactionID", i.ID).Warn("Failed to translate command")
		respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	ephemeral := ephemeralCommands[intent.Name]
	if err := deferResponse(s, i, ephemeral); err != nil {
		// Without an acknowledgement nobody would see the outcome
		log.WithError(err).WithFields(intentFields(intent)).Error("Failed to acknowledge command, dropping intent")
		return
	}

	result := b.engine.Handle(context.Background(), intent)
	if err := editResponse(s, i, result, ephemeral); err != nil {
		log.WithError(err).WithFields(intentFields(intent)).Error("Failed to deliver command result")
	}
}

func (b *Bot) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	intent, err := componentIntent(i)
	if err != nil {
		log.WithError(err).WithField("interactionID", i.ID).Warn("Failed to translate component interaction")
		respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	if err := deferUpdate(s, i); err != nil {
		log.WithError(err).WithFields(intentFields(intent)).Error("Failed to acknowledge component, dropping intent")
		return
	}

	// Prompts are ephemeral, so the edit replaces the prompt message in place
	result := b.engine.Handle(context.Background(), intent)
	if err := editResponse(s, i, result, true); err != nil {
		log.WithError(err).WithFields(intentFields(intent)).Error("Failed to deliver component result")
	}
}

// handleMessageCreate forwards a message as free text when it answers a pending prompt
func (b *Bot) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}
	if m.GuildID == "" {
		return
	}

	intent, err := messageIntent(m)
	if err != nil {
		log.WithError(err).WithField("messageID", m.ID).Debug("Ignoring untranslatable message")
		return
	}
	if !b.engine.AwaitingReply(intent.Key()) {
		return
	}

	result := b.engine.Handle(context.Background(), intent)
	if result == nil || result.Message == "" {
		return
	}

	if _, err := s.ChannelMessageSendComplex(m.ChannelID, messageSend(result, m.Reference())); err != nil {
		log.WithError(err).WithFields(intentFields(intent)).Error("Failed to reply to free text")
	}
}

func intentFields(intent application.Intent) log.Fields {
	return log.Fields{
		"intentID": intent.ID,
		"kind":     intent.Kind,
		"name":     intent.Name,
		"guildID":  intent.GuildID,
		"actorID":  intent.ActorID,
	}
}
