package bot

import (
	"fmt"
	"strconv"
	"time"

	"settlement/application"

	"github.com/bwmarrin/discordgo"
)

type interactionScope struct {
	guildID   int64
	channelID int64
	actorID   int64
}

// scopeOf extracts the guild, channel and actor of a guild interaction
func scopeOf(i *discordgo.InteractionCreate) (interactionScope, error) {
	var scope interactionScope
	if i.GuildID == "" {
		return scope, fmt.Errorf("interaction %s is not from a guild", i.ID)
	}

	var user *discordgo.User
	switch {
	case i.Member != nil && i.Member.User != nil:
		user = i.Member.User
	case i.User != nil:
		user = i.User
	default:
		return scope, fmt.Errorf("interaction %s has no user", i.ID)
	}

	var err error
	if scope.guildID, err = strconv.ParseInt(i.GuildID, 10, 64); err != nil {
		return scope, fmt.Errorf("failed to parse guild ID %s: %w", i.GuildID, err)
	}
	if scope.channelID, err = strconv.ParseInt(i.ChannelID, 10, 64); err != nil {
		return scope, fmt.Errorf("failed to parse channel ID %s: %w", i.ChannelID, err)
	}
	if scope.actorID, err = strconv.ParseInt(user.ID, 10, 64); err != nil {
		return scope, fmt.Errorf("failed to parse user ID %s: %w", user.ID, err)
	}
	return scope, nil
}

// receivedAt reads the creation time out of a snowflake
func receivedAt(id string) time.Time {
	if ts, err := discordgo.SnowflakeTimestamp(id); err == nil {
		return ts
	}
	return time.Now()
}

// commandIntent translates a slash command. Option values are flattened to strings.
func commandIntent(i *discordgo.InteractionCreate) (application.Intent, error) {
	scope, err := scopeOf(i)
	if err != nil {
		return application.Intent{}, err
	}

	data := i.ApplicationCommandData()
	options := make(map[string]string, len(data.Options))
	flattenOptions(data.Options, options)

	return application.Intent{
		ID:        i.ID,
		Kind:      application.IntentKindCommand,
		GuildID:   scope.guildID,
		ChannelID: scope.channelID,
		ActorID:   scope.actorID,
		Name:      data.Name,
		Options:   options,
		Received:  receivedAt(i.ID),
	}, nil
}

func flattenOptions(opts []*discordgo.ApplicationCommandInteractionDataOption, into map[string]string) {
	for _, opt := range opts {
		switch opt.Type {
		case discordgo.ApplicationCommandOptionSubCommand, discordgo.ApplicationCommandOptionSubCommandGroup:
			flattenOptions(opt.Options, into)
		case discordgo.ApplicationCommandOptionInteger:
			into[opt.Name] = strconv.FormatInt(opt.IntValue(), 10)
		case discordgo.ApplicationCommandOptionNumber:
			into[opt.Name] = strconv.FormatFloat(opt.FloatValue(), 'f', -1, 64)
		case discordgo.ApplicationCommandOptionBoolean:
			into[opt.Name] = strconv.FormatBool(opt.BoolValue())
		default:
			// Strings and snowflakes of users, channels and roles
			into[opt.Name] = fmt.Sprint(opt.Value)
		}
	}
}

// componentIntent translates a button press or select menu choice
func componentIntent(i *discordgo.InteractionCreate) (application.Intent, error) {
	scope, err := scopeOf(i)
	if err != nil {
		return application.Intent{}, err
	}

	data := i.MessageComponentData()
	kind := application.IntentKindSelect
	if data.ComponentType == discordgo.ButtonComponent {
		kind = application.IntentKindButton
	}

	return application.Intent{
		ID:        i.ID,
		Kind:      kind,
		GuildID:   scope.guildID,
		ChannelID: scope.channelID,
		ActorID:   scope.actorID,
		Name:      data.CustomID,
		Values:    data.Values,
		Received:  receivedAt(i.ID),
	}, nil
}

// messageIntent translates a plain channel message into free text
func messageIntent(m *discordgo.MessageCreate) (application.Intent, error) {
	guildID, err := strconv.ParseInt(m.GuildID, 10, 64)
	if err != nil {
		return application.Intent{}, fmt.Errorf("failed to parse guild ID %s: %w", m.GuildID, err)
	}
	channelID, err := strconv.ParseInt(m.ChannelID, 10, 64)
	if err != nil {
		return application.Intent{}, fmt.Errorf("failed to parse channel ID %s: %w", m.ChannelID, err)
	}
	actorID, err := strconv.ParseInt(m.Author.ID, 10, 64)
	if err != nil {
		return application.Intent{}, fmt.Errorf("failed to parse user ID %s: %w", m.Author.ID, err)
	}

	received := m.Timestamp
	if received.IsZero() {
		received = time.Now()
	}

	return application.Intent{
		ID:        "message:" + m.ID,
		Kind:      application.IntentKindFreeText,
		GuildID:   guildID,
		ChannelID: channelID,
		ActorID:   actorID,
		Text:      m.Content,
		Received:  received,
	}, nil
}
