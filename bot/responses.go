package bot

import (
	"fmt"

	"settlement/application"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

const emptyResultContent = "✅ Done."

// deferResponse acknowledges a slash command before the engine runs
func deferResponse(s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool) error {
	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}

	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: flags,
		},
	})
}

// deferUpdate acknowledges a component interaction; the result replaces the message
func deferUpdate(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
}

// respondWithError sends an error message as an interaction response
func respondWithError(s *discordgo.Session, i *discordgo.InteractionCreate, message string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("❌ %s", message),
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Errorf("Error sending error response: %v", err)
	}
}

// editResponse fills the deferred response with the result. A private result
// after a public acknowledgement moves to an ephemeral follow-up.
func editResponse(s *discordgo.Session, i *discordgo.InteractionCreate, result *application.Result, deferredEphemeral bool) error {
	content := resultContent(result)
	components := resultComponents(result)

	if result != nil && result.Ephemeral && !deferredEphemeral {
		if err := s.InteractionResponseDelete(i.Interaction); err != nil {
			log.WithError(err).Warn("Failed to delete public placeholder")
		}
		_, err := s.FollowupMessageCreate(i.Interaction, false, &discordgo.WebhookParams{
			Content:    content,
			Components: components,
			Flags:      discordgo.MessageFlagsEphemeral,
		})
		if err != nil {
			return fmt.Errorf("failed to send ephemeral follow-up: %w", err)
		}
		return nil
	}

	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content:    &content,
		Components: &components,
	}); err != nil {
		return fmt.Errorf("failed to edit interaction response: %w", err)
	}
	return nil
}

func resultContent(result *application.Result) string {
	if result == nil || result.Message == "" {
		return emptyResultContent
	}
	return result.Message
}

// resultComponents renders the buttons of a confirm prompt. An empty slice
// clears the buttons of the message being replaced.
func resultComponents(result *application.Result) []discordgo.MessageComponent {
	if result == nil || result.Prompt == nil || result.Prompt.Kind != application.PromptKindConfirm || len(result.Prompt.Buttons) == 0 {
		return []discordgo.MessageComponent{}
	}

	buttons := make([]discordgo.MessageComponent, 0, len(result.Prompt.Buttons))
	for _, b := range result.Prompt.Buttons {
		style := discordgo.PrimaryButton
		if b.Danger {
			style = discordgo.DangerButton
		}
		buttons = append(buttons, discordgo.Button{
			Label:    b.Label,
			Style:    style,
			CustomID: b.CustomID,
		})
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: buttons},
	}
}

// messageSend renders a result as a reply to a channel message
func messageSend(result *application.Result, reference *discordgo.MessageReference) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content:         resultContent(result),
		Components:      resultComponents(result),
		Reference:       reference,
		AllowedMentions: &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers}},
	}
}
