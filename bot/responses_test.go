package bot

import (
	"testing"

	"settlement/application"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultComponents_ConfirmPrompt(t *testing.T) {
	result := &application.Result{
		Message: "📮 Send **1,000**?",
		Prompt: &application.Prompt{
			Kind: application.PromptKindConfirm,
			Buttons: []application.Button{
				{CustomID: application.ButtonConfirm, Label: "Send"},
				{CustomID: application.ButtonCancel, Label: "Cancel", Danger: true},
			},
		},
	}

	components := resultComponents(result)
	require.Len(t, components, 1)

	row, ok := components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	require.Len(t, row.Components, 2)

	confirm := row.Components[0].(discordgo.Button)
	assert.Equal(t, application.ButtonConfirm, confirm.CustomID)
	assert.Equal(t, discordgo.PrimaryButton, confirm.Style)

	cancel := row.Components[1].(discordgo.Button)
	assert.Equal(t, application.ButtonCancel, cancel.CustomID)
	assert.Equal(t, discordgo.DangerButton, cancel.Style)
}

func TestResultComponents_ClearsWithoutButtons(t *testing.T) {
	tests := []struct {
		name   string
		result *application.Result
	}{
		{name: "nil result"},
		{name: "plain message", result: &application.Result{Message: "done"}},
		{name: "free text prompt", result: &application.Result{
			Message: "How much?",
			Prompt:  &application.Prompt{Kind: application.PromptKindFreeText},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			components := resultComponents(tt.result)
			assert.NotNil(t, components)
			assert.Empty(t, components)
		})
	}
}

func TestMessageSend(t *testing.T) {
	ref := &discordgo.MessageReference{MessageID: "555", ChannelID: testChannel}

	send := messageSend(&application.Result{}, ref)
	assert.Equal(t, emptyResultContent, send.Content)
	assert.Same(t, ref, send.Reference)

	send = messageSend(&application.Result{Message: "🏦 Deposit #9 of **2,500**"}, ref)
	assert.Equal(t, "🏦 Deposit #9 of **2,500**", send.Content)
}

func TestSlashCommands_CoverEngineCommands(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range slashCommands() {
		names[cmd.Name] = true
	}

	for _, name := range []string{
		application.CommandBet,
		application.CommandResolve,
		application.CommandBalance,
		application.CommandHistory,
		application.CommandWithdraw,
		application.CommandMove,
		application.CommandPay,
		application.CommandTransfer,
		application.CommandCancelTransfer,
		application.CommandTransfers,
		application.CommandRounds,
	} {
		assert.True(t, names[name], "missing slash command %s", name)
	}
}
