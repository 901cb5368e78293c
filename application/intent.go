package application

import (
	"strconv"
	"time"
)

// IntentKind is the kind of user action that produced an intent
type IntentKind string

const (
	IntentKindCommand  IntentKind = "command"
	IntentKindButton   IntentKind = "button"
	IntentKindSelect   IntentKind = "select"
	IntentKindFreeText IntentKind = "free_text"
)

// Intent is one inbound user action, independent of the chat platform.
// ID is the platform's event ID and doubles as the idempotency key.
type Intent struct {
	ID        string            `json:"id"`
	Kind      IntentKind        `json:"kind"`
	GuildID   int64             `json:"guild_id"`
	ChannelID int64             `json:"channel_id"`
	ActorID   int64             `json:"actor_id"`
	Name      string            `json:"name"`              // Command name or component custom ID
	Options   map[string]string `json:"options,omitempty"` // Command options by name
	Values    []string          `json:"values,omitempty"`  // Selected values of a select menu
	Text      string            `json:"text,omitempty"`    // Free text reply
	Received  time.Time         `json:"received"`
}

// Option returns a command option or def when it is missing
func (i Intent) Option(name, def string) string {
	if v, ok := i.Options[name]; ok && v != "" {
		return v
	}
	return def
}

// Int64Option parses an integer option. The bool is false when it is missing.
func (i Intent) Int64Option(name string) (int64, bool, error) {
	v, ok := i.Options[name]
	if !ok || v == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, true, err
	}
	return n, true, nil
}

// CollectorKey identifies the pending prompt of one actor at one table
type CollectorKey struct {
	GuildID   int64
	ChannelID int64
	ActorID   int64
}

// Key returns the collector key of the intent
func (i Intent) Key() CollectorKey {
	return CollectorKey{GuildID: i.GuildID, ChannelID: i.ChannelID, ActorID: i.ActorID}
}

// PromptKind says how the adapter should ask for the follow-up
type PromptKind string

const (
	PromptKindConfirm  PromptKind = "confirm"
	PromptKindFreeText PromptKind = "free_text"
)

// Button is one choice of a confirm prompt
type Button struct {
	CustomID string
	Label    string
	Danger   bool
}

// Prompt asks the actor for one more intent
type Prompt struct {
	Kind    PromptKind
	Text    string
	Buttons []Button
	Expires time.Time
}

// Result is what the adapter renders back to the actor
type Result struct {
	Message   string
	Ephemeral bool
	Prompt    *Prompt
}

// Button custom IDs used by prompts
const (
	ButtonConfirm = "settlement_confirm"
	ButtonCancel  = "settlement_cancel"
)
