package application

import (
	"errors"
	"fmt"

	"settlement/domain/entities"
)

// UserError is an error with a message safe to show to the actor
type UserError struct {
	UserMessage string // Shown to the actor
	LogMessage  string // Internal message for logging
	Err         error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.LogMessage, e.Err)
	}
	return e.LogMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates an error for input the actor can fix
func NewUserError(userMessage, logMessage string) *UserError {
	return &UserError{UserMessage: userMessage, LogMessage: logMessage}
}

// genericFailure never claims whether money moved
const genericFailure = "Something went wrong. Your balance is safe to check with /balance before trying again."

// userMessage maps an error to what the actor sees. The bool is false for
// unexpected failures, which the caller logs.
func userMessage(err error) (string, bool) {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.UserMessage, true
	}

	var ve *entities.ValidationError
	if errors.As(err, &ve) {
		return capitalize(ve.Error()) + ".", true
	}

	switch {
	case errors.Is(err, entities.ErrInsufficientFunds):
		return "You don't have enough funds for that.", true
	case errors.Is(err, entities.ErrSessionLocked):
		return "Betting is closed for this round.", true
	case errors.Is(err, entities.ErrSessionNotFound):
		return "There is no active round at this table.", true
	case errors.Is(err, entities.ErrAlreadyJoined):
		return "You already have a bet in this round.", true
	case errors.Is(err, entities.ErrJoinRefunded):
		return "Your earlier bet did not go through and its stake was returned. Place the bet again.", true
	case errors.Is(err, entities.ErrAlreadyReleased):
		return "That transfer has already been delivered.", true
	case errors.Is(err, entities.ErrAlreadyProcessed):
		return "That was already handled.", true
	case errors.Is(err, entities.ErrTransferNotFound):
		return "No such transfer.", true
	case errors.Is(err, ErrNoPendingPrompt):
		return "This prompt has expired. Run the command again.", true
	}
	return genericFailure, false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
