package application

import "context"

// IdempotencyStore guards intents and sweep items against duplicate delivery
type IdempotencyStore interface {
	// Claim reports whether the caller is the first to present key
	Claim(ctx context.Context, key string) (bool, error)

	// Release drops a claim so the event can be processed again
	Release(ctx context.Context, key string) error

	// PurgeExpired deletes expired claims
	PurgeExpired(ctx context.Context) (int64, error)
}

// Notifier delivers messages that are not a direct reply to an intent, such
// as timed out prompts
type Notifier interface {
	Notify(ctx context.Context, channelID, actorID int64, message string) error
}

// Heartbeater records that a background worker completed a run
type Heartbeater interface {
	Heartbeat(worker string)
}
