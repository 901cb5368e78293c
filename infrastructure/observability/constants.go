package observability

// Metric name prefixes
const (
	MetricPrefix = "settlement"
)

// Metric names
const (
	// Intent metrics
	IntentsHandledTotal = MetricPrefix + ".intents.handled_total"
	IntentDuration      = MetricPrefix + ".intents.duration"

	// Ledger metrics
	LedgerMutationsTotal = MetricPrefix + ".ledger.mutations_total"

	// Session metrics
	SessionsSettledTotal = MetricPrefix + ".sessions.settled_total"

	// Sweep metrics
	SweepItemsTotal = MetricPrefix + ".sweep.items_total"

	// Idempotency metrics
	IdempotencyDuplicatesTotal = MetricPrefix + ".idempotency.duplicates_total"

	// Event bus metrics
	EventsPublishedTotal = MetricPrefix + ".events.published_total"
)

// Label keys
const (
	LabelType      = "type"
	LabelEventType = "event_type"
	LabelOutcome   = "outcome"
	LabelGame      = "game"
	LabelTier      = "tier"
	LabelBackend   = "backend"
)

// Outcome label values
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
)

// Sweep item types
const (
	SweepItemReleased  = "released"
	SweepItemResettled = "resettled"
	SweepItemFailed    = "failed"
)

// Idempotency tiers
const (
	TierRedis    = "redis"
	TierPostgres = "postgres"
)
