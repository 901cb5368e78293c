package observability

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"settlement/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider manages OpenTelemetry metrics for the settlement service
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	mu            sync.RWMutex

	// Metric instruments
	intentsCounter     metric.Int64Counter
	intentDurationHist metric.Float64Histogram
	ledgerCounter      metric.Int64Counter
	sessionsCounter    metric.Int64Counter
	sweepCounter       metric.Int64Counter
	duplicatesCounter  metric.Int64Counter
	eventsCounter      metric.Int64Counter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Println("Metrics provider already initialized")
		return nil
	}

	if !mp.config.OTelEnabled {
		log.Println("OpenTelemetry metrics disabled")
		mp.initialized = true
		return nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdkmetric.Exporter
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Println("Using console metric exporter")

	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.Printf("Using OTLP metric exporter: %s", mp.config.OTelOTLPEndpoint)

	case "none":
		log.Println("Metrics export disabled (exporter_type='none')")
		mp.initialized = true
		return nil

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				exporter,
				sdkmetric.WithInterval(time.Duration(mp.config.OTelExportIntervalMillis)*time.Millisecond),
			),
		),
	)
	otel.SetMeterProvider(mp.meterProvider)
	mp.meter = mp.meterProvider.Meter("settlement")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	log.Println("Metrics provider initialized successfully")
	return nil
}

// createInstruments creates all metric instruments
func (mp *MetricsProvider) createInstruments() error {
	var err error

	mp.intentsCounter, err = mp.meter.Int64Counter(
		IntentsHandledTotal,
		metric.WithDescription("Total number of intents handled"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create intents counter: %w", err)
	}

	mp.intentDurationHist, err = mp.meter.Float64Histogram(
		IntentDuration,
		metric.WithDescription("Duration of intent handling in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create intent duration histogram: %w", err)
	}

	mp.ledgerCounter, err = mp.meter.Int64Counter(
		LedgerMutationsTotal,
		metric.WithDescription("Total number of ledger mutations by transaction type and outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create ledger mutations counter: %w", err)
	}

	mp.sessionsCounter, err = mp.meter.Int64Counter(
		SessionsSettledTotal,
		metric.WithDescription("Total number of betting sessions settled"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create sessions counter: %w", err)
	}

	mp.sweepCounter, err = mp.meter.Int64Counter(
		SweepItemsTotal,
		metric.WithDescription("Total number of deferred transfers handled by sweeps"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create sweep counter: %w", err)
	}

	mp.duplicatesCounter, err = mp.meter.Int64Counter(
		IdempotencyDuplicatesTotal,
		metric.WithDescription("Total number of duplicate events dropped"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create duplicates counter: %w", err)
	}

	mp.eventsCounter, err = mp.meter.Int64Counter(
		EventsPublishedTotal,
		metric.WithDescription("Total number of domain events published"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create events counter: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// RecordIntent records a handled intent with its outcome and duration
func (mp *MetricsProvider) RecordIntent(kind, outcome string, duration time.Duration) {
	if !mp.isEnabled() {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(LabelType, kind),
		attribute.String(LabelOutcome, outcome),
	)
	mp.intentsCounter.Add(context.Background(), 1, attrs)
	mp.intentDurationHist.Record(context.Background(), duration.Seconds(), attrs)
}

// RecordLedgerMutation records a ledger mutation attempt
func (mp *MetricsProvider) RecordLedgerMutation(transactionType, outcome string) {
	if !mp.isEnabled() {
		return
	}

	mp.ledgerCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelType, transactionType),
			attribute.String(LabelOutcome, outcome),
		),
	)
}

// RecordSessionSettled records a settled betting session
func (mp *MetricsProvider) RecordSessionSettled(game string) {
	if !mp.isEnabled() {
		return
	}

	mp.sessionsCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelGame, game),
		),
	)
}

// RecordSweepItems records deferred transfers handled by a sweep
func (mp *MetricsProvider) RecordSweepItems(itemType string, count int) {
	if !mp.isEnabled() || count == 0 {
		return
	}

	mp.sweepCounter.Add(context.Background(), int64(count),
		metric.WithAttributes(
			attribute.String(LabelType, itemType),
		),
	)
}

// RecordDuplicate records a duplicate event caught by an idempotency tier
func (mp *MetricsProvider) RecordDuplicate(tier string) {
	if !mp.isEnabled() {
		return
	}

	mp.duplicatesCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelTier, tier),
		),
	)
}

// RecordEventPublished records a domain event handed to the bus
func (mp *MetricsProvider) RecordEventPublished(backend, eventType string) {
	if !mp.isEnabled() {
		return
	}

	mp.eventsCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelBackend, backend),
			attribute.String(LabelEventType, eventType),
		),
	)
}

// isEnabled checks if metrics are enabled and instruments exist
func (mp *MetricsProvider) isEnabled() bool {
	if mp == nil {
		return false
	}
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.config.OTelEnabled && mp.meter != nil
}

// Global metrics provider instance
var (
	globalMetrics *MetricsProvider
	metricsOnce   sync.Once
)

// InitializeGlobalMetrics initializes the global metrics provider
func InitializeGlobalMetrics(ctx context.Context, cfg *config.Config) error {
	var err error
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsProvider(cfg)
		err = globalMetrics.Initialize(ctx)
	})
	return err
}

// GetMetrics returns the global metrics provider. The nil provider records nothing.
func GetMetrics() *MetricsProvider {
	return globalMetrics
}

// ShutdownGlobalMetrics shuts down the global metrics provider
func ShutdownGlobalMetrics(ctx context.Context) error {
	if globalMetrics != nil {
		return globalMetrics.Shutdown(ctx)
	}
	return nil
}
