package cmd

import (
	"context"
	"fmt"
	"log"

	"settlement/config"
	"settlement/domain/interfaces"
	"settlement/infrastructure"
)

// eventBackend bundles the publisher with the connections it owns
type eventBackend struct {
	publisher  interfaces.EventPublisher
	natsClient *infrastructure.NATSClient
	close      func()
}

// newEventBackend connects the configured event backend
func newEventBackend(ctx context.Context, cfg *config.Config) (*eventBackend, error) {
	subjectMapper := infrastructure.NewEventSubjectMapper()

	switch cfg.EventBackend {
	case "nats":
		log.Printf("Connecting to NATS at %s...", cfg.NATSServers)
		client := infrastructure.NewNATSClient(cfg.NATSServers)
		if err := client.Connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		if err := infrastructure.EnsureDomainEventStream(client, subjectMapper); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to ensure domain event stream: %w", err)
		}
		log.Println("NATS connection established successfully")

		return &eventBackend{
			publisher:  infrastructure.NewNATSEventPublisher(client, subjectMapper),
			natsClient: client,
			close: func() {
				if err := client.Close(); err != nil {
					log.Printf("Error closing NATS client: %v", err)
				}
			},
		}, nil

	case "kafka":
		log.Printf("Connecting to Kafka brokers %v...", cfg.KafkaBrokers)
		publisher, err := infrastructure.NewKafkaEventPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, subjectMapper)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
		}
		log.Println("Kafka publisher initialized successfully")

		return &eventBackend{
			publisher: publisher,
			close: func() {
				if err := publisher.Close(); err != nil {
					log.Printf("Error closing Kafka publisher: %v", err)
				}
			},
		}, nil

	case "none", "":
		log.Println("Event backend disabled, events stay in-process")
		return &eventBackend{
			publisher: infrastructure.NewNoopEventPublisher(),
			close:     func() {},
		}, nil
	}

	return nil, fmt.Errorf("unknown event backend: %s", cfg.EventBackend)
}
