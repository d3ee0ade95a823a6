// Package kafka provides a Kafka-backed event bus for deployments that ship
// execution events to a broker.
package kafka

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/genstack/genstack/pkg/eventbus"
)

const defaultConsumerGroup = "cg-genstack-event-bus"

// NewEventBus creates an event bus backed by the given Kafka brokers
// (comma-separated).
func NewEventBus(brokers, consumerGroup string, logger *slog.Logger) (*eventbus.WatermillEventBus, error) {
	brokerList := strings.Split(brokers, ",")
	if len(brokerList) == 0 || brokerList[0] == "" {
		return nil, fmt.Errorf("no Kafka brokers configured")
	}

	if consumerGroup == "" {
		consumerGroup = defaultConsumerGroup
	}

	wmLogger := watermill.NewSlogLogger(logger)

	publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   brokerList,
		Marshaler: kafka.DefaultMarshaler{},
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
	}

	saramaConfig := kafka.DefaultSaramaSubscriberConfig()
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	subscriber, err := kafka.NewSubscriber(kafka.SubscriberConfig{
		Brokers:               brokerList,
		Unmarshaler:           kafka.DefaultMarshaler{},
		OverwriteSaramaConfig: saramaConfig,
		ConsumerGroup:         consumerGroup,
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka subscriber: %w", err)
	}

	return eventbus.NewWatermillEventBus(publisher, subscriber, logger), nil
}
