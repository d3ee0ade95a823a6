package cmd

import (
	"fmt"
	"log/slog"

	"github.com/genstack/genstack/pkg/eventbus"
	"github.com/genstack/genstack/pkg/eventbus/kafka"
)

// NewEventBus creates an event bus for the given provider. The in-process
// gochannel bus is the default; kafka requires a broker list.
func NewEventBus(provider, kafkaBrokers string, logger *slog.Logger) (eventbus.EventBus, error) {
	switch provider {
	case "", "gochannel":
		return eventbus.NewGoChannelEventBus(logger), nil
	case "kafka":
		return kafka.NewEventBus(kafkaBrokers, "", logger)
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
