// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/venturehq/venture/pkg/channels/gochannel"
	"github.com/venturehq/venture/pkg/channels/kafka"
)

// NewChannel creates the raw watermill publisher/subscriber pair for the
// given provider. "kafka" requires KAFKA_BROKERS; "gochannel" is in-memory
// and only useful for single-process deployments.
func NewChannel(provider, serviceName string, logger *slog.Logger) (message.Publisher, message.Subscriber) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(wmLogger, serviceName)
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return pub, sub
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(wmLogger)
		if err != nil {
			panic(fmt.Errorf("failed to create GoChannel pub/sub: %w", err))
		}

		return pub, sub
	default:
		panic("Unsupported channel provider: " + provider)
	}
}
