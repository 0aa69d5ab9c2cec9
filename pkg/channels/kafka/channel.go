// Package kafka builds the Kafka-backed watermill channel used by
// multi-process deployments. Brokers come from the KAFKA_BROKERS environment
// variable; each service consumes in its own consumer group so API, worker
// and scheduler instances scale independently.
package kafka

import (
	"errors"
	"os"
	"strings"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
)

var ErrNoBrokers = errors.New("KAFKA_BROKERS environment variable is not set or empty")

// CreateChannel returns a Kafka publisher/subscriber pair for the service.
// Subscribers start from the oldest offset so a freshly deployed worker
// drains jobs that were dispatched while nothing consumed the queue.
func CreateChannel(logger watermill.LoggerAdapter, serviceName string) (*kafka.Publisher, *kafka.Subscriber, error) {
	brokers := brokersFromEnv()
	if len(brokers) == 0 {
		return nil, nil, ErrNoBrokers
	}

	subscriberConfig := kafka.DefaultSaramaSubscriberConfig()
	subscriberConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	subscriber, err := kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:               brokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: subscriberConfig,
			ConsumerGroup:         "cg-" + serviceName,
			OTELEnabled:           true,
		},
		logger,
	)
	if err != nil {
		return nil, nil, err
	}

	publisherConfig := sarama.NewConfig()
	publisherConfig.Producer.Return.Successes = true

	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: publisherConfig,
			OTELEnabled:           true,
		},
		logger,
	)
	if err != nil {
		return nil, nil, err
	}

	return publisher, subscriber, nil
}

func brokersFromEnv() []string {
	raw := strings.Split(os.Getenv("KAFKA_BROKERS"), ",")

	brokers := make([]string, 0, len(raw))

	for _, b := range raw {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	return brokers
}
