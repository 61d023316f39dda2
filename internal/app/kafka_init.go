package app

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
)

// initKafkaProducer инициализирует Kafka producer, если список брокеров не пуст.
// Возвращает nil, nil для пустого списка.
func initKafkaProducer(brokers string, logger *log.Entry) (*kafka.Producer, error) {
	return initKafkaProducerWithClientID(brokers, "", logger)
}

func initKafkaProducerWithClientID(brokers, clientID string, logger *log.Entry) (*kafka.Producer, error) {
	brokerList := splitBrokers(brokers)
	if len(brokerList) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokerList, clientID)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer")
		return nil, err
	}

	logger.WithField("brokers", brokerList).Info("kafka producer initialized")
	return producer, nil
}

func splitBrokers(brokers string) []string {
	var out []string
	for _, broker := range strings.Split(brokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			out = append(out, broker)
		}
	}
	return out
}

// outboxPublishers выбирает publisher для outbox worker: Kafka с DLQ или лог.
func outboxPublishers(producer *kafka.Producer, topic string, logger *log.Entry) (domain.OutboxPublisher, domain.OutboxPublisher) {
	if producer == nil {
		logger.Info("kafka is not configured, outbox events are written to log")
		return outbox.NewLogPublisher(logger.WithField("component", "outbox-log-publisher")), nil
	}
	if topic == "" {
		topic = kafka.TopicOrderEvents
	}
	return kafka.NewOutboxPublisher(producer, topic), kafka.NewDLQPublisher(producer, topic)
}

// closeKafka закрывает Kafka producer, если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
