package app

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/messaging/kafka"
)

// initKafkaProducer подключает продюсер при заданных брокерах.
// Kafka опциональна: пустой список брокеров и сбой подключения оба дают
// nil-продюсер, сервис продолжает работу без публикации в брокер.
func initKafkaProducer(brokers string, logger *log.Entry) (*kafka.Producer, error) {
	if brokers == "" {
		return nil, nil
	}

	brokerList := strings.Split(brokers, ",")
	producer, err := kafka.NewProducer(brokerList)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokerList).Info("kafka producer initialized")
	return producer, nil
}

// selectPublisher выбирает, куда outbox-воркер доставляет события:
// в Kafka при живом продюсере, иначе в лог.
func selectPublisher(producer *kafka.Producer, logger *log.Entry) domain.OutboxPublisher {
	if producer != nil {
		return kafka.NewOutboxPublisher(producer)
	}
	logger.Info("kafka is not configured, outbox events will be logged only")
	return kafka.NewLogPublisher(logger)
}

// closeKafka закрывает продюсер, если он был создан.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}
