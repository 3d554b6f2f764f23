package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// OutboxPublisher публикует outbox-сообщения в Kafka, выбирая topic
// по типу агрегата: заказы и платежи уходят в разные топики.
type OutboxPublisher struct {
	producer *Producer
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer) domain.OutboxPublisher {
	return &OutboxPublisher{producer: producer}
}

func (p *OutboxPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	envelope := struct {
		ID            string          `json:"id"`
		AggregateType string          `json:"aggregate_type"`
		AggregateID   string          `json:"aggregate_id"`
		EventType     string          `json:"event_type"`
		Payload       json.RawMessage `json:"payload"`
		PublishedAt   time.Time       `json:"published_at"`
	}{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   time.Now().UTC(),
	}

	return p.producer.PublishEvent(TopicFor(event.AggregateType), key, envelope)
}

var _ domain.OutboxPublisher = (*OutboxPublisher)(nil)

// LogPublisher пишет события в лог вместо брокера. Используется, когда
// Kafka не сконфигурирована: уведомления не теряют ядро, а ядро — их.
type LogPublisher struct {
	logger *log.Entry
}

// NewLogPublisher создаёт logrus-паблишер.
func NewLogPublisher(logger *log.Entry) domain.OutboxPublisher {
	if logger == nil {
		logger = log.WithField("component", "log-publisher")
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(event domain.OutboxMessage) error {
	p.logger.WithFields(log.Fields{
		"outbox_id":      event.ID,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
		"event_type":     event.EventType,
		"payload":        string(event.Payload),
	}).Info("event published")
	return nil
}

var _ domain.OutboxPublisher = (*LogPublisher)(nil)
