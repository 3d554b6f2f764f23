package kafka

// Topics уведомлений магазина.
const (
	TopicOrderEvents   = "shop.order.events"
	TopicPaymentEvents = "shop.payment.events"
)

// Типы событий заказа.
const (
	EventOrderCreated    = "order.created"
	EventOrderCancelled  = "order.cancelled"
	EventOrderProcessing = "order.processing"
	EventOrderShipped    = "order.shipped"
	EventOrderDelivered  = "order.delivered"
)

// Типы событий платежа.
const (
	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
	EventPaymentRefunded  = "payment.refunded"
	EventPaymentEscalated = "payment.escalated"
)

// TopicFor возвращает topic для типа агрегата outbox-сообщения.
func TopicFor(aggregateType string) string {
	if aggregateType == "payment" {
		return TopicPaymentEvents
	}
	return TopicOrderEvents
}
