package orders

import (
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/metrics"
)

// Stats — агрегированная статистика заказов покупателя.
type Stats struct {
	TotalOrders int                        `json:"total_orders"`
	ByStatus    map[domain.OrderStatus]int `json:"by_status"`
	// TotalSpentMinor — сумма всех неотменённых заказов.
	TotalSpentMinor int64 `json:"total_spent_minor"`
}

// Service управляет жизненным циклом заказа после checkout: чтение,
// отмена с возвратом остатков, административные переходы статусов.
type Service struct {
	orders    domain.OrderRepository
	inventory domain.InventoryService
	outbox    domain.OutboxRepository
	timeline  domain.TimelineRepository
	logger    *log.Entry
	metrics   *metrics.CommerceMetrics
}

// NewService создаёт сервис жизненного цикла заказов. metrics может быть nil.
func NewService(
	orders domain.OrderRepository,
	inventory domain.InventoryService,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	m *metrics.CommerceMetrics,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "orders")
	}
	return &Service{
		orders:    orders,
		inventory: inventory,
		outbox:    outbox,
		timeline:  timeline,
		logger:    logger,
		metrics:   m,
	}
}

// Get возвращает заказ покупателя; чужой заказ — ErrUnauthorized.
func (s *Service) Get(customerID, orderID string) (domain.Order, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.CustomerID != customerID {
		return domain.Order{}, domain.ErrUnauthorized
	}
	return order, nil
}

// List возвращает заказы покупателя, новые первыми.
func (s *Service) List(customerID string, limit int) ([]domain.Order, error) {
	if customerID == "" {
		return nil, domain.ErrCustomerRequired
	}
	return s.orders.ListByCustomer(customerID, limit)
}

// History возвращает события жизненного цикла заказа.
func (s *Service) History(customerID, orderID string) ([]domain.TimelineEvent, error) {
	if _, err := s.Get(customerID, orderID); err != nil {
		return nil, err
	}
	return s.timeline.List(orderID)
}

// Stats считает количество заказов по статусам и сумму неотменённых заказов.
func (s *Service) Stats(customerID string) (Stats, error) {
	if customerID == "" {
		return Stats{}, domain.ErrCustomerRequired
	}
	orders, err := s.orders.ListByCustomer(customerID, 0)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{ByStatus: make(map[domain.OrderStatus]int)}
	for _, order := range orders {
		stats.TotalOrders++
		stats.ByStatus[order.Status]++
		if order.Status != domain.OrderStatusCancelled {
			stats.TotalSpentMinor += order.AmountMinor
		}
	}
	return stats, nil
}

// Cancel отменяет заказ покупателя. Остатки возвращаются ровно один раз:
// победитель терминального перехода освобождает склад, проигравший
// конкурентной гонки обнаруживает терминальный статус и выходит.
// Повторная отмена уже отменённого заказа идемпотентна.
func (s *Service) Cancel(customerID, orderID, reason string) (domain.Order, error) {
	order, err := s.Get(customerID, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	const maxRetries = 3
	const baseDelay = 10 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		if order.Status == domain.OrderStatusCancelled {
			return order, nil
		}
		if !order.CanTransitionTo(domain.OrderStatusCancelled) {
			return domain.Order{}, domain.ErrInvalidOrderTransition
		}

		prevVersion := order.Version
		order.Status = domain.OrderStatusCancelled
		if order.PaymentStatus != domain.OrderPaymentRefunded {
			order.PaymentStatus = domain.OrderPaymentFailed
		}
		order.UpdatedAt = time.Now().UTC()

		if err := s.orders.Save(order); err != nil {
			if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
				s.logger.WithFields(log.Fields{
					"order_id": order.ID,
					"attempt":  attempt + 1,
				}).Warn("version conflict detected, retrying")
				fresh, loadErr := s.orders.Get(order.ID)
				if loadErr != nil {
					return domain.Order{}, loadErr
				}
				order = fresh
				time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
				continue
			}
			return domain.Order{}, err
		}
		order.Version = prevVersion + 1

		// Победили переход — возвращаем остатки.
		if err := s.inventory.Release(order.ID, order.ReservationLines()); err != nil {
			s.logger.WithError(err).WithField("order_id", order.ID).Error("release after cancel failed")
		}

		s.emitEvent(&order, "order.cancelled", map[string]interface{}{
			"reason": reason,
		})
		s.logger.WithFields(log.Fields{
			"order_id": order.ID,
			"reason":   reason,
		}).Info("order cancelled")
		return order, nil
	}

	return domain.Order{}, domain.ErrVersionConflict
}

// Advance переводит заказ вперёд по жизненному циклу (административный
// путь): pending → processing → shipped → delivered. Отмена через Advance
// запрещена — она вернула бы заказ в терминал мимо возврата остатков,
// для этого есть Cancel. Недопустимый переход — ErrInvalidOrderTransition.
func (s *Service) Advance(orderID string, next domain.OrderStatus) (domain.Order, error) {
	switch next {
	case domain.OrderStatusProcessing, domain.OrderStatusShipped, domain.OrderStatusDelivered:
	default:
		return domain.Order{}, domain.ErrInvalidOrderTransition
	}

	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}

	const maxRetries = 3
	const baseDelay = 10 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		if !order.CanTransitionTo(next) {
			return domain.Order{}, domain.ErrInvalidOrderTransition
		}

		prevVersion := order.Version
		order.Status = next
		order.UpdatedAt = time.Now().UTC()

		if err := s.orders.Save(order); err != nil {
			if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
				fresh, loadErr := s.orders.Get(order.ID)
				if loadErr != nil {
					return domain.Order{}, loadErr
				}
				order = fresh
				time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
				continue
			}
			return domain.Order{}, err
		}
		order.Version = prevVersion + 1

		s.emitEvent(&order, "order."+string(next), nil)
		s.logger.WithFields(log.Fields{
			"order_id": order.ID,
			"status":   next,
		}).Info("order status advanced")
		return order, nil
	}

	return domain.Order{}, domain.ErrVersionConflict
}

func (s *Service) emitEvent(order *domain.Order, eventType string, extra map[string]interface{}) {
	payload := map[string]interface{}{
		"order_id":    order.ID,
		"customer_id": order.CustomerID,
		"status":      string(order.Status),
		"ts":          order.UpdatedAt.Format(time.RFC3339Nano),
	}
	var reason string
	for k, v := range extra {
		if v == nil || v == "" {
			continue
		}
		payload[k] = v
		if k == "reason" {
			reason, _ = v.(string)
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := s.outbox.Enqueue(msg); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("enqueue event failed")
	} else {
		s.metrics.RecordOutboxEvent()
	}

	if s.timeline != nil {
		event := domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     eventType,
			Reason:   reason,
			Occurred: order.UpdatedAt,
		}
		if err := s.timeline.Append(event); err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"event":    eventType,
			}).Warn("append timeline event failed")
		} else {
			s.metrics.RecordTimelineEvent()
		}
	}
}
