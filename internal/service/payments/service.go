package payments

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/metrics"
	"github.com/vladislavdragonenkov/shopcore/internal/service/dispatch"
)

// ConfirmationQueue ставит задачу подтверждения платежа в очередь диспетчера.
type ConfirmationQueue interface {
	Enqueue(job dispatch.Job) error
}

// Service управляет платежами: синхронная инициация через шлюз,
// запросы статуса и возврат средств с каскадом на заказ и склад.
type Service struct {
	payments  domain.PaymentRepository
	orders    domain.OrderRepository
	inventory domain.InventoryService
	gateway   domain.PaymentGateway
	queue     ConfirmationQueue
	outbox    domain.OutboxRepository
	timeline  domain.TimelineRepository
	logger    *log.Entry
	metrics   *metrics.CommerceMetrics
}

// NewService создаёт платёжный сервис. metrics может быть nil (тесты).
func NewService(
	payments domain.PaymentRepository,
	orders domain.OrderRepository,
	inventory domain.InventoryService,
	gateway domain.PaymentGateway,
	queue ConfirmationQueue,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	m *metrics.CommerceMetrics,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "payments")
	}
	return &Service{
		payments:  payments,
		orders:    orders,
		inventory: inventory,
		gateway:   gateway,
		queue:     queue,
		outbox:    outbox,
		timeline:  timeline,
		logger:    logger,
		metrics:   m,
	}
}

// Initiate синхронно инициирует платёж по заказу и ставит задачу
// подтверждения в очередь. Заказ допускает единственную платёжную запись:
// повторная инициация после отказа переиспользует её с новым transaction id.
// Данные карты передаются шлюзу и в задачу, но никогда не сохраняются.
func (s *Service) Initiate(customerID, orderID string, method domain.PaymentMethod, card *domain.CardDetails) (domain.Payment, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Payment{}, err
	}
	if order.CustomerID != customerID {
		return domain.Payment{}, domain.ErrUnauthorized
	}
	if order.PaymentStatus == domain.OrderPaymentCompleted {
		return domain.Payment{}, domain.ErrAlreadyPaid
	}
	if order.Status == domain.OrderStatusCancelled {
		return domain.Payment{}, domain.ErrInvalidOrderTransition
	}

	initiation, err := s.gateway.Initiate(order.AmountMinor, method, card)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("gateway rejected initiation")
		return domain.Payment{}, err
	}

	payment, err := s.upsertPayment(order, method, initiation)
	if err != nil {
		return domain.Payment{}, err
	}

	job := dispatch.Job{
		PaymentID: payment.ID,
		OrderID:   order.ID,
		Method:    method,
	}
	if card != nil {
		job.CardNumber = card.Number
	}
	if err := s.queue.Enqueue(job); err != nil {
		// Очередь заполнена: платёж остаётся processing, повторную
		// постановку сделает sweeper.
		s.logger.WithError(err).WithField("payment_id", payment.ID).Warn("failed to enqueue confirmation job")
	}

	s.logger.WithFields(log.Fields{
		"payment_id":     payment.ID,
		"order_id":       order.ID,
		"method":         method,
		"transaction_id": payment.TransactionID,
	}).Info("payment initiated")

	return payment, nil
}

// upsertPayment создаёт платёжную запись заказа или переиспользует
// существующую при повторной инициации.
func (s *Service) upsertPayment(order domain.Order, method domain.PaymentMethod, initiation domain.GatewayInitiation) (domain.Payment, error) {
	now := time.Now().UTC()

	existing, err := s.payments.GetByOrder(order.ID)
	switch {
	case err == nil:
		if existing.Status == domain.PaymentStatusCompleted || existing.Status == domain.PaymentStatusRefunded {
			return domain.Payment{}, domain.ErrAlreadyPaid
		}
		prevVersion := existing.Version
		existing.Method = method
		existing.TransactionID = initiation.TransactionID
		existing.Status = initiation.Status
		existing.FailureReason = ""
		existing.UpdatedAt = now
		if err := s.payments.Save(existing); err != nil {
			return domain.Payment{}, err
		}
		existing.Version = prevVersion + 1
		return existing, nil

	case errors.Is(err, domain.ErrPaymentNotFound):
		payment := domain.Payment{
			ID:            uuid.NewString(),
			OrderID:       order.ID,
			AmountMinor:   order.AmountMinor,
			Currency:      order.Currency,
			Method:        method,
			TransactionID: initiation.TransactionID,
			Status:        initiation.Status,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.payments.Create(payment); err != nil {
			return domain.Payment{}, err
		}
		return payment, nil

	default:
		return domain.Payment{}, err
	}
}

// StatusByTransaction возвращает платёж по transaction id шлюза.
func (s *Service) StatusByTransaction(customerID, transactionID string) (domain.Payment, error) {
	payment, err := s.payments.GetByTransaction(transactionID)
	if err != nil {
		return domain.Payment{}, err
	}
	if err := s.checkOwnership(customerID, payment.OrderID); err != nil {
		return domain.Payment{}, err
	}
	return payment, nil
}

// ByOrder возвращает платёж заказа.
func (s *Service) ByOrder(customerID, orderID string) (domain.Payment, error) {
	if err := s.checkOwnership(customerID, orderID); err != nil {
		return domain.Payment{}, err
	}
	return s.payments.GetByOrder(orderID)
}

func (s *Service) checkOwnership(customerID, orderID string) error {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return err
	}
	if order.CustomerID != customerID {
		return domain.ErrUnauthorized
	}
	return nil
}

// Refund возвращает средства по завершённому платежу. При отказе шлюза
// состояние не меняется; при успехе платёж становится refunded, заказ
// отменяется (если ещё не терминален), остатки возвращаются ровно один раз.
func (s *Service) Refund(paymentID string, amountMinor int64, reason string) (domain.Payment, error) {
	payment, err := s.payments.Get(paymentID)
	if err != nil {
		return domain.Payment{}, err
	}
	if payment.Status != domain.PaymentStatusCompleted {
		return domain.Payment{}, domain.ErrRefundNotAllowed
	}
	if amountMinor <= 0 {
		amountMinor = payment.AmountMinor
	}
	if amountMinor > payment.AmountMinor {
		return domain.Payment{}, domain.ErrRefundAmountExceeds
	}

	refund, err := s.gateway.Refund(payment.TransactionID, amountMinor)
	if err != nil {
		s.metrics.RecordRefundFailed()
		s.logger.WithError(err).WithField("payment_id", payment.ID).Warn("gateway refund failed")
		return domain.Payment{}, err
	}

	prevVersion := payment.Version
	payment.Status = domain.PaymentStatusRefunded
	payment.RefundTransactionID = refund.RefundTransactionID
	payment.UpdatedAt = time.Now().UTC()
	if err := s.payments.Save(payment); err != nil {
		s.logger.WithError(err).WithField("payment_id", payment.ID).Error("failed to persist refunded payment")
		return domain.Payment{}, err
	}
	payment.Version = prevVersion + 1

	s.cascadeRefund(&payment)
	s.emitRefunded(&payment, amountMinor, reason)
	s.metrics.RecordRefundCompleted()

	s.logger.WithFields(log.Fields{
		"payment_id":            payment.ID,
		"order_id":              payment.OrderID,
		"refund_transaction_id": payment.RefundTransactionID,
		"amount_minor":          amountMinor,
	}).Info("payment refunded")

	return payment, nil
}

// cascadeRefund отражает возврат на заказе: payment_status=refunded,
// отмена заказа и возврат остатков, если терминальный переход выигран здесь.
func (s *Service) cascadeRefund(payment *domain.Payment) {
	const maxRetries = 3
	const baseDelay = 10 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		order, err := s.orders.Get(payment.OrderID)
		if err != nil {
			s.logger.WithError(err).WithField("order_id", payment.OrderID).Warn("order not found for refund cascade")
			return
		}

		wasCancelled := order.Status == domain.OrderStatusCancelled
		order.PaymentStatus = domain.OrderPaymentRefunded
		if order.CanTransitionTo(domain.OrderStatusCancelled) {
			order.Status = domain.OrderStatusCancelled
		}
		order.UpdatedAt = time.Now().UTC()

		if err := s.orders.Save(order); err != nil {
			if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
				time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
				continue
			}
			s.logger.WithError(err).WithField("order_id", order.ID).Error("failed to persist refund cascade")
			return
		}

		// Отменённый ранее заказ уже вернул остатки.
		if !wasCancelled && order.Status == domain.OrderStatusCancelled {
			if err := s.inventory.Release(order.ID, order.ReservationLines()); err != nil {
				s.logger.WithError(err).WithField("order_id", order.ID).Error("release after refund failed")
			}
		}
		return
	}
}

func (s *Service) emitRefunded(payment *domain.Payment, amountMinor int64, reason string) {
	payload := map[string]interface{}{
		"payment_id":            payment.ID,
		"order_id":              payment.OrderID,
		"refund_transaction_id": payment.RefundTransactionID,
		"amount_minor":          amountMinor,
		"ts":                    payment.UpdatedAt.Format(time.RFC3339Nano),
	}
	if reason != "" {
		payload["reason"] = reason
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).WithField("payment_id", payment.ID).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "payment",
		AggregateID:   payment.ID,
		EventType:     "payment.refunded",
		Payload:       data,
	}
	if _, err := s.outbox.Enqueue(msg); err != nil {
		s.logger.WithError(err).WithField("payment_id", payment.ID).Error("enqueue event failed")
	}

	if s.timeline != nil {
		event := domain.TimelineEvent{
			OrderID:  payment.OrderID,
			Type:     "payment.refunded",
			Reason:   reason,
			Occurred: payment.UpdatedAt,
		}
		if err := s.timeline.Append(event); err != nil {
			s.logger.WithError(err).WithField("payment_id", payment.ID).Warn("append timeline event failed")
		}
	}
}
