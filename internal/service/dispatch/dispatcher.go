package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/metrics"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
)

// ErrQueueFull возвращается из Enqueue при заполненной очереди;
// застрявшие платежи доберёт sweeper.
var ErrQueueFull = errors.New("dispatch queue is full")

var dispatchQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "shop_dispatch_queue_depth",
	Help: "Current number of confirmation jobs waiting in the dispatch queue.",
})

// Job — задача подтверждения платежа. Номер карты живёт только в памяти
// процесса и никогда не попадает в хранилище.
type Job struct {
	PaymentID  string
	OrderID    string
	Method     domain.PaymentMethod
	CardNumber string
}

// Options задаёт параметры диспетчера.
type Options struct {
	Logger    *log.Entry
	Metrics   *metrics.CommerceMetrics
	Workers   int
	QueueSize int
}

// Option настраивает Dispatcher.
type Option func(*Options)

// WithLogger задаёт logger для диспетчера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики ядра; nil допустим, запись исходов
// тогда пропускается.
func WithMetrics(m *metrics.CommerceMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithWorkers задаёт число воркеров пула.
func WithWorkers(workers int) Option {
	return func(opts *Options) {
		opts.Workers = workers
	}
}

// WithQueueSize задаёт ёмкость очереди задач.
func WithQueueSize(size int) Option {
	return func(opts *Options) {
		opts.QueueSize = size
	}
}

// Dispatcher асинхронно доводит платежи до терминального статуса:
// пул воркеров читает задачи из канала, запрашивает исход у шлюза
// и применяет каскад к платежу, заказу и складу.
type Dispatcher struct {
	payments  domain.PaymentRepository
	orders    domain.OrderRepository
	inventory domain.InventoryService
	gateway   domain.PaymentGateway
	outbox    domain.OutboxRepository
	timeline  domain.TimelineRepository
	logger    *log.Entry
	metrics   *metrics.CommerceMetrics

	queue   chan Job
	workers int
}

// NewDispatcher создаёт диспетчер подтверждений.
func NewDispatcher(
	payments domain.PaymentRepository,
	orders domain.OrderRepository,
	inventory domain.InventoryService,
	gateway domain.PaymentGateway,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	options ...Option,
) *Dispatcher {
	opts := Options{
		Workers:   defaultWorkers,
		QueueSize: defaultQueueSize,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "dispatch")
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}

	return &Dispatcher{
		payments:  payments,
		orders:    orders,
		inventory: inventory,
		gateway:   gateway,
		outbox:    outbox,
		timeline:  timeline,
		logger:    logger,
		metrics:   opts.Metrics,
		queue:     make(chan Job, opts.QueueSize),
		workers:   opts.Workers,
	}
}

// Enqueue ставит задачу в очередь без блокировки вызывающего.
// При заполненной очереди возвращает ErrQueueFull.
func (d *Dispatcher) Enqueue(job Job) error {
	select {
	case d.queue <- job:
		dispatchQueueDepth.Set(float64(len(d.queue)))
		return nil
	default:
		return ErrQueueFull
	}
}

// Run запускает пул воркеров и блокируется до отмены ctx.
// После отмены дожидается завершения всех воркеров.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			d.workerLoop(ctx, worker)
		}(i)
	}
	wg.Wait()
}

func (d *Dispatcher) workerLoop(ctx context.Context, worker int) {
	logger := d.logger.WithField("worker", worker)
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-d.queue:
			dispatchQueueDepth.Set(float64(len(d.queue)))
			d.Process(job, logger)
		}
	}
}

// Process обрабатывает одну задачу подтверждения. Терминальный платёж
// пропускается, поэтому повторная постановка той же задачи безопасна.
func (d *Dispatcher) Process(job Job, logger *log.Entry) {
	if logger == nil {
		logger = d.logger
	}

	payment, err := d.payments.Get(job.PaymentID)
	if err != nil {
		logger.WithError(err).WithField("payment_id", job.PaymentID).Warn("payment not found for dispatch")
		d.metrics.RecordPaymentResolution("missing")
		return
	}
	if payment.Status.IsTerminal() {
		logger.WithFields(log.Fields{
			"payment_id": payment.ID,
			"status":     payment.Status,
		}).Debug("payment already terminal, skipping")
		d.metrics.RecordPaymentResolution("skipped")
		return
	}

	resolution := d.gateway.Resolve(payment.TransactionID, job.Method, job.CardNumber)

	switch resolution.Status {
	case domain.PaymentStatusCompleted:
		d.applyCompleted(payment, resolution, logger)
	case domain.PaymentStatusFailed:
		d.applyFailed(payment, resolution, logger)
	case domain.PaymentStatusPending:
		d.applyPending(payment, resolution, logger)
	default:
		// 3D Secure и прочие промежуточные исходы: платёж остаётся
		// processing, решение отложено до следующего прохода sweeper.
		logger.WithFields(log.Fields{
			"payment_id": payment.ID,
			"status":     resolution.Status,
			"message":    resolution.Message,
		}).Info("payment resolution deferred")
		d.metrics.RecordPaymentResolution("deferred")
	}
}

func (d *Dispatcher) applyCompleted(payment domain.Payment, resolution domain.GatewayResolution, logger *log.Entry) {
	if !d.savePaymentStatus(&payment, domain.PaymentStatusCompleted, "", logger) {
		return
	}
	d.metrics.RecordPaymentResolution("completed")

	d.updateOrder(payment.OrderID, logger, func(order *domain.Order) bool {
		order.PaymentStatus = domain.OrderPaymentCompleted
		if order.CanTransitionTo(domain.OrderStatusProcessing) {
			order.Status = domain.OrderStatusProcessing
		}
		return true
	})

	d.emitPaymentEvent(&payment, "payment.completed", resolution.Message, logger)
	logger.WithFields(log.Fields{
		"payment_id": payment.ID,
		"order_id":   payment.OrderID,
	}).Info("payment completed")
}

func (d *Dispatcher) applyFailed(payment domain.Payment, resolution domain.GatewayResolution, logger *log.Entry) {
	if !d.savePaymentStatus(&payment, domain.PaymentStatusFailed, resolution.Message, logger) {
		return
	}
	d.metrics.RecordPaymentResolution("failed")

	// Остатки возвращаются только победителем терминального перехода заказа:
	// если заказ уже отменён конкурентной отменой, release пропускается.
	// releasedLines сбрасывается на каждой попытке retry, а возврат делается
	// лишь после подтверждённой записи отмены, иначе проигравший по версии
	// вернул бы склад повторно.
	var releasedLines []domain.ReservationLine
	committed := d.updateOrder(payment.OrderID, logger, func(order *domain.Order) bool {
		releasedLines = nil
		if order.IsTerminal() {
			return false
		}
		order.PaymentStatus = domain.OrderPaymentFailed
		if order.CanTransitionTo(domain.OrderStatusCancelled) {
			order.Status = domain.OrderStatusCancelled
			releasedLines = order.ReservationLines()
		}
		return true
	})
	if committed && len(releasedLines) > 0 {
		if err := d.inventory.Release(payment.OrderID, releasedLines); err != nil {
			logger.WithError(err).WithField("order_id", payment.OrderID).Error("release after failed payment failed")
		}
	}

	d.emitPaymentEvent(&payment, "payment.failed", resolution.Message, logger)
	logger.WithFields(log.Fields{
		"payment_id": payment.ID,
		"order_id":   payment.OrderID,
		"reason":     resolution.Message,
	}).Info("payment failed")
}

func (d *Dispatcher) applyPending(payment domain.Payment, resolution domain.GatewayResolution, logger *log.Entry) {
	if !d.savePaymentStatus(&payment, domain.PaymentStatusPending, "", logger) {
		return
	}
	d.metrics.RecordPaymentResolution("pending")
	logger.WithFields(log.Fields{
		"payment_id": payment.ID,
		"order_id":   payment.OrderID,
		"message":    resolution.Message,
	}).Info("payment pending external confirmation")
}

// savePaymentStatus переводит платёж в новый статус под optimistic locking.
// Возвращает false, если платёж к моменту записи уже терминален (гонка
// с конкурентным подтверждением) или сохранение не удалось.
func (d *Dispatcher) savePaymentStatus(payment *domain.Payment, status domain.PaymentStatus, failureReason string, logger *log.Entry) bool {
	const maxRetries = 3
	const baseDelay = 10 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		if payment.Status.IsTerminal() {
			logger.WithFields(log.Fields{
				"payment_id": payment.ID,
				"status":     payment.Status,
			}).Debug("payment turned terminal concurrently, skipping")
			return false
		}

		prevVersion := payment.Version
		payment.Status = status
		payment.FailureReason = failureReason
		payment.UpdatedAt = time.Now().UTC()

		if err := d.payments.Save(*payment); err != nil {
			if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
				fresh, loadErr := d.payments.Get(payment.ID)
				if loadErr != nil {
					logger.WithError(loadErr).WithField("payment_id", payment.ID).Error("failed to reload payment after conflict")
					return false
				}
				*payment = fresh
				time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
				continue
			}
			logger.WithError(err).WithField("payment_id", payment.ID).Error("failed to persist payment status")
			return false
		}

		payment.Version = prevVersion + 1
		return true
	}
	return false
}

// updateOrder применяет мутацию к заказу с retry по version conflict.
// mutate возвращает false, чтобы отказаться от записи (заказ уже терминален).
// Результат true означает, что мутация действительно записана в хранилище.
func (d *Dispatcher) updateOrder(orderID string, logger *log.Entry, mutate func(*domain.Order) bool) bool {
	const maxRetries = 3
	const baseDelay = 10 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		order, err := d.orders.Get(orderID)
		if err != nil {
			logger.WithError(err).WithField("order_id", orderID).Warn("order not found for payment cascade")
			return false
		}

		if !mutate(&order) {
			return false
		}
		order.UpdatedAt = time.Now().UTC()

		if err := d.orders.Save(order); err != nil {
			if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
				time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
				continue
			}
			logger.WithError(err).WithField("order_id", orderID).Error("failed to persist order cascade")
			return false
		}
		return true
	}
	return false
}

func (d *Dispatcher) emitPaymentEvent(payment *domain.Payment, eventType, message string, logger *log.Entry) {
	payload := map[string]interface{}{
		"payment_id":     payment.ID,
		"order_id":       payment.OrderID,
		"transaction_id": payment.TransactionID,
		"status":         string(payment.Status),
		"ts":             payment.UpdatedAt.Format(time.RFC3339Nano),
	}
	if message != "" {
		payload["message"] = message
	}

	data, err := json.Marshal(payload)
	if err != nil {
		logger.WithError(err).WithField("payment_id", payment.ID).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "payment",
		AggregateID:   payment.ID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := d.outbox.Enqueue(msg); err != nil {
		logger.WithError(err).WithFields(log.Fields{
			"payment_id": payment.ID,
			"event":      eventType,
		}).Error("enqueue event failed")
	}

	if d.timeline != nil {
		event := domain.TimelineEvent{
			OrderID:  payment.OrderID,
			Type:     eventType,
			Reason:   message,
			Occurred: payment.UpdatedAt,
		}
		if err := d.timeline.Append(event); err != nil {
			logger.WithError(err).WithField("payment_id", payment.ID).Warn("append timeline event failed")
		}
	}
}
