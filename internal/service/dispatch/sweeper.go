package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

const (
	defaultSweepInterval        = 30 * time.Second
	defaultProcessingTimeout    = 2 * time.Minute
	defaultPendingEscalationTTL = 24 * time.Hour
	defaultSweepBatchSize       = 200
)

var (
	sweeperRequeuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_sweeper_requeued_total",
		Help: "Total number of stuck processing payments re-enqueued by the sweeper.",
	})
	sweeperEscalatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_sweeper_escalated_total",
		Help: "Total number of stale pending payments escalated by the sweeper.",
	})
)

// SweeperOptions задаёт параметры sweeper.
type SweeperOptions struct {
	Logger *log.Entry
	// Interval — период между проходами.
	Interval time.Duration
	// ProcessingTimeout — возраст processing-платежа, после которого
	// его задача ставится в очередь повторно.
	ProcessingTimeout time.Duration
	// PendingEscalationTTL — возраст pending-платежа (банковский перевод),
	// после которого он эскалируется.
	PendingEscalationTTL time.Duration
	BatchSize            int
}

// SweeperOption настраивает Sweeper.
type SweeperOption func(*SweeperOptions)

// WithSweeperLogger задаёт logger для sweeper.
func WithSweeperLogger(logger *log.Entry) SweeperOption {
	return func(opts *SweeperOptions) {
		opts.Logger = logger
	}
}

// WithSweepInterval задаёт период между проходами.
func WithSweepInterval(interval time.Duration) SweeperOption {
	return func(opts *SweeperOptions) {
		opts.Interval = interval
	}
}

// WithProcessingTimeout задаёт таймаут для застрявших processing-платежей.
func WithProcessingTimeout(timeout time.Duration) SweeperOption {
	return func(opts *SweeperOptions) {
		opts.ProcessingTimeout = timeout
	}
}

// WithPendingEscalationTTL задаёт TTL для зависших банковских переводов.
func WithPendingEscalationTTL(ttl time.Duration) SweeperOption {
	return func(opts *SweeperOptions) {
		opts.PendingEscalationTTL = ttl
	}
}

// WithSweepBatchSize задаёт размер выборки платежей за один проход.
func WithSweepBatchSize(batchSize int) SweeperOption {
	return func(opts *SweeperOptions) {
		opts.BatchSize = batchSize
	}
}

// Sweeper подбирает платежи, потерянные диспетчером: processing старше
// таймаута возвращаются в очередь (номер карты при этом утрачен, исход
// решает вероятностная ветка шлюза), а pending-переводы старше TTL
// эскалируются событием payment.escalated, но не фейлятся автоматически.
type Sweeper struct {
	payments   domain.PaymentRepository
	outbox     domain.OutboxRepository
	dispatcher *Dispatcher
	logger     *log.Entry

	interval          time.Duration
	processingTimeout time.Duration
	pendingTTL        time.Duration
	batchSize         int

	mu        sync.Mutex
	escalated map[string]struct{}
}

// NewSweeper создаёт sweeper поверх репозитория платежей и диспетчера.
func NewSweeper(payments domain.PaymentRepository, outbox domain.OutboxRepository, dispatcher *Dispatcher, options ...SweeperOption) *Sweeper {
	opts := SweeperOptions{
		Interval:             defaultSweepInterval,
		ProcessingTimeout:    defaultProcessingTimeout,
		PendingEscalationTTL: defaultPendingEscalationTTL,
		BatchSize:            defaultSweepBatchSize,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "dispatch-sweeper")
	}

	if opts.Interval <= 0 {
		opts.Interval = defaultSweepInterval
	}
	if opts.ProcessingTimeout <= 0 {
		opts.ProcessingTimeout = defaultProcessingTimeout
	}
	if opts.PendingEscalationTTL <= 0 {
		opts.PendingEscalationTTL = defaultPendingEscalationTTL
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultSweepBatchSize
	}

	return &Sweeper{
		payments:          payments,
		outbox:            outbox,
		dispatcher:        dispatcher,
		logger:            logger,
		interval:          opts.Interval,
		processingTimeout: opts.ProcessingTimeout,
		pendingTTL:        opts.PendingEscalationTTL,
		batchSize:         opts.BatchSize,
		escalated:         make(map[string]struct{}),
	}
}

// Run запускает периодические проходы до отмены ctx.
func (s *Sweeper) Run(ctx context.Context) {
	if s.payments == nil || s.dispatcher == nil {
		s.logger.Warn("sweeper is disabled: payments repo or dispatcher is nil")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(time.Now().UTC())
		}
	}
}

// SweepOnce выполняет один проход: re-enqueue застрявших processing
// и эскалация зависших pending.
func (s *Sweeper) SweepOnce(now time.Time) {
	s.requeueStuck(now)
	s.escalateStale(now)
}

func (s *Sweeper) requeueStuck(now time.Time) {
	stuck, err := s.payments.ListByStatus(domain.PaymentStatusProcessing, s.batchSize)
	if err != nil {
		s.logger.WithError(err).Warn("failed to list processing payments")
		return
	}

	for _, payment := range stuck {
		if now.Sub(payment.UpdatedAt) < s.processingTimeout {
			continue
		}

		job := Job{
			PaymentID: payment.ID,
			OrderID:   payment.OrderID,
			Method:    payment.Method,
		}
		if err := s.dispatcher.Enqueue(job); err != nil {
			s.logger.WithError(err).WithField("payment_id", payment.ID).Warn("failed to re-enqueue stuck payment")
			continue
		}

		sweeperRequeuedTotal.Inc()
		s.logger.WithFields(log.Fields{
			"payment_id": payment.ID,
			"age":        now.Sub(payment.UpdatedAt).String(),
		}).Info("stuck payment re-enqueued")
	}
}

func (s *Sweeper) escalateStale(now time.Time) {
	pending, err := s.payments.ListByStatus(domain.PaymentStatusPending, s.batchSize)
	if err != nil {
		s.logger.WithError(err).Warn("failed to list pending payments")
		return
	}

	// Выборка короче батча означает, что видны все pending-платежи:
	// записи об ушедших из pending можно убрать из множества эскалаций,
	// иначе оно растёт весь срок жизни процесса.
	if len(pending) < s.batchSize {
		s.pruneEscalated(pending)
	}

	for _, payment := range pending {
		if now.Sub(payment.UpdatedAt) < s.pendingTTL {
			continue
		}
		if s.alreadyEscalated(payment.ID) {
			continue
		}

		s.logger.WithFields(log.Fields{
			"payment_id":     payment.ID,
			"order_id":       payment.OrderID,
			"transaction_id": payment.TransactionID,
			"age":            now.Sub(payment.UpdatedAt).String(),
		}).Warn("pending payment exceeded escalation TTL")

		s.emitEscalated(payment, now)
		sweeperEscalatedTotal.Inc()
		s.markEscalated(payment.ID)
	}
}

func (s *Sweeper) alreadyEscalated(paymentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.escalated[paymentID]
	return ok
}

func (s *Sweeper) markEscalated(paymentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.escalated[paymentID] = struct{}{}
}

// pruneEscalated оставляет в множестве эскалаций только платежи,
// всё ещё находящиеся в pending. Вызывается только на полной выборке.
func (s *Sweeper) pruneEscalated(pending []domain.Payment) {
	stillPending := make(map[string]struct{}, len(pending))
	for _, payment := range pending {
		stillPending[payment.ID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.escalated {
		if _, ok := stillPending[id]; !ok {
			delete(s.escalated, id)
		}
	}
}

func (s *Sweeper) emitEscalated(payment domain.Payment, now time.Time) {
	if s.outbox == nil {
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"payment_id":     payment.ID,
		"order_id":       payment.OrderID,
		"transaction_id": payment.TransactionID,
		"age_seconds":    int64(now.Sub(payment.UpdatedAt).Seconds()),
		"ts":             now.Format(time.RFC3339Nano),
	})
	if err != nil {
		s.logger.WithError(err).WithField("payment_id", payment.ID).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "payment",
		AggregateID:   payment.ID,
		EventType:     "payment.escalated",
		Payload:       payload,
	}
	if _, err := s.outbox.Enqueue(msg); err != nil {
		s.logger.WithError(err).WithField("payment_id", payment.ID).Error("enqueue event failed")
	}
}
