package gateway

import (
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// Тестовые номера карт с детерминированными исходами. Контракт стабилен,
// на него опирается тестовый набор; менять без compatibility note нельзя.
const (
	TestCardSuccess           = "4242424242424242"
	TestCardDeclined          = "4000000000000002"
	TestCardInsufficientFunds = "4000000000009995"
	TestCardExpired           = "4000000000000069"
	TestCardProcessingError   = "4000000000000119"
	TestCard3DSecure          = "4000000000003220"
)

// sentinelOutcomes — фиксированная таблица исходов для тестовых карт.
var sentinelOutcomes = map[string]domain.GatewayResolution{
	TestCardSuccess:           {Status: domain.PaymentStatusCompleted, Message: "Payment successful"},
	TestCardDeclined:          {Status: domain.PaymentStatusFailed, Message: "Card declined"},
	TestCardInsufficientFunds: {Status: domain.PaymentStatusFailed, Message: "Insufficient funds"},
	TestCardExpired:           {Status: domain.PaymentStatusFailed, Message: "Expired card"},
	TestCardProcessingError:   {Status: domain.PaymentStatusFailed, Message: "Processing error"},
	TestCard3DSecure:          {Status: domain.PaymentStatusProcessing, Message: "3D Secure authentication required"},
}

// randomFailureReasons — причины случайных отказов по обычным картам.
var randomFailureReasons = []string{
	"Card declined by issuer",
	"Transaction limit exceeded",
	"Suspicious activity detected",
}

const (
	cardSuccessRate   = 0.9
	paypalSuccessRate = 0.95
	refundSuccessRate = 0.95

	txnPrefix    = "TXN"
	refundPrefix = "RFD"

	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	tokenLength   = 8
)

// Options задаёт параметры симулятора.
type Options struct {
	Logger *log.Entry
	Now    func() time.Time
	Seed   int64
	// DelayMin/DelayMax ограничивают имитируемую задержку Resolve.
	// Нулевые значения отключают задержку (режим тестов).
	DelayMin time.Duration
	DelayMax time.Duration
}

// Option настраивает Simulator.
type Option func(*Options)

// WithLogger задаёт logger симулятора.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithClock задаёт источник времени (для детерминированных тестов).
func WithClock(now func() time.Time) Option {
	return func(opts *Options) {
		opts.Now = now
	}
}

// WithSeed задаёт seed генератора случайных чисел.
func WithSeed(seed int64) Option {
	return func(opts *Options) {
		opts.Seed = seed
	}
}

// WithResolutionDelay задаёт диапазон имитируемой задержки Resolve.
func WithResolutionDelay(min, max time.Duration) Option {
	return func(opts *Options) {
		opts.DelayMin = min
		opts.DelayMax = max
	}
}

// Simulator имитирует сторонний платёжный шлюз: синхронная валидация при
// инициации, асинхронное вычисление исхода и возвраты. Состояние шлюза —
// только часы и генератор случайных чисел, персистентности нет.
type Simulator struct {
	logger   *log.Entry
	now      func() time.Time
	delayMin time.Duration
	delayMax time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulator создаёт симулятор шлюза. Без опций — системные часы,
// случайный seed и нулевая задержка.
func NewSimulator(options ...Option) *Simulator {
	opts := Options{
		Now:  time.Now,
		Seed: time.Now().UnixNano(),
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "payment-gateway")
	}

	return &Simulator{
		logger:   logger,
		now:      opts.Now,
		delayMin: opts.DelayMin,
		delayMax: opts.DelayMax,
		rng:      rand.New(rand.NewSource(opts.Seed)),
	}
}

// Initiate синхронно валидирует способ оплаты, сумму и данные карты.
// Первое нарушенное правило побеждает, его сообщение уходит наружу дословно.
// Успех — новый transaction id и статус processing.
func (s *Simulator) Initiate(amountMinor int64, method domain.PaymentMethod, card *domain.CardDetails) (domain.GatewayInitiation, error) {
	if !method.IsSupported() {
		supported := make([]string, 0, len(domain.SupportedPaymentMethods))
		for _, m := range domain.SupportedPaymentMethods {
			supported = append(supported, string(m))
		}
		return domain.GatewayInitiation{}, domain.NewGatewayError(
			domain.ErrUnsupportedMethod,
			"Invalid payment method. Supported: "+strings.Join(supported, ", "),
		)
	}

	if amountMinor <= 0 {
		return domain.GatewayInitiation{}, domain.NewGatewayError(domain.ErrInvalidAmount, "Invalid amount")
	}

	if method.IsCard() {
		if card == nil {
			return domain.GatewayInitiation{}, domain.NewGatewayError(domain.ErrCardDetailsRequired, "Card details required")
		}
		if msg, ok := validateCardNumber(card.Number); !ok {
			return domain.GatewayInitiation{}, domain.NewGatewayError(domain.ErrCardInvalid, msg)
		}
		if msg, ok := validateCVV(card.CVV); !ok {
			return domain.GatewayInitiation{}, domain.NewGatewayError(domain.ErrCardInvalid, msg)
		}
		if msg, ok := s.validateExpiry(card.ExpiryMonth, card.ExpiryYear); !ok {
			return domain.GatewayInitiation{}, domain.NewGatewayError(domain.ErrCardInvalid, msg)
		}
		// Тестовая карта «expired» отклоняется синхронно и до диспетчера не доходит.
		if normalizeCardNumber(card.Number) == TestCardExpired {
			return domain.GatewayInitiation{}, domain.NewGatewayError(domain.ErrCardInvalid, "Expired card")
		}
	}

	return domain.GatewayInitiation{
		TransactionID: s.newTransactionID(txnPrefix),
		Status:        domain.PaymentStatusProcessing,
		Message:       "Payment initiated successfully",
	}, nil
}

// Resolve вычисляет исход платежа: детерминированно для тестовых карт,
// иначе по вероятностной модели способа оплаты. Вызывается только из
// фонового диспетчера, поэтому задержка имитируется здесь.
func (s *Simulator) Resolve(transactionID string, method domain.PaymentMethod, cardNumber string) domain.GatewayResolution {
	s.sleepResolutionDelay()

	switch {
	case method.IsCard() && cardNumber != "":
		normalized := normalizeCardNumber(cardNumber)
		if outcome, ok := sentinelOutcomes[normalized]; ok {
			return outcome
		}
		if s.chance(cardSuccessRate) {
			return domain.GatewayResolution{Status: domain.PaymentStatusCompleted, Message: "Payment successful"}
		}
		return domain.GatewayResolution{
			Status:  domain.PaymentStatusFailed,
			Message: randomFailureReasons[s.intn(len(randomFailureReasons))],
		}
	case method == domain.PaymentMethodPayPal:
		if s.chance(paypalSuccessRate) {
			return domain.GatewayResolution{Status: domain.PaymentStatusCompleted, Message: "PayPal payment successful"}
		}
		return domain.GatewayResolution{Status: domain.PaymentStatusFailed, Message: "PayPal authentication failed"}
	case method == domain.PaymentMethodBankTransfer:
		// Банковский перевод не подтверждается автоматически.
		return domain.GatewayResolution{Status: domain.PaymentStatusPending, Message: "Bank transfer initiated. Awaiting confirmation."}
	default:
		return domain.GatewayResolution{Status: domain.PaymentStatusCompleted, Message: "Payment successful"}
	}
}

// Refund проводит возврат по транзакции. При отказе шлюза id возврата не выдаётся.
func (s *Simulator) Refund(transactionID string, amountMinor int64) (domain.GatewayRefund, error) {
	if !s.chance(refundSuccessRate) {
		s.logger.WithField("txn_id", transactionID).Warn("gateway rejected refund")
		return domain.GatewayRefund{}, domain.NewGatewayError(nil, "Refund processing failed. Contact support.")
	}

	return domain.GatewayRefund{
		RefundTransactionID: s.newTransactionID(refundPrefix),
		Message:             "Refund processed successfully",
	}, nil
}

// newTransactionID выдаёт уникальный идентификатор транзакции:
// префикс, метка времени UTC и случайный суффикс.
func (s *Simulator) newTransactionID(prefix string) string {
	timestamp := s.now().UTC().Format("20060102150405")

	s.mu.Lock()
	defer s.mu.Unlock()

	suffix := make([]byte, tokenLength)
	for i := range suffix {
		suffix[i] = tokenAlphabet[s.rng.Intn(len(tokenAlphabet))]
	}
	return prefix + "-" + timestamp + "-" + string(suffix)
}

func (s *Simulator) chance(rate float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < rate
}

func (s *Simulator) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

func (s *Simulator) sleepResolutionDelay() {
	if s.delayMax <= 0 {
		return
	}
	delay := s.delayMin
	if span := s.delayMax - s.delayMin; span > 0 {
		s.mu.Lock()
		delay += time.Duration(s.rng.Int63n(int64(span)))
		s.mu.Unlock()
	}
	time.Sleep(delay)
}

// normalizeCardNumber убирает пробелы и дефисы из номера карты.
func normalizeCardNumber(number string) string {
	number = strings.ReplaceAll(number, " ", "")
	return strings.ReplaceAll(number, "-", "")
}

func validateCardNumber(number string) (string, bool) {
	number = normalizeCardNumber(number)

	for _, r := range number {
		if r < '0' || r > '9' {
			return "Card number must contain only digits", false
		}
	}
	if len(number) < 13 || len(number) > 19 {
		return "Invalid card number length", false
	}
	return "", true
}

func validateCVV(cvv string) (string, bool) {
	if len(cvv) != 3 && len(cvv) != 4 {
		return "Invalid CVV", false
	}
	for _, r := range cvv {
		if r < '0' || r > '9' {
			return "Invalid CVV", false
		}
	}
	return "", true
}

func (s *Simulator) validateExpiry(expiryMonth, expiryYear string) (string, bool) {
	month, err := strconv.Atoi(expiryMonth)
	if err != nil {
		return "Invalid expiry date format", false
	}
	year, err := strconv.Atoi(expiryYear)
	if err != nil {
		return "Invalid expiry date format", false
	}

	if month < 1 || month > 12 {
		return "Invalid month", false
	}
	// Двузначный год трактуем как 20xx.
	if year < 100 {
		year += 2000
	}

	now := s.now().UTC()
	if year < now.Year() || (year == now.Year() && month < int(now.Month())) {
		return "Card expired", false
	}
	return "", true
}

var _ domain.PaymentGateway = (*Simulator)(nil)
