package domain

import "time"

// PaymentStatus описывает состояние платежа, привязанного к заказу.
type PaymentStatus string

const (
	// PaymentStatusPending — платёж ожидает внешнего подтверждения (банковский перевод).
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusProcessing — шлюз принял платёж, итог будет получен асинхронно.
	PaymentStatusProcessing PaymentStatus = "processing"
	// PaymentStatusCompleted — шлюз подтвердил списание средств.
	PaymentStatusCompleted PaymentStatus = "completed"
	// PaymentStatusFailed — шлюз отклонил платёж.
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusRefunded — деньги возвращены покупателю.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// IsTerminal сообщает, достиг ли платёж терминального статуса.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed || s == PaymentStatusRefunded
}

// PaymentMethod — способ оплаты, поддерживаемый платёжным шлюзом.
type PaymentMethod string

const (
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodDebitCard    PaymentMethod = "debit_card"
	PaymentMethodPayPal       PaymentMethod = "paypal"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// SupportedPaymentMethods перечисляет способы оплаты в порядке объявления.
var SupportedPaymentMethods = []PaymentMethod{
	PaymentMethodCreditCard,
	PaymentMethodDebitCard,
	PaymentMethodPayPal,
	PaymentMethodBankTransfer,
}

// IsCard сообщает, требует ли способ оплаты данные банковской карты.
func (m PaymentMethod) IsCard() bool {
	return m == PaymentMethodCreditCard || m == PaymentMethodDebitCard
}

// IsSupported проверяет, входит ли способ оплаты в список поддерживаемых.
func (m PaymentMethod) IsSupported() bool {
	for _, method := range SupportedPaymentMethods {
		if method == m {
			return true
		}
	}
	return false
}

// CardDetails — данные карты, передаваемые шлюзу при инициации платежа.
// Никогда не сохраняются в хранилище.
type CardDetails struct {
	Number         string
	CVV            string
	ExpiryMonth    string
	ExpiryYear     string
	CardholderName string
}

// Payment описывает платёж по заказу. На заказ существует не более одного платежа;
// повторная инициация переиспользует ту же запись.
type Payment struct {
	ID      string
	OrderID string
	// AmountMinor — сумма платежа в минимальных денежных единицах.
	AmountMinor int64
	Currency    string
	Method      PaymentMethod
	// TransactionID — уникальный идентификатор, выданный шлюзом при инициации.
	TransactionID string
	// RefundTransactionID заполняется при успешном возврате средств.
	RefundTransactionID string
	Status              PaymentStatus
	// FailureReason — человекочитаемая причина отказа от шлюза.
	FailureReason string
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate проверяет корректность полей платежа и возвращает ошибки, если они есть.
func (p *Payment) Validate() []error {
	var errs []error

	if p.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if !p.Method.IsSupported() {
		errs = append(errs, ErrUnsupportedMethod)
	}
	if p.AmountMinor <= 0 {
		errs = append(errs, ErrInvalidAmount)
	}

	return errs
}
