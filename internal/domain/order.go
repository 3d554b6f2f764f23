package domain

import "time"

// OrderStatus описывает жизненный цикл заказа в магазине.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, оплата ещё не подтверждена.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing — оплата прошла, заказ готовится к отправке.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ доставлен покупателю. Терминальный статус.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён покупателем или системой. Терминальный статус.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderPaymentStatus отражает состояние оплаты на уровне заказа.
type OrderPaymentStatus string

const (
	// OrderPaymentPending — оплата не инициирована или ещё не подтверждена.
	OrderPaymentPending OrderPaymentStatus = "pending"
	// OrderPaymentCompleted — оплата подтверждена шлюзом.
	OrderPaymentCompleted OrderPaymentStatus = "completed"
	// OrderPaymentFailed — оплата отклонена или заказ отменён до оплаты.
	OrderPaymentFailed OrderPaymentStatus = "failed"
	// OrderPaymentRefunded — деньги возвращены покупателю.
	OrderPaymentRefunded OrderPaymentStatus = "refunded"
)

// orderTransitions задаёт допустимые переходы статусов заказа:
// pending → processing → shipped → delivered линейно, отмена возможна
// из любого нетерминального статуса.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// OrderItem представляет одну позицию заказа. Цена фиксируется в момент
// покупки и после создания не пересчитывается.
type OrderItem struct {
	ID        string
	ProductID string
	SKU       string
	Name      string
	Qty       int32
	// PriceMinor — цена за единицу в минимальных денежных единицах на момент покупки.
	PriceMinor int64
	CreatedAt  time.Time
}

// SubtotalMinor возвращает стоимость позиции (qty * price).
func (i OrderItem) SubtotalMinor() int64 {
	return int64(i.Qty) * i.PriceMinor
}

// Order агрегирует шапку заказа и его позиции.
type Order struct {
	ID                string
	CustomerID        string
	Status            OrderStatus
	PaymentStatus     OrderPaymentStatus
	Currency          string
	AmountMinor       int64
	ShippingAddressID string
	Items             []OrderItem
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CanTransitionTo сообщает, допустим ли переход заказа в статус next.
func (o *Order) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[o.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal сообщает, находится ли заказ в терминальном статусе.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusDelivered || o.Status == OrderStatusCancelled
}

// ReservationLines возвращает позиции заказа в виде строк резервирования склада.
func (o *Order) ReservationLines() []ReservationLine {
	lines := make([]ReservationLine, 0, len(o.Items))
	for _, item := range o.Items {
		lines = append(lines, ReservationLine{ProductID: item.ProductID, SKU: item.SKU, Qty: item.Qty})
	}
	return lines
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if o.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if o.ShippingAddressID == "" {
		errs = append(errs, ErrShippingAddressRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.AmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	var calc int64
	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc += item.SubtotalMinor()
	}
	if calc != o.AmountMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}
