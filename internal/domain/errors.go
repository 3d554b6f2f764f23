package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего идентификатора покупателя.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствующего кода валюты.
	ErrCurrencyRequired = errors.New("currency is required")
	// Ошибка отсутствующего адреса доставки.
	ErrShippingAddressRequired = errors.New("shipping_address_id is required")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("amount_minor must be non-negative")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order amount does not match items sum")
	// Ошибка отсутствующего идентификатора заказа в платежах.
	ErrOrderIDRequired = errors.New("order_id is required")
	// Ошибка отсутствующего идентификатора товара в резерве.
	ErrProductIDRequired = errors.New("product_id is required")
	// Ошибка некорректного количества в резерве.
	ErrReservationQtyInvalid = errors.New("reservation qty must be greater than zero")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrPaymentNotFound возвращается, если платёж не найден.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrProductNotFound возвращается, если товар не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrCartNotFound возвращается, если у покупателя нет корзины.
	ErrCartNotFound = errors.New("cart not found")

	// ErrUnauthorized — попытка доступа к чужому заказу/платежу/адресу.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrEmptyCart — checkout по пустой корзине.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInsufficientStock — на складе недостаточно остатка под запрошенное количество.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidOrderTransition — недопустимый переход статуса заказа.
	ErrInvalidOrderTransition = errors.New("invalid order status transition")
	// ErrAlreadyPaid — повторная инициация оплаты уже оплаченного заказа.
	ErrAlreadyPaid = errors.New("order already paid")
	// ErrRefundNotAllowed — возврат возможен только по завершённому платежу.
	ErrRefundNotAllowed = errors.New("only completed payments can be refunded")
	// ErrRefundAmountExceeds — запрошенная сумма возврата больше суммы платежа.
	ErrRefundAmountExceeds = errors.New("refund amount exceeds payment amount")
	// ErrVersionConflict сигнализирует о конфликте версий при сохранении агрегата.
	ErrVersionConflict = errors.New("version conflict")

	// ErrUnsupportedMethod — способ оплаты не поддерживается шлюзом.
	ErrUnsupportedMethod = errors.New("unsupported payment method")
	// ErrInvalidAmount — неположительная сумма платежа.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrCardDetailsRequired — для карточных способов оплаты нужны данные карты.
	ErrCardDetailsRequired = errors.New("card details required")
	// ErrCardInvalid — карта не прошла синхронную валидацию шлюза
	// (номер, CVV или срок действия). Конкретное правило в сообщении GatewayError.
	ErrCardInvalid = errors.New("invalid card details")
)

// Kind — категория ошибки для маппинга на внешние коды (HTTP и т.п.).
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindConflict     Kind = "conflict"
	KindGateway      Kind = "gateway"
	KindInternal     Kind = "internal"
)

// InsufficientStockError уточняет ErrInsufficientStock: какой товар
// и насколько запрошенное количество превышает остаток.
type InsufficientStockError struct {
	ProductID string
	SKU       string
	Requested int32
	Available int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.SKU, e.Requested, e.Available)
}

// Is позволяет проверять ошибку через errors.Is(err, ErrInsufficientStock).
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// GatewayError переносит человекочитаемое сообщение платёжного шлюза
// (отказ валидации или декларированный отказ провайдера).
type GatewayError struct {
	Message string
	// Cause хранит сентинельную ошибку (ErrUnsupportedMethod и т.п.), если она есть.
	Cause error
}

func (e *GatewayError) Error() string {
	return e.Message
}

func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// NewGatewayError создаёт GatewayError с сообщением шлюза.
func NewGatewayError(cause error, message string) *GatewayError {
	return &GatewayError{Message: message, Cause: cause}
}

// KindOf классифицирует ошибку по таксономии ядра. Неизвестные ошибки
// считаются внутренними.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrPaymentNotFound),
		errors.Is(err, ErrProductNotFound),
		errors.Is(err, ErrCartNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrInvalidOrderTransition),
		errors.Is(err, ErrAlreadyPaid),
		errors.Is(err, ErrRefundNotAllowed),
		errors.Is(err, ErrRefundAmountExceeds),
		errors.Is(err, ErrVersionConflict):
		return KindConflict
	case errors.Is(err, ErrUnsupportedMethod),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrCardDetailsRequired),
		errors.Is(err, ErrCardInvalid),
		errors.Is(err, ErrEmptyCart),
		errors.Is(err, ErrCustomerRequired),
		errors.Is(err, ErrShippingAddressRequired),
		errors.Is(err, ErrItemQtyInvalid),
		errors.Is(err, ErrReservationQtyInvalid):
		return KindValidation
	default:
		var gw *GatewayError
		if errors.As(err, &gw) {
			return KindGateway
		}
		return KindInternal
	}
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
