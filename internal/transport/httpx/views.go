package httpx

import (
	"time"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// orderItemView — JSON-представление позиции заказа.
type orderItemView struct {
	ID         string `json:"id"`
	ProductID  string `json:"product_id"`
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	Qty        int32  `json:"qty"`
	PriceMinor int64  `json:"price_minor"`
}

// orderView — JSON-представление заказа.
type orderView struct {
	ID                string          `json:"id"`
	CustomerID        string          `json:"customer_id"`
	Status            string          `json:"status"`
	PaymentStatus     string          `json:"payment_status"`
	Currency          string          `json:"currency"`
	AmountMinor       int64           `json:"amount_minor"`
	ShippingAddressID string          `json:"shipping_address_id"`
	Items             []orderItemView `json:"items"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// paymentView — JSON-представление платежа. Данные карты не возвращаются никогда.
type paymentView struct {
	ID                  string    `json:"id"`
	OrderID             string    `json:"order_id"`
	AmountMinor         int64     `json:"amount_minor"`
	Currency            string    `json:"currency"`
	Method              string    `json:"method"`
	TransactionID       string    `json:"transaction_id"`
	RefundTransactionID string    `json:"refund_transaction_id,omitempty"`
	Status              string    `json:"status"`
	FailureReason       string    `json:"failure_reason,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// timelineEventView — JSON-представление события жизненного цикла заказа.
type timelineEventView struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred_at"`
}

func toOrderView(order domain.Order) orderView {
	items := make([]orderItemView, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemView{
			ID:         item.ID,
			ProductID:  item.ProductID,
			SKU:        item.SKU,
			Name:       item.Name,
			Qty:        item.Qty,
			PriceMinor: item.PriceMinor,
		})
	}

	return orderView{
		ID:                order.ID,
		CustomerID:        order.CustomerID,
		Status:            string(order.Status),
		PaymentStatus:     string(order.PaymentStatus),
		Currency:          order.Currency,
		AmountMinor:       order.AmountMinor,
		ShippingAddressID: order.ShippingAddressID,
		Items:             items,
		CreatedAt:         order.CreatedAt,
		UpdatedAt:         order.UpdatedAt,
	}
}

func toOrderViews(orders []domain.Order) []orderView {
	views := make([]orderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, toOrderView(order))
	}
	return views
}

func toPaymentView(payment domain.Payment) paymentView {
	return paymentView{
		ID:                  payment.ID,
		OrderID:             payment.OrderID,
		AmountMinor:         payment.AmountMinor,
		Currency:            payment.Currency,
		Method:              string(payment.Method),
		TransactionID:       payment.TransactionID,
		RefundTransactionID: payment.RefundTransactionID,
		Status:              string(payment.Status),
		FailureReason:       payment.FailureReason,
		CreatedAt:           payment.CreatedAt,
		UpdatedAt:           payment.UpdatedAt,
	}
}

func toTimelineViews(events []domain.TimelineEvent) []timelineEventView {
	views := make([]timelineEventView, 0, len(events))
	for _, event := range events {
		views = append(views, timelineEventView{
			Type:     event.Type,
			Reason:   event.Reason,
			Occurred: event.Occurred,
		})
	}
	return views
}
