package checkout

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/metrics"
)

// Orchestrator превращает корзину покупателя в заказ: снимает снапшот цен,
// резервирует остатки и создаёт заказ атомарно относительно склада.
type Orchestrator struct {
	orders    domain.OrderRepository
	products  domain.ProductRepository
	carts     domain.CartService
	addresses domain.AddressService
	inventory domain.InventoryService
	outbox    domain.OutboxRepository
	timeline  domain.TimelineRepository
	logger    *log.Entry
	metrics   *metrics.CommerceMetrics
	currency  string
}

// NewOrchestrator создаёт оркестратор checkout. metrics может быть nil (тесты).
func NewOrchestrator(
	orders domain.OrderRepository,
	products domain.ProductRepository,
	carts domain.CartService,
	addresses domain.AddressService,
	inventory domain.InventoryService,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	currency string,
	m *metrics.CommerceMetrics,
	logger *log.Entry,
) *Orchestrator {
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	if currency == "" {
		currency = "USD"
	}
	return &Orchestrator{
		orders:    orders,
		products:  products,
		carts:     carts,
		addresses: addresses,
		inventory: inventory,
		outbox:    outbox,
		timeline:  timeline,
		logger:    logger,
		metrics:   m,
		currency:  currency,
	}
}

// Checkout создаёт заказ из текущей корзины покупателя.
// Цены фиксируются на момент вызова; корзина очищается только после
// успешного создания заказа.
func (o *Orchestrator) Checkout(customerID, shippingAddressID string) (domain.Order, error) {
	start := time.Now()
	o.metrics.RecordCheckoutStarted()

	order, err := o.checkout(customerID, shippingAddressID)
	o.metrics.RecordCheckoutDuration(time.Since(start))
	if err != nil {
		o.metrics.RecordCheckoutFailed()
		return domain.Order{}, err
	}

	o.metrics.RecordCheckoutCompleted()
	return order, nil
}

func (o *Orchestrator) checkout(customerID, shippingAddressID string) (domain.Order, error) {
	if customerID == "" {
		return domain.Order{}, domain.ErrCustomerRequired
	}
	if shippingAddressID == "" {
		return domain.Order{}, domain.ErrShippingAddressRequired
	}
	if !o.addresses.BelongsToUser(shippingAddressID, customerID) {
		o.logger.WithFields(log.Fields{
			"customer_id": customerID,
			"address_id":  shippingAddressID,
		}).Warn("shipping address does not belong to customer")
		return domain.Order{}, domain.ErrUnauthorized
	}

	cart, err := o.carts.ListItems(customerID)
	if err != nil {
		return domain.Order{}, err
	}
	if cart.IsEmpty() {
		return domain.Order{}, domain.ErrEmptyCart
	}

	now := time.Now().UTC()
	orderID := uuid.NewString()

	// Снимаем снапшот цен: позиции заказа не зависят от последующих
	// изменений каталога.
	items := make([]domain.OrderItem, 0, len(cart.Lines))
	lines := make([]domain.ReservationLine, 0, len(cart.Lines))
	var amount int64
	for _, line := range cart.Lines {
		product, err := o.products.Get(line.ProductID)
		if err != nil {
			return domain.Order{}, err
		}
		item := domain.OrderItem{
			ID:         uuid.NewString(),
			ProductID:  product.ID,
			SKU:        product.SKU,
			Name:       product.Name,
			Qty:        line.Qty,
			PriceMinor: product.PriceMinor,
			CreatedAt:  now,
		}
		items = append(items, item)
		lines = append(lines, domain.ReservationLine{ProductID: product.ID, SKU: product.SKU, Qty: line.Qty})
		amount += item.SubtotalMinor()
	}

	order := domain.Order{
		ID:                orderID,
		CustomerID:        customerID,
		Status:            domain.OrderStatusPending,
		PaymentStatus:     domain.OrderPaymentPending,
		Currency:          o.currency,
		AmountMinor:       amount,
		ShippingAddressID: shippingAddressID,
		Items:             items,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, errs[0]
	}

	if err := o.inventory.Reserve(orderID, lines); err != nil {
		return domain.Order{}, err
	}

	if err := o.orders.Create(order); err != nil {
		// Компенсация: заказ не создан, возвращаем резерв.
		if relErr := o.inventory.Release(orderID, lines); relErr != nil {
			o.logger.WithError(relErr).WithField("order_id", orderID).Error("release after failed create failed")
		}
		return domain.Order{}, err
	}

	// Корзина очищается после создания заказа; сбой очистки заказ не откатывает.
	if err := o.carts.Clear(customerID); err != nil {
		o.logger.WithError(err).WithField("customer_id", customerID).Warn("cart clear failed")
	}

	o.emitCreated(&order)

	o.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"customer_id":  customerID,
		"amount_minor": order.AmountMinor,
		"items":        len(order.Items),
	}).Info("order created")

	return order, nil
}

func (o *Orchestrator) emitCreated(order *domain.Order) {
	payload := map[string]interface{}{
		"order_id":     order.ID,
		"customer_id":  order.CustomerID,
		"amount_minor": order.AmountMinor,
		"currency":     order.Currency,
		"items_count":  len(order.Items),
		"ts":           order.CreatedAt.Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		o.logger.WithError(err).WithField("order_id", order.ID).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     "order.created",
		Payload:       data,
	}
	if _, err := o.outbox.Enqueue(msg); err != nil {
		o.logger.WithError(err).WithField("order_id", order.ID).Error("enqueue event failed")
	} else {
		o.metrics.RecordOutboxEvent()
	}

	if o.timeline != nil {
		event := domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     "order.created",
			Occurred: order.CreatedAt,
		}
		if err := o.timeline.Append(event); err != nil {
			o.logger.WithError(err).WithField("order_id", order.ID).Warn("append timeline event failed")
		} else {
			o.metrics.RecordTimelineEvent()
		}
	}
}
