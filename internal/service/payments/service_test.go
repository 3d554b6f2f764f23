package payments

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/service/dispatch"
	"github.com/vladislavdragonenkov/shopcore/internal/service/gateway"
	"github.com/vladislavdragonenkov/shopcore/internal/service/inventory"
	"github.com/vladislavdragonenkov/shopcore/internal/storage/memory"
)

// queueStub собирает задачи без запуска воркеров.
type queueStub struct {
	jobs       []dispatch.Job
	enqueueErr error
}

func (q *queueStub) Enqueue(job dispatch.Job) error {
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type outboxInspector interface {
	domain.OutboxRepository
	AllPending() []domain.OutboxMessage
}

type env struct {
	orders   domain.OrderRepository
	payments domain.PaymentRepository
	products domain.ProductRepository
	outbox   outboxInspector
	gateway  *gateway.Mock
	queue    *queueStub
	svc      *Service
}

func newEnv(t *testing.T) *env {
	t.Helper()

	orders := memory.NewOrderRepository()
	payments := memory.NewPaymentRepository()
	products := memory.NewProductRepository()
	outbox := memory.NewOutboxRepository()
	timeline := memory.NewTimelineRepository()
	mock := gateway.NewMock()
	queue := &queueStub{}
	ledger := inventory.NewLedger(products, nil, nil)

	if err := products.Create(domain.Product{
		ID: "product-1", SKU: "sku-1", Name: "Widget", PriceMinor: 1000, AvailableQty: 10,
	}); err != nil {
		t.Fatalf("seed product: %v", err)
	}

	svc := NewService(payments, orders, ledger, mock, queue, outbox, timeline, nil, nil)
	return &env{
		orders:   orders,
		payments: payments,
		products: products,
		outbox:   outbox,
		gateway:  mock,
		queue:    queue,
		svc:      svc,
	}
}

func (e *env) seedOrder(t *testing.T, id string, qty int32) domain.Order {
	t.Helper()
	now := time.Now().UTC()
	order := domain.Order{
		ID:                id,
		CustomerID:        "customer-1",
		Status:            domain.OrderStatusPending,
		PaymentStatus:     domain.OrderPaymentPending,
		Currency:          "USD",
		AmountMinor:       int64(qty) * 1000,
		ShippingAddressID: "address-1",
		Items: []domain.OrderItem{
			{ID: id + "-item", ProductID: "product-1", SKU: "sku-1", Name: "Widget", Qty: qty, PriceMinor: 1000, CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.orders.Create(order); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	if err := e.products.ReserveStock("product-1", qty); err != nil {
		t.Fatalf("seed reserve: %v", err)
	}
	return order
}

func card() *domain.CardDetails {
	return &domain.CardDetails{
		Number:      gateway.TestCardSuccess,
		CVV:         "123",
		ExpiryMonth: "12",
		ExpiryYear:  "2030",
	}
}

func TestInitiate_CreatesPaymentAndEnqueuesJob(t *testing.T) {
	e := newEnv(t)
	e.seedOrder(t, "order-1", 2)

	payment, err := e.svc.Initiate("customer-1", "order-1", domain.PaymentMethodCreditCard, card())
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	if payment.Status != domain.PaymentStatusProcessing {
		t.Fatalf("expected processing, got %q", payment.Status)
	}
	if payment.TransactionID == "" {
		t.Fatal("expected transaction id")
	}
	if payment.AmountMinor != 2000 {
		t.Fatalf("expected amount 2000, got %d", payment.AmountMinor)
	}

	if len(e.queue.jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(e.queue.jobs))
	}
	job := e.queue.jobs[0]
	if job.PaymentID != payment.ID || job.OrderID != "order-1" {
		t.Fatalf("unexpected job: %+v", job)
	}
	if job.CardNumber != gateway.TestCardSuccess {
		t.Fatal("job must carry the card number for resolution")
	}

	// Карта не персистится.
	stored, _ := e.payments.Get(payment.ID)
	if stored.Status != domain.PaymentStatusProcessing {
		t.Fatalf("expected stored processing, got %q", stored.Status)
	}
}

func TestInitiate_Guards(t *testing.T) {
	e := newEnv(t)
	order := e.seedOrder(t, "order-1", 1)

	if _, err := e.svc.Initiate("customer-2", "order-1", domain.PaymentMethodCreditCard, card()); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := e.svc.Initiate("customer-1", "missing", domain.PaymentMethodCreditCard, card()); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	order.PaymentStatus = domain.OrderPaymentCompleted
	if err := e.orders.Save(order); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := e.svc.Initiate("customer-1", "order-1", domain.PaymentMethodCreditCard, card()); !errors.Is(err, domain.ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}
}

func TestInitiate_CancelledOrderRejected(t *testing.T) {
	e := newEnv(t)
	order := e.seedOrder(t, "order-1", 1)

	order.Status = domain.OrderStatusCancelled
	if err := e.orders.Save(order); err != nil {
		t.Fatalf("save: %v", err)
	}

	_, err := e.svc.Initiate("customer-1", "order-1", domain.PaymentMethodCreditCard, card())
	if !errors.Is(err, domain.ErrInvalidOrderTransition) {
		t.Fatalf("expected ErrInvalidOrderTransition, got %v", err)
	}
}

func TestInitiate_GatewayRejectionDoesNotPersist(t *testing.T) {
	e := newEnv(t)
	e.seedOrder(t, "order-1", 1)
	e.gateway.InitiateErr = domain.NewGatewayError(domain.ErrCardInvalid, "Invalid card number length")

	_, err := e.svc.Initiate("customer-1", "order-1", domain.PaymentMethodCreditCard, card())
	if !errors.Is(err, domain.ErrCardInvalid) {
		t.Fatalf("expected ErrCardInvalid, got %v", err)
	}

	if _, err := e.payments.GetByOrder("order-1"); !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("rejected initiation must not persist a payment, got %v", err)
	}
	if len(e.queue.jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(e.queue.jobs))
	}
}

func TestInitiate_ReInitiationReusesPaymentRow(t *testing.T) {
	e := newEnv(t)
	e.seedOrder(t, "order-1", 1)

	first, err := e.svc.Initiate("customer-1", "order-1", domain.PaymentMethodCreditCard, card())
	if err != nil {
		t.Fatalf("first initiate: %v", err)
	}

	// Первый платёж отклонён диспетчером.
	stored, _ := e.payments.Get(first.ID)
	stored.Status = domain.PaymentStatusFailed
	stored.FailureReason = "Card declined"
	if err := e.payments.Save(stored); err != nil {
		t.Fatalf("save: %v", err)
	}

	e.gateway.InitiateResult.TransactionID = "TXN-TEST-11111111"
	second, err := e.svc.Initiate("customer-1", "order-1", domain.PaymentMethodPayPal, nil)
	if err != nil {
		t.Fatalf("second initiate: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("re-initiation must reuse the payment row: %q vs %q", second.ID, first.ID)
	}
	if second.TransactionID != "TXN-TEST-11111111" {
		t.Fatalf("expected fresh transaction id, got %q", second.TransactionID)
	}
	if second.Method != domain.PaymentMethodPayPal {
		t.Fatalf("expected updated method, got %q", second.Method)
	}
	if second.FailureReason != "" {
		t.Fatalf("failure reason must be cleared, got %q", second.FailureReason)
	}
	if second.Status != domain.PaymentStatusProcessing {
		t.Fatalf("expected processing, got %q", second.Status)
	}
}

func TestInitiate_FullQueueDoesNotFail(t *testing.T) {
	e := newEnv(t)
	e.seedOrder(t, "order-1", 1)
	e.queue.enqueueErr = dispatch.ErrQueueFull

	payment, err := e.svc.Initiate("customer-1", "order-1", domain.PaymentMethodCreditCard, card())
	if err != nil {
		t.Fatalf("initiate must survive a full queue: %v", err)
	}
	if payment.Status != domain.PaymentStatusProcessing {
		t.Fatalf("expected processing, got %q", payment.Status)
	}
}

func TestQueries_Ownership(t *testing.T) {
	e := newEnv(t)
	e.seedOrder(t, "order-1", 1)

	payment, err := e.svc.Initiate("customer-1", "order-1", domain.PaymentMethodCreditCard, card())
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	got, err := e.svc.ByOrder("customer-1", "order-1")
	if err != nil || got.ID != payment.ID {
		t.Fatalf("by order: %v, %+v", err, got)
	}
	if _, err := e.svc.ByOrder("customer-2", "order-1"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	got, err = e.svc.StatusByTransaction("customer-1", payment.TransactionID)
	if err != nil || got.ID != payment.ID {
		t.Fatalf("by transaction: %v, %+v", err, got)
	}
	if _, err := e.svc.StatusByTransaction("customer-2", payment.TransactionID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := e.svc.StatusByTransaction("customer-1", "missing"); !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

// completePayment доводит платёж заказа до completed, как делает диспетчер.
func (e *env) completePayment(t *testing.T, orderID string) domain.Payment {
	t.Helper()
	payment, err := e.payments.GetByOrder(orderID)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	payment.Status = domain.PaymentStatusCompleted
	if err := e.payments.Save(payment); err != nil {
		t.Fatalf("save payment: %v", err)
	}
	payment.Version++

	order, _ := e.orders.Get(orderID)
	order.Status = domain.OrderStatusProcessing
	order.PaymentStatus = domain.OrderPaymentCompleted
	if err := e.orders.Save(order); err != nil {
		t.Fatalf("save order: %v", err)
	}
	return payment
}

func TestRefund_Cascade(t *testing.T) {
	e := newEnv(t)
	e.seedOrder(t, "order-1", 3)
	if _, err := e.svc.Initiate("customer-1", "order-1", domain.PaymentMethodCreditCard, card()); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	payment := e.completePayment(t, "order-1")

	refunded, err := e.svc.Refund(payment.ID, 0, "customer request")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refunded.Status != domain.PaymentStatusRefunded {
		t.Fatalf("expected refunded, got %q", refunded.Status)
	}
	if refunded.RefundTransactionID == "" {
		t.Fatal("expected refund transaction id")
	}

	order, _ := e.orders.Get("order-1")
	if order.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled order, got %q", order.Status)
	}
	if order.PaymentStatus != domain.OrderPaymentRefunded {
		t.Fatalf("expected refunded payment status, got %q", order.PaymentStatus)
	}

	// Остатки вернулись.
	product, _ := e.products.Get("product-1")
	if product.AvailableQty != 10 {
		t.Fatalf("expected 10, got %d", product.AvailableQty)
	}

	var refundEvents int
	for _, msg := range e.outbox.AllPending() {
		if msg.EventType == "payment.refunded" {
			refundEvents++
		}
	}
	if refundEvents != 1 {
		t.Fatalf("expected one payment.refunded event, got %d", refundEvents)
	}
}

func TestRefund_Guards(t *testing.T) {
	e := newEnv(t)
	e.seedOrder(t, "order-1", 1)
	if _, err := e.svc.Initiate("customer-1", "order-1", domain.PaymentMethodCreditCard, card()); err != nil {
		t.Fatalf("initiate: %v", err)
	}

	// processing нельзя вернуть.
	payment, _ := e.payments.GetByOrder("order-1")
	if _, err := e.svc.Refund(payment.ID, 0, ""); !errors.Is(err, domain.ErrRefundNotAllowed) {
		t.Fatalf("expected ErrRefundNotAllowed, got %v", err)
	}

	payment = e.completePayment(t, "order-1")
	if _, err := e.svc.Refund(payment.ID, payment.AmountMinor+1, ""); !errors.Is(err, domain.ErrRefundAmountExceeds) {
		t.Fatalf("expected ErrRefundAmountExceeds, got %v", err)
	}
	if _, err := e.svc.Refund("missing", 0, ""); !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestRefund_GatewayFailureMutatesNothing(t *testing.T) {
	e := newEnv(t)
	e.seedOrder(t, "order-1", 2)
	if _, err := e.svc.Initiate("customer-1", "order-1", domain.PaymentMethodCreditCard, card()); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	payment := e.completePayment(t, "order-1")

	e.gateway.RefundErr = domain.NewGatewayError(nil, "Refund processing failed. Contact support.")

	_, err := e.svc.Refund(payment.ID, 0, "")
	if err == nil {
		t.Fatal("expected gateway error")
	}
	if domain.KindOf(err) != domain.KindGateway {
		t.Fatalf("expected gateway kind, got %q", domain.KindOf(err))
	}

	stored, _ := e.payments.Get(payment.ID)
	if stored.Status != domain.PaymentStatusCompleted {
		t.Fatalf("payment must stay completed, got %q", stored.Status)
	}
	order, _ := e.orders.Get("order-1")
	if order.Status != domain.OrderStatusProcessing {
		t.Fatalf("order must stay processing, got %q", order.Status)
	}
	product, _ := e.products.Get("product-1")
	if product.AvailableQty != 8 {
		t.Fatalf("stock must stay reserved, got %d", product.AvailableQty)
	}
}

func TestRefund_AlreadyCancelledOrderSkipsRelease(t *testing.T) {
	e := newEnv(t)
	e.seedOrder(t, "order-1", 2)
	if _, err := e.svc.Initiate("customer-1", "order-1", domain.PaymentMethodCreditCard, card()); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	payment := e.completePayment(t, "order-1")

	// Заказ отменён ранее, остатки уже возвращены.
	order, _ := e.orders.Get("order-1")
	order.Status = domain.OrderStatusCancelled
	if err := e.orders.Save(order); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := e.products.ReleaseStock("product-1", 2); err != nil {
		t.Fatalf("release: %v", err)
	}

	if _, err := e.svc.Refund(payment.ID, 0, ""); err != nil {
		t.Fatalf("refund: %v", err)
	}

	product, _ := e.products.Get("product-1")
	if product.AvailableQty != 10 {
		t.Fatalf("stock must be released exactly once, got %d", product.AvailableQty)
	}
	refreshed, _ := e.orders.Get("order-1")
	if refreshed.PaymentStatus != domain.OrderPaymentRefunded {
		t.Fatalf("expected refunded payment status, got %q", refreshed.PaymentStatus)
	}
}

func TestMethods(t *testing.T) {
	e := newEnv(t)

	methods := e.svc.Methods()
	if len(methods) != len(domain.SupportedPaymentMethods) {
		t.Fatalf("expected %d methods, got %d", len(domain.SupportedPaymentMethods), len(methods))
	}
	for _, m := range methods {
		if m.Name == "" {
			t.Fatalf("method %q has no display name", m.ID)
		}
		if m.RequiresCard != m.ID.IsCard() {
			t.Fatalf("method %q card flag mismatch", m.ID)
		}
	}

	cards := e.svc.TestCards()
	if len(cards) != 6 {
		t.Fatalf("expected 6 sentinel cards, got %d", len(cards))
	}
}
