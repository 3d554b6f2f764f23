package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

func makeStoredPayment(id, orderID string) domain.Payment {
	now := time.Now().UTC()
	return domain.Payment{
		ID:          id,
		OrderID:     orderID,
		AmountMinor: 2500,
		Currency:    "USD",
		Method:      domain.PaymentMethodCreditCard,
		Status:      domain.PaymentStatusProcessing,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestPaymentRepository_CreateAndGet(t *testing.T) {
	repo := NewPaymentRepository()
	payment := makeStoredPayment("payment-1", "order-1")
	payment.TransactionID = "TXN-20260315120000-AAAAAAAA"

	if err := repo.Create(payment); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.Get("payment-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.OrderID != "order-1" {
		t.Fatalf("unexpected order id %q", got.OrderID)
	}

	byOrder, err := repo.GetByOrder("order-1")
	if err != nil {
		t.Fatalf("get by order: %v", err)
	}
	if byOrder.ID != "payment-1" {
		t.Fatalf("unexpected payment %q", byOrder.ID)
	}

	byTxn, err := repo.GetByTransaction("TXN-20260315120000-AAAAAAAA")
	if err != nil {
		t.Fatalf("get by transaction: %v", err)
	}
	if byTxn.ID != "payment-1" {
		t.Fatalf("unexpected payment %q", byTxn.ID)
	}
}

func TestPaymentRepository_OnePaymentPerOrder(t *testing.T) {
	repo := NewPaymentRepository()
	if err := repo.Create(makeStoredPayment("payment-1", "order-1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := repo.Create(makeStoredPayment("payment-2", "order-1"))
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestPaymentRepository_NotFound(t *testing.T) {
	repo := NewPaymentRepository()

	if _, err := repo.Get("missing"); !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
	if _, err := repo.GetByOrder("missing"); !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
	if _, err := repo.GetByTransaction("missing"); !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestPaymentRepository_SaveVersionConflict(t *testing.T) {
	repo := NewPaymentRepository()
	if err := repo.Create(makeStoredPayment("payment-1", "order-1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Два клиента читают одну версию; побеждает первая запись.
	first, _ := repo.Get("payment-1")
	second, _ := repo.Get("payment-1")

	first.Status = domain.PaymentStatusCompleted
	if err := repo.Save(first); err != nil {
		t.Fatalf("first save: %v", err)
	}

	second.Status = domain.PaymentStatusFailed
	if err := repo.Save(second); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	got, _ := repo.Get("payment-1")
	if got.Status != domain.PaymentStatusCompleted {
		t.Fatalf("winner must persist, got %q", got.Status)
	}
	if got.Version != 1 {
		t.Fatalf("expected version 1 after save, got %d", got.Version)
	}
}

func TestPaymentRepository_TransactionIndexSurvivesUpdates(t *testing.T) {
	repo := NewPaymentRepository()
	payment := makeStoredPayment("payment-1", "order-1")
	payment.TransactionID = "TXN-OLD"
	if err := repo.Create(payment); err != nil {
		t.Fatalf("create: %v", err)
	}

	stored, _ := repo.Get("payment-1")
	stored.TransactionID = "TXN-NEW"
	if err := repo.Save(stored); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Старый id остаётся разрешимым: шлюз не переиспользует идентификаторы.
	if _, err := repo.GetByTransaction("TXN-OLD"); err != nil {
		t.Fatalf("old transaction id must resolve: %v", err)
	}
	if _, err := repo.GetByTransaction("TXN-NEW"); err != nil {
		t.Fatalf("new transaction id must resolve: %v", err)
	}
}

// Transaction id уникален среди платежей, как unique-индекс postgres-схемы.
func TestPaymentRepository_DuplicateTransactionRejected(t *testing.T) {
	repo := NewPaymentRepository()
	first := makeStoredPayment("payment-1", "order-1")
	first.TransactionID = "TXN-SHARED"
	if err := repo.Create(first); err != nil {
		t.Fatalf("create: %v", err)
	}

	second := makeStoredPayment("payment-2", "order-2")
	second.TransactionID = "TXN-SHARED"
	if err := repo.Create(second); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict on create, got %v", err)
	}

	second.TransactionID = "TXN-OTHER"
	if err := repo.Create(second); err != nil {
		t.Fatalf("create with fresh transaction: %v", err)
	}

	stored, _ := repo.Get("payment-2")
	stored.TransactionID = "TXN-SHARED"
	if err := repo.Save(stored); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict on save, got %v", err)
	}
}

func TestPaymentRepository_ListByStatus(t *testing.T) {
	repo := NewPaymentRepository()
	base := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"payment-c", "payment-a", "payment-b"} {
		payment := makeStoredPayment(id, "order-"+id)
		payment.UpdatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Create(payment); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	other := makeStoredPayment("payment-done", "order-done")
	other.Status = domain.PaymentStatusCompleted
	if err := repo.Create(other); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.ListByStatus(domain.PaymentStatusProcessing, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(got))
	}
	// Старые первыми.
	if got[0].ID != "payment-c" || got[1].ID != "payment-a" {
		t.Fatalf("unexpected order: %s, %s", got[0].ID, got[1].ID)
	}
}
