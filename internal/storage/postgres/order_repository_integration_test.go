package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

func TestOrderRepository_PostgresCreateGetListAndSave(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	order1 := sampleOrder("order-1", "customer-1", now.Add(-2*time.Minute))
	order2 := sampleOrder("order-2", "customer-1", now.Add(-time.Minute))

	if err := repo.Create(order1); err != nil {
		t.Fatalf("create order1: %v", err)
	}
	if err := repo.Create(order2); err != nil {
		t.Fatalf("create order2: %v", err)
	}

	got, err := repo.Get(order1.ID)
	if err != nil {
		t.Fatalf("get order1: %v", err)
	}
	if got.ID != order1.ID || got.CustomerID != order1.CustomerID || got.Status != order1.Status {
		t.Fatalf("unexpected order payload: %+v", got)
	}
	if got.PaymentStatus != domain.OrderPaymentPending {
		t.Fatalf("unexpected payment status: %s", got.PaymentStatus)
	}
	if got.ShippingAddressID != order1.ShippingAddressID {
		t.Fatalf("unexpected shipping address: %s", got.ShippingAddressID)
	}
	if len(got.Items) != len(order1.Items) {
		t.Fatalf("unexpected items count: got=%d want=%d", len(got.Items), len(order1.Items))
	}
	if got.Items[0].ProductID != order1.Items[0].ProductID || got.Items[0].Name != order1.Items[0].Name {
		t.Fatalf("unexpected item payload: %+v", got.Items[0])
	}

	listed, err := repo.ListByCustomer("customer-1", 1)
	if err != nil {
		t.Fatalf("list by customer with limit: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != order2.ID {
		t.Fatalf("unexpected list result with limit: %+v", listed)
	}

	all, err := repo.ListByCustomer("customer-1", 0)
	if err != nil {
		t.Fatalf("list by customer without limit: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(all))
	}

	got.Status = domain.OrderStatusProcessing
	got.PaymentStatus = domain.OrderPaymentCompleted
	got.UpdatedAt = now.Add(time.Minute)
	if err := repo.Save(got); err != nil {
		t.Fatalf("save order: %v", err)
	}

	updated, err := repo.Get(order1.ID)
	if err != nil {
		t.Fatalf("get updated order: %v", err)
	}
	if updated.Status != domain.OrderStatusProcessing || updated.PaymentStatus != domain.OrderPaymentCompleted {
		t.Fatalf("unexpected state after save: %s/%s", updated.Status, updated.PaymentStatus)
	}
	if updated.Version != got.Version+1 {
		t.Fatalf("unexpected version after save: got=%d want=%d", updated.Version, got.Version+1)
	}
}

func TestOrderRepository_PostgresErrors(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	base := sampleOrder("order-errors", "customer-2", now)

	if _, err := repo.Get("missing-order"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	if err := repo.Save(base); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on save missing, got %v", err)
	}

	if err := repo.Create(base); err != nil {
		t.Fatalf("create base order: %v", err)
	}
	if err := repo.Create(base); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict on duplicate create, got %v", err)
	}

	stale := base
	stale.Status = domain.OrderStatusCancelled
	stale.UpdatedAt = now.Add(time.Minute)
	stale.Version = 42
	if err := repo.Save(stale); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict on stale save, got %v", err)
	}
}

func TestOrderRepository_PostgresDeleteCascadesItems(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	order := sampleOrder("order-delete", "customer-3", now)
	if err := repo.Create(order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	if err := repo.Delete(order.ID); err != nil {
		t.Fatalf("delete order: %v", err)
	}
	if _, err := repo.Get(order.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound after delete, got %v", err)
	}

	var itemCount int
	if err := store.DB().QueryRow(
		`SELECT COUNT(*) FROM order_items WHERE order_id = $1`, order.ID,
	).Scan(&itemCount); err != nil {
		t.Fatalf("count items: %v", err)
	}
	if itemCount != 0 {
		t.Fatalf("expected 0 items after cascade delete, got %d", itemCount)
	}

	if err := repo.Delete(order.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on double delete, got %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("expected unique violation for code 23505")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "22001"}) {
		t.Fatal("unexpected unique violation for non-unique code")
	}
	if isUniqueViolation(errors.New("plain error")) {
		t.Fatal("plain error must not be unique violation")
	}
}

func sampleOrder(id, customerID string, createdAt time.Time) domain.Order {
	items := []domain.OrderItem{
		{
			ID:         id + "-item-1",
			ProductID:  "product-1",
			SKU:        "SKU-1",
			Name:       "Coffee Beans 1kg",
			Qty:        2,
			PriceMinor: 1500,
			CreatedAt:  createdAt,
		},
		{
			ID:         id + "-item-2",
			ProductID:  "product-2",
			SKU:        "SKU-2",
			Name:       "French Press",
			Qty:        1,
			PriceMinor: 3000,
			CreatedAt:  createdAt.Add(time.Second),
		},
	}

	return domain.Order{
		ID:                id,
		CustomerID:        customerID,
		Status:            domain.OrderStatusPending,
		PaymentStatus:     domain.OrderPaymentPending,
		Currency:          "USD",
		AmountMinor:       6000,
		ShippingAddressID: "address-1",
		Items:             items,
		Version:           0,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}
}
