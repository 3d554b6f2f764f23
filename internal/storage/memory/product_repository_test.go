package memory

import (
	"errors"
	"sync"
	"testing"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

func makeProduct(id string, qty int32) domain.Product {
	return domain.Product{
		ID:           id,
		SKU:          "sku-" + id,
		Name:         "Product " + id,
		PriceMinor:   100,
		AvailableQty: qty,
	}
}

func TestProductRepository_ReserveStock(t *testing.T) {
	repo := NewProductRepository()
	if err := repo.Create(makeProduct("product-1", 10)); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.ReserveStock("product-1", 4); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	got, _ := repo.Get("product-1")
	if got.AvailableQty != 6 {
		t.Fatalf("expected 6, got %d", got.AvailableQty)
	}
}

func TestProductRepository_ReserveInsufficient(t *testing.T) {
	repo := NewProductRepository()
	if err := repo.Create(makeProduct("product-1", 3)); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := repo.ReserveStock("product-1", 5)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatal("error should carry stock details")
	}
	if stockErr.Requested != 5 || stockErr.Available != 3 {
		t.Fatalf("unexpected details: %+v", stockErr)
	}

	// Остаток не изменился.
	got, _ := repo.Get("product-1")
	if got.AvailableQty != 3 {
		t.Fatalf("failed reserve must not mutate stock, got %d", got.AvailableQty)
	}
}

func TestProductRepository_ReleaseStock(t *testing.T) {
	repo := NewProductRepository()
	if err := repo.Create(makeProduct("product-1", 1)); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.ReleaseStock("product-1", 4); err != nil {
		t.Fatalf("release: %v", err)
	}
	got, _ := repo.Get("product-1")
	if got.AvailableQty != 5 {
		t.Fatalf("expected 5, got %d", got.AvailableQty)
	}

	if err := repo.ReleaseStock("missing", 1); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

// Конкурентные резервы по одному товару никогда не уводят остаток в минус
// и суммарно не превышают начальный остаток.
func TestProductRepository_ConcurrentReserveNeverOvercommits(t *testing.T) {
	repo := NewProductRepository()
	const initial = 50
	if err := repo.Create(makeProduct("product-1", initial)); err != nil {
		t.Fatalf("create: %v", err)
	}

	const workers = 100
	var wg sync.WaitGroup
	var mu sync.Mutex
	reserved := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.ReserveStock("product-1", 1); err == nil {
				mu.Lock()
				reserved++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if reserved != initial {
		t.Fatalf("expected exactly %d successful reservations, got %d", initial, reserved)
	}
	got, _ := repo.Get("product-1")
	if got.AvailableQty != 0 {
		t.Fatalf("expected zero stock, got %d", got.AvailableQty)
	}
}
