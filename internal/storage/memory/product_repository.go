package memory

import (
	"sync"
	"time"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// productRepositoryInMemory — in-memory реализация ProductRepository.
// Примитивы остатков атомарны относительно общего мьютекса: два конкурентных
// резерва по одному товару не могут совместно увести остаток в минус.
type productRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Product
}

// NewProductRepository возвращает in-memory репозиторий товаров.
func NewProductRepository() domain.ProductRepository {
	return &productRepositoryInMemory{
		items: make(map[string]domain.Product),
	}
}

// Create сохраняет товар, если ID ещё не занят.
func (r *productRepositoryInMemory) Create(product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[product.ID]; exists {
		return domain.ErrVersionConflict
	}
	r.items[product.ID] = product
	return nil
}

// Get возвращает товар или ErrProductNotFound, если его нет.
func (r *productRepositoryInMemory) Get(id string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// ReserveStock условно уменьшает остаток: при нехватке ничего не меняет
// и возвращает InsufficientStockError с деталями.
func (r *productRepositoryInMemory) ReserveStock(id string, qty int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	if product.AvailableQty < qty {
		return &domain.InsufficientStockError{
			ProductID: product.ID,
			SKU:       product.SKU,
			Requested: qty,
			Available: product.AvailableQty,
		}
	}

	product.AvailableQty -= qty
	product.UpdatedAt = time.Now().UTC()
	r.items[id] = product
	return nil
}

// ReleaseStock увеличивает остаток на qty.
func (r *productRepositoryInMemory) ReleaseStock(id string, qty int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[id]
	if !ok {
		return domain.ErrProductNotFound
	}

	product.AvailableQty += qty
	product.UpdatedAt = time.Now().UTC()
	r.items[id] = product
	return nil
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
