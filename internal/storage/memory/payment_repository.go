package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// paymentRepositoryInMemory — in-memory реализация PaymentRepository.
// Индексы byOrder и byTxn обеспечивают уникальность «один платёж на заказ»
// и «один платёж на transaction id», как unique-индексы postgres-схемы.
type paymentRepositoryInMemory struct {
	mu      sync.RWMutex
	items   map[string]domain.Payment
	byOrder map[string]string
	byTxn   map[string]string
}

// NewPaymentRepository возвращает in-memory репозиторий платежей.
func NewPaymentRepository() domain.PaymentRepository {
	return &paymentRepositoryInMemory{
		items:   make(map[string]domain.Payment),
		byOrder: make(map[string]string),
		byTxn:   make(map[string]string),
	}
}

// Create сохраняет новый платёж; второй платёж по тому же заказу — конфликт.
func (r *paymentRepositoryInMemory) Create(payment domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[payment.ID]; exists {
		return domain.ErrVersionConflict
	}
	if _, exists := r.byOrder[payment.OrderID]; exists {
		return domain.ErrVersionConflict
	}
	if owner, exists := r.byTxn[payment.TransactionID]; exists && owner != payment.ID {
		return domain.ErrVersionConflict
	}

	r.items[payment.ID] = payment
	r.byOrder[payment.OrderID] = payment.ID
	if payment.TransactionID != "" {
		r.byTxn[payment.TransactionID] = payment.ID
	}
	return nil
}

// Get возвращает платёж или ErrPaymentNotFound.
func (r *paymentRepositoryInMemory) Get(id string) (domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	payment, ok := r.items[id]
	if !ok {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return payment, nil
}

// GetByOrder возвращает платёж заказа или ErrPaymentNotFound.
func (r *paymentRepositoryInMemory) GetByOrder(orderID string) (domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byOrder[orderID]
	if !ok {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return r.items[id], nil
}

// GetByTransaction возвращает платёж по transaction id шлюза.
func (r *paymentRepositoryInMemory) GetByTransaction(transactionID string) (domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byTxn[transactionID]
	if !ok {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return r.items[id], nil
}

// Save перезаписывает платёж, проверяя версию (optimistic locking).
// Transaction id, выданные ранее, остаются в индексе: они никогда не переиспользуются.
func (r *paymentRepositoryInMemory) Save(payment domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[payment.ID]
	if !ok {
		return domain.ErrPaymentNotFound
	}
	if current.Version != payment.Version {
		return domain.ErrVersionConflict
	}
	if owner, exists := r.byTxn[payment.TransactionID]; exists && owner != payment.ID {
		return domain.ErrVersionConflict
	}

	payment.Version++
	r.items[payment.ID] = payment
	if payment.TransactionID != "" {
		r.byTxn[payment.TransactionID] = payment.ID
	}
	return nil
}

// ListByStatus возвращает до limit платежей в заданном статусе, старые первыми.
func (r *paymentRepositoryInMemory) ListByStatus(status domain.PaymentStatus, limit int) ([]domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Payment, 0)
	for _, payment := range r.items {
		if payment.Status == status {
			result = append(result, payment)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.Before(result[j].UpdatedAt)
		}
		return result[i].ID < result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

var _ domain.PaymentRepository = (*paymentRepositoryInMemory)(nil)
