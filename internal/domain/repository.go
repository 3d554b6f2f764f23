package domain

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ вместе с позициями. Возвращает ошибку,
	// если запись с таким ID уже существует.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// ListByCustomer возвращает заказы покупателя с опциональным ограничением на количество.
	ListByCustomer(customerID string, limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking:
	// при несовпадении версии возвращает ErrVersionConflict.
	Save(order Order) error
	// Delete удаляет заказ вместе с позициями (каскад).
	Delete(id string) error
}

// PaymentRepository описывает требования к хранилищу платежей.
// На заказ допускается не более одного платежа.
type PaymentRepository interface {
	// Create сохраняет новый платёж; второй платёж по тому же заказу — ошибка.
	Create(payment Payment) error
	// Get возвращает платёж по идентификатору или ErrPaymentNotFound.
	Get(id string) (Payment, error)
	// GetByOrder возвращает платёж заказа или ErrPaymentNotFound.
	GetByOrder(orderID string) (Payment, error)
	// GetByTransaction возвращает платёж по transaction id шлюза.
	GetByTransaction(transactionID string) (Payment, error)
	// Save применяет обновления с optimistic locking (ErrVersionConflict).
	Save(payment Payment) error
	// ListByStatus возвращает платежи в заданном статусе не новее отсечки
	// (используется свипером зависших платежей).
	ListByStatus(status PaymentStatus, limit int) ([]Payment, error)
}

// ProductRepository описывает хранилище товаров и атомарные примитивы остатков.
type ProductRepository interface {
	// Create сохраняет товар.
	Create(product Product) error
	// Get возвращает товар или ErrProductNotFound.
	Get(id string) (Product, error)
	// ReserveStock атомарно уменьшает остаток на qty; если остатка не хватает,
	// возвращает InsufficientStockError и ничего не меняет.
	ReserveStock(id string, qty int32) error
	// ReleaseStock атомарно увеличивает остаток на qty.
	ReleaseStock(id string, qty int32) error
}
