package domain

import "time"

// InventoryService описывает складской леджер: условное списание и возврат остатков.
type InventoryService interface {
	// Reserve атомарно резервирует остатки под заказ по принципу «всё или ничего»:
	// при нехватке по любой строке ранее списанные строки этого же вызова
	// возвращаются обратно, а ошибка называет проблемный товар.
	Reserve(orderID string, lines []ReservationLine) error
	// Release возвращает остатки на склад (компенсация отмены/возврата).
	Release(orderID string, lines []ReservationLine) error
}

// GatewayInitiation — результат синхронной инициации платежа.
type GatewayInitiation struct {
	TransactionID string
	Status        PaymentStatus
	Message       string
}

// GatewayResolution — терминальный (или pending для банковского перевода)
// исход платежа, вычисленный шлюзом асинхронно.
type GatewayResolution struct {
	Status  PaymentStatus
	Message string
}

// GatewayRefund — результат возврата средств.
type GatewayRefund struct {
	RefundTransactionID string
	Message             string
}

// PaymentGateway описывает контракт платёжного шлюза (в этом репозитории —
// детерминированный симулятор, см. service/gateway).
type PaymentGateway interface {
	// Initiate синхронно валидирует входные данные и выдаёт transaction id
	// со статусом processing. Карта не сохраняется.
	Initiate(amountMinor int64, method PaymentMethod, card *CardDetails) (GatewayInitiation, error)
	// Resolve вычисляет исход платежа. Вызывается только фоновым диспетчером.
	Resolve(transactionID string, method PaymentMethod, cardNumber string) GatewayResolution
	// Refund проводит возврат; при отказе шлюза возвращает ошибку без id возврата.
	Refund(transactionID string, amountMinor int64) (GatewayRefund, error)
}

// CartService — внешний коллаборатор корзины. Ядро читает корзину
// как вход checkout и очищает её после успешного создания заказа.
type CartService interface {
	ListItems(customerID string) (CartSnapshot, error)
	Clear(customerID string) error
}

// AddressService — внешний коллаборатор адресов доставки.
type AddressService interface {
	BelongsToUser(addressID, customerID string) bool
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
