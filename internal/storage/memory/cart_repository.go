package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// cartServiceInMemory — in-memory реализация коллаборатора корзины.
// Ядро использует корзину только как вход checkout, поэтому интерфейс
// намеренно узкий: прочитать срез и очистить.
type cartServiceInMemory struct {
	mu    sync.RWMutex
	carts map[string][]domain.CartLine
}

// NewCartService возвращает in-memory корзину для разработки и тестов.
func NewCartService() *cartServiceInMemory {
	return &cartServiceInMemory{carts: make(map[string][]domain.CartLine)}
}

// Put заменяет содержимое корзины покупателя (наполнение для тестов/демо).
func (s *cartServiceInMemory) Put(customerID string, lines []domain.CartLine) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]domain.CartLine, len(lines))
	copy(copied, lines)
	s.carts[customerID] = copied
}

// ListItems возвращает срез корзины покупателя.
func (s *cartServiceInMemory) ListItems(customerID string) (domain.CartSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines, ok := s.carts[customerID]
	if !ok {
		// Отсутствующая корзина эквивалентна пустой.
		return domain.CartSnapshot{CustomerID: customerID}, nil
	}

	copied := make([]domain.CartLine, len(lines))
	copy(copied, lines)
	return domain.CartSnapshot{CustomerID: customerID, Lines: copied}, nil
}

// Clear очищает корзину покупателя.
func (s *cartServiceInMemory) Clear(customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, customerID)
	return nil
}

var _ domain.CartService = (*cartServiceInMemory)(nil)

// addressServiceInMemory — in-memory реализация коллаборатора адресов.
type addressServiceInMemory struct {
	mu sync.RWMutex
	// owners: addressID → customerID
	owners map[string]string
}

// NewAddressService возвращает in-memory реестр адресов.
func NewAddressService() *addressServiceInMemory {
	return &addressServiceInMemory{owners: make(map[string]string)}
}

// Put регистрирует адрес за покупателем.
func (s *addressServiceInMemory) Put(addressID, customerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[addressID] = customerID
}

// BelongsToUser проверяет принадлежность адреса покупателю.
func (s *addressServiceInMemory) BelongsToUser(addressID, customerID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owners[addressID] == customerID
}

var _ domain.AddressService = (*addressServiceInMemory)(nil)
