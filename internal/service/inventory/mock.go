package inventory

import "github.com/vladislavdragonenkov/shopcore/internal/domain"

// MockService — конфигурируемая заглушка InventoryService для тестов.
type MockService struct {
	ReserveErr error
	ReleaseErr error

	ReserveCalls int
	ReleaseCalls int

	LastOrderID string
	LastLines   []domain.ReservationLine
}

// NewMockService возвращает mock с успешным сценарием по умолчанию.
func NewMockService() *MockService {
	return &MockService{}
}

// Reserve возвращает заранее настроенную ошибку и считает вызовы.
func (m *MockService) Reserve(orderID string, lines []domain.ReservationLine) error {
	m.ReserveCalls++
	m.LastOrderID = orderID
	m.LastLines = lines
	return m.ReserveErr
}

// Release возвращает заранее настроенную ошибку и считает вызовы.
func (m *MockService) Release(orderID string, lines []domain.ReservationLine) error {
	m.ReleaseCalls++
	m.LastOrderID = orderID
	m.LastLines = lines
	return m.ReleaseErr
}

var _ domain.InventoryService = (*MockService)(nil)
