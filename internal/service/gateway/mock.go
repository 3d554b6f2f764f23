package gateway

import "github.com/vladislavdragonenkov/shopcore/internal/domain"

// Mock — конфигурируемая заглушка PaymentGateway для тестов оркестраторов.
type Mock struct {
	InitiateResult domain.GatewayInitiation
	InitiateErr    error
	ResolveResult  domain.GatewayResolution
	RefundResult   domain.GatewayRefund
	RefundErr      error

	InitiateCalls int
	ResolveCalls  int
	RefundCalls   int
}

// NewMock возвращает mock с успешным сценарием по умолчанию.
func NewMock() *Mock {
	return &Mock{
		InitiateResult: domain.GatewayInitiation{
			TransactionID: "TXN-TEST-00000000",
			Status:        domain.PaymentStatusProcessing,
			Message:       "Payment initiated successfully",
		},
		ResolveResult: domain.GatewayResolution{
			Status:  domain.PaymentStatusCompleted,
			Message: "Payment successful",
		},
		RefundResult: domain.GatewayRefund{
			RefundTransactionID: "RFD-TEST-00000000",
			Message:             "Refund processed successfully",
		},
	}
}

// Initiate возвращает заранее настроенный результат и считает вызовы.
func (m *Mock) Initiate(amountMinor int64, method domain.PaymentMethod, card *domain.CardDetails) (domain.GatewayInitiation, error) {
	m.InitiateCalls++
	if m.InitiateErr != nil {
		return domain.GatewayInitiation{}, m.InitiateErr
	}
	return m.InitiateResult, nil
}

// Resolve возвращает настроенный исход и считает вызовы.
func (m *Mock) Resolve(transactionID string, method domain.PaymentMethod, cardNumber string) domain.GatewayResolution {
	m.ResolveCalls++
	return m.ResolveResult
}

// Refund возвращает настроенный результат и считает вызовы.
func (m *Mock) Refund(transactionID string, amountMinor int64) (domain.GatewayRefund, error) {
	m.RefundCalls++
	if m.RefundErr != nil {
		return domain.GatewayRefund{}, m.RefundErr
	}
	return m.RefundResult, nil
}

var _ domain.PaymentGateway = (*Mock)(nil)
