package payments

import (
	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/service/gateway"
)

// MethodInfo описывает способ оплаты для витрины.
type MethodInfo struct {
	ID           domain.PaymentMethod `json:"id"`
	Name         string               `json:"name"`
	RequiresCard bool                 `json:"requires_card"`
}

// TestCardInfo описывает сентинельную карту симулятора и её исход.
type TestCardInfo struct {
	Number      string `json:"number"`
	Outcome     string `json:"outcome"`
	Description string `json:"description"`
}

var methodNames = map[domain.PaymentMethod]string{
	domain.PaymentMethodCreditCard:   "Credit Card",
	domain.PaymentMethodDebitCard:    "Debit Card",
	domain.PaymentMethodPayPal:       "PayPal",
	domain.PaymentMethodBankTransfer: "Bank Transfer",
}

var testCards = []TestCardInfo{
	{Number: gateway.TestCardSuccess, Outcome: "completed", Description: "Payment successful"},
	{Number: gateway.TestCardDeclined, Outcome: "failed", Description: "Card declined"},
	{Number: gateway.TestCardInsufficientFunds, Outcome: "failed", Description: "Insufficient funds"},
	{Number: gateway.TestCardExpired, Outcome: "failed", Description: "Expired card"},
	{Number: gateway.TestCardProcessingError, Outcome: "failed", Description: "Processing error"},
	{Number: gateway.TestCard3DSecure, Outcome: "processing", Description: "3D Secure authentication required"},
}

// Methods возвращает статические дескрипторы способов оплаты.
func (s *Service) Methods() []MethodInfo {
	methods := make([]MethodInfo, 0, len(domain.SupportedPaymentMethods))
	for _, method := range domain.SupportedPaymentMethods {
		methods = append(methods, MethodInfo{
			ID:           method,
			Name:         methodNames[method],
			RequiresCard: method.IsCard(),
		})
	}
	return methods
}

// TestCards возвращает таблицу сентинельных карт симулятора.
func (s *Service) TestCards() []TestCardInfo {
	cards := make([]TestCardInfo, len(testCards))
	copy(cards, testCards)
	return cards
}
