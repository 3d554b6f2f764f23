package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

type cardRequest struct {
	Number         string `json:"number"`
	CVV            string `json:"cvv"`
	ExpiryMonth    string `json:"expiry_month"`
	ExpiryYear     string `json:"expiry_year"`
	CardholderName string `json:"cardholder_name"`
}

type initiatePaymentRequest struct {
	OrderID string       `json:"order_id"`
	Method  string       `json:"method"`
	Card    *cardRequest `json:"card,omitempty"`
}

type refundRequest struct {
	AmountMinor int64  `json:"amount_minor"`
	Reason      string `json:"reason"`
}

func (s *Server) handleInitiatePayment(w http.ResponseWriter, r *http.Request) {
	customer, ok := s.requireCustomer(w, r)
	if !ok {
		return
	}

	var req initiatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}
	if req.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "order_id is required"})
		return
	}

	var card *domain.CardDetails
	if req.Card != nil {
		card = &domain.CardDetails{
			Number:         req.Card.Number,
			CVV:            req.Card.CVV,
			ExpiryMonth:    req.Card.ExpiryMonth,
			ExpiryYear:     req.Card.ExpiryYear,
			CardholderName: req.Card.CardholderName,
		}
	}

	payment, err := s.payments.Initiate(customer, req.OrderID, domain.PaymentMethod(req.Method), card)
	if err != nil {
		writeError(w, err)
		return
	}

	// 202: итог платежа будет получен асинхронно диспетчером подтверждений.
	writeJSON(w, http.StatusAccepted, toPaymentView(payment))
}

func (s *Server) handlePaymentByTransaction(w http.ResponseWriter, r *http.Request) {
	customer, ok := s.requireCustomer(w, r)
	if !ok {
		return
	}

	payment, err := s.payments.StatusByTransaction(customer, chi.URLParam(r, "txn"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPaymentView(payment))
}

func (s *Server) handlePaymentByOrder(w http.ResponseWriter, r *http.Request) {
	customer, ok := s.requireCustomer(w, r)
	if !ok {
		return
	}

	payment, err := s.payments.ByOrder(customer, chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPaymentView(payment))
}

// handleRefund запускает возврат средств. Возврат — административная
// операция: покупатель запрашивает его через поддержку.
func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	var req refundRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
			return
		}
	}

	payment, err := s.payments.Refund(chi.URLParam(r, "paymentID"), req.AmountMinor, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPaymentView(payment))
}

func (s *Server) handlePaymentMethods(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.payments.Methods())
}

func (s *Server) handleTestCards(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.payments.TestCards())
}
