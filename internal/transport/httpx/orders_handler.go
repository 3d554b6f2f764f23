package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

type checkoutRequest struct {
	ShippingAddressID string `json:"shipping_address_id"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type advanceRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	customer, ok := s.requireCustomer(w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}

	order, err := s.checkout.Checkout(customer, req.ShippingAddressID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderView(order))
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	customer, ok := s.requireCustomer(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit"})
			return
		}
		limit = parsed
	}

	listed, err := s.orders.List(customer, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderViews(listed))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	customer, ok := s.requireCustomer(w, r)
	if !ok {
		return
	}

	order, err := s.orders.Get(customer, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderView(order))
}

func (s *Server) handleOrderHistory(w http.ResponseWriter, r *http.Request) {
	customer, ok := s.requireCustomer(w, r)
	if !ok {
		return
	}

	events, err := s.orders.History(customer, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTimelineViews(events))
}

func (s *Server) handleOrderStats(w http.ResponseWriter, r *http.Request) {
	customer, ok := s.requireCustomer(w, r)
	if !ok {
		return
	}

	stats, err := s.orders.Stats(customer)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	customer, ok := s.requireCustomer(w, r)
	if !ok {
		return
	}

	var req cancelRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
			return
		}
	}

	order, err := s.orders.Cancel(customer, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderView(order))
}

// handleAdvanceOrder продвигает заказ по жизненному циклу. Доступно
// только административным вызовам (fulfilment, не покупателю).
func (s *Server) handleAdvanceOrder(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	var req advanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "status is required"})
		return
	}

	order, err := s.orders.Advance(chi.URLParam(r, "id"), domain.OrderStatus(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderView(order))
}
