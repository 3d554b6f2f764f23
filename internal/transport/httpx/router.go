package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/service/checkout"
	"github.com/vladislavdragonenkov/shopcore/internal/service/orders"
	"github.com/vladislavdragonenkov/shopcore/internal/service/payments"
)

const (
	headerCustomerID = "X-Customer-ID"
	headerAdmin      = "X-Admin"
)

// Server — тонкий HTTP-слой поверх сервисов ядра: только маршалинг
// и маппинг ошибок, никакой бизнес-логики.
type Server struct {
	checkout *checkout.Orchestrator
	orders   *orders.Service
	payments *payments.Service
	logger   *log.Entry
}

// NewServer создаёт HTTP-обёртку над сервисами ядра.
func NewServer(
	checkoutSvc *checkout.Orchestrator,
	ordersSvc *orders.Service,
	paymentsSvc *payments.Service,
	logger *log.Entry,
) *Server {
	if logger == nil {
		logger = log.WithField("component", "http")
	}
	return &Server{
		checkout: checkoutSvc,
		orders:   ordersSvc,
		payments: paymentsSvc,
		logger:   logger,
	}
}

// Router собирает chi-роутер со всеми маршрутами API.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/checkout", s.handleCheckout)
			r.Get("/", s.handleListOrders)
			r.Get("/stats", s.handleOrderStats)
			r.Get("/{id}", s.handleGetOrder)
			r.Get("/{id}/history", s.handleOrderHistory)
			r.Post("/{id}/cancel", s.handleCancelOrder)
			r.Put("/{id}/status", s.handleAdvanceOrder)
		})
		r.Route("/payments", func(r chi.Router) {
			r.Post("/initiate", s.handleInitiatePayment)
			r.Get("/status/{txn}", s.handlePaymentByTransaction)
			r.Get("/order/{orderID}", s.handlePaymentByOrder)
			r.Post("/refund/{paymentID}", s.handleRefund)
			r.Get("/methods", s.handlePaymentMethods)
			r.Get("/test-cards", s.handleTestCards)
		})
	})

	return r
}

// customerID извлекает идентификатор покупателя из заголовка.
// Аутентификация живёт за пределами ядра, здесь только identity.
func customerID(r *http.Request) string {
	return r.Header.Get(headerCustomerID)
}

// isAdmin сообщает, помечен ли запрос как административный.
func isAdmin(r *http.Request) bool {
	return r.Header.Get(headerAdmin) == "true"
}

func (s *Server) requireCustomer(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := customerID(r)
	if id == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing X-Customer-ID header"})
		return "", false
	}
	return id, true
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if !isAdmin(r) {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "admin access required"})
		return false
	}
	return true
}
