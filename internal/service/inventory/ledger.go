package inventory

import (
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/metrics"
)

// Ledger реализует InventoryService поверх ProductRepository.
// Резерв работает по принципу «всё или ничего»: при нехватке по любой строке
// уже списанные строки того же вызова возвращаются обратно.
type Ledger struct {
	products domain.ProductRepository
	logger   *log.Entry
	metrics  *metrics.CommerceMetrics
}

// NewLedger создаёт складской леджер. metrics может быть nil (тесты).
func NewLedger(products domain.ProductRepository, m *metrics.CommerceMetrics, logger *log.Entry) *Ledger {
	if logger == nil {
		logger = log.New().WithField("component", "inventory")
	}
	return &Ledger{
		products: products,
		logger:   logger,
		metrics:  m,
	}
}

// Reserve резервирует остатки под заказ. При первой неудаче компенсирует
// списания текущего вызова и возвращает ошибку по проблемному товару.
func (l *Ledger) Reserve(orderID string, lines []domain.ReservationLine) error {
	for i, line := range lines {
		if errs := line.Validate(); len(errs) > 0 {
			l.rollback(orderID, lines[:i])
			return errors.Join(errs...)
		}
		if err := l.products.ReserveStock(line.ProductID, line.Qty); err != nil {
			l.logger.WithError(err).WithFields(log.Fields{
				"order_id":   orderID,
				"product_id": line.ProductID,
			}).Warn("reserve failed")
			l.rollback(orderID, lines[:i])
			l.metrics.RecordStockOp("reserve", "failed")
			return err
		}
	}

	l.metrics.RecordStockOp("reserve", "ok")
	l.logger.WithFields(log.Fields{
		"order_id": orderID,
		"lines":    len(lines),
	}).Debug("stock reserved")
	return nil
}

// Release возвращает остатки на склад. Отсутствующий товар логируется,
// но не прерывает возврат остальных строк.
func (l *Ledger) Release(orderID string, lines []domain.ReservationLine) error {
	var lastErr error
	for _, line := range lines {
		if err := l.products.ReleaseStock(line.ProductID, line.Qty); err != nil {
			l.logger.WithError(err).WithFields(log.Fields{
				"order_id":   orderID,
				"product_id": line.ProductID,
			}).Warn("release failed")
			lastErr = err
		}
	}

	if lastErr != nil {
		l.metrics.RecordStockOp("release", "failed")
		return lastErr
	}
	l.metrics.RecordStockOp("release", "ok")
	return nil
}

// rollback компенсирует уже списанные строки неудавшегося резерва.
func (l *Ledger) rollback(orderID string, reserved []domain.ReservationLine) {
	for _, line := range reserved {
		if err := l.products.ReleaseStock(line.ProductID, line.Qty); err != nil {
			l.logger.WithError(err).WithFields(log.Fields{
				"order_id":   orderID,
				"product_id": line.ProductID,
			}).Error("rollback of partial reserve failed")
		}
	}
}

var _ domain.InventoryService = (*Ledger)(nil)
