package domain

import "time"

// Product описывает товар в части, нужной ядру транзакций: цена и остаток.
// Остаток мутируется только через ReserveStock/ReleaseStock репозитория,
// прямой записи поля из оркестраторов нет.
type Product struct {
	ID   string
	SKU  string
	Name string
	// PriceMinor — актуальная цена за единицу в минимальных денежных единицах.
	PriceMinor int64
	// AvailableQty — доступный остаток; никогда не уходит в минус.
	AvailableQty int32
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ReservationLine — одна строка резервирования остатка под заказ.
type ReservationLine struct {
	ProductID string
	SKU       string
	Qty       int32
}

// Validate проверяет корректность строки резервирования.
func (l ReservationLine) Validate() []error {
	var errs []error

	if l.ProductID == "" {
		errs = append(errs, ErrProductIDRequired)
	}
	if l.Qty <= 0 {
		errs = append(errs, ErrReservationQtyInvalid)
	}

	return errs
}
