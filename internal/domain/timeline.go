package domain

import "time"

// TimelineEvent — одна запись в истории заказа: что произошло и когда.
// Журнал append-only; он объясняет покупателю и поддержке, как заказ
// пришёл в текущее состояние.
type TimelineEvent struct {
	OrderID string
	// Type — машинное имя события, например "order.created" или
	// "payment.failed".
	Type string
	// Reason — человекочитаемое пояснение; пустое для штатных переходов.
	Reason   string
	Occurred time.Time
}
