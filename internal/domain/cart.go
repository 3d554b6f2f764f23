package domain

// CartLine — одна позиция корзины, используемая как вход checkout.
type CartLine struct {
	ProductID string
	Qty       int32
}

// CartSnapshot — read-only срез корзины покупателя на момент checkout.
// Полный CRUD корзины живёт за пределами ядра; ядро только читает
// и очищает корзину как побочный эффект успешного checkout.
type CartSnapshot struct {
	CustomerID string
	Lines      []CartLine
}

// IsEmpty сообщает, пуста ли корзина.
func (c CartSnapshot) IsEmpty() bool {
	return len(c.Lines) == 0
}
