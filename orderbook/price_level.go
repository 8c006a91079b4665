package orderbook

// PriceLevel is the FIFO queue of order ids resting at one price on
// one side. The queue holds ids only; the arena owns the orders
// (levels never alias order memory). Arrival order is preserved, so
// index 0 is always the oldest resting order at the price.
type PriceLevel struct {
	Price    Price
	queue    []OrderID
	totalQty Quantity
}

// NewPriceLevel creates an empty level at the given price.
func NewPriceLevel(price Price) *PriceLevel {
	return &PriceLevel{Price: price}
}

// Enqueue appends an order at the tail of the level.
func (l *PriceLevel) Enqueue(id OrderID, remaining Quantity) {
	l.queue = append(l.queue, id)
	l.totalQty += remaining
}

// Remove unlinks an order wherever it sits in the queue. Returns false
// if the id is not at this level.
func (l *PriceLevel) Remove(id OrderID, remaining Quantity) bool {
	for i, qid := range l.queue {
		if qid != id {
			continue
		}
		l.queue = append(l.queue[:i], l.queue[i+1:]...)
		l.totalQty -= remaining
		if l.totalQty < 0 {
			l.totalQty = 0
		}
		return true
	}
	return false
}

// PopHead removes the oldest order after it has fully traded.
func (l *PriceLevel) PopHead() {
	if len(l.queue) == 0 {
		return
	}
	l.queue = l.queue[1:]
}

// Head returns the oldest resting order id, or false on an empty level.
func (l *PriceLevel) Head() (OrderID, bool) {
	if len(l.queue) == 0 {
		return 0, false
	}
	return l.queue[0], true
}

// Reduce subtracts a partial fill from the aggregate quantity.
func (l *PriceLevel) Reduce(qty Quantity) {
	l.totalQty -= qty
	if l.totalQty < 0 {
		l.totalQty = 0
	}
}

// Len is the number of resting orders at the level.
func (l *PriceLevel) Len() int { return len(l.queue) }

// TotalQty is the sum of remaining quantity across the level.
func (l *PriceLevel) TotalQty() Quantity { return l.totalQty }

// Orders returns a copy of the queue in arrival order.
func (l *PriceLevel) Orders() []OrderID {
	out := make([]OrderID, len(l.queue))
	copy(out, l.queue)
	return out
}
