package orderbook

import "time"

// OrderID identifies an order for its whole lifetime. Ids are assigned
// from a process-wide monotonic counter and never reused.
type OrderID uint64

type Side uint8

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	if s == Bid {
		return "BID"
	}
	return "ASK"
}

// Opposite returns the side an incoming order matches against.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

type OrderType uint8

const (
	LimitOrder OrderType = iota
	MarketOrder
	StopOrder
)

func (t OrderType) String() string {
	switch t {
	case LimitOrder:
		return "LIMIT"
	case MarketOrder:
		return "MARKET"
	case StopOrder:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}

type Status uint8

const (
	Pending Status = iota
	PartiallyFilled
	Filled
	Cancelled
	Rejected
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case PartiallyFilled:
		return "PARTIALLY_FILLED"
	case Filled:
		return "FILLED"
	case Cancelled:
		return "CANCELLED"
	case Rejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == Filled || s == Cancelled || s == Rejected
}

// Order is a resting order. Identity fields (ID, Symbol, Side, Type,
// Price, Qty, CreatedNanos) are set once at admission; only the fill
// state may change afterwards, and only while the book lock is held.
type Order struct {
	ID           OrderID
	Symbol       string
	Side         Side
	Type         OrderType
	Price        Price
	Qty          Quantity
	Filled       Quantity
	Status       Status
	CreatedNanos int64
	UpdatedNanos int64
}

// Remaining is the quantity still open.
func (o *Order) Remaining() Quantity { return o.Qty - o.Filled }

// IsActive reports whether the order can still trade or be cancelled.
func (o *Order) IsActive() bool {
	return o.Status == Pending || o.Status == PartiallyFilled
}

// ApplyFill applies a matched quantity. A non-positive quantity, or one
// exceeding the remaining quantity, can only come from a matching bug;
// it is ignored without touching any state rather than surfaced to the
// caller.
func (o *Order) ApplyFill(qty Quantity, nowNanos int64) {
	if qty <= 0 || qty > o.Remaining() {
		return
	}
	o.Filled += qty
	o.UpdatedNanos = nowNanos
	if o.Remaining() == 0 {
		o.Status = Filled
	} else {
		o.Status = PartiallyFilled
	}
}

// Cancel transitions an active order to CANCELLED. Calling it on a
// terminal order is a no-op.
func (o *Order) Cancel(nowNanos int64) {
	if !o.IsActive() {
		return
	}
	o.Status = Cancelled
	o.UpdatedNanos = nowNanos
}

// Age is derived from the creation timestamp; it is not stored.
func (o *Order) Age(nowNanos int64) time.Duration {
	return time.Duration(nowNanos - o.CreatedNanos)
}

// Reset clears the order for pool reuse.
func (o *Order) Reset() { *o = Order{} }
