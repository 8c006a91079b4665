package orderbook

// FillEvent records one quantity decrement applied to a resting order
// during matching. The book pushes one event per applied fill; trade
// and PnL accounting live entirely with the consumers of this stream.
type FillEvent struct {
	OrderID OrderID
	Side    Side
	Price   Price
	Qty     Quantity
	Status  Status
	Nanos   int64
}

// FillHandler receives fill events. Handlers run on the caller's
// goroutine after the book lock has been released, so a handler may
// call back into the book, but events from concurrent callers may
// interleave.
type FillHandler func(FillEvent)
