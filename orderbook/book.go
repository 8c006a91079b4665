package orderbook

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ErrInvalidOrderParams is returned by AddOrder for a non-positive
// price or quantity. Nothing is mutated when it is returned.
var ErrInvalidOrderParams = errors.New("orderbook: invalid order parameters")

// Level is an aggregated view of one price level for depth queries.
type Level struct {
	Price Price
	Qty   Quantity
}

// Book is the order book engine for a single instrument. One mutex
// serializes every mutating and aggregate-read operation over both
// level trees, the arena and the counters; only id generation runs
// outside it. Lock hold time is linear in the orders actually touched,
// never in the size of the book.
type Book struct {
	symbol string

	mu     sync.Mutex
	bids   *LevelTree
	asks   *LevelTree
	orders *arena

	lastID atomic.Uint64

	ordersProcessed uint64
	ordersFilled    uint64
	volumeProcessed Quantity

	onFill FillHandler
}

// NewBook creates an empty book for the given symbol.
func NewBook(symbol string) *Book {
	return &Book{
		symbol: symbol,
		bids:   NewLevelTree(Descending),
		asks:   NewLevelTree(Ascending),
		orders: newArena(1 << 10),
	}
}

func (b *Book) Symbol() string { return b.symbol }

// SetFillHandler registers the fill-event consumer. Set it before the
// book is shared between goroutines; it is not synchronized.
func (b *Book) SetFillHandler(h FillHandler) { b.onFill = h }

// AddOrder admits a new resting order at the tail of its price level
// and returns the assigned id. It never matches; crossing the book
// happens through ProcessMarketOrder. A non-positive price or quantity
// fails with ErrInvalidOrderParams before any state changes.
func (b *Book) AddOrder(side Side, otype OrderType, price Price, qty Quantity) (OrderID, error) {
	if price <= 0 || qty <= 0 {
		return 0, ErrInvalidOrderParams
	}
	id := OrderID(b.lastID.Add(1))
	now := time.Now().UnixNano()

	b.mu.Lock()
	o := b.orders.alloc(id)
	*o = Order{
		ID:           id,
		Symbol:       b.symbol,
		Side:         side,
		Type:         otype,
		Price:        price,
		Qty:          qty,
		Status:       Pending,
		CreatedNanos: now,
		UpdatedNanos: now,
	}
	b.sideTree(side).Upsert(price).Enqueue(id, qty)
	b.ordersProcessed++
	b.volumeProcessed += qty
	b.mu.Unlock()

	return id, nil
}

// CancelOrder removes a resting order. It returns false, without
// error, when the id is unknown or the order already terminal: a
// cancel that lost the race to a fill is a routine outcome, not a
// fault. On success the order leaves its level, the lookup table and
// the arena before the call returns.
func (b *Book) CancelOrder(id OrderID) bool {
	now := time.Now().UnixNano()

	b.mu.Lock()
	defer b.mu.Unlock()

	o := b.orders.get(id)
	if o == nil || !o.IsActive() {
		return false
	}
	b.removeRestingLocked(o)
	o.Cancel(now)
	b.orders.release(id)
	return true
}

// ModifyOrder reprices an active order as cancel-then-add: the order
// is cancelled and a fresh order with a new id joins the tail of the
// new level, losing the original time priority. That is deliberate,
// matching how most venues treat price/size amendments that are not
// pure size reductions. The new id is returned so the caller can keep
// tracking its order.
func (b *Book) ModifyOrder(id OrderID, newPrice Price, newQty Quantity) (OrderID, bool) {
	if newPrice <= 0 || newQty <= 0 {
		return 0, false
	}
	now := time.Now().UnixNano()

	b.mu.Lock()
	defer b.mu.Unlock()

	o := b.orders.get(id)
	if o == nil || !o.IsActive() {
		return 0, false
	}
	side, otype := o.Side, o.Type

	b.removeRestingLocked(o)
	o.Cancel(now)
	b.orders.release(id)

	newID := OrderID(b.lastID.Add(1))
	n := b.orders.alloc(newID)
	*n = Order{
		ID:           newID,
		Symbol:       b.symbol,
		Side:         side,
		Type:         otype,
		Price:        newPrice,
		Qty:          newQty,
		Status:       Pending,
		CreatedNanos: now,
		UpdatedNanos: now,
	}
	b.sideTree(side).Upsert(newPrice).Enqueue(newID, newQty)
	b.ordersProcessed++
	b.volumeProcessed += newQty

	return newID, true
}

// ProcessMarketOrder crosses an incoming quantity against the opposite
// side, best price first and FIFO within each level. It returns whether
// the full quantity traded; resting orders keep any partial fills even
// when the incoming quantity runs out of liquidity. Orders that reach
// zero remaining transition to FILLED, bump the filled counter exactly
// once, and are drained from their level and the arena immediately.
func (b *Book) ProcessMarketOrder(side Side, qty Quantity) bool {
	if qty <= 0 {
		return false
	}
	now := time.Now().UnixNano()
	var fills []FillEvent

	b.mu.Lock()
	opp := b.sideTree(side.Opposite())
	left := qty
	for left > 0 {
		lvl := opp.Best()
		if lvl == nil {
			break
		}
		id, ok := lvl.Head()
		if !ok {
			panic(fmt.Sprintf("orderbook: empty level %s survived pruning", lvl.Price))
		}
		o := b.orders.mustGet(id)
		if !o.IsActive() {
			panic(fmt.Sprintf("orderbook: terminal order %d resting in level %s", id, lvl.Price))
		}

		fill := o.Remaining()
		if left < fill {
			fill = left
		}
		o.ApplyFill(fill, now)
		lvl.Reduce(fill)
		left -= fill
		fills = append(fills, FillEvent{
			OrderID: id,
			Side:    o.Side,
			Price:   o.Price,
			Qty:     fill,
			Status:  o.Status,
			Nanos:   now,
		})

		if o.Status == Filled {
			b.ordersFilled++
			lvl.PopHead()
			b.orders.release(id)
			if lvl.Len() == 0 {
				opp.Delete(lvl.Price)
			}
		}
	}
	b.mu.Unlock()

	b.emit(fills)
	return left == 0
}

// GetOrder returns a point-in-time copy of an active order.
func (b *Book) GetOrder(id OrderID) (Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o := b.orders.get(id)
	if o == nil {
		return Order{}, false
	}
	return *o, true
}

// BestBid returns the highest resting bid price, or 0 when the bid
// side is empty.
func (b *Book) BestBid() Price {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bestPrice(b.bids)
}

// BestAsk returns the lowest resting ask price, or 0 when the ask side
// is empty.
func (b *Book) BestAsk() Price {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bestPrice(b.asks)
}

// MidPrice is the average of best bid and ask, or 0 if either side is
// empty.
func (b *Book) MidPrice() Price {
	b.mu.Lock()
	defer b.mu.Unlock()
	bid, ask := bestPrice(b.bids), bestPrice(b.asks)
	if bid <= 0 || ask <= 0 {
		return 0
	}
	return (bid + ask) / 2
}

// Spread is best ask minus best bid, or 0 if either side is empty.
func (b *Book) Spread() Price {
	b.mu.Lock()
	defer b.mu.Unlock()
	bid, ask := bestPrice(b.bids), bestPrice(b.asks)
	if bid <= 0 || ask <= 0 {
		return 0
	}
	return ask - bid
}

// BidVolume sums the remaining quantity over every resting bid.
func (b *Book) BidVolume() Quantity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sideVolume(b.bids)
}

// AskVolume sums the remaining quantity over every resting ask.
func (b *Book) AskVolume() Quantity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sideVolume(b.asks)
}

// TopBids returns up to n bid levels in priority order.
func (b *Book) TopBids(n int) []Level {
	b.mu.Lock()
	defer b.mu.Unlock()
	return topLevels(b.bids, n)
}

// TopAsks returns up to n ask levels in priority order.
func (b *Book) TopAsks(n int) []Level {
	b.mu.Lock()
	defer b.mu.Unlock()
	return topLevels(b.asks, n)
}

// BidLevels is the number of distinct bid prices in the book.
func (b *Book) BidLevels() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bids.Len()
}

// AskLevels is the number of distinct ask prices in the book.
func (b *Book) AskLevels() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.asks.Len()
}

// IsEmpty reports whether neither side has a resting order.
func (b *Book) IsEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bids.Len() == 0 && b.asks.Len() == 0
}

// Counters returns the cumulative statistics: orders processed, orders
// fully filled, and volume admitted.
func (b *Book) Counters() (processed, filled uint64, volume Quantity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ordersProcessed, b.ordersFilled, b.volumeProcessed
}

// Clear empties both sides, the lookup table and the counters. Ids
// keep increasing across Clear so they are never reused within a
// process.
func (b *Book) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bids.Clear()
	b.asks.Clear()
	b.orders.clear()
	b.ordersProcessed = 0
	b.ordersFilled = 0
	b.volumeProcessed = 0
}

// Render formats the top of the book for logs and reports, asks on top
// in reverse so the spread sits in the middle.
func (b *Book) Render(levels int) string {
	asks := b.TopAsks(levels)
	bids := b.TopBids(levels)
	bid, ask, spread := b.BestBid(), b.BestAsk(), b.Spread()
	processed, _, _ := b.Counters()

	var sb strings.Builder
	fmt.Fprintf(&sb, "=== Order Book: %s ===\n", b.symbol)
	for i := len(asks) - 1; i >= 0; i-- {
		fmt.Fprintf(&sb, "%12s | %10d\n", asks[i].Price, asks[i].Qty)
	}
	sb.WriteString("-------------------\n")
	for _, l := range bids {
		fmt.Fprintf(&sb, "%12s | %10d\n", l.Price, l.Qty)
	}
	fmt.Fprintf(&sb, "best bid %s  best ask %s  spread %s  orders %d\n",
		bid, ask, spread, processed)
	return sb.String()
}

/******************** Internal helpers ********************/

func (b *Book) sideTree(s Side) *LevelTree {
	if s == Bid {
		return b.bids
	}
	return b.asks
}

// removeRestingLocked unlinks an active order from its level and
// prunes the level if it empties. A resting order whose level or queue
// entry is missing means the index and the lookup table diverged.
func (b *Book) removeRestingLocked(o *Order) {
	t := b.sideTree(o.Side)
	lvl := t.Find(o.Price)
	if lvl == nil || !lvl.Remove(o.ID, o.Remaining()) {
		panic(fmt.Sprintf("orderbook: active order %d not found at level %s", o.ID, o.Price))
	}
	if lvl.Len() == 0 {
		t.Delete(o.Price)
	}
}

func (b *Book) emit(fills []FillEvent) {
	if b.onFill == nil {
		return
	}
	for _, f := range fills {
		b.onFill(f)
	}
}

func bestPrice(t *LevelTree) Price {
	lvl := t.Best()
	if lvl == nil {
		return 0
	}
	return lvl.Price
}

func sideVolume(t *LevelTree) Quantity {
	var total Quantity
	t.ForEachBest(func(l *PriceLevel) bool {
		total += l.TotalQty()
		return true
	})
	return total
}

func topLevels(t *LevelTree, n int) []Level {
	if n <= 0 {
		return nil
	}
	out := make([]Level, 0, n)
	t.ForEachBest(func(l *PriceLevel) bool {
		if l.TotalQty() > 0 {
			out = append(out, Level{Price: l.Price, Qty: l.TotalQty()})
		}
		return len(out) < n
	})
	return out
}
