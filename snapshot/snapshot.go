// Package snapshot captures point-in-time views of the book for
// reporting: depth per level, counters, and CSV export of the
// simulation's trade and PnL series. An optional pebble archive keeps
// a sequence of depth snapshots on disk for post-run analysis.
package snapshot

import (
	"time"

	"lob/orderbook"
)

// Depth is one point-in-time view of the book, levels best first.
type Depth struct {
	Seq     uint64
	Nanos   int64
	Symbol  string
	BestBid orderbook.Price
	BestAsk orderbook.Price
	Mid     orderbook.Price
	Spread  orderbook.Price
	Bids    []orderbook.Level
	Asks    []orderbook.Level

	OrdersProcessed uint64
	OrdersFilled    uint64
	VolumeProcessed orderbook.Quantity
}

// Capture reads up to levels per side from the book. Each aggregate is
// read under the book's lock; the snapshot as a whole is advisory, not
// atomic, which is fine for reporting.
func Capture(book *orderbook.Book, seq uint64, levels int) Depth {
	processed, filled, volume := book.Counters()
	return Depth{
		Seq:             seq,
		Nanos:           time.Now().UnixNano(),
		Symbol:          book.Symbol(),
		BestBid:         book.BestBid(),
		BestAsk:         book.BestAsk(),
		Mid:             book.MidPrice(),
		Spread:          book.Spread(),
		Bids:            book.TopBids(levels),
		Asks:            book.TopAsks(levels),
		OrdersProcessed: processed,
		OrdersFilled:    filled,
		VolumeProcessed: volume,
	}
}
