package orderbook

import (
	"testing"
)

func price(f float64) Price { return PriceFromFloat(f) }

func mustAdd(t *testing.T, b *Book, side Side, p float64, qty Quantity) OrderID {
	t.Helper()
	id, err := b.AddOrder(side, LimitOrder, price(p), qty)
	if err != nil {
		t.Fatalf("AddOrder(%v, %v, %d): %v", side, p, qty, err)
	}
	return id
}

func TestAddOrderRests(t *testing.T) {
	b := NewBook("AAPL")
	id := mustAdd(t, b, Bid, 150.0, 10)

	if id == 0 {
		t.Error("order id should start at 1")
	}
	if b.BidLevels() != 1 || b.AskLevels() != 0 {
		t.Error("bid should rest on its own side without matching")
	}
	if got := b.BidVolume(); got != 10 {
		t.Errorf("bid volume = %d, want 10", got)
	}
}

func TestAddOrderRejectsInvalidParams(t *testing.T) {
	b := NewBook("AAPL")
	cases := []struct {
		p   Price
		qty Quantity
	}{
		{0, 10}, {-price(1), 10}, {price(100), 0}, {price(100), -5},
	}
	for _, c := range cases {
		if _, err := b.AddOrder(Bid, LimitOrder, c.p, c.qty); err != ErrInvalidOrderParams {
			t.Errorf("AddOrder(%v, %d): err = %v, want ErrInvalidOrderParams", c.p, c.qty, err)
		}
	}
	if !b.IsEmpty() {
		t.Error("rejected orders must not mutate the book")
	}
	if processed, _, _ := b.Counters(); processed != 0 {
		t.Error("rejected orders must not bump counters")
	}
}

func TestBidAskSeparation(t *testing.T) {
	b := NewBook("AAPL")
	mustAdd(t, b, Bid, 149.0, 5)
	mustAdd(t, b, Ask, 151.0, 5)

	if b.BidLevels() != 1 || b.AskLevels() != 1 {
		t.Error("bids and asks should live in separate trees")
	}
}

func TestMidPriceAndSpread(t *testing.T) {
	b := NewBook("AAPL")
	mustAdd(t, b, Bid, 149.0, 10)
	mustAdd(t, b, Ask, 151.0, 10)

	if got := b.MidPrice(); got != price(150.0) {
		t.Errorf("mid = %s, want 150.0000", got)
	}
	if got := b.Spread(); got != price(2.0) {
		t.Errorf("spread = %s, want 2.0000", got)
	}
}

func TestEmptySideAggregates(t *testing.T) {
	b := NewBook("AAPL")
	if b.BestBid() != 0 || b.BestAsk() != 0 || b.MidPrice() != 0 || b.Spread() != 0 {
		t.Error("empty book aggregates should all be 0")
	}
	mustAdd(t, b, Bid, 149.0, 10)
	if b.MidPrice() != 0 || b.Spread() != 0 {
		t.Error("one-sided book has no mid or spread")
	}
	if got := b.BestBid(); got != price(149.0) {
		t.Errorf("best bid = %s, want 149.0000", got)
	}
}

func TestMarketOrderPartialFillLeavesRemainder(t *testing.T) {
	b := NewBook("AAPL")
	id := mustAdd(t, b, Ask, 151.0, 100)

	if !b.ProcessMarketOrder(Bid, 50) {
		t.Fatal("market buy of 50 against 100 resting should fully execute")
	}
	if got := b.AskVolume(); got != 50 {
		t.Errorf("ask volume = %d, want 50", got)
	}
	o, ok := b.GetOrder(id)
	if !ok {
		t.Fatal("partially filled order should stay in the book")
	}
	if o.Status != PartiallyFilled || o.Remaining() != 50 {
		t.Errorf("order = %v remaining %d, want PARTIALLY_FILLED with 50", o.Status, o.Remaining())
	}
	if _, filled, _ := b.Counters(); filled != 0 {
		t.Error("partial fill must not count as a filled order")
	}
}

func TestMarketOrderFIFOWithinLevel(t *testing.T) {
	b := NewBook("AAPL")
	first := mustAdd(t, b, Ask, 151.0, 30)
	second := mustAdd(t, b, Ask, 151.0, 30)

	var fills []FillEvent
	b.SetFillHandler(func(f FillEvent) { fills = append(fills, f) })

	if !b.ProcessMarketOrder(Bid, 40) {
		t.Fatal("market order should fully execute")
	}
	if len(fills) != 2 {
		t.Fatalf("got %d fills, want 2", len(fills))
	}
	if fills[0].OrderID != first || fills[0].Qty != 30 || fills[0].Status != Filled {
		t.Errorf("first fill = %+v, want order %d fully filled for 30", fills[0], first)
	}
	if fills[1].OrderID != second || fills[1].Qty != 10 || fills[1].Status != PartiallyFilled {
		t.Errorf("second fill = %+v, want order %d partially filled for 10", fills[1], second)
	}
}

func TestMarketOrderPricePriorityAcrossLevels(t *testing.T) {
	b := NewBook("AAPL")
	worse := mustAdd(t, b, Ask, 152.0, 20)
	better := mustAdd(t, b, Ask, 151.0, 20)

	var fills []FillEvent
	b.SetFillHandler(func(f FillEvent) { fills = append(fills, f) })

	if !b.ProcessMarketOrder(Bid, 30) {
		t.Fatal("market order should fully execute")
	}
	if fills[0].OrderID != better || fills[0].Price != price(151.0) {
		t.Errorf("first fill should hit the better ask %d at 151, got %+v", better, fills[0])
	}
	if fills[1].OrderID != worse || fills[1].Qty != 10 {
		t.Errorf("remainder should walk to 152, got %+v", fills[1])
	}
	if b.AskLevels() != 1 {
		t.Error("exhausted level should be pruned")
	}
}

func TestMarketOrderSellsHitBids(t *testing.T) {
	b := NewBook("AAPL")
	mustAdd(t, b, Bid, 150.0, 10)
	mustAdd(t, b, Bid, 149.0, 10)

	var fills []FillEvent
	b.SetFillHandler(func(f FillEvent) { fills = append(fills, f) })

	if !b.ProcessMarketOrder(Ask, 15) {
		t.Fatal("market sell should fully execute")
	}
	if fills[0].Price != price(150.0) || fills[1].Price != price(149.0) {
		t.Errorf("sell should hit highest bid first, got %s then %s", fills[0].Price, fills[1].Price)
	}
	if got := b.BestBid(); got != price(149.0) {
		t.Errorf("best bid after sweep = %s, want 149.0000", got)
	}
}

func TestMarketOrderInsufficientLiquidity(t *testing.T) {
	b := NewBook("AAPL")
	mustAdd(t, b, Ask, 151.0, 30)

	if b.ProcessMarketOrder(Bid, 100) {
		t.Error("market order beyond available liquidity should report false")
	}
	if b.AskVolume() != 0 || b.AskLevels() != 0 {
		t.Error("partial execution against the whole side should still drain it")
	}
	if b.ProcessMarketOrder(Bid, 10) {
		t.Error("market order against an empty side should report false")
	}
	if b.ProcessMarketOrder(Bid, 0) {
		t.Error("non-positive market quantity should report false")
	}
}

func TestCancelRoundTrip(t *testing.T) {
	b := NewBook("AAPL")
	id := mustAdd(t, b, Bid, 150.0, 10)

	if !b.CancelOrder(id) {
		t.Fatal("cancel of a resting order should succeed")
	}
	if got := b.BestBid(); got != 0 {
		t.Errorf("best bid after cancel = %s, want 0", got)
	}
	if !b.IsEmpty() {
		t.Error("book should be empty after cancelling its only order")
	}
	if b.CancelOrder(id) {
		t.Error("second cancel of the same id should be a no-op")
	}
	if b.CancelOrder(9999) {
		t.Error("cancel of an unknown id should be a no-op")
	}
}

func TestCancelOneOfManyKeepsLevel(t *testing.T) {
	b := NewBook("AAPL")
	a := mustAdd(t, b, Bid, 150.0, 10)
	mustAdd(t, b, Bid, 150.0, 20)

	if !b.CancelOrder(a) {
		t.Fatal("cancel should succeed")
	}
	if b.BidLevels() != 1 {
		t.Error("level with remaining orders must survive a cancel")
	}
	if got := b.BidVolume(); got != 20 {
		t.Errorf("bid volume = %d, want 20", got)
	}
}

func TestModifyOrderReassignsIDAndResetsPriority(t *testing.T) {
	b := NewBook("AAPL")
	id := mustAdd(t, b, Ask, 151.0, 10)
	rival := mustAdd(t, b, Ask, 151.5, 10)

	newID, ok := b.ModifyOrder(id, price(151.5), 10)
	if !ok {
		t.Fatal("modify of an active order should succeed")
	}
	if newID == id {
		t.Error("modify must assign a fresh id")
	}
	if _, found := b.GetOrder(id); found {
		t.Error("old id should be gone after modify")
	}

	var fills []FillEvent
	b.SetFillHandler(func(f FillEvent) { fills = append(fills, f) })
	b.ProcessMarketOrder(Bid, 10)
	if fills[0].OrderID != rival {
		t.Error("modified order should queue behind existing orders at the new level")
	}
}

func TestModifyRejectsInvalidAndUnknown(t *testing.T) {
	b := NewBook("AAPL")
	id := mustAdd(t, b, Bid, 150.0, 10)

	if _, ok := b.ModifyOrder(id, 0, 10); ok {
		t.Error("modify with non-positive price should fail")
	}
	if _, ok := b.ModifyOrder(id, price(150), 0); ok {
		t.Error("modify with non-positive quantity should fail")
	}
	if _, ok := b.ModifyOrder(424242, price(150), 10); ok {
		t.Error("modify of an unknown id should fail")
	}
	if got := b.BidVolume(); got != 10 {
		t.Error("failed modify must not mutate the book")
	}
}

func TestCountersAndClear(t *testing.T) {
	b := NewBook("AAPL")
	mustAdd(t, b, Ask, 151.0, 40)
	mustAdd(t, b, Bid, 149.0, 40)
	b.ProcessMarketOrder(Bid, 40)

	processed, filled, volume := b.Counters()
	if processed != 2 || filled != 1 || volume != 80 {
		t.Errorf("counters = (%d, %d, %d), want (2, 1, 80)", processed, filled, volume)
	}

	b.Clear()
	if !b.IsEmpty() {
		t.Error("Clear should empty both sides")
	}
	processed, filled, volume = b.Counters()
	if processed != 0 || filled != 0 || volume != 0 {
		t.Error("Clear should zero the counters")
	}

	id := mustAdd(t, b, Bid, 150.0, 1)
	if id <= 2 {
		t.Error("ids must keep increasing across Clear")
	}
}

func TestTopLevelsDepth(t *testing.T) {
	b := NewBook("AAPL")
	mustAdd(t, b, Bid, 149.0, 10)
	mustAdd(t, b, Bid, 148.5, 20)
	mustAdd(t, b, Bid, 148.0, 30)
	mustAdd(t, b, Ask, 151.0, 15)

	top := b.TopBids(2)
	if len(top) != 2 {
		t.Fatalf("got %d bid levels, want 2", len(top))
	}
	if top[0].Price != price(149.0) || top[0].Qty != 10 {
		t.Errorf("top bid = %+v, want 149.0000 x 10", top[0])
	}
	if top[1].Price != price(148.5) || top[1].Qty != 20 {
		t.Errorf("second bid = %+v, want 148.5000 x 20", top[1])
	}
	if got := b.TopAsks(5); len(got) != 1 {
		t.Errorf("got %d ask levels, want 1", len(got))
	}
	if got := b.TopBids(0); got != nil {
		t.Error("TopBids(0) should return nil")
	}
}

func TestFillEventsCarryFinalStatus(t *testing.T) {
	b := NewBook("AAPL")
	mustAdd(t, b, Ask, 151.0, 10)

	var fills []FillEvent
	b.SetFillHandler(func(f FillEvent) { fills = append(fills, f) })
	b.ProcessMarketOrder(Bid, 10)

	if len(fills) != 1 {
		t.Fatalf("got %d fills, want 1", len(fills))
	}
	f := fills[0]
	if f.Side != Ask || f.Price != price(151.0) || f.Qty != 10 || f.Status != Filled {
		t.Errorf("fill = %+v", f)
	}
	if f.Nanos == 0 {
		t.Error("fill should carry a timestamp")
	}
}

func TestConcurrentMixedTraffic(t *testing.T) {
	b := NewBook("AAPL")
	done := make(chan struct{})

	for w := 0; w < 4; w++ {
		go func(w int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 500; i++ {
				side := Bid
				if (i+w)%2 == 0 {
					side = Ask
				}
				id, err := b.AddOrder(side, LimitOrder, price(149.0+float64(i%5)), 10)
				if err != nil {
					t.Errorf("AddOrder: %v", err)
					return
				}
				switch i % 3 {
				case 0:
					b.CancelOrder(id)
				case 1:
					b.ProcessMarketOrder(side.Opposite(), 5)
				default:
					b.BidVolume()
					b.MidPrice()
				}
			}
		}(w)
	}
	for w := 0; w < 4; w++ {
		<-done
	}

	// Aggregates must still be coherent after the storm.
	total := b.BidVolume() + b.AskVolume()
	if total < 0 {
		t.Errorf("negative resting volume %d", total)
	}
	processed, filled, _ := b.Counters()
	if filled > processed {
		t.Errorf("filled %d exceeds processed %d", filled, processed)
	}
}
