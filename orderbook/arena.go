package orderbook

import (
	"fmt"

	"lob/memory"
)

// arena is the single owner of every order in the book and the id
// lookup table behind cancel/modify. Price levels refer to orders by
// id only, so there is exactly one mutable reference to an order's
// fill state and it lives here.
type arena struct {
	byID map[OrderID]*Order
	pool *memory.Pool[Order]
}

func newArena(poolSize int) *arena {
	return &arena{
		byID: make(map[OrderID]*Order, poolSize),
		pool: memory.NewPool[Order](poolSize),
	}
}

// alloc takes an order from the pool and registers it under its id.
// The caller fills the fields before the book lock is released.
func (a *arena) alloc(id OrderID) *Order {
	o := a.pool.Get()
	o.ID = id
	a.byID[id] = o
	return o
}

// get returns the order for id, or nil for unknown ids. Unknown ids
// are a routine outcome (cancel racing a fill), not a fault.
func (a *arena) get(id OrderID) *Order {
	return a.byID[id]
}

// mustGet is for ids obtained from a price level. A level entry with
// no arena entry means the two structures diverged, which is invariant
// breakage, so it fails loudly instead of limping on.
func (a *arena) mustGet(id OrderID) *Order {
	o := a.byID[id]
	if o == nil {
		panic(fmt.Sprintf("orderbook: level references order %d missing from arena", id))
	}
	return o
}

// release drops a terminal order and recycles its memory.
func (a *arena) release(id OrderID) {
	o := a.byID[id]
	if o == nil {
		return
	}
	delete(a.byID, id)
	a.pool.Put(o)
}

func (a *arena) len() int { return len(a.byID) }

// clear empties the arena, recycling every order.
func (a *arena) clear() {
	for id, o := range a.byID {
		delete(a.byID, id)
		a.pool.Put(o)
	}
}
