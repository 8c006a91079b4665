// Package orderbook implements the in-memory limit order book for a
// single instrument. It maintains one red-black tree of price levels
// per side (bids iterated descending, asks ascending), a FIFO queue of
// order ids per level, and an arena that owns every order and doubles
// as the id lookup table for O(1) cancel and modify.
//
// The book is a synchronous, blocking data structure: one mutex covers
// both trees, the arena and the counters, so concurrent callers never
// observe a level without its lookup entry or vice versa. Matching is
// strict price-then-time priority and surfaces one FillEvent per
// applied fill; events are delivered after the mutating call releases
// the lock.
package orderbook
