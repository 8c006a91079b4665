// Package marketmaker quotes a two-sided market into the order book
// around the current mid, widening with realized volatility and
// skewing against accumulated inventory.
package marketmaker

import (
	"math"
	"sync"

	"go.uber.org/zap"

	"lob/orderbook"
	"lob/pricegen"
)

// Config holds the quoting and risk parameters.
type Config struct {
	OrderSize     orderbook.Quantity
	BaseSpreadBPS float64
	MinSpreadBPS  float64
	MaxSpreadBPS  float64
	DynamicSpread bool
	VolMultiplier float64 // added spread per unit of realized vol
	VolLookback   int
	SkewBPS       float64 // mid shift per unit of position/limit
	PositionLimit float64 // max absolute position
	MaxLoss       float64 // total PnL floor before emergency stop
	StopLoss      float64 // drawdown floor before emergency stop
}

// PnLSource exposes the numbers the risk checks need.
type PnLSource interface {
	Total() float64
	MaxDrawdown() float64
}

// Maker owns at most one resting bid and one resting ask. Each Step
// cancels the previous pair and re-quotes around the fresh mid. Fills
// arrive through OnFill from the engine's fill stream.
type Maker struct {
	book *orderbook.Book
	gen  *pricegen.Generator
	pnl  PnLSource
	cfg  Config
	log  *zap.Logger

	mu       sync.Mutex
	bidID    orderbook.OrderID
	askID    orderbook.OrderID
	position float64
	stopped  bool

	ordersPlaced   uint64
	tradesExecuted uint64
}

// New creates a market maker. pnl may be nil, disabling the loss
// checks; the position limit still applies.
func New(book *orderbook.Book, gen *pricegen.Generator, pnl PnLSource, cfg Config, log *zap.Logger) *Maker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Maker{book: book, gen: gen, pnl: pnl, cfg: cfg, log: log}
}

// Step runs one quoting cycle: risk checks, cancel stale quotes,
// re-quote both sides around the current mid. After an emergency stop
// it does nothing.
func (m *Maker) Step() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}
	if m.breachedLossLimitsLocked() {
		m.emergencyStopLocked()
		return
	}

	m.cancelQuotesLocked()

	mid := m.book.MidPrice().Float()
	if mid <= 0 {
		mid = m.gen.Current()
	}
	if mid <= 0 {
		return
	}

	half := m.halfSpreadLocked(mid)
	center := m.skewedCenterLocked(mid)

	if m.position < m.cfg.PositionLimit {
		if id, err := m.book.AddOrder(orderbook.Bid, orderbook.LimitOrder,
			orderbook.PriceFromFloat(center-half), m.cfg.OrderSize); err == nil {
			m.bidID = id
			m.ordersPlaced++
		}
	}
	if m.position > -m.cfg.PositionLimit {
		if id, err := m.book.AddOrder(orderbook.Ask, orderbook.LimitOrder,
			orderbook.PriceFromFloat(center+half), m.cfg.OrderSize); err == nil {
			m.askID = id
			m.ordersPlaced++
		}
	}
}

// OnFill consumes the engine's fill stream. Fills of the maker's own
// quotes move its position; everything else is ignored.
func (m *Maker) OnFill(f orderbook.FillEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch f.OrderID {
	case m.bidID:
		m.position += float64(f.Qty)
	case m.askID:
		m.position -= float64(f.Qty)
	default:
		return
	}
	m.tradesExecuted++
	if f.Status == orderbook.Filled {
		if f.OrderID == m.bidID {
			m.bidID = 0
		} else {
			m.askID = 0
		}
	}
}

// Position returns the maker's signed inventory.
func (m *Maker) Position() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

// Stopped reports whether the emergency stop has triggered.
func (m *Maker) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// Stats returns orders placed and trades executed.
func (m *Maker) Stats() (placed, trades uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ordersPlaced, m.tradesExecuted
}

// Shutdown cancels any resting quotes and stops further quoting.
func (m *Maker) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelQuotesLocked()
	m.stopped = true
}

// Reset re-arms a stopped maker and zeroes its inventory and counters.
func (m *Maker) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelQuotesLocked()
	m.position = 0
	m.stopped = false
	m.ordersPlaced = 0
	m.tradesExecuted = 0
}

// halfSpreadLocked returns half the quoted spread in price units. The
// spread fraction starts at the base bps, widens with realized
// volatility and with inventory pressure, then clamps to the
// configured band.
func (m *Maker) halfSpreadLocked(mid float64) float64 {
	frac := m.cfg.BaseSpreadBPS / 10000.0
	if m.cfg.DynamicSpread {
		frac += m.gen.RealizedVolatility(m.cfg.VolLookback) * m.cfg.VolMultiplier
		if m.cfg.PositionLimit > 0 {
			frac += math.Abs(m.position) / m.cfg.PositionLimit * 0.0001
		}
		lo := m.cfg.MinSpreadBPS / 10000.0
		hi := m.cfg.MaxSpreadBPS / 10000.0
		frac = math.Max(lo, math.Min(hi, frac))
	}
	return mid * frac / 2.0
}

// skewedCenterLocked shifts the quote center away from the inventory:
// long inventory quotes lower to attract buyers of it, short quotes
// higher.
func (m *Maker) skewedCenterLocked(mid float64) float64 {
	if m.cfg.PositionLimit <= 0 || m.cfg.SkewBPS <= 0 {
		return mid
	}
	skew := m.position / m.cfg.PositionLimit * m.cfg.SkewBPS / 10000.0
	return mid * (1.0 - skew)
}

func (m *Maker) breachedLossLimitsLocked() bool {
	if m.pnl == nil {
		return false
	}
	if m.cfg.MaxLoss > 0 && m.pnl.Total() <= -m.cfg.MaxLoss {
		return true
	}
	if m.cfg.StopLoss > 0 && m.pnl.MaxDrawdown() >= m.cfg.StopLoss {
		return true
	}
	return false
}

func (m *Maker) emergencyStopLocked() {
	m.stopped = true
	m.cancelQuotesLocked()
	m.log.Warn("emergency stop: loss limit breached",
		zap.Float64("total_pnl", m.pnl.Total()),
		zap.Float64("max_drawdown", m.pnl.MaxDrawdown()),
		zap.Float64("position", m.position))
}

func (m *Maker) cancelQuotesLocked() {
	if m.bidID != 0 {
		m.book.CancelOrder(m.bidID)
		m.bidID = 0
	}
	if m.askID != 0 {
		m.book.CancelOrder(m.askID)
		m.askID = 0
	}
}
