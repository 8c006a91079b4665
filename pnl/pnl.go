// Package pnl tracks trading performance from a stream of fills:
// signed average-cost position, realized and unrealized PnL, and the
// derived risk metrics (drawdown, Sharpe, win rate, profit factor).
package pnl

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"lob/orderbook"
)

// Trade is one recorded fill with the realized PnL it produced.
// Opening fills realize nothing; closing fills realize against the
// average cost of the position they reduce.
type Trade struct {
	ID       uint64
	Nanos    int64
	Side     orderbook.Side
	Price    float64
	Qty      float64
	Realized float64
}

// Snapshot is the PnL state captured at one mark-to-market.
type Snapshot struct {
	Nanos      int64
	Realized   float64
	Unrealized float64
	Total      float64
	Position   float64
	AvgCost    float64
	MarkPrice  float64
}

// Tracker accumulates fills and mark prices. All methods are safe for
// concurrent use; the simulation feeds fills from the engine's fill
// stream and marks from the reference price tick.
type Tracker struct {
	mu sync.Mutex

	position float64 // signed, positive long
	avgCost  float64
	mark     float64

	realized   float64
	unrealized float64

	peak        float64
	maxDrawdown float64

	trades    []Trade
	snapshots []Snapshot
	returns   []float64

	maxHistory int
	nextID     uint64
}

// NewTracker creates a tracker keeping at most maxHistory trades,
// snapshots and per-mark returns.
func NewTracker(maxHistory int) *Tracker {
	if maxHistory <= 0 {
		maxHistory = 10000
	}
	return &Tracker{maxHistory: maxHistory}
}

// RecordFill applies one fill. A buy increases the signed position, a
// sell decreases it. Fills that reduce the position realize
// (price - avgCost) * closedQty signed by the closed direction; a fill
// larger than the open position flips it, opening the remainder at the
// fill price.
func (t *Tracker) RecordFill(side orderbook.Side, price, qty float64) {
	if qty <= 0 || price <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	delta := qty
	if side == orderbook.Ask {
		delta = -qty
	}

	var realizedDelta float64
	switch {
	case t.position == 0 || sameSign(t.position, delta):
		total := math.Abs(t.position)*t.avgCost + qty*price
		t.position += delta
		t.avgCost = total / math.Abs(t.position)
	default:
		closed := math.Min(qty, math.Abs(t.position))
		if t.position > 0 {
			realizedDelta = (price - t.avgCost) * closed
		} else {
			realizedDelta = (t.avgCost - price) * closed
		}
		t.realized += realizedDelta
		t.position += delta
		if t.position == 0 {
			t.avgCost = 0
		} else if !sameSign(t.position-delta, t.position) {
			// Flipped through zero; remainder opens at the fill price.
			t.avgCost = price
		}
	}

	t.nextID++
	t.trades = append(t.trades, Trade{
		ID:       t.nextID,
		Nanos:    time.Now().UnixNano(),
		Side:     side,
		Price:    price,
		Qty:      qty,
		Realized: realizedDelta,
	})
	if len(t.trades) > t.maxHistory {
		t.trades = t.trades[1:]
	}
	t.recomputeLocked()
}

// Mark revalues the open position and appends a snapshot to the PnL
// series.
func (t *Tracker) Mark(price float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mark = price
	t.recomputeLocked()
	t.snapshotLocked()
}

func (t *Tracker) recomputeLocked() {
	if t.position == 0 || t.mark == 0 {
		t.unrealized = 0
	} else {
		t.unrealized = (t.mark - t.avgCost) * t.position
	}
	total := t.realized + t.unrealized
	if total > t.peak {
		t.peak = total
	}
	if dd := t.peak - total; dd > t.maxDrawdown {
		t.maxDrawdown = dd
	}
}

func (t *Tracker) snapshotLocked() {
	total := t.realized + t.unrealized
	if n := len(t.snapshots); n > 0 {
		prev := t.snapshots[n-1].Total
		var r float64
		if prev != 0 {
			r = (total - prev) / math.Abs(prev)
		}
		t.returns = append(t.returns, r)
		if len(t.returns) > t.maxHistory {
			t.returns = t.returns[1:]
		}
	}
	t.snapshots = append(t.snapshots, Snapshot{
		Nanos:      time.Now().UnixNano(),
		Realized:   t.realized,
		Unrealized: t.unrealized,
		Total:      total,
		Position:   t.position,
		AvgCost:    t.avgCost,
		MarkPrice:  t.mark,
	})
	if len(t.snapshots) > t.maxHistory {
		t.snapshots = t.snapshots[1:]
	}
}

// Position returns the signed open position.
func (t *Tracker) Position() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.position
}

// AvgCost returns the average cost of the open position, 0 when flat.
func (t *Tracker) AvgCost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.avgCost
}

// Realized returns cumulative realized PnL.
func (t *Tracker) Realized() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.realized
}

// Unrealized returns the open position marked to the last Mark price.
func (t *Tracker) Unrealized() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unrealized
}

// Total returns realized plus unrealized PnL.
func (t *Tracker) Total() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.realized + t.unrealized
}

// MaxDrawdown returns the largest peak-to-trough fall of total PnL.
func (t *Tracker) MaxDrawdown() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxDrawdown
}

// SharpeRatio computes mean over stddev of the last lookback per-mark
// returns, risk-free rate zero. Returns 0 with insufficient history.
func (t *Tracker) SharpeRatio(lookback int) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	rs := t.recentReturnsLocked(lookback)
	vol := stddev(rs)
	if vol == 0 {
		return 0
	}
	return mean(rs) / vol
}

// Volatility is the standard deviation of the last lookback per-mark
// returns.
func (t *Tracker) Volatility(lookback int) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return stddev(t.recentReturnsLocked(lookback))
}

func (t *Tracker) recentReturnsLocked(lookback int) []float64 {
	if lookback <= 0 || len(t.returns) < lookback {
		return nil
	}
	return t.returns[len(t.returns)-lookback:]
}

// WinRate is the share of closing trades that realized a profit.
// Opening trades do not count either way.
func (t *Tracker) WinRate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var wins, closes int
	for _, tr := range t.trades {
		if tr.Realized == 0 {
			continue
		}
		closes++
		if tr.Realized > 0 {
			wins++
		}
	}
	if closes == 0 {
		return 0
	}
	return float64(wins) / float64(closes)
}

// ProfitFactor is gross realized profit over gross realized loss.
// With no losses it returns +Inf when profitable and 0 when flat.
func (t *Tracker) ProfitFactor() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var profit, loss float64
	for _, tr := range t.trades {
		if tr.Realized > 0 {
			profit += tr.Realized
		} else {
			loss -= tr.Realized
		}
	}
	if loss == 0 {
		if profit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return profit / loss
}

// Trades returns a copy of the bounded trade history.
func (t *Tracker) Trades() []Trade {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Trade, len(t.trades))
	copy(out, t.trades)
	return out
}

// Snapshots returns a copy of the bounded PnL series.
func (t *Tracker) Snapshots() []Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Snapshot, len(t.snapshots))
	copy(out, t.snapshots)
	return out
}

// TradeCount returns how many trades the history currently holds.
func (t *Tracker) TradeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.trades)
}

// Report renders a human-readable summary for end-of-run output.
func (t *Tracker) Report() string {
	t.mu.Lock()
	position, avgCost, mark := t.position, t.avgCost, t.mark
	realized, unrealized := t.realized, t.unrealized
	maxDD := t.maxDrawdown
	trades := len(t.trades)
	t.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("=== PnL Report ===\n")
	fmt.Fprintf(&sb, "Position: %.2f @ %.4f (mark %.4f)\n", position, avgCost, mark)
	fmt.Fprintf(&sb, "Realized PnL: %.2f\n", realized)
	fmt.Fprintf(&sb, "Unrealized PnL: %.2f\n", unrealized)
	fmt.Fprintf(&sb, "Total PnL: %.2f\n", realized+unrealized)
	fmt.Fprintf(&sb, "Max Drawdown: %.2f\n", maxDD)
	fmt.Fprintf(&sb, "Sharpe Ratio: %.4f\n", t.SharpeRatio(252))
	fmt.Fprintf(&sb, "Win Rate: %.1f%%\n", t.WinRate()*100)
	fmt.Fprintf(&sb, "Profit Factor: %.2f\n", t.ProfitFactor())
	fmt.Fprintf(&sb, "Trades: %d\n", trades)
	return sb.String()
}

// Clear resets every accumulator and history buffer.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.position = 0
	t.avgCost = 0
	t.mark = 0
	t.realized = 0
	t.unrealized = 0
	t.peak = 0
	t.maxDrawdown = 0
	t.trades = t.trades[:0]
	t.snapshots = t.snapshots[:0]
	t.returns = t.returns[:0]
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	var v float64
	for _, x := range xs {
		d := x - m
		v += d * d
	}
	return math.Sqrt(v / float64(len(xs)))
}
