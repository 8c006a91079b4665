// Package sim drives the whole simulation: reference price ticks, the
// market maker's quoting loop, random taker flow against the book, PnL
// marking, and periodic depth snapshots.
package sim

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"lob/config"
	"lob/marketmaker"
	"lob/metrics"
	"lob/orderbook"
	"lob/pnl"
	"lob/pricegen"
	"lob/snapshot"
)

// FillSink receives every fill the engine produces. Sinks run on the
// goroutine that triggered the match, so they must be fast or buffer
// internally.
type FillSink func(orderbook.FillEvent)

// Engine owns the book and every component around it.
type Engine struct {
	cfg *config.Config
	log *zap.Logger

	book  *orderbook.Book
	gen   *pricegen.Generator
	maker *marketmaker.Maker
	pnl   *pnl.Tracker
	met   *metrics.Metrics

	archive *snapshot.Archive

	mu     sync.Mutex
	sinks  []FillSink
	depths []snapshot.Depth
	rng    *rand.Rand

	running       atomic.Bool
	ticks         uint64
	takerOrders   uint64
	lastProcessed uint64
	lastFilled    uint64
	started       time.Time
}

// New assembles an engine from the configuration. met and archive may
// be nil.
func New(cfg *config.Config, met *metrics.Metrics, archive *snapshot.Archive, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	book := orderbook.NewBook(cfg.Symbol)
	gen := pricegen.New(cfg.InitialPrice, cfg.Drift, cfg.Volatility, cfg.TimeStepYears, cfg.HistoryWindow)
	tracker := pnl.NewTracker(10000)

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gen.Seed(seed)

	mm := cfg.MarketMaker
	maker := marketmaker.New(book, gen, tracker, marketmaker.Config{
		OrderSize:     orderbook.Quantity(mm.OrderSize),
		BaseSpreadBPS: mm.BaseSpreadBPS,
		MinSpreadBPS:  mm.MinSpreadBPS,
		MaxSpreadBPS:  mm.MaxSpreadBPS,
		DynamicSpread: mm.DynamicSpread,
		VolMultiplier: mm.VolMultiplier,
		VolLookback:   mm.VolLookback,
		SkewBPS:       mm.SkewBPS,
		PositionLimit: mm.PositionLimit,
		MaxLoss:       mm.MaxLoss,
		StopLoss:      mm.StopLoss,
	}, log.Named("mm"))

	e := &Engine{
		cfg:     cfg,
		log:     log,
		book:    book,
		gen:     gen,
		maker:   maker,
		pnl:     tracker,
		met:     met,
		archive: archive,
		rng:     rand.New(rand.NewSource(seed + 1)),
	}
	book.SetFillHandler(e.onFill)
	return e
}

// AddFillSink registers an extra fill consumer. Call before Run.
func (e *Engine) AddFillSink(s FillSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, s)
}

// Book exposes the engine's order book for observers.
func (e *Engine) Book() *orderbook.Book { return e.book }

// PnL exposes the tracker for reporting.
func (e *Engine) PnL() *pnl.Tracker { return e.pnl }

func (e *Engine) onFill(f orderbook.FillEvent) {
	e.pnl.RecordFill(f.Side, f.Price.Float(), float64(f.Qty))
	e.maker.OnFill(f)
	if e.met != nil {
		e.met.Fills.Inc()
		e.met.Volume.Add(float64(f.Qty))
	}
	e.mu.Lock()
	sinks := e.sinks
	e.mu.Unlock()
	for _, s := range sinks {
		s(f)
	}
}

// Run executes the tick loop until the configured duration elapses or
// ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return fmt.Errorf("sim: already running")
	}
	defer e.running.Store(false)

	e.started = time.Now()
	deadline := e.started.Add(e.cfg.SimulationDuration)
	e.log.Info("simulation started",
		zap.String("symbol", e.cfg.Symbol),
		zap.Duration("duration", e.cfg.SimulationDuration),
		zap.Duration("tick_interval", e.cfg.TickInterval))

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return ctx.Err()
		case now := <-ticker.C:
			if now.After(deadline) {
				e.shutdown()
				return nil
			}
			e.Tick()
		}
	}
}

// Tick runs one simulation step. Exported so tests and callers can
// drive the engine without the wall-clock loop.
func (e *Engine) Tick() {
	t0 := time.Now()

	price := e.gen.Next()
	e.maker.Step()
	e.takerFlow()
	e.pnl.Mark(price)

	ticks := atomic.AddUint64(&e.ticks, 1)
	if n := e.cfg.SnapshotInterval; n > 0 && ticks%uint64(n) == 0 {
		e.captureSnapshot(ticks)
	}

	if e.met != nil {
		processed, filled, _ := e.book.Counters()
		e.met.OrdersPlaced.Add(float64(processed - e.lastProcessed))
		e.met.OrdersFilled.Add(float64(filled - e.lastFilled))
		e.lastProcessed, e.lastFilled = processed, filled
		e.met.TickDuration.Observe(time.Since(t0).Seconds())
	}
}

// takerFlow injects a market order with the configured probability, a
// coin-flip side and a size in [1, MaxSize]. This is what makes the
// maker's quotes actually trade.
func (e *Engine) takerFlow() {
	e.mu.Lock()
	hit := e.rng.Float64() < e.cfg.Taker.Intensity
	var side orderbook.Side
	var size orderbook.Quantity
	if hit {
		side = orderbook.Bid
		if e.rng.Intn(2) == 1 {
			side = orderbook.Ask
		}
		size = orderbook.Quantity(e.rng.Int63n(e.cfg.Taker.MaxSize) + 1)
	}
	e.mu.Unlock()
	if !hit {
		return
	}

	e.book.ProcessMarketOrder(side, size)
	atomic.AddUint64(&e.takerOrders, 1)
	if e.met != nil {
		e.met.TakerOrders.Inc()
	}
}

func (e *Engine) captureSnapshot(seq uint64) {
	d := snapshot.Capture(e.book, seq, e.cfg.SnapshotDepth)
	e.mu.Lock()
	e.depths = append(e.depths, d)
	e.mu.Unlock()
	if e.archive != nil {
		if err := e.archive.Put(d); err != nil {
			e.log.Warn("archive snapshot", zap.Error(err))
		}
	}
}

func (e *Engine) shutdown() {
	e.maker.Shutdown()
	e.log.Info("simulation finished",
		zap.Uint64("ticks", atomic.LoadUint64(&e.ticks)),
		zap.Uint64("taker_orders", atomic.LoadUint64(&e.takerOrders)))
}

// Ticks returns how many ticks have been processed.
func (e *Engine) Ticks() uint64 { return atomic.LoadUint64(&e.ticks) }

// Running reports whether the tick loop is active.
func (e *Engine) Running() bool { return e.running.Load() }

// Depths returns the snapshots collected so far.
func (e *Engine) Depths() []snapshot.Depth {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]snapshot.Depth, len(e.depths))
	copy(out, e.depths)
	return out
}

// Export writes the collected depth, trade and PnL series to dir.
func (e *Engine) Export(dir string) error {
	return snapshot.ExportAll(dir, e.Depths(), e.pnl.Trades(), e.pnl.Snapshots())
}

// Status renders a point-in-time view of every component.
func (e *Engine) Status() string {
	var sb strings.Builder
	sb.WriteString("=== Simulation Status ===\n")
	fmt.Fprintf(&sb, "Running: %v\n", e.Running())
	fmt.Fprintf(&sb, "Ticks: %d\n", e.Ticks())
	fmt.Fprintf(&sb, "Taker Orders: %d\n", atomic.LoadUint64(&e.takerOrders))

	processed, filled, volume := e.book.Counters()
	fmt.Fprintf(&sb, "Orders: %d processed, %d filled, volume %d\n", processed, filled, volume)
	fmt.Fprintf(&sb, "Book: %d bid levels, %d ask levels, bid %s ask %s mid %s\n",
		e.book.BidLevels(), e.book.AskLevels(),
		e.book.BestBid(), e.book.BestAsk(), e.book.MidPrice())

	min, max, ticks := e.gen.Stats()
	fmt.Fprintf(&sb, "Reference: %.4f (min %.4f max %.4f over %d ticks, vol %.4f)\n",
		e.gen.Current(), min, max, ticks,
		e.gen.RealizedVolatility(e.cfg.MarketMaker.VolLookback))

	placed, trades := e.maker.Stats()
	fmt.Fprintf(&sb, "Maker: position %.1f, %d quotes placed, %d trades, stopped %v\n",
		e.maker.Position(), placed, trades, e.maker.Stopped())
	return sb.String()
}

// Report renders the end-of-run summary.
func (e *Engine) Report() string {
	var sb strings.Builder
	sb.WriteString(e.Status())
	sb.WriteString("\n")
	sb.WriteString(e.book.Render(5))
	sb.WriteString("\n")
	sb.WriteString(e.pnl.Report())
	return sb.String()
}

// Reset clears every component so the engine can run again. Order ids
// keep increasing across resets.
func (e *Engine) Reset() {
	e.maker.Reset()
	e.book.Clear()
	e.gen.Reset(e.cfg.InitialPrice)
	e.pnl.Clear()
	atomic.StoreUint64(&e.ticks, 0)
	atomic.StoreUint64(&e.takerOrders, 0)
	e.lastProcessed, e.lastFilled = 0, 0
	e.mu.Lock()
	e.depths = nil
	e.mu.Unlock()
}
