// Package pricegen produces a synthetic reference mid-price as a
// geometric Brownian motion path. Prices here are floats; callers snap
// them to fixed-point ticks at the book boundary.
package pricegen

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

const minPrice = 0.01

// Generator walks one GBM path:
//
//	S(t+dt) = S(t) * exp((mu - sigma^2/2)*dt + sigma*sqrt(dt)*Z)
//
// with Z drawn standard normal. A bounded history window backs the
// realized-volatility estimate.
type Generator struct {
	mu sync.Mutex

	rng *rand.Rand

	initial float64
	current float64
	drift   float64 // annualized
	vol     float64 // annualized
	dt      float64 // in years, e.g. 1/252 for daily
	history []float64
	window  int
	ticks   uint64
	minSeen float64
	maxSeen float64
}

// New creates a generator starting at initial with the given annual
// drift and volatility and a time step in years. The generator is
// seeded from the clock; use Seed for reproducible paths.
func New(initial, drift, vol, dt float64, window int) *Generator {
	if window <= 0 {
		window = 100
	}
	g := &Generator{
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		initial: initial,
		current: initial,
		drift:   drift,
		vol:     vol,
		dt:      dt,
		window:  window,
		minSeen: math.MaxFloat64,
		maxSeen: -math.MaxFloat64,
	}
	g.history = append(g.history, initial)
	return g
}

// Seed reseeds the random source for a reproducible path.
func (g *Generator) Seed(seed int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rng = rand.New(rand.NewSource(seed))
}

// Next advances the path one step and returns the new price.
func (g *Generator) Next() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := gbmStep(g.current, g.drift, g.vol, g.dt, g.rng.NormFloat64())
	g.current = p
	g.observe(p)
	return p
}

// Series advances count steps and returns the generated prices.
func (g *Generator) Series(count int) []float64 {
	out := make([]float64, count)
	for i := range out {
		out[i] = g.Next()
	}
	return out
}

// Current returns the latest price on the path.
func (g *Generator) Current() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// RealizedVolatility estimates annualized volatility from the log
// returns of the last lookback ticks. It returns 0 until enough
// history has accumulated.
func (g *Generator) RealizedVolatility(lookback int) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	if lookback <= 0 || len(g.history) < lookback+1 {
		return 0
	}
	returns := make([]float64, 0, lookback)
	for i := 1; i <= lookback; i++ {
		cur := g.history[len(g.history)-i]
		prev := g.history[len(g.history)-i-1]
		if prev > 0 {
			returns = append(returns, math.Log(cur/prev))
		}
	}
	if len(returns) == 0 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))

	// Annualize using the step size.
	return math.Sqrt(variance) * math.Sqrt(1.0/g.dt)
}

// Stats returns min and max observed prices and the tick count.
func (g *Generator) Stats() (min, max float64, ticks uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ticks == 0 {
		return 0, 0, 0
	}
	return g.minSeen, g.maxSeen, g.ticks
}

// SetDrift updates the annual drift for subsequent steps.
func (g *Generator) SetDrift(drift float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.drift = drift
}

// SetVolatility updates the annual volatility for subsequent steps.
func (g *Generator) SetVolatility(vol float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.vol = vol
}

// Reset restarts the path at a new initial price and clears history
// and statistics. The random source keeps its state.
func (g *Generator) Reset(initial float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initial = initial
	g.current = initial
	g.history = g.history[:0]
	g.history = append(g.history, initial)
	g.ticks = 0
	g.minSeen = math.MaxFloat64
	g.maxSeen = -math.MaxFloat64
}

func (g *Generator) observe(p float64) {
	g.ticks++
	if p < g.minSeen {
		g.minSeen = p
	}
	if p > g.maxSeen {
		g.maxSeen = p
	}
	g.history = append(g.history, p)
	if len(g.history) > g.window {
		g.history = g.history[1:]
	}
}

// gbmStep applies one discrete GBM increment, floored so the price
// never reaches zero.
func gbmStep(price, drift, vol, dt, shock float64) float64 {
	driftTerm := (drift - 0.5*vol*vol) * dt
	volTerm := vol * math.Sqrt(dt) * shock
	p := price * math.Exp(driftTerm+volTerm)
	if p < minPrice {
		return minPrice
	}
	return p
}
