package sim

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lob/config"
	"lob/metrics"
	"lob/orderbook"
)

func testConfig() *config.Config {
	cfg, _ := config.Load("")
	cfg.Seed = 42
	cfg.SimulationDuration = time.Second
	cfg.TickInterval = time.Millisecond
	cfg.Taker.Intensity = 1.0 // trade every tick so fills are plentiful
	cfg.SnapshotInterval = 10
	return cfg
}

func TestTickQuotesAndTrades(t *testing.T) {
	e := New(testConfig(), nil, nil, nil)
	for i := 0; i < 200; i++ {
		e.Tick()
	}

	assert.Equal(t, uint64(200), e.Ticks())
	processed, filled, _ := e.Book().Counters()
	assert.NotZero(t, processed, "maker should have quoted")
	assert.NotZero(t, filled, "taker flow should have filled quotes")
	assert.NotZero(t, e.PnL().TradeCount(), "fills should reach the tracker")
}

func TestFillFanOut(t *testing.T) {
	e := New(testConfig(), nil, nil, nil)
	var got []orderbook.FillEvent
	e.AddFillSink(func(f orderbook.FillEvent) { got = append(got, f) })

	for i := 0; i < 200; i++ {
		e.Tick()
	}
	require.NotEmpty(t, got)
	assert.EqualValues(t, e.PnL().TradeCount(), len(got),
		"sink and tracker must see the same fills")
}

func TestSnapshotsCollected(t *testing.T) {
	e := New(testConfig(), nil, nil, nil)
	for i := 0; i < 100; i++ {
		e.Tick()
	}

	depths := e.Depths()
	require.Len(t, depths, 10)
	assert.Equal(t, uint64(10), depths[0].Seq)
	assert.Equal(t, uint64(100), depths[9].Seq)
	assert.Equal(t, "AAPL", depths[0].Symbol)
}

func TestMetricsUpdated(t *testing.T) {
	reg := prometheus.NewRegistry()
	met := metrics.New(reg)
	e := New(testConfig(), met, nil, nil)
	for i := 0; i < 100; i++ {
		e.Tick()
	}

	assert.NotZero(t, testutil.ToFloat64(met.OrdersPlaced))
	assert.NotZero(t, testutil.ToFloat64(met.Fills))
	assert.NotZero(t, testutil.ToFloat64(met.TakerOrders))
	processed, _, _ := e.Book().Counters()
	assert.Equal(t, float64(processed), testutil.ToFloat64(met.OrdersPlaced))
}

func TestRunStopsAtDeadline(t *testing.T) {
	cfg := testConfig()
	cfg.SimulationDuration = 50 * time.Millisecond
	cfg.TickInterval = time.Millisecond
	e := New(cfg, nil, nil, nil)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop at the deadline")
	}
	assert.False(t, e.Running())
	assert.NotZero(t, e.Ticks())
}

func TestRunHonorsContextCancel(t *testing.T) {
	cfg := testConfig()
	cfg.SimulationDuration = time.Hour
	e := New(cfg, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not react to cancellation")
	}
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	cfg := testConfig()
	cfg.SimulationDuration = time.Hour
	e := New(cfg, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	assert.Error(t, e.Run(ctx))
}

func TestResetClearsEverything(t *testing.T) {
	e := New(testConfig(), nil, nil, nil)
	for i := 0; i < 100; i++ {
		e.Tick()
	}
	e.Reset()

	assert.Zero(t, e.Ticks())
	assert.True(t, e.Book().IsEmpty())
	processed, filled, volume := e.Book().Counters()
	assert.Zero(t, processed+filled)
	assert.Zero(t, volume)
	assert.Zero(t, e.PnL().TradeCount())
	assert.Empty(t, e.Depths())

	// The engine must be able to run again after a reset.
	e.Tick()
	assert.Equal(t, uint64(1), e.Ticks())
}

func TestExport(t *testing.T) {
	e := New(testConfig(), nil, nil, nil)
	for i := 0; i < 50; i++ {
		e.Tick()
	}
	dir := t.TempDir()
	require.NoError(t, e.Export(dir))
	assert.FileExists(t, dir+"/depth.csv")
	assert.FileExists(t, dir+"/trades.csv")
	assert.FileExists(t, dir+"/pnl.csv")
}

func TestReportRenders(t *testing.T) {
	e := New(testConfig(), nil, nil, nil)
	for i := 0; i < 50; i++ {
		e.Tick()
	}
	rep := e.Report()
	assert.Contains(t, rep, "Simulation Status")
	assert.Contains(t, rep, "Order Book: AAPL")
	assert.Contains(t, rep, "PnL Report")
}
