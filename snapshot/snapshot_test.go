package snapshot

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lob/orderbook"
	"lob/pnl"
)

func seededBook(t *testing.T) *orderbook.Book {
	t.Helper()
	b := orderbook.NewBook("AAPL")
	for _, o := range []struct {
		side orderbook.Side
		p    float64
		q    orderbook.Quantity
	}{
		{orderbook.Bid, 149.0, 10},
		{orderbook.Bid, 148.5, 20},
		{orderbook.Ask, 151.0, 15},
	} {
		_, err := b.AddOrder(o.side, orderbook.LimitOrder, orderbook.PriceFromFloat(o.p), o.q)
		require.NoError(t, err)
	}
	return b
}

func TestCapture(t *testing.T) {
	b := seededBook(t)
	d := Capture(b, 7, 10)

	assert.Equal(t, uint64(7), d.Seq)
	assert.Equal(t, "AAPL", d.Symbol)
	assert.Equal(t, orderbook.PriceFromFloat(149.0), d.BestBid)
	assert.Equal(t, orderbook.PriceFromFloat(151.0), d.BestAsk)
	assert.Equal(t, orderbook.PriceFromFloat(150.0), d.Mid)
	assert.Len(t, d.Bids, 2)
	assert.Len(t, d.Asks, 1)
	assert.Equal(t, uint64(3), d.OrdersProcessed)
	assert.EqualValues(t, 45, d.VolumeProcessed)
}

func TestDepthCSV(t *testing.T) {
	b := seededBook(t)
	var buf bytes.Buffer
	require.NoError(t, WriteDepthCSV(&buf, []Depth{Capture(b, 1, 5)}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "best_bid")
	assert.Contains(t, lines[1], "149.0000")
	assert.Contains(t, lines[1], "151.0000")
}

func TestTradeAndPnLCSV(t *testing.T) {
	tr := pnl.NewTracker(100)
	tr.RecordFill(orderbook.Bid, 100.0, 10)
	tr.RecordFill(orderbook.Ask, 105.0, 10)
	tr.Mark(105.0)

	var trades bytes.Buffer
	require.NoError(t, WriteTradesCSV(&trades, tr.Trades()))
	assert.Contains(t, trades.String(), "BID")
	assert.Contains(t, trades.String(), "50.0000")

	var series bytes.Buffer
	require.NoError(t, WritePnLCSV(&series, tr.Snapshots()))
	lines := strings.Split(strings.TrimSpace(series.String()), "\n")
	require.Len(t, lines, 2)
}

func TestExportAll(t *testing.T) {
	dir := t.TempDir()
	b := seededBook(t)
	tr := pnl.NewTracker(100)
	tr.RecordFill(orderbook.Bid, 100.0, 10)
	tr.Mark(101.0)

	err := ExportAll(dir, []Depth{Capture(b, 1, 5)}, tr.Trades(), tr.Snapshots())
	require.NoError(t, err)
	for _, name := range []string{"depth.csv", "trades.csv", "pnl.csv"} {
		assert.FileExists(t, dir+"/"+name)
	}
}

func TestDepthCodecRoundTrip(t *testing.T) {
	b := seededBook(t)
	want := Capture(b, 42, 10)

	got, err := decodeDepth(encodeDepth(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeRejectsTruncated(t *testing.T) {
	b := seededBook(t)
	enc := encodeDepth(Capture(b, 1, 5))
	_, err := decodeDepth(enc[:len(enc)-3])
	assert.Error(t, err)
}

func TestArchiveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	a, err := OpenArchive(dir)
	require.NoError(t, err)
	defer a.Close()

	b := seededBook(t)
	for seq := uint64(1); seq <= 5; seq++ {
		require.NoError(t, a.Put(Capture(b, seq, 5)))
	}

	var seqs []uint64
	err = a.Scan(func(d Depth) error {
		seqs = append(seqs, d.Seq)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, seqs)
}
