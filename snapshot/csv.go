package snapshot

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"lob/pnl"
)

// WriteDepthCSV writes one row per snapshot with top-of-book and
// counters.
func WriteDepthCSV(w io.Writer, snaps []Depth) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"seq", "nanos", "symbol", "best_bid", "best_ask", "mid", "spread",
		"bid_levels", "ask_levels", "orders_processed", "orders_filled", "volume",
	}); err != nil {
		return err
	}
	for _, s := range snaps {
		err := cw.Write([]string{
			strconv.FormatUint(s.Seq, 10),
			strconv.FormatInt(s.Nanos, 10),
			s.Symbol,
			s.BestBid.String(),
			s.BestAsk.String(),
			s.Mid.String(),
			s.Spread.String(),
			strconv.Itoa(len(s.Bids)),
			strconv.Itoa(len(s.Asks)),
			strconv.FormatUint(s.OrdersProcessed, 10),
			strconv.FormatUint(s.OrdersFilled, 10),
			strconv.FormatInt(int64(s.VolumeProcessed), 10),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTradesCSV writes the trade history.
func WriteTradesCSV(w io.Writer, trades []pnl.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "nanos", "side", "price", "qty", "realized"}); err != nil {
		return err
	}
	for _, t := range trades {
		err := cw.Write([]string{
			strconv.FormatUint(t.ID, 10),
			strconv.FormatInt(t.Nanos, 10),
			t.Side.String(),
			strconv.FormatFloat(t.Price, 'f', 4, 64),
			strconv.FormatFloat(t.Qty, 'f', 0, 64),
			strconv.FormatFloat(t.Realized, 'f', 4, 64),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePnLCSV writes the PnL series.
func WritePnLCSV(w io.Writer, snaps []pnl.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"nanos", "realized", "unrealized", "total", "position", "avg_cost", "mark_price",
	}); err != nil {
		return err
	}
	for _, s := range snaps {
		err := cw.Write([]string{
			strconv.FormatInt(s.Nanos, 10),
			strconv.FormatFloat(s.Realized, 'f', 4, 64),
			strconv.FormatFloat(s.Unrealized, 'f', 4, 64),
			strconv.FormatFloat(s.Total, 'f', 4, 64),
			strconv.FormatFloat(s.Position, 'f', 2, 64),
			strconv.FormatFloat(s.AvgCost, 'f', 4, 64),
			strconv.FormatFloat(s.MarkPrice, 'f', 4, 64),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportAll writes depth.csv, trades.csv and pnl.csv into dir,
// creating it if needed.
func ExportAll(dir string, depths []Depth, trades []pnl.Trade, series []pnl.Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := exportFile(filepath.Join(dir, "depth.csv"), func(w io.Writer) error {
		return WriteDepthCSV(w, depths)
	}); err != nil {
		return err
	}
	if err := exportFile(filepath.Join(dir, "trades.csv"), func(w io.Writer) error {
		return WriteTradesCSV(w, trades)
	}); err != nil {
		return err
	}
	return exportFile(filepath.Join(dir, "pnl.csv"), func(w io.Writer) error {
		return WritePnLCSV(w, series)
	})
}

func exportFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
