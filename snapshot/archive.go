package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"lob/orderbook"
)

// Archive is a write-only store of depth snapshots keyed by sequence.
// Snapshots are appended during a run and scanned afterwards for
// analysis; the book is never rebuilt from them.
type Archive struct {
	db *pebble.DB
}

// OpenArchive opens or creates the archive at dir.
func OpenArchive(dir string) (*Archive, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

// Put stores one snapshot under its sequence number. Writes are not
// synced; losing the tail of the archive on a crash costs analysis
// data only.
func (a *Archive) Put(d Depth) error {
	return a.db.Set(keyFor(d.Seq), encodeDepth(d), pebble.NoSync)
}

// Scan iterates every stored snapshot in sequence order.
func (a *Archive) Scan(fn func(Depth) error) error {
	iter, err := a.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("depth/"),
		UpperBound: []byte("depth/~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		d, err := decodeDepth(iter.Value())
		if err != nil {
			return err
		}
		if err := fn(d); err != nil {
			return err
		}
	}
	return iter.Error()
}

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("depth/%020d", seq))
}

// binary encoding:
// [seq:8][nanos:8][bestBid:8][bestAsk:8][mid:8][spread:8]
// [processed:8][filled:8][volume:8]
// [symLen:2][symbol][nBids:2][price:8 qty:8...][nAsks:2][price:8 qty:8...]
func encodeDepth(d Depth) []byte {
	var buf bytes.Buffer
	for _, v := range []uint64{
		d.Seq, uint64(d.Nanos),
		uint64(d.BestBid), uint64(d.BestAsk), uint64(d.Mid), uint64(d.Spread),
		d.OrdersProcessed, d.OrdersFilled, uint64(d.VolumeProcessed),
	} {
		binary.Write(&buf, binary.BigEndian, v)
	}
	binary.Write(&buf, binary.BigEndian, uint16(len(d.Symbol)))
	buf.WriteString(d.Symbol)
	writeLevels(&buf, d.Bids)
	writeLevels(&buf, d.Asks)
	return buf.Bytes()
}

func writeLevels(buf *bytes.Buffer, levels []orderbook.Level) {
	binary.Write(buf, binary.BigEndian, uint16(len(levels)))
	for _, l := range levels {
		binary.Write(buf, binary.BigEndian, uint64(l.Price))
		binary.Write(buf, binary.BigEndian, uint64(l.Qty))
	}
}

var errShortRecord = errors.New("snapshot: truncated archive record")

func decodeDepth(b []byte) (Depth, error) {
	r := bytes.NewReader(b)
	var fixed [9]uint64
	for i := range fixed {
		if err := binary.Read(r, binary.BigEndian, &fixed[i]); err != nil {
			return Depth{}, errShortRecord
		}
	}
	var symLen uint16
	if err := binary.Read(r, binary.BigEndian, &symLen); err != nil {
		return Depth{}, errShortRecord
	}
	sym := make([]byte, symLen)
	if _, err := r.Read(sym); err != nil && symLen > 0 {
		return Depth{}, errShortRecord
	}
	bids, err := readLevels(r)
	if err != nil {
		return Depth{}, err
	}
	asks, err := readLevels(r)
	if err != nil {
		return Depth{}, err
	}
	return Depth{
		Seq:             fixed[0],
		Nanos:           int64(fixed[1]),
		Symbol:          string(sym),
		BestBid:         orderbook.Price(fixed[2]),
		BestAsk:         orderbook.Price(fixed[3]),
		Mid:             orderbook.Price(fixed[4]),
		Spread:          orderbook.Price(fixed[5]),
		Bids:            bids,
		Asks:            asks,
		OrdersProcessed: fixed[6],
		OrdersFilled:    fixed[7],
		VolumeProcessed: orderbook.Quantity(fixed[8]),
	}, nil
}

func readLevels(r *bytes.Reader) ([]orderbook.Level, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, errShortRecord
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]orderbook.Level, n)
	for i := range out {
		var price, qty uint64
		if err := binary.Read(r, binary.BigEndian, &price); err != nil {
			return nil, errShortRecord
		}
		if err := binary.Read(r, binary.BigEndian, &qty); err != nil {
			return nil, errShortRecord
		}
		out[i] = orderbook.Level{Price: orderbook.Price(price), Qty: orderbook.Quantity(qty)}
	}
	return out, nil
}
