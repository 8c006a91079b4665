// Package kafka wraps the kafka-go writer used to publish top-of-book
// updates. Like the fill broadcaster it is optional; the simulator
// runs standalone without brokers.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"lob/orderbook"
)

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *Producer) Send(ctx context.Context, key, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// Quote is the published top-of-book view.
type Quote struct {
	Symbol string `json:"symbol"`
	Bid    string `json:"bid"`
	Ask    string `json:"ask"`
	Mid    string `json:"mid"`
	Spread string `json:"spread"`
	Nanos  int64  `json:"nanos"`
}

// PublishQuote sends the book's current top of book keyed by symbol.
func (p *Producer) PublishQuote(ctx context.Context, book *orderbook.Book) error {
	q := Quote{
		Symbol: book.Symbol(),
		Bid:    book.BestBid().String(),
		Ask:    book.BestAsk().String(),
		Mid:    book.MidPrice().String(),
		Spread: book.Spread().String(),
		Nanos:  time.Now().UnixNano(),
	}
	payload, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return p.Send(ctx, []byte(q.Symbol), payload)
}
