// Package broadcaster publishes fill events to Kafka as JSON. It is
// optional plumbing: with no brokers configured the simulator runs
// without it.
package broadcaster

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"lob/orderbook"
)

// Event is the wire form of one fill.
type Event struct {
	V       int    `json:"v"`
	Type    string `json:"type"`
	Symbol  string `json:"symbol"`
	OrderID uint64 `json:"order_id"`
	Side    string `json:"side"`
	Price   string `json:"price"`
	Qty     int64  `json:"qty"`
	Status  string `json:"status"`
	Nanos   int64  `json:"nanos"`
}

// Broadcaster drains a bounded queue of fills into a Kafka topic. The
// queue decouples the matching path from broker latency; when it is
// full, fills are dropped and counted rather than backing up the
// engine.
type Broadcaster struct {
	producer sarama.SyncProducer
	topic    string
	symbol   string
	log      *zap.Logger

	ch chan orderbook.FillEvent
	wg sync.WaitGroup

	mu      sync.Mutex
	dropped uint64
	sent    uint64
}

// New connects a sync producer to the given brokers.
func New(brokers []string, topic, symbol string, log *zap.Logger) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return newWithProducer(producer, topic, symbol, log), nil
}

func newWithProducer(p sarama.SyncProducer, topic, symbol string, log *zap.Logger) *Broadcaster {
	if log == nil {
		log = zap.NewNop()
	}
	return &Broadcaster{
		producer: p,
		topic:    topic,
		symbol:   symbol,
		log:      log,
		ch:       make(chan orderbook.FillEvent, 1024),
	}
}

// Publish enqueues a fill for delivery. It never blocks.
func (b *Broadcaster) Publish(f orderbook.FillEvent) {
	select {
	case b.ch <- f:
	default:
		b.mu.Lock()
		b.dropped++
		b.mu.Unlock()
	}
}

// Start launches the delivery loop. It drains the queue until ctx is
// cancelled, then delivers whatever is still buffered.
func (b *Broadcaster) Start(ctx context.Context) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.log.Info("broadcaster started", zap.String("topic", b.topic))
		for {
			select {
			case <-ctx.Done():
				b.drain()
				return
			case f := <-b.ch:
				b.send(f)
			}
		}
	}()
}

func (b *Broadcaster) drain() {
	for {
		select {
		case f := <-b.ch:
			b.send(f)
		default:
			return
		}
	}
}

func (b *Broadcaster) send(f orderbook.FillEvent) {
	payload, err := json.Marshal(Event{
		V:       1,
		Type:    "fill",
		Symbol:  b.symbol,
		OrderID: uint64(f.OrderID),
		Side:    f.Side.String(),
		Price:   f.Price.String(),
		Qty:     int64(f.Qty),
		Status:  f.Status.String(),
		Nanos:   f.Nanos,
	})
	if err != nil {
		b.log.Error("encode fill", zap.Error(err))
		return
	}
	_, _, err = b.producer.SendMessage(&sarama.ProducerMessage{
		Topic: b.topic,
		Key:   sarama.StringEncoder(b.symbol),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		b.log.Warn("publish fill", zap.Error(err))
		return
	}
	b.mu.Lock()
	b.sent++
	b.mu.Unlock()
}

// Stats returns delivered and dropped counts.
func (b *Broadcaster) Stats() (sent, dropped uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sent, b.dropped
}

// Close waits for the delivery loop and releases the producer. Cancel
// the Start context first.
func (b *Broadcaster) Close() error {
	b.wg.Wait()
	return b.producer.Close()
}
