package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	match "github.com/0x5487/marketsim"
	"github.com/0x5487/marketsim/protocol"
	"github.com/segmentio/kafka-go"
)

const protocolVersion = 1

var errNoSnapshotSource = errors.New("order producer has no snapshot source")

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// SnapshotSource answers market snapshot reads for agents trading over the bus.
type SnapshotSource interface {
	MarketSnapshot(ctx context.Context) (*match.MarketSnapshot, error)
}

// NewWriter creates a synchronous writer that waits for all replicas.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
	}
}

// OrderProducer publishes order commands to the order topic. Messages are
// keyed by account so one account's orders stay on one partition.
type OrderProducer struct {
	writer     MessageWriter
	marketID   string
	snapshots  SnapshotSource
	serializer protocol.Serializer
	seqID      atomic.Uint64
}

func NewOrderProducer(writer MessageWriter, marketID string, snapshots SnapshotSource) *OrderProducer {
	return &OrderProducer{
		writer:     writer,
		marketID:   marketID,
		snapshots:  snapshots,
		serializer: &protocol.DefaultJSONSerializer{},
	}
}

// Submit publishes a place order command.
func (p *OrderProducer) Submit(ctx context.Context, cmd *match.PlaceOrderCommand) error {
	if cmd == nil {
		return match.ErrInvalidParam
	}
	return p.send(ctx, cmd.AccountID, protocol.CmdPlaceOrder, match.PlaceOrderToProtocol(cmd))
}

// Cancel publishes a cancel command for a resting order.
func (p *OrderProducer) Cancel(ctx context.Context, accountID string, orderID uint64) error {
	if orderID == 0 {
		return match.ErrInvalidParam
	}
	return p.send(ctx, accountID, protocol.CmdCancelOrder, &protocol.CancelOrderCommand{
		OrderID:   orderID,
		AccountID: accountID,
		Timestamp: time.Now().UnixNano(),
	})
}

func (p *OrderProducer) send(ctx context.Context, key string, typ protocol.CommandType, payload any) error {
	body, err := p.serializer.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", typ, err)
	}

	envelope, err := p.serializer.Marshal(&protocol.Command{
		Version:  protocolVersion,
		MarketID: p.marketID,
		SeqID:    p.seqID.Add(1),
		Type:     typ,
		Payload:  body,
	})
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: envelope,
	}); err != nil {
		return fmt.Errorf("write %s: %w", typ, err)
	}
	return nil
}

// MarketSnapshot delegates to the configured snapshot source.
func (p *OrderProducer) MarketSnapshot(ctx context.Context) (*match.MarketSnapshot, error) {
	if p.snapshots == nil {
		return nil, errNoSnapshotSource
	}
	return p.snapshots.MarketSnapshot(ctx)
}

func (p *OrderProducer) Close() error {
	return p.writer.Close()
}
