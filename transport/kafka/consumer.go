package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	match "github.com/0x5487/marketsim"
	"github.com/0x5487/marketsim/protocol"
	"github.com/segmentio/kafka-go"
)

// MessageReader is the part of kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// CommandHandler accepts decoded wire commands. *match.MatchingEngine
// implements it.
type CommandHandler interface {
	EnqueueCommand(ctx context.Context, cmd *protocol.Command) error
}

// NewReader creates a consumer group reader for the order topic.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// OrderConsumer feeds order commands from Kafka into the engine. A message
// is committed once the engine queued it or once it is known to be
// unprocessable.
type OrderConsumer struct {
	reader     MessageReader
	handler    CommandHandler
	serializer protocol.Serializer
	logger     *slog.Logger

	accepted atomic.Uint64
	skipped  atomic.Uint64
}

func NewOrderConsumer(reader MessageReader, handler CommandHandler, logger *slog.Logger) *OrderConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderConsumer{
		reader:     reader,
		handler:    handler,
		serializer: &protocol.DefaultJSONSerializer{},
		logger:     logger.With("component", "order_consumer"),
	}
}

// Run consumes until ctx is done or the engine stops accepting commands.
func (c *OrderConsumer) Run(ctx context.Context) error {
	c.logger.Info("order consumer started")
	defer c.logger.Info("order consumer stopped", "accepted", c.accepted.Load(), "skipped", c.skipped.Load())

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch order message: %w", err)
		}

		if err := c.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}

// handle returns an error only when the message must be retried.
func (c *OrderConsumer) handle(ctx context.Context, msg kafka.Message) error {
	var cmd protocol.Command
	if err := c.serializer.Unmarshal(msg.Value, &cmd); err != nil {
		c.skip(msg, err)
		return nil
	}

	err := c.handler.EnqueueCommand(ctx, &cmd)
	switch {
	case err == nil:
		c.accepted.Add(1)
		return nil
	case errors.Is(err, match.ErrShutdown), errors.Is(err, match.ErrTimeout):
		return fmt.Errorf("enqueue offset %d: %w", msg.Offset, err)
	default:
		c.skip(msg, err)
		return nil
	}
}

func (c *OrderConsumer) skip(msg kafka.Message, err error) {
	c.skipped.Add(1)
	c.logger.Warn("skipping order message",
		"partition", msg.Partition,
		"offset", msg.Offset,
		"key", string(msg.Key),
		"error", err,
	)
}

func (c *OrderConsumer) Accepted() uint64 {
	return c.accepted.Load()
}

func (c *OrderConsumer) Skipped() uint64 {
	return c.skipped.Load()
}

func (c *OrderConsumer) Close() error {
	return c.reader.Close()
}
