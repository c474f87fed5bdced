package clearing

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
)

const defaultRelayInterval = 250 * time.Millisecond

// NewSyncProducer builds a producer that waits for all in-sync replicas.
func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create clearing producer: %w", err)
	}
	return producer, nil
}

// Relay moves outbox entries to a Kafka topic. An entry is acked only after
// the broker confirmed it, so a crash between send and ack re-sends it.
type Relay struct {
	outbox   *Outbox
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
	logger   *slog.Logger

	sent   atomic.Uint64
	failed atomic.Uint64
}

func NewRelay(outbox *Outbox, producer sarama.SyncProducer, topic string, interval time.Duration, logger *slog.Logger) *Relay {
	if interval <= 0 {
		interval = defaultRelayInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		outbox:   outbox,
		producer: producer,
		topic:    topic,
		interval: interval,
		logger:   logger.With("component", "clearing_relay", "topic", topic),
	}
}

// Run flushes the outbox on every tick until ctx is done, then makes one
// last attempt.
func (r *Relay) Run(ctx context.Context) {
	r.logger.Info("clearing relay started", "interval", r.interval.String())

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if _, err := r.Flush(); err != nil {
				r.logger.Warn("final flush incomplete", "error", err)
			}
			r.logger.Info("clearing relay stopped", "sent", r.sent.Load())
			return
		case <-ticker.C:
			if _, err := r.Flush(); err != nil {
				r.logger.Warn("relay flush failed, retrying next tick", "error", err)
			}
		}
	}
}

// Flush sends pending entries in order and stops at the first failure so
// records never overtake each other. It returns how many were sent.
func (r *Relay) Flush() (int, error) {
	n := 0
	err := r.outbox.Pending(func(tradeID uint64, payload []byte) error {
		msg := &sarama.ProducerMessage{
			Topic: r.topic,
			Key:   sarama.StringEncoder(strconv.FormatUint(tradeID, 10)),
			Value: sarama.ByteEncoder(payload),
		}
		if _, _, err := r.producer.SendMessage(msg); err != nil {
			r.failed.Add(1)
			return fmt.Errorf("send trade %d: %w", tradeID, err)
		}
		if err := r.outbox.Ack(tradeID); err != nil {
			return fmt.Errorf("ack trade %d: %w", tradeID, err)
		}
		r.sent.Add(1)
		n++
		return nil
	})
	return n, err
}

func (r *Relay) Sent() uint64 {
	return r.sent.Load()
}

func (r *Relay) Failed() uint64 {
	return r.failed.Load()
}

func (r *Relay) Close() error {
	return r.producer.Close()
}
