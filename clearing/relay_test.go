package clearing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayFlushAcksSent(t *testing.T) {
	outbox := openTestOutbox(t)
	require.NoError(t, outbox.Append(testRecord(1, "a", "b", "10", "1")))
	require.NoError(t, outbox.Append(testRecord(2, "a", "b", "11", "1")))

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var msg map[string]any
		if err := json.Unmarshal(val, &msg); err != nil {
			return err
		}
		if msg["trade_id"] != float64(1) {
			return errors.New("trade 1 must be sent first")
		}
		return nil
	})
	producer.ExpectSendMessageAndSucceed()

	relay := NewRelay(outbox, producer, "clearing", time.Millisecond, nil)
	n, err := relay.Flush()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, uint64(2), relay.Sent())

	left, err := outbox.Len()
	require.NoError(t, err)
	assert.Zero(t, left)
	require.NoError(t, relay.Close())
}

func TestRelayStopsAtFailure(t *testing.T) {
	outbox := openTestOutbox(t)
	require.NoError(t, outbox.Append(testRecord(1, "a", "b", "10", "1")))
	require.NoError(t, outbox.Append(testRecord(2, "a", "b", "11", "1")))

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(errors.New("broker down"))

	relay := NewRelay(outbox, producer, "clearing", time.Millisecond, nil)
	n, err := relay.Flush()
	assert.Error(t, err)
	assert.Zero(t, n)
	assert.Equal(t, uint64(1), relay.Failed())

	// nothing acked, trade 1 is retried before trade 2
	_, err = outbox.Get(1)
	require.NoError(t, err)

	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndSucceed()
	n, err = relay.Flush()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, relay.Close())
}

func TestRelayRunDrainsOnTick(t *testing.T) {
	outbox := openTestOutbox(t)
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed()

	relay := NewRelay(outbox, producer, "clearing", 5*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(done)
	}()

	house := NewHouse(WithJournal(outbox))
	house.PublishClearing(testRecord(1, "alice", "bob", "10", "1"))

	assert.Eventually(t, func() bool {
		return relay.Sent() == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	require.NoError(t, relay.Close())
}
