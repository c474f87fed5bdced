package match

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBuffer_BasicOperations(t *testing.T) {
	var processed []uint64
	var mu sync.Mutex

	rb := NewRingBuffer[*ClearingRecord](16, EventHandlerFunc[*ClearingRecord](func(rec *ClearingRecord) {
		mu.Lock()
		processed = append(processed, rec.TradeID)
		mu.Unlock()
	}))
	rb.Start()

	for i := uint64(1); i <= 10; i++ {
		assert.True(t, rb.Publish(&ClearingRecord{TradeID: i}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rb.Shutdown(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, processed, 10)
	for i := uint64(1); i <= 10; i++ {
		assert.Equal(t, i, processed[i-1])
	}
}

func TestRingBuffer_PublishAfterShutdown(t *testing.T) {
	rb := NewRingBuffer[int](16, EventHandlerFunc[int](func(int) {}))
	rb.Start()

	require.NoError(t, rb.Shutdown(context.Background()))
	assert.False(t, rb.Publish(1))
	assert.Equal(t, int64(-1), rb.ProducerSequence())
}

func TestRingBuffer_Wraparound(t *testing.T) {
	var count atomic.Int64
	rb := NewRingBuffer[int](4, EventHandlerFunc[int](func(int) {
		count.Add(1)
	}))
	rb.Start()

	// far more events than slots: producers must wait for the consumer
	for i := 0; i < 100; i++ {
		rb.Publish(i)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rb.Shutdown(ctx))
	assert.Equal(t, int64(100), count.Load())
	assert.Equal(t, int64(0), rb.GetPendingEvents())
}

func TestRingBuffer_ShutdownTimeout(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	rb := NewRingBuffer[int](16, EventHandlerFunc[int](func(int) {
		<-block
	}))
	rb.Start()
	rb.Publish(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := rb.Shutdown(ctx)
	assert.ErrorIs(t, err, ErrDisruptorTimeout)
}

func TestRingBuffer_ConcurrentPublish(t *testing.T) {
	var count atomic.Int64

	rb := NewRingBuffer[int](1024, EventHandlerFunc[int](func(int) {
		count.Add(1)
	}))
	rb.Start()

	const numPublishers = 10
	const eventsPerPublisher = 100

	var wg sync.WaitGroup
	wg.Add(numPublishers)
	for i := 0; i < numPublishers; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < eventsPerPublisher; j++ {
				rb.Publish(id*eventsPerPublisher + j)
			}
		}(i)
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, rb.Shutdown(ctx))

	assert.Equal(t, int64(numPublishers*eventsPerPublisher), count.Load())
}

func TestRingBuffer_PublishDuringShutdown(t *testing.T) {
	for round := 0; round < 50; round++ {
		var consumed atomic.Int64
		rb := NewRingBuffer[int](64, EventHandlerFunc[int](func(int) {
			consumed.Add(1)
		}))
		rb.Start()

		var (
			wg       sync.WaitGroup
			accepted atomic.Int64
		)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for rb.Publish(1) {
					accepted.Add(1)
				}
			}()
		}

		time.Sleep(time.Millisecond)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		require.NoError(t, rb.Shutdown(ctx))
		cancel()
		wg.Wait()

		// Shutdown returned, so every accepted event must already be consumed
		assert.Equal(t, accepted.Load(), consumed.Load())
	}
}

func TestRingBuffer_PowerOf2Validation(t *testing.T) {
	handler := EventHandlerFunc[int](func(int) {})

	assert.Panics(t, func() { NewRingBuffer[int](15, handler) })
	assert.Panics(t, func() { NewRingBuffer[int](0, handler) })
	assert.Panics(t, func() { NewRingBuffer[int](-1, handler) })
	assert.NotPanics(t, func() { NewRingBuffer[int](16, handler) })
}

func TestAsyncClearingPublisher(t *testing.T) {
	sink := NewMemoryClearingPublisher()
	pub := NewAsyncClearingPublisher(sink, 8)
	pub.Start()

	for i := uint64(1); i <= 20; i++ {
		pub.PublishClearing(&ClearingRecord{TradeID: i, Price: decimal.NewFromInt(int64(i))})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, pub.Shutdown(ctx))

	require.Equal(t, 20, sink.Count())
	for i := 0; i < 20; i++ {
		assert.Equal(t, uint64(i+1), sink.Get(i).TradeID)
	}
	assert.Equal(t, int64(0), pub.Pending())

	// dropped, not delivered
	pub.PublishClearing(&ClearingRecord{TradeID: 99})
	assert.Equal(t, 20, sink.Count())
}

func BenchmarkDisruptor(b *testing.B) {
	rb := NewRingBuffer[int](1024*1024, EventHandlerFunc[int](func(int) {}))
	rb.Start()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			rb.Publish(1)
		}
	})
	b.StopTimer()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = rb.Shutdown(ctx)
}
