package match

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"time"
)

// ErrDisruptorTimeout is returned when shutdown times out
var ErrDisruptorTimeout = errors.New("disruptor: shutdown timeout")

const (
	idleSpins = 64
	idleSleep = 50 * time.Microsecond
)

// EventHandler consumes events from a RingBuffer on its single consumer goroutine.
type EventHandler[T any] interface {
	OnEvent(event T)
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc[T any] func(event T)

func (f EventHandlerFunc[T]) OnEvent(event T) {
	f(event)
}

// RingBuffer is a multi-producer single-consumer ring buffer.
type RingBuffer[T any] struct {
	// Cache line padding to avoid false sharing
	_                [56]byte
	producerSequence atomic.Int64
	_                [56]byte
	consumerSequence atomic.Int64
	_                [56]byte

	buffer     []T
	bufferMask int64
	capacity   int64

	// published[i] holds the sequence last written into slot i
	published []int64

	handler EventHandler[T]

	isShutdown atomic.Bool
	inflight   atomic.Int64 // producers between the shutdown check and their write
	stopped    chan struct{}
}

// NewRingBuffer creates a ring buffer. capacity must be a power of 2.
func NewRingBuffer[T any](capacity int64, handler EventHandler[T]) *RingBuffer[T] {
	if capacity <= 0 || (capacity&(capacity-1)) != 0 {
		panic("size must be a power of 2")
	}

	rb := &RingBuffer[T]{
		buffer:     make([]T, capacity),
		published:  make([]int64, capacity),
		capacity:   capacity,
		bufferMask: capacity - 1,
		handler:    handler,
		stopped:    make(chan struct{}),
	}

	rb.producerSequence.Store(-1)
	rb.consumerSequence.Store(-1)

	for i := range rb.published {
		atomic.StoreInt64(&rb.published[i], -1)
	}

	return rb
}

// Publish claims the next slot and writes event into it. It is safe for
// concurrent producers and spins while the buffer is full. Returns false
// once the buffer is shut down; an event accepted with true is always
// consumed.
func (rb *RingBuffer[T]) Publish(event T) bool {
	rb.inflight.Add(1)
	defer rb.inflight.Add(-1)

	if rb.isShutdown.Load() {
		return false
	}

	var nextSeq int64
	for {
		current := rb.producerSequence.Load()
		nextSeq = current + 1

		// the producer may not lap the consumer
		if nextSeq-rb.capacity > rb.consumerSequence.Load() {
			runtime.Gosched()
			continue
		}

		if rb.producerSequence.CompareAndSwap(current, nextSeq) {
			break
		}
		runtime.Gosched()
	}

	index := nextSeq & rb.bufferMask
	rb.buffer[index] = event
	atomic.StoreInt64(&rb.published[index], nextSeq)
	return true
}

// Start launches the consumer goroutine.
func (rb *RingBuffer[T]) Start() {
	go rb.consumerLoop()
}

// Shutdown stops intake and waits until every claimed event is consumed.
func (rb *RingBuffer[T]) Shutdown(ctx context.Context) error {
	rb.isShutdown.Store(true)

	select {
	case <-rb.stopped:
		return nil
	case <-ctx.Done():
		return ErrDisruptorTimeout
	}
}

func (rb *RingBuffer[T]) consumerLoop() {
	defer close(rb.stopped)

	next := rb.consumerSequence.Load() + 1
	idle := 0

	for {
		// flag, then in-flight producers, then the sequence: a final drain
		// sees every claim made by a producer that passed the flag check
		shutdown := rb.isShutdown.Load()
		inflight := rb.inflight.Load()
		available := rb.producerSequence.Load()

		if next <= available {
			next = rb.consume(next, available)
			idle = 0
			continue
		}

		if shutdown && inflight == 0 {
			return
		}

		idle++
		if idle < idleSpins {
			runtime.Gosched()
		} else {
			time.Sleep(idleSleep)
		}
	}
}

// consume hands events next..available to the handler and returns the next
// sequence to read.
func (rb *RingBuffer[T]) consume(next, available int64) int64 {
	for next <= available {
		index := next & rb.bufferMask

		// a producer may have claimed the slot without writing it yet
		for atomic.LoadInt64(&rb.published[index]) != next {
			runtime.Gosched()
		}

		event := rb.buffer[index]
		rb.handler.OnEvent(event)

		rb.consumerSequence.Store(next)
		next++
	}
	return next
}

// ConsumerSequence returns the last consumed sequence.
func (rb *RingBuffer[T]) ConsumerSequence() int64 {
	return rb.consumerSequence.Load()
}

// ProducerSequence returns the last claimed sequence.
func (rb *RingBuffer[T]) ProducerSequence() int64 {
	return rb.producerSequence.Load()
}

// GetPendingEvents returns the number of claimed but unconsumed events.
func (rb *RingBuffer[T]) GetPendingEvents() int64 {
	return rb.producerSequence.Load() - rb.consumerSequence.Load()
}
