package match

import "context"

const defaultAsyncCapacity = 4096

// AsyncClearingPublisher decouples the engine from a slow settlement sink.
// Records are queued in a RingBuffer and delivered in order on a single
// consumer goroutine.
type AsyncClearingPublisher struct {
	sink ClearingPublisher
	rb   *RingBuffer[*ClearingRecord]
}

// NewAsyncClearingPublisher wraps sink. capacity must be a power of 2; zero
// picks a default.
func NewAsyncClearingPublisher(sink ClearingPublisher, capacity int64) *AsyncClearingPublisher {
	if capacity == 0 {
		capacity = defaultAsyncCapacity
	}

	p := &AsyncClearingPublisher{sink: sink}
	p.rb = NewRingBuffer[*ClearingRecord](capacity, EventHandlerFunc[*ClearingRecord](func(rec *ClearingRecord) {
		p.sink.PublishClearing(rec)
	}))
	return p
}

// Start launches the delivery goroutine.
func (p *AsyncClearingPublisher) Start() {
	p.rb.Start()
}

// PublishClearing queues records. Records published after Shutdown are dropped.
func (p *AsyncClearingPublisher) PublishClearing(records ...*ClearingRecord) {
	for _, rec := range records {
		if !p.rb.Publish(rec) {
			logger.Warn("clearing record dropped after shutdown", "trade_id", rec.TradeID)
		}
	}
}

// Pending returns the number of records not yet delivered.
func (p *AsyncClearingPublisher) Pending() int64 {
	return p.rb.GetPendingEvents()
}

// Shutdown flushes queued records to the sink.
func (p *AsyncClearingPublisher) Shutdown(ctx context.Context) error {
	return p.rb.Shutdown(ctx)
}
