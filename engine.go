package match

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0x5487/marketsim/protocol"
	"github.com/shopspring/decimal"
)

// CommandType represents the type of command sent to the engine loop.
type CommandType int

const (
	CmdPlaceOrder CommandType = iota
	CmdCancelOrder
	CmdDepth
	CmdGetStats
	CmdSnapshot
)

// Command represents a unified command sent to the engine loop.
// A single channel keeps the processing order deterministic.
type Command struct {
	Type    CommandType
	Payload any
	Resp    chan *Response // Optional: for synchronous response
}

type Response struct {
	Error error
	Data  any
}

// EngineOption configures a MatchingEngine.
type EngineOption func(*MatchingEngine)

func WithMarketID(marketID string) EngineOption {
	return func(e *MatchingEngine) {
		e.marketID = marketID
	}
}

// WithPublishLog sets the sink for book events.
func WithPublishLog(publishLog PublishLog) EngineOption {
	return func(e *MatchingEngine) {
		if publishLog != nil {
			e.publishLog = publishLog
		}
	}
}

// WithClearingPublisher sets the settlement sink for clearing records.
func WithClearingPublisher(publisher ClearingPublisher) EngineOption {
	return func(e *MatchingEngine) {
		if publisher != nil {
			e.clearing = publisher
		}
	}
}

// WithCommandBuffer sets the capacity of the inbound command channel.
func WithCommandBuffer(size int) EngineOption {
	return func(e *MatchingEngine) {
		if size > 0 {
			e.bufferSize = size
		}
	}
}

// WithTradeIDStart makes the first trade id last+1, so ids stay unique
// across restarts that share a durable clearing journal.
func WithTradeIDStart(last uint64) EngineOption {
	return func(e *MatchingEngine) {
		e.tradeIDStart = last
	}
}

// WithClock overrides the time source for acceptance timestamps and logs.
func WithClock(clock func() time.Time) EngineOption {
	return func(e *MatchingEngine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// MatchingEngine owns the book of one market. All state changes run on the
// goroutine that called Start, fed by a single command channel.
type MatchingEngine struct {
	marketID   string
	bufferSize int
	clock      func() time.Time
	publishLog PublishLog
	clearing   ClearingPublisher
	serializer protocol.Serializer

	tradeIDStart uint64

	matcher *Matcher
	emitter *TradeEmitter

	seqID      atomic.Uint64 // Globally increasing sequence ID for BookLog production
	isShutdown atomic.Bool
	// senders hold it shared so Shutdown cannot close intake mid-send
	intake sync.RWMutex

	// owned by the loop goroutine
	lastTradePrice *decimal.Decimal
	lastTradeSize  *decimal.Decimal

	cmdChan          chan Command
	done             chan struct{}
	shutdownComplete chan struct{}
}

// NewMatchingEngine creates a new matching engine instance. Call Start to
// begin processing.
func NewMatchingEngine(opts ...EngineOption) *MatchingEngine {
	e := &MatchingEngine{
		marketID:         DefaultMarketID,
		bufferSize:       defaultCommandBuffer,
		clock:            time.Now,
		publishLog:       NewDiscardPublishLog(),
		clearing:         NewDiscardClearingPublisher(),
		serializer:       &protocol.DefaultJSONSerializer{},
		done:             make(chan struct{}),
		shutdownComplete: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.matcher = NewMatcher(e.clock)
	e.emitter = NewTradeEmitter(e.clearing, e.clock)
	e.emitter.resume(e.tradeIDStart)
	e.cmdChan = make(chan Command, e.bufferSize)
	return e
}

// MarketID returns the market this engine trades.
func (e *MatchingEngine) MarketID() string {
	return e.marketID
}

// Halted reports whether the book stopped after an invariant violation.
func (e *MatchingEngine) Halted() bool {
	return e.matcher.Halted()
}

// SequenceID returns the last BookLog sequence ID handed out.
func (e *MatchingEngine) SequenceID() uint64 {
	return e.seqID.Load()
}

func (e *MatchingEngine) enqueue(ctx context.Context, cmd Command) error {
	e.intake.RLock()
	defer e.intake.RUnlock()

	if e.isShutdown.Load() {
		return ErrShutdown
	}

	select {
	case e.cmdChan <- cmd:
		return nil
	case <-ctx.Done():
		return ErrTimeout
	}
}

// request sends a command and waits for the loop to answer it.
func (e *MatchingEngine) request(ctx context.Context, typ CommandType, payload any) (any, error) {
	resp := make(chan *Response, 1)
	if err := e.enqueue(ctx, Command{Type: typ, Payload: payload, Resp: resp}); err != nil {
		return nil, err
	}

	select {
	case r := <-resp:
		return r.Data, r.Error
	case <-e.shutdownComplete:
		select {
		case r := <-resp:
			return r.Data, r.Error
		default:
			return nil, ErrShutdown
		}
	case <-ctx.Done():
		return nil, ErrTimeout
	}
}

// PlaceOrder submits an order asynchronously. The outcome is only visible
// through the publishers.
func (e *MatchingEngine) PlaceOrder(ctx context.Context, cmd *PlaceOrderCommand) error {
	if cmd == nil {
		return ErrInvalidParam
	}
	return e.enqueue(ctx, Command{Type: CmdPlaceOrder, Payload: cmd})
}

// SubmitOrder places an order and waits for its match result.
func (e *MatchingEngine) SubmitOrder(ctx context.Context, cmd *PlaceOrderCommand) (*MatchResult, error) {
	if cmd == nil {
		return nil, ErrInvalidParam
	}

	data, err := e.request(ctx, CmdPlaceOrder, cmd)
	result, _ := data.(*MatchResult)
	return result, err
}

// CancelOrder removes a resting order and returns its final state.
func (e *MatchingEngine) CancelOrder(ctx context.Context, id uint64) (*Order, error) {
	if id == 0 {
		return nil, ErrInvalidParam
	}

	data, err := e.request(ctx, CmdCancelOrder, id)
	if err != nil {
		return nil, err
	}
	order, _ := data.(*Order)
	return order, nil
}

// Depth returns the current depth of the order book up to the specified limit.
func (e *MatchingEngine) Depth(ctx context.Context, limit uint32) (*Depth, error) {
	if limit == 0 {
		return nil, ErrInvalidParam
	}

	data, err := e.request(ctx, CmdDepth, limit)
	if err != nil {
		return nil, err
	}
	depth, _ := data.(*Depth)
	return depth, nil
}

// GetStats returns usage statistics for the order book.
func (e *MatchingEngine) GetStats(ctx context.Context) (*BookStats, error) {
	data, err := e.request(ctx, CmdGetStats, nil)
	if err != nil {
		return nil, err
	}
	stats, _ := data.(*BookStats)
	return stats, nil
}

// MarketSnapshot returns top of book and the last trade.
func (e *MatchingEngine) MarketSnapshot(ctx context.Context) (*MarketSnapshot, error) {
	data, err := e.request(ctx, CmdSnapshot, nil)
	if err != nil {
		return nil, err
	}
	snap, _ := data.(*MarketSnapshot)
	return snap, nil
}

// EnqueueCommand decodes a wire command and queues it asynchronously.
func (e *MatchingEngine) EnqueueCommand(ctx context.Context, cmd *protocol.Command) error {
	if cmd.MarketID != "" && cmd.MarketID != e.marketID {
		return fmt.Errorf("market %q: %w", cmd.MarketID, ErrNotFound)
	}

	switch cmd.Type {
	case protocol.CmdPlaceOrder:
		var msg protocol.PlaceOrderCommand
		if err := e.serializer.Unmarshal(cmd.Payload, &msg); err != nil {
			return fmt.Errorf("decode place order: %w", err)
		}
		place, err := PlaceOrderFromProtocol(&msg)
		if err != nil {
			return &ValidationError{Reason: err}
		}
		return e.PlaceOrder(ctx, place)
	case protocol.CmdCancelOrder:
		var msg protocol.CancelOrderCommand
		if err := e.serializer.Unmarshal(cmd.Payload, &msg); err != nil {
			return fmt.Errorf("decode cancel order: %w", err)
		}
		if msg.OrderID == 0 {
			return ErrInvalidParam
		}
		return e.enqueue(ctx, Command{Type: CmdCancelOrder, Payload: msg.OrderID})
	default:
		return fmt.Errorf("command type %d: %w", cmd.Type, ErrInvalidParam)
	}
}

// Start runs the engine loop on the calling goroutine.
// Returns nil when Shutdown() is called and all pending commands are drained.
func (e *MatchingEngine) Start() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	logger.Info("matching engine started", "market_id", e.marketID, "version", EngineVersion)

	for {
		select {
		case <-e.done:
			return e.drain()
		case cmd := <-e.cmdChan:
			e.handle(cmd)
		}
	}
}

// Shutdown stops intake and waits until queued commands are processed.
// Returns nil if shutdown completed successfully, or ctx.Err() if the context was cancelled.
func (e *MatchingEngine) Shutdown(ctx context.Context) error {
	e.intake.Lock()
	if e.isShutdown.CompareAndSwap(false, true) {
		close(e.done)
	}
	e.intake.Unlock()

	select {
	case <-e.shutdownComplete:
		logger.Info("matching engine stopped", "market_id", e.marketID, "seq_id", e.seqID.Load())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain processes all remaining commands in the channel before returning.
func (e *MatchingEngine) drain() error {
	defer close(e.shutdownComplete)

	for {
		select {
		case cmd := <-e.cmdChan:
			e.handle(cmd)
		default:
			return nil
		}
	}
}

func (e *MatchingEngine) handle(cmd Command) {
	var resp *Response

	switch cmd.Type {
	case CmdPlaceOrder:
		if place, ok := cmd.Payload.(*PlaceOrderCommand); ok {
			result, err := e.placeOrder(place)
			resp = &Response{Data: result, Error: err}
		}
	case CmdCancelOrder:
		if id, ok := cmd.Payload.(uint64); ok {
			order, err := e.cancelOrder(id)
			resp = &Response{Data: order, Error: err}
		}
	case CmdDepth:
		if limit, ok := cmd.Payload.(uint32); ok {
			resp = &Response{Data: e.depth(limit)}
		}
	case CmdGetStats:
		var stats *BookStats
		e.matcher.View(func(book *Book) {
			stats = book.Stats()
		})
		resp = &Response{Data: stats}
	case CmdSnapshot:
		resp = &Response{Data: e.snapshot()}
	}

	if cmd.Resp != nil {
		if resp == nil {
			resp = &Response{Error: ErrInvalidParam}
		}
		// Resp is buffered, the loop never blocks on a caller.
		select {
		case cmd.Resp <- resp:
		default:
		}
	}
}

func (e *MatchingEngine) placeOrder(cmd *PlaceOrderCommand) (*MatchResult, error) {
	result, err := e.matcher.Submit(cmd)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			logger.Debug("order rejected", "account_id", cmd.AccountID, "client_order_id", cmd.ClientOrderID, "error", err)
			log := newRejectLog(e.seqID.Add(1), e.marketID, 0, cmd, cmd.Quantity, RejectReasonInvalidOrder, e.clock().UTC())
			e.publishLog.Publish(log)
			releaseBookLog(log)
			return nil, err
		}
		if result == nil {
			return nil, err
		}
	}

	e.publishResult(cmd, result)

	if err != nil {
		logger.Error("order book halted", "market_id", e.marketID, "order_id", result.Order.ID, "error", err)
	}
	return result, err
}

// publishResult emits clearing records for every fill and the matching
// book events, then recycles the logs.
func (e *MatchingEngine) publishResult(cmd *PlaceOrderCommand, result *MatchResult) {
	now := e.clock().UTC()
	records := e.emitter.Emit(result.Fills)

	logs := make([]*BookLog, 0, len(result.Fills)+1)
	for i := range result.Fills {
		fill := &result.Fills[i]
		logs = append(logs, newMatchLog(e.seqID.Add(1), records[i].TradeID, e.marketID, &result.Order, fill, now))
	}

	if n := len(result.Fills); n > 0 {
		price := result.Fills[n-1].Price
		size := result.Fills[n-1].Quantity
		e.lastTradePrice = &price
		e.lastTradeSize = &size
	}

	switch result.Status {
	case StatusResting, StatusPartiallyFilled:
		logs = append(logs, newOpenLog(e.seqID.Add(1), e.marketID, &result.Order, now))
	case StatusDiscarded:
		logs = append(logs, newRejectLog(e.seqID.Add(1), e.marketID, result.Order.ID, cmd, result.Discarded, RejectReasonNoLiquidity, now))
	}

	if len(logs) > 0 {
		e.publishLog.Publish(logs...)
		for _, log := range logs {
			releaseBookLog(log)
		}
	}
}

func (e *MatchingEngine) cancelOrder(id uint64) (*Order, error) {
	order, ok, err := e.matcher.Cancel(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}

	log := newCancelLog(e.seqID.Add(1), e.marketID, &order, e.clock().UTC())
	e.publishLog.Publish(log)
	releaseBookLog(log)

	return &order, nil
}

func (e *MatchingEngine) depth(limit uint32) *Depth {
	var depth *Depth
	e.matcher.View(func(book *Book) {
		depth = book.Depth(limit)
	})
	depth.UpdateID = e.seqID.Load()
	return depth
}

func (e *MatchingEngine) snapshot() *MarketSnapshot {
	snap := &MarketSnapshot{
		SequenceID:     e.seqID.Load(),
		LastTradePrice: e.lastTradePrice,
		LastTradeSize:  e.lastTradeSize,
		Timestamp:      e.clock().UTC(),
	}
	e.matcher.View(func(book *Book) {
		snap.BestBid = book.Quote(Buy)
		snap.BestAsk = book.Quote(Sell)
	})
	snap.ReferencePrice = referencePrice(snap.BestBid, snap.BestAsk)
	return snap
}
