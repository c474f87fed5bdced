package match

import (
	"sync/atomic"
	"time"

	"github.com/rs/xid"
)

// TradeEmitter turns fills into clearing records and hands them to the
// settlement side as soon as they are produced.
type TradeEmitter struct {
	tradeID   atomic.Uint64
	publisher ClearingPublisher
	clock     func() time.Time
}

// NewTradeEmitter creates an emitter. A nil publisher discards records and a
// nil clock means time.Now.
func NewTradeEmitter(publisher ClearingPublisher, clock func() time.Time) *TradeEmitter {
	if publisher == nil {
		publisher = NewDiscardClearingPublisher()
	}
	if clock == nil {
		clock = time.Now
	}
	return &TradeEmitter{
		publisher: publisher,
		clock:     clock,
	}
}

// resume continues trade numbering after last.
func (e *TradeEmitter) resume(last uint64) {
	e.tradeID.Store(last)
}

// LastTradeID returns the ID of the most recent record.
func (e *TradeEmitter) LastTradeID() uint64 {
	return e.tradeID.Load()
}

// Emit converts fills one to one, in order, and publishes the records
// before returning them.
func (e *TradeEmitter) Emit(fills []Fill) []*ClearingRecord {
	if len(fills) == 0 {
		return nil
	}

	now := e.clock().UTC()
	records := make([]*ClearingRecord, 0, len(fills))
	for i := range fills {
		records = append(records, e.record(&fills[i], now))
	}

	e.publisher.PublishClearing(records...)
	return records
}

func (e *TradeEmitter) record(fill *Fill, now time.Time) *ClearingRecord {
	rec := &ClearingRecord{
		ID:        xid.New().String(),
		TradeID:   e.tradeID.Add(1),
		TakerSide: fill.TakerSide,
		Price:     fill.Price,
		Quantity:  fill.Quantity,
		Amount:    fill.Price.Mul(fill.Quantity),
		CreatedAt: now,
	}

	if fill.TakerSide == Buy {
		rec.BuyOrderID, rec.BuyAccountID = fill.IncomingOrderID, fill.IncomingAccountID
		rec.SellOrderID, rec.SellAccountID = fill.RestingOrderID, fill.RestingAccountID
	} else {
		rec.BuyOrderID, rec.BuyAccountID = fill.RestingOrderID, fill.RestingAccountID
		rec.SellOrderID, rec.SellAccountID = fill.IncomingOrderID, fill.IncomingAccountID
	}

	return rec
}
