package match

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type LogType string

const (
	LogTypeOpen   LogType = "open"
	LogTypeMatch  LogType = "match"
	LogTypeCancel LogType = "cancel"
	LogTypeReject LogType = "reject"
)

// RejectReason represents the reason why an order was rejected.
type RejectReason string

const (
	RejectReasonNone         RejectReason = ""
	RejectReasonNoLiquidity  RejectReason = "no_liquidity"  // Market: remainder found nothing to match
	RejectReasonInvalidOrder RejectReason = "invalid_order" // failed validation at acceptance
)

// BookLog represents an event in the order book.
// SequenceID is a globally increasing ID for every event, used for ordering,
// deduplication, and rebuild synchronization in downstream systems.
// Use LogType to determine if the event affects order book state:
// - Open, Match, Cancel: affect order book state
// - Reject: does not affect order book state
type BookLog struct {
	SequenceID     uint64          `json:"seq_id"`
	TradeID        uint64          `json:"trade_id,omitempty"` // Sequential trade ID, only set for Match events
	Type           LogType         `json:"type"`
	MarketID       string          `json:"market_id"`
	Side           Side            `json:"side"`
	Price          decimal.Decimal `json:"price"`
	Size           decimal.Decimal `json:"size"`
	Amount         decimal.Decimal `json:"amount,omitempty"` // Price * Size, only set for Match events
	OrderID        uint64          `json:"order_id"`
	ClientOrderID  string          `json:"client_order_id,omitempty"`
	AccountID      string          `json:"account_id"`
	OrderType      OrderType       `json:"order_type,omitempty"`
	MakerOrderID   uint64          `json:"maker_order_id,omitempty"`
	MakerAccountID string          `json:"maker_account_id,omitempty"`
	RejectReason   RejectReason    `json:"reject_reason,omitempty"` // Only set for Reject events
	CreatedAt      time.Time       `json:"created_at"`
}

var bookLogPool = sync.Pool{
	New: func() any {
		return new(BookLog)
	},
}

func acquireBookLog() *BookLog {
	return bookLogPool.Get().(*BookLog)
}

func releaseBookLog(log *BookLog) {
	// For decimal.Decimal, the zero value represents 0, which is valid.
	*log = BookLog{}
	bookLogPool.Put(log)
}

func newOpenLog(seqID uint64, marketID string, order *Order, now time.Time) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.Type = LogTypeOpen
	log.MarketID = marketID
	log.Side = order.Side
	log.Price = order.Price
	log.Size = order.Quantity
	log.OrderID = order.ID
	log.ClientOrderID = order.ClientOrderID
	log.AccountID = order.AccountID
	log.OrderType = order.Type
	log.CreatedAt = now
	return log
}

func newMatchLog(seqID uint64, tradeID uint64, marketID string, taker *Order, fill *Fill, now time.Time) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.TradeID = tradeID
	log.Type = LogTypeMatch
	log.MarketID = marketID
	log.Side = taker.Side
	log.Price = fill.Price
	log.Size = fill.Quantity
	log.Amount = fill.Price.Mul(fill.Quantity)
	log.OrderID = taker.ID
	log.ClientOrderID = taker.ClientOrderID
	log.AccountID = taker.AccountID
	log.OrderType = taker.Type
	log.MakerOrderID = fill.RestingOrderID
	log.MakerAccountID = fill.RestingAccountID
	log.CreatedAt = now
	return log
}

func newCancelLog(seqID uint64, marketID string, order *Order, now time.Time) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.Type = LogTypeCancel
	log.MarketID = marketID
	log.Side = order.Side
	log.Price = order.Price
	log.Size = order.Quantity
	log.OrderID = order.ID
	log.ClientOrderID = order.ClientOrderID
	log.AccountID = order.AccountID
	log.OrderType = order.Type
	log.CreatedAt = now
	return log
}

// newRejectLog records an order that left nothing in the book. size is the
// quantity that was turned away.
func newRejectLog(seqID uint64, marketID string, orderID uint64, cmd *PlaceOrderCommand, size decimal.Decimal, reason RejectReason, now time.Time) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.Type = LogTypeReject
	log.MarketID = marketID
	log.OrderID = orderID
	if cmd != nil {
		log.Side = cmd.Side
		log.OrderType = cmd.Type
		log.ClientOrderID = cmd.ClientOrderID
		log.AccountID = cmd.AccountID
	}
	log.Size = size
	log.RejectReason = reason
	log.CreatedAt = now
	return log
}
