package match

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side int8

const (
	Buy  Side = 1
	Sell Side = 2
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// Opposite returns the side resting orders must be on to trade against s.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) valid() bool {
	return s == Buy || s == Sell
}

type OrderType string

const (
	Market OrderType = "market"
	Limit  OrderType = "limit"
)

func (t OrderType) valid() bool {
	return t == Market || t == Limit
}

// OrderStatus describes where an order ended up after a single submit.
type OrderStatus string

const (
	StatusResting         OrderStatus = "resting"
	StatusPartiallyFilled OrderStatus = "partially_filled" // some quantity traded, the rest is resting
	StatusFilled          OrderStatus = "filled"
	StatusDiscarded       OrderStatus = "discarded" // market remainder dropped for lack of liquidity
	StatusCancelled       OrderStatus = "cancelled"
)

// PlaceOrderCommand is the input for placing an order.
// Price is only used for Limit orders.
type PlaceOrderCommand struct {
	ClientOrderID string          `json:"client_order_id,omitempty"`
	AccountID     string          `json:"account_id"`
	Side          Side            `json:"side"`
	Type          OrderType       `json:"type"`
	Price         decimal.Decimal `json:"price"`
	Quantity      decimal.Decimal `json:"quantity"`
}

// Order represents the state of an accepted order.
type Order struct {
	ID               uint64          `json:"id"`
	ClientOrderID    string          `json:"client_order_id,omitempty"`
	AccountID        string          `json:"account_id"`
	Side             Side            `json:"side"`
	Type             OrderType       `json:"type"`
	Price            decimal.Decimal `json:"price"`
	Quantity         decimal.Decimal `json:"quantity"` // Remaining quantity
	OriginalQuantity decimal.Decimal `json:"original_quantity"`
	Timestamp        int64           `json:"timestamp"` // Unix nano, acceptance time

	// Intrusive linked list pointers (ignored by JSON)
	next *Order
	prev *Order
}

// clone returns a detached copy that is safe to hand out of the critical section.
func (o *Order) clone() Order {
	cpy := *o
	cpy.next = nil
	cpy.prev = nil
	return cpy
}

// Fill is the result of matching one resting order against an incoming order.
type Fill struct {
	RestingOrderID    uint64          `json:"resting_order_id"`
	IncomingOrderID   uint64          `json:"incoming_order_id"`
	RestingAccountID  string          `json:"resting_account_id"`
	IncomingAccountID string          `json:"incoming_account_id"`
	TakerSide         Side            `json:"taker_side"`
	Price             decimal.Decimal `json:"price"`
	Quantity          decimal.Decimal `json:"quantity"`
}

// ClearingRecord is the settlement-bound form of a Fill.
type ClearingRecord struct {
	ID            string          `json:"id"`
	TradeID       uint64          `json:"trade_id"`
	BuyOrderID    uint64          `json:"buy_order_id"`
	SellOrderID   uint64          `json:"sell_order_id"`
	BuyAccountID  string          `json:"buy_account_id"`
	SellAccountID string          `json:"sell_account_id"`
	TakerSide     Side            `json:"taker_side"`
	Price         decimal.Decimal `json:"price"`
	Quantity      decimal.Decimal `json:"quantity"`
	Amount        decimal.Decimal `json:"amount"` // Price * Quantity
	CreatedAt     time.Time       `json:"created_at"`
}

// MatchResult is the outcome of one submit.
type MatchResult struct {
	Order     Order           `json:"order"`
	Fills     []Fill          `json:"fills"`
	Status    OrderStatus     `json:"status"`
	Filled    decimal.Decimal `json:"filled"`
	Discarded decimal.Decimal `json:"discarded,omitempty"`
}

type DepthItem struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
	Count int64           `json:"count"`
}

type Depth struct {
	UpdateID uint64       `json:"update_id"`
	Asks     []*DepthItem `json:"asks"`
	Bids     []*DepthItem `json:"bids"`
}

// BookStats contains statistics about the order book queues
type BookStats struct {
	AskDepthCount int64 `json:"ask_depth_count"`
	AskOrderCount int64 `json:"ask_order_count"`
	BidDepthCount int64 `json:"bid_depth_count"`
	BidOrderCount int64 `json:"bid_order_count"`
}

// Quote is the best price of one side with the size resting there.
type Quote struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// MarketSnapshot summarizes top of book and the last trade.
// ReferencePrice is the mid of best bid and ask, or the only side present.
type MarketSnapshot struct {
	SequenceID     uint64           `json:"seq_id"`
	ReferencePrice *decimal.Decimal `json:"reference_price,omitempty"`
	BestBid        *Quote           `json:"best_bid,omitempty"`
	BestAsk        *Quote           `json:"best_ask,omitempty"`
	LastTradePrice *decimal.Decimal `json:"last_trade_price,omitempty"`
	LastTradeSize  *decimal.Decimal `json:"last_trade_size,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
}
