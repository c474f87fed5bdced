package protocol

// Side represents the order side (Buy/Sell).
type Side int8

const (
	SideBuy  Side = 1
	SideSell Side = 2
)

// OrderType represents the type of order.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// LogType represents the type of event log.
type LogType string

const (
	LogTypeOpen   LogType = "open"
	LogTypeMatch  LogType = "match"
	LogTypeCancel LogType = "cancel"
	LogTypeReject LogType = "reject"
)

type DepthItem struct {
	Price string `json:"price"`
	Size  string `json:"size"`
	Count int64  `json:"count"`
}

// GetDepthResponse represents the state of the order book depth.
type GetDepthResponse struct {
	UpdateID uint64       `json:"update_id"`
	Asks     []*DepthItem `json:"asks"`
	Bids     []*DepthItem `json:"bids"`
}

// GetStatsResponse contains statistics about the order book queues.
type GetStatsResponse struct {
	AskDepthCount int64 `json:"ask_depth_count"`
	AskOrderCount int64 `json:"ask_order_count"`
	BidDepthCount int64 `json:"bid_depth_count"`
	BidOrderCount int64 `json:"bid_order_count"`
}

// OrderMessage is the wire form of an accepted order. Decimals travel as
// strings to prevent precision loss in JSON.
type OrderMessage struct {
	ID               uint64    `json:"id"`
	ClientOrderID    string    `json:"client_order_id,omitempty"`
	AccountID        string    `json:"account_id"`
	Side             Side      `json:"side"`
	OrderType        OrderType `json:"order_type"`
	Price            string    `json:"price"`
	Quantity         string    `json:"quantity"`
	OriginalQuantity string    `json:"original_quantity"`
	Timestamp        int64     `json:"timestamp"`
}

type FillMessage struct {
	RestingOrderID  uint64 `json:"resting_order_id"`
	IncomingOrderID uint64 `json:"incoming_order_id"`
	Price           string `json:"price"`
	Quantity        string `json:"quantity"`
}

// ClearingRecordMessage is the wire form of a clearing record.
type ClearingRecordMessage struct {
	ID            string `json:"id"`
	TradeID       uint64 `json:"trade_id"`
	BuyOrderID    uint64 `json:"buy_order_id"`
	SellOrderID   uint64 `json:"sell_order_id"`
	BuyAccountID  string `json:"buy_account_id"`
	SellAccountID string `json:"sell_account_id"`
	TakerSide     Side   `json:"taker_side"`
	Price         string `json:"price"`
	Quantity      string `json:"quantity"`
	Amount        string `json:"amount"`
	CreatedAt     int64  `json:"created_at"` // Unix nano
}

type QuoteMessage struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// MarketSnapshotMessage carries top of book and the last trade.
// Empty strings and nil quotes mean "not available".
type MarketSnapshotMessage struct {
	SequenceID     uint64        `json:"seq_id"`
	ReferencePrice string        `json:"reference_price,omitempty"`
	BestBid        *QuoteMessage `json:"best_bid,omitempty"`
	BestAsk        *QuoteMessage `json:"best_ask,omitempty"`
	LastTradePrice string        `json:"last_trade_price,omitempty"`
	LastTradeSize  string        `json:"last_trade_size,omitempty"`
	Timestamp      int64         `json:"timestamp"`
}
