package protocol

// CommandType defines the type of the command (using uint8 for memory alignment and performance)
type CommandType uint8

const (
	CmdUnknown     CommandType = 0
	CmdPlaceOrder  CommandType = 51
	CmdCancelOrder CommandType = 52
)

func (t CommandType) String() string {
	switch t {
	case CmdPlaceOrder:
		return "place_order"
	case CmdCancelOrder:
		return "cancel_order"
	default:
		return "unknown"
	}
}

// Command is the standard carrier for commands entering the Matching Engine
// from a message bus.
type Command struct {
	// Version is the protocol version for backward compatibility.
	Version uint8 `json:"version"`

	// MarketID is the target market for this command (Routing Header).
	MarketID string `json:"market_id"`

	// SeqID is used for global ordering and deduplication.
	SeqID uint64 `json:"seq_id"`

	// Type identifies the payload type for fast routing.
	Type CommandType `json:"type"`

	// Payload contains the serialized business data (e.g., JSON bytes of PlaceOrderCommand).
	Payload []byte `json:"payload"`

	// Metadata stores non-business context (e.g., Tracing ID, Source IP).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PlaceOrderCommand is the payload for placing a new order.
type PlaceOrderCommand struct {
	ClientOrderID string    `json:"client_order_id,omitempty"`
	AccountID     string    `json:"account_id"`
	Side          Side      `json:"side"`
	OrderType     OrderType `json:"order_type"`
	Price         string    `json:"price,omitempty"` // Using string to prevent precision loss in JSON
	Quantity      string    `json:"quantity"`
	Timestamp     int64     `json:"timestamp"`
}

// CancelOrderCommand is the payload for cancelling a resting order.
type CancelOrderCommand struct {
	OrderID   uint64 `json:"order_id"`
	AccountID string `json:"account_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// GetDepthRequest is the payload for querying order book depth.
// This is used for synchronous queries via gRPC/HTTP, separate from the async Command stream.
type GetDepthRequest struct {
	Limit uint32 `json:"limit"`
}

type GetSnapshotRequest struct{}

type GetStatsRequest struct{}

// PlaceOrderReply reports the outcome of a synchronous placement.
type PlaceOrderReply struct {
	Order     *OrderMessage  `json:"order"`
	Status    string         `json:"status"`
	Fills     []*FillMessage `json:"fills"`
	Filled    string         `json:"filled"`
	Discarded string         `json:"discarded,omitempty"`
}
