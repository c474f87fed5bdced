package match

import (
	"fmt"
	"time"

	"github.com/0x5487/marketsim/protocol"
	"github.com/shopspring/decimal"
)

func parseDecimal(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	return d, nil
}

// PlaceOrderFromProtocol converts a wire placement into the engine command.
// Only malformed decimals fail here; business validation happens on submit.
func PlaceOrderFromProtocol(msg *protocol.PlaceOrderCommand) (*PlaceOrderCommand, error) {
	if msg == nil {
		return nil, ErrInvalidParam
	}

	price, err := parseDecimal("price", msg.Price)
	if err != nil {
		return nil, err
	}
	qty, err := parseDecimal("quantity", msg.Quantity)
	if err != nil {
		return nil, err
	}

	return &PlaceOrderCommand{
		ClientOrderID: msg.ClientOrderID,
		AccountID:     msg.AccountID,
		Side:          Side(msg.Side),
		Type:          OrderType(msg.OrderType),
		Price:         price,
		Quantity:      qty,
	}, nil
}

// PlaceOrderToProtocol is the inverse of PlaceOrderFromProtocol.
func PlaceOrderToProtocol(cmd *PlaceOrderCommand) *protocol.PlaceOrderCommand {
	msg := &protocol.PlaceOrderCommand{
		ClientOrderID: cmd.ClientOrderID,
		AccountID:     cmd.AccountID,
		Side:          protocol.Side(cmd.Side),
		OrderType:     protocol.OrderType(cmd.Type),
		Quantity:      cmd.Quantity.String(),
		Timestamp:     time.Now().UnixNano(),
	}
	if cmd.Type == Limit {
		msg.Price = cmd.Price.String()
	}
	return msg
}

func OrderToProtocol(order *Order) *protocol.OrderMessage {
	return &protocol.OrderMessage{
		ID:               order.ID,
		ClientOrderID:    order.ClientOrderID,
		AccountID:        order.AccountID,
		Side:             protocol.Side(order.Side),
		OrderType:        protocol.OrderType(order.Type),
		Price:            order.Price.String(),
		Quantity:         order.Quantity.String(),
		OriginalQuantity: order.OriginalQuantity.String(),
		Timestamp:        order.Timestamp,
	}
}

func OrderFromProtocol(msg *protocol.OrderMessage) (*Order, error) {
	price, err := parseDecimal("price", msg.Price)
	if err != nil {
		return nil, err
	}
	qty, err := parseDecimal("quantity", msg.Quantity)
	if err != nil {
		return nil, err
	}
	orig, err := parseDecimal("original_quantity", msg.OriginalQuantity)
	if err != nil {
		return nil, err
	}

	return &Order{
		ID:               msg.ID,
		ClientOrderID:    msg.ClientOrderID,
		AccountID:        msg.AccountID,
		Side:             Side(msg.Side),
		Type:             OrderType(msg.OrderType),
		Price:            price,
		Quantity:         qty,
		OriginalQuantity: orig,
		Timestamp:        msg.Timestamp,
	}, nil
}

func ClearingRecordToProtocol(rec *ClearingRecord) *protocol.ClearingRecordMessage {
	return &protocol.ClearingRecordMessage{
		ID:            rec.ID,
		TradeID:       rec.TradeID,
		BuyOrderID:    rec.BuyOrderID,
		SellOrderID:   rec.SellOrderID,
		BuyAccountID:  rec.BuyAccountID,
		SellAccountID: rec.SellAccountID,
		TakerSide:     protocol.Side(rec.TakerSide),
		Price:         rec.Price.String(),
		Quantity:      rec.Quantity.String(),
		Amount:        rec.Amount.String(),
		CreatedAt:     rec.CreatedAt.UnixNano(),
	}
}

func ClearingRecordFromProtocol(msg *protocol.ClearingRecordMessage) (*ClearingRecord, error) {
	price, err := parseDecimal("price", msg.Price)
	if err != nil {
		return nil, err
	}
	qty, err := parseDecimal("quantity", msg.Quantity)
	if err != nil {
		return nil, err
	}
	amount, err := parseDecimal("amount", msg.Amount)
	if err != nil {
		return nil, err
	}

	return &ClearingRecord{
		ID:            msg.ID,
		TradeID:       msg.TradeID,
		BuyOrderID:    msg.BuyOrderID,
		SellOrderID:   msg.SellOrderID,
		BuyAccountID:  msg.BuyAccountID,
		SellAccountID: msg.SellAccountID,
		TakerSide:     Side(msg.TakerSide),
		Price:         price,
		Quantity:      qty,
		Amount:        amount,
		CreatedAt:     time.Unix(0, msg.CreatedAt).UTC(),
	}, nil
}

func MatchResultToProtocol(result *MatchResult) *protocol.PlaceOrderReply {
	reply := &protocol.PlaceOrderReply{
		Order:  OrderToProtocol(&result.Order),
		Status: string(result.Status),
		Fills:  make([]*protocol.FillMessage, 0, len(result.Fills)),
		Filled: result.Filled.String(),
	}
	if result.Discarded.IsPositive() {
		reply.Discarded = result.Discarded.String()
	}
	for _, f := range result.Fills {
		reply.Fills = append(reply.Fills, &protocol.FillMessage{
			RestingOrderID:  f.RestingOrderID,
			IncomingOrderID: f.IncomingOrderID,
			Price:           f.Price.String(),
			Quantity:        f.Quantity.String(),
		})
	}
	return reply
}

func depthItemsToProtocol(items []*DepthItem) []*protocol.DepthItem {
	result := make([]*protocol.DepthItem, 0, len(items))
	for _, item := range items {
		result = append(result, &protocol.DepthItem{
			Price: item.Price.String(),
			Size:  item.Size.String(),
			Count: item.Count,
		})
	}
	return result
}

func DepthToProtocol(depth *Depth) *protocol.GetDepthResponse {
	return &protocol.GetDepthResponse{
		UpdateID: depth.UpdateID,
		Asks:     depthItemsToProtocol(depth.Asks),
		Bids:     depthItemsToProtocol(depth.Bids),
	}
}

func quoteToProtocol(q *Quote) *protocol.QuoteMessage {
	if q == nil {
		return nil
	}
	return &protocol.QuoteMessage{Price: q.Price.String(), Size: q.Size.String()}
}

func quoteFromProtocol(msg *protocol.QuoteMessage) (*Quote, error) {
	if msg == nil {
		return nil, nil
	}
	price, err := parseDecimal("quote price", msg.Price)
	if err != nil {
		return nil, err
	}
	size, err := parseDecimal("quote size", msg.Size)
	if err != nil {
		return nil, err
	}
	return &Quote{Price: price, Size: size}, nil
}

func optionalString(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func optionalDecimal(field, s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := parseDecimal(field, s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func MarketSnapshotToProtocol(snap *MarketSnapshot) *protocol.MarketSnapshotMessage {
	return &protocol.MarketSnapshotMessage{
		SequenceID:     snap.SequenceID,
		ReferencePrice: optionalString(snap.ReferencePrice),
		BestBid:        quoteToProtocol(snap.BestBid),
		BestAsk:        quoteToProtocol(snap.BestAsk),
		LastTradePrice: optionalString(snap.LastTradePrice),
		LastTradeSize:  optionalString(snap.LastTradeSize),
		Timestamp:      snap.Timestamp.UnixNano(),
	}
}

func MarketSnapshotFromProtocol(msg *protocol.MarketSnapshotMessage) (*MarketSnapshot, error) {
	snap := &MarketSnapshot{
		SequenceID: msg.SequenceID,
		Timestamp:  time.Unix(0, msg.Timestamp).UTC(),
	}

	var err error
	if snap.ReferencePrice, err = optionalDecimal("reference_price", msg.ReferencePrice); err != nil {
		return nil, err
	}
	if snap.LastTradePrice, err = optionalDecimal("last_trade_price", msg.LastTradePrice); err != nil {
		return nil, err
	}
	if snap.LastTradeSize, err = optionalDecimal("last_trade_size", msg.LastTradeSize); err != nil {
		return nil, err
	}
	if snap.BestBid, err = quoteFromProtocol(msg.BestBid); err != nil {
		return nil, err
	}
	if snap.BestAsk, err = quoteFromProtocol(msg.BestAsk); err != nil {
		return nil, err
	}
	return snap, nil
}
