package match

import (
	"github.com/shopspring/decimal"
)

// Book is the two-sided order book of a single asset. It holds no lock:
// callers own the critical section (see Matcher).
type Book struct {
	bidQueue *queue
	askQueue *queue
}

// NewBook creates an empty order book.
func NewBook() *Book {
	return &Book{
		bidQueue: NewBuyerQueue(),
		askQueue: NewSellerQueue(),
	}
}

func (b *Book) side(side Side) *queue {
	if side == Buy {
		return b.bidQueue
	}
	return b.askQueue
}

// BestBid returns the highest bid price.
func (b *Book) BestBid() (decimal.Decimal, bool) {
	lvl := b.bidQueue.bestLevel()
	if lvl == nil {
		return decimal.Zero, false
	}
	return lvl.price, true
}

// BestAsk returns the lowest ask price.
func (b *Book) BestAsk() (decimal.Decimal, bool) {
	lvl := b.askQueue.bestLevel()
	if lvl == nil {
		return decimal.Zero, false
	}
	return lvl.price, true
}

// Insert appends a resting order at the tail of its price level.
func (b *Book) Insert(order *Order) {
	b.side(order.Side).insertOrder(order)
}

// RemoveFront pops the oldest order at price on side. It returns nil when
// no such level exists.
func (b *Book) RemoveFront(side Side, price decimal.Decimal) *Order {
	q := b.side(side)
	lvl := q.level(price)
	if lvl == nil || lvl.head == nil {
		return nil
	}
	return q.removeOrder(price, lvl.head.ID)
}

// PeekFront returns the oldest order at the best price of side.
func (b *Book) PeekFront(side Side) *Order {
	return b.side(side).peekHeadOrder()
}

// reduceFront trades size off the head order of side without moving it.
func (b *Book) reduceFront(side Side, size decimal.Decimal) {
	q := b.side(side)
	if head := q.peekHeadOrder(); head != nil {
		q.reduceOrder(head, size)
	}
}

// Order looks up a resting order by ID on either side.
func (b *Book) Order(id uint64) *Order {
	if order := b.bidQueue.order(id); order != nil {
		return order
	}
	return b.askQueue.order(id)
}

// Cancel removes a resting order by ID.
func (b *Book) Cancel(id uint64) (*Order, bool) {
	order := b.Order(id)
	if order == nil {
		return nil, false
	}
	removed := b.side(order.Side).removeOrder(order.Price, id)
	return removed, removed != nil
}

// Level reports the total resting quantity and order count at one price.
func (b *Book) Level(side Side, price decimal.Decimal) (decimal.Decimal, int64) {
	lvl := b.side(side).level(price)
	if lvl == nil {
		return decimal.Zero, 0
	}
	return lvl.totalSize, lvl.count
}

// Depth returns up to limit aggregated levels per side, best first.
func (b *Book) Depth(limit uint32) *Depth {
	return &Depth{
		Asks: b.askQueue.depth(limit),
		Bids: b.bidQueue.depth(limit),
	}
}

func (b *Book) Stats() *BookStats {
	return &BookStats{
		AskDepthCount: b.askQueue.depthCount(),
		AskOrderCount: b.askQueue.orderCount(),
		BidDepthCount: b.bidQueue.depthCount(),
		BidOrderCount: b.bidQueue.orderCount(),
	}
}

// Crossed reports whether best bid >= best ask.
func (b *Book) Crossed() bool {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	return okBid && okAsk && bid.GreaterThanOrEqual(ask)
}

// Quote returns the best price of side with the size resting there.
func (b *Book) Quote(side Side) *Quote {
	lvl := b.side(side).bestLevel()
	if lvl == nil {
		return nil
	}
	return &Quote{Price: lvl.price, Size: lvl.totalSize}
}

// Orders returns copies of every resting order on side in priority order.
func (b *Book) Orders(side Side) []Order {
	q := b.side(side)
	result := make([]Order, 0, q.orderCount())
	q.each(func(order *Order) bool {
		result = append(result, order.clone())
		return true
	})
	return result
}

// checkInvariants verifies the spread and the orders a submit touched.
// Orders no longer resting are skipped; an order still indexed after being
// exhausted shows up as a non-positive quantity.
func (b *Book) checkInvariants(touched []*Order) *InvariantViolation {
	if b.Crossed() {
		bid, _ := b.BestBid()
		ask, _ := b.BestAsk()
		return &InvariantViolation{Detail: "book crossed: best bid " + bid.String() + " >= best ask " + ask.String()}
	}

	for _, order := range touched {
		resting := b.Order(order.ID)
		if resting == nil {
			continue
		}
		if resting.Quantity.LessThanOrEqual(decimal.Zero) {
			return &InvariantViolation{Detail: "resting order has non-positive quantity"}
		}
		if resting.Type != Limit {
			return &InvariantViolation{Detail: "non-limit order resting in book"}
		}
		size, count := b.Level(resting.Side, resting.Price)
		if count <= 0 || size.LessThan(resting.Quantity) {
			return &InvariantViolation{Detail: "price level " + resting.Price.String() + " out of sync with its orders"}
		}
	}
	return nil
}
