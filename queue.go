package match

import (
	"github.com/huandu/skiplist"
	"github.com/shopspring/decimal"
)

// priceLevel holds every resting order at one exact price, oldest first.
type priceLevel struct {
	price     decimal.Decimal
	totalSize decimal.Decimal
	head      *Order
	tail      *Order
	count     int64
}

// pushBack appends an order to the FIFO tail.
func (l *priceLevel) pushBack(order *Order) {
	order.prev = l.tail
	order.next = nil
	if l.tail != nil {
		l.tail.next = order
	}
	l.tail = order
	if l.head == nil {
		l.head = order
	}
	l.totalSize = l.totalSize.Add(order.Quantity)
	l.count++
}

// unlink removes an order from anywhere in the level.
func (l *priceLevel) unlink(order *Order) {
	if order.prev != nil {
		order.prev.next = order.next
	} else {
		l.head = order.next
	}

	if order.next != nil {
		order.next.prev = order.prev
	} else {
		l.tail = order.prev
	}

	order.next = nil
	order.prev = nil

	l.totalSize = l.totalSize.Sub(order.Quantity)
	l.count--
}

// queue is one side of the book. Levels live in a skiplist sorted best price
// first, so the best level is always the skiplist front.
type queue struct {
	side        Side
	totalOrders int64
	depths      int64
	depthList   *skiplist.SkipList
	priceList   map[string]*skiplist.Element // canonical price string -> level element
	orders      map[uint64]*Order
}

// NewBuyerQueue creates a new queue for buy orders (bids).
// The orders are sorted by price in descending order (highest price first).
func NewBuyerQueue() *queue {
	return &queue{
		side: Buy,
		depthList: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			d1, _ := lhs.(decimal.Decimal)
			d2, _ := rhs.(decimal.Decimal)
			return d2.Cmp(d1)
		})),
		priceList: make(map[string]*skiplist.Element),
		orders:    make(map[uint64]*Order),
	}
}

// NewSellerQueue creates a new queue for sell orders (asks).
// The orders are sorted by price in ascending order (lowest price first).
func NewSellerQueue() *queue {
	return &queue{
		side: Sell,
		depthList: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			d1, _ := lhs.(decimal.Decimal)
			d2, _ := rhs.(decimal.Decimal)
			return d1.Cmp(d2)
		})),
		priceList: make(map[string]*skiplist.Element),
		orders:    make(map[uint64]*Order),
	}
}

// priceKey maps numerically equal prices ("100", "100.0") to the same level.
func priceKey(price decimal.Decimal) string {
	return price.String()
}

// order finds an order by its ID.
func (q *queue) order(id uint64) *Order {
	return q.orders[id]
}

// level returns the price level at price, or nil.
func (q *queue) level(price decimal.Decimal) *priceLevel {
	el, ok := q.priceList[priceKey(price)]
	if !ok {
		return nil
	}
	lvl, _ := el.Value.(*priceLevel)
	return lvl
}

// insertOrder appends an order to the tail of its price level,
// creating the level when it does not exist yet.
func (q *queue) insertOrder(order *Order) {
	key := priceKey(order.Price)
	el, ok := q.priceList[key]
	if ok {
		lvl, _ := el.Value.(*priceLevel)
		lvl.pushBack(order)
	} else {
		lvl := &priceLevel{price: order.Price}
		lvl.pushBack(order)
		q.priceList[key] = q.depthList.Set(order.Price, lvl)
		q.depths++
	}

	q.orders[order.ID] = order
	q.totalOrders++
}

// removeOrder removes an order from the queue by price and ID.
// It also cleans up the price level if it becomes empty.
func (q *queue) removeOrder(price decimal.Decimal, id uint64) *Order {
	key := priceKey(price)
	el, ok := q.priceList[key]
	if !ok {
		return nil
	}
	lvl, _ := el.Value.(*priceLevel)

	order, ok := q.orders[id]
	if !ok || !order.Price.Equal(price) {
		return nil
	}

	lvl.unlink(order)
	delete(q.orders, id)
	q.totalOrders--

	if lvl.count == 0 {
		q.depthList.RemoveElement(el)
		delete(q.priceList, key)
		q.depths--
	}

	return order
}

// reduceOrder takes size off a resting order in place, keeping its priority.
func (q *queue) reduceOrder(order *Order, size decimal.Decimal) {
	lvl := q.level(order.Price)
	if lvl == nil {
		return
	}
	order.Quantity = order.Quantity.Sub(size)
	lvl.totalSize = lvl.totalSize.Sub(size)
}

// bestLevel returns the level at the front of the queue (best price).
func (q *queue) bestLevel() *priceLevel {
	el := q.depthList.Front()
	if el == nil {
		return nil
	}
	lvl, _ := el.Value.(*priceLevel)
	return lvl
}

// peekHeadOrder returns the order at the front of the queue (best price) without removing it.
func (q *queue) peekHeadOrder() *Order {
	lvl := q.bestLevel()
	if lvl == nil {
		return nil
	}
	return lvl.head
}

// popHeadOrder removes and returns the order at the front of the queue.
func (q *queue) popHeadOrder() *Order {
	ord := q.peekHeadOrder()

	if ord != nil {
		q.removeOrder(ord.Price, ord.ID)
	}

	return ord
}

// orderCount returns the total number of orders in the queue.
func (q *queue) orderCount() int64 {
	return q.totalOrders
}

// depthCount returns the number of price levels in the queue.
func (q *queue) depthCount() int64 {
	return q.depths
}

// depth returns the order book depth up to the specified limit.
func (q *queue) depth(limit uint32) []*DepthItem {
	result := make([]*DepthItem, 0, limit)

	el := q.depthList.Front()

	var i uint32
	for i < limit && el != nil {
		lvl, _ := el.Value.(*priceLevel)
		result = append(result, &DepthItem{
			Price: lvl.price,
			Size:  lvl.totalSize,
			Count: lvl.count,
		})

		el = el.Next()
		i++
	}

	return result
}

// each walks every resting order in priority order until fn returns false.
func (q *queue) each(fn func(order *Order) bool) {
	for el := q.depthList.Front(); el != nil; el = el.Next() {
		lvl, _ := el.Value.(*priceLevel)
		for order := lvl.head; order != nil; order = order.next {
			if !fn(order) {
				return
			}
		}
	}
}
