package match

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// Matcher runs price-time priority matching against a Book. Every call is
// one critical section guarded by a mutex, so it is safe for concurrent use.
type Matcher struct {
	mu        sync.Mutex
	book      *Book
	clock     func() time.Time
	orderID   uint64
	lastStamp int64
	halted    atomic.Bool
	violation error

	// orders read or written by the current submit
	touched []*Order
}

// NewMatcher creates a matcher over an empty book. A nil clock means time.Now.
func NewMatcher(clock func() time.Time) *Matcher {
	if clock == nil {
		clock = time.Now
	}
	return &Matcher{
		book:  NewBook(),
		clock: clock,
	}
}

// Halted reports whether an invariant violation has stopped the matcher.
func (m *Matcher) Halted() bool {
	return m.halted.Load()
}

// Violation returns the error that halted the matcher, if any.
func (m *Matcher) Violation() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.violation
}

func validate(cmd *PlaceOrderCommand) error {
	if cmd == nil {
		return &ValidationError{Reason: ErrInvalidParam}
	}
	if !cmd.Side.valid() {
		return &ValidationError{Reason: ErrInvalidSide}
	}
	if !cmd.Type.valid() {
		return &ValidationError{Reason: ErrInvalidOrderType}
	}
	if cmd.Quantity.LessThanOrEqual(decimal.Zero) {
		return &ValidationError{Reason: ErrInvalidQuantity}
	}
	if cmd.Type == Limit && cmd.Price.LessThanOrEqual(decimal.Zero) {
		return &ValidationError{Reason: ErrMissingPrice}
	}
	return nil
}

// Submit accepts one order and matches it to completion.
//
// Validation failures return a *ValidationError and leave the book and the
// order ID sequence untouched. If the book is found corrupted afterwards the
// matcher halts and returns an *InvariantViolation together with the result
// of the submit that exposed it; every later call returns ErrHalted.
func (m *Matcher) Submit(cmd *PlaceOrderCommand) (*MatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.halted.Load() {
		return nil, ErrHalted
	}

	if err := validate(cmd); err != nil {
		return nil, err
	}

	order := m.accept(cmd)
	m.touched = append(m.touched[:0], order)

	var result *MatchResult
	switch order.Type {
	case Limit:
		result = m.matchLimit(order)
	case Market:
		result = m.matchMarket(order)
	}

	v := m.book.checkInvariants(m.touched)
	clear(m.touched)
	m.touched = m.touched[:0]
	if v != nil {
		m.violation = v
		m.halted.Store(true)
		return result, v
	}

	return result, nil
}

// Cancel removes a resting order. ok is false when the order is not resting.
func (m *Matcher) Cancel(id uint64) (Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.halted.Load() {
		return Order{}, false, ErrHalted
	}

	order, ok := m.book.Cancel(id)
	if !ok {
		return Order{}, false, nil
	}
	return order.clone(), true, nil
}

// View runs fn with the book inside the critical section. fn must not keep
// references to book internals after it returns.
func (m *Matcher) View(fn func(book *Book)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.book)
}

func (m *Matcher) accept(cmd *PlaceOrderCommand) *Order {
	m.orderID++

	stamp := m.clock().UnixNano()
	if stamp <= m.lastStamp {
		stamp = m.lastStamp + 1
	}
	m.lastStamp = stamp

	order := &Order{
		ID:               m.orderID,
		ClientOrderID:    cmd.ClientOrderID,
		AccountID:        cmd.AccountID,
		Side:             cmd.Side,
		Type:             cmd.Type,
		Price:            cmd.Price,
		Quantity:         cmd.Quantity,
		OriginalQuantity: cmd.Quantity,
		Timestamp:        stamp,
	}
	if order.Type == Market {
		order.Price = decimal.Zero
	}
	return order
}

// crosses reports whether an incoming limit order at price can trade
// against the resting price on the opposing side.
func crosses(side Side, price, resting decimal.Decimal) bool {
	if side == Buy {
		return resting.LessThanOrEqual(price)
	}
	return resting.GreaterThanOrEqual(price)
}

func (m *Matcher) matchLimit(order *Order) *MatchResult {
	result := &MatchResult{}
	opposite := order.Side.Opposite()

	for order.Quantity.IsPositive() {
		resting := m.book.PeekFront(opposite)
		if resting == nil || !crosses(order.Side, order.Price, resting.Price) {
			break
		}
		result.Fills = append(result.Fills, m.fill(order, resting))
	}

	if order.Quantity.IsPositive() {
		m.book.Insert(order)
		if len(result.Fills) == 0 {
			result.Status = StatusResting
		} else {
			result.Status = StatusPartiallyFilled
		}
	} else {
		result.Status = StatusFilled
	}

	result.Filled = order.OriginalQuantity.Sub(order.Quantity)
	result.Order = order.clone()
	return result
}

func (m *Matcher) matchMarket(order *Order) *MatchResult {
	result := &MatchResult{}
	opposite := order.Side.Opposite()

	for order.Quantity.IsPositive() {
		resting := m.book.PeekFront(opposite)
		if resting == nil {
			break
		}
		result.Fills = append(result.Fills, m.fill(order, resting))
	}

	result.Filled = order.OriginalQuantity.Sub(order.Quantity)
	result.Status = StatusFilled
	if order.Quantity.IsPositive() {
		result.Status = StatusDiscarded
		result.Discarded = order.Quantity
	}
	result.Order = order.clone()
	return result
}

// fill trades the incoming order against the head of the opposing side at
// the resting price, removing the resting order once it is exhausted.
func (m *Matcher) fill(incoming, resting *Order) Fill {
	size := decimal.Min(incoming.Quantity, resting.Quantity)

	m.touched = append(m.touched, resting)

	f := Fill{
		RestingOrderID:    resting.ID,
		IncomingOrderID:   incoming.ID,
		RestingAccountID:  resting.AccountID,
		IncomingAccountID: incoming.AccountID,
		TakerSide:         incoming.Side,
		Price:             resting.Price,
		Quantity:          size,
	}

	incoming.Quantity = incoming.Quantity.Sub(size)
	if size.Equal(resting.Quantity) {
		m.book.RemoveFront(resting.Side, resting.Price)
		resting.Quantity = decimal.Zero
	} else {
		m.book.reduceFront(resting.Side, size)
	}

	return f
}
