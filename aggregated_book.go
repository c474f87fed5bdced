package match

import (
	"fmt"
	"sync"

	"github.com/igrmk/treemap/v2"
	"github.com/shopspring/decimal"
)

// AggregatedBook maintains a simplified view of the order book,
// tracking only price levels and their aggregated sizes (depth).
// It is designed for downstream services that need to rebuild
// order book state from BookLog events.
type AggregatedBook struct {
	mu    sync.RWMutex
	seqID uint64 // Last processed SequenceID for gap detection and deduplication
	ask   *treemap.TreeMap[decimal.Decimal, decimal.Decimal]
	bid   *treemap.TreeMap[decimal.Decimal, decimal.Decimal]

	lastTradePrice *decimal.Decimal
	lastTradeSize  *decimal.Decimal
}

func lessDecimal(a, b decimal.Decimal) bool {
	return a.LessThan(b)
}

// NewAggregatedBook creates a new AggregatedBook instance with empty ask and bid sides.
func NewAggregatedBook() *AggregatedBook {
	return &AggregatedBook{
		ask: treemap.NewWithKeyCompare[decimal.Decimal, decimal.Decimal](lessDecimal),
		bid: treemap.NewWithKeyCompare[decimal.Decimal, decimal.Decimal](lessDecimal),
	}
}

// SequenceID returns the last processed sequence ID.
// Used for synchronization and gap detection during rebuild.
func (ab *AggregatedBook) SequenceID() uint64 {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	return ab.seqID
}

func (ab *AggregatedBook) side(side Side) *treemap.TreeMap[decimal.Decimal, decimal.Decimal] {
	if side == Buy {
		return ab.bid
	}
	return ab.ask
}

// Replay applies a BookLog event to update the aggregated book state.
// Already seen events are ignored. Events with LogType == LogTypeReject do
// not affect book state but still advance the sequence ID.
// Returns ErrSequenceGap if events were missed; the book is left untouched.
func (ab *AggregatedBook) Replay(log *BookLog) error {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	if log.SequenceID <= ab.seqID {
		return nil
	}
	if ab.seqID != 0 && log.SequenceID != ab.seqID+1 {
		return fmt.Errorf("%w: expected %d, got %d", ErrSequenceGap, ab.seqID+1, log.SequenceID)
	}

	change := CalculateDepthChange(log)
	if !change.SizeDiff.IsZero() {
		tree := ab.side(change.Side)
		size, _ := tree.Get(change.Price)
		size = size.Add(change.SizeDiff)
		if size.IsPositive() {
			tree.Set(change.Price, size)
		} else {
			tree.Del(change.Price)
		}
	}

	if log.Type == LogTypeMatch {
		price, size := log.Price, log.Size
		ab.lastTradePrice = &price
		ab.lastTradeSize = &size
	}

	ab.seqID = log.SequenceID
	return nil
}

// OnRebuild resets the aggregated book from a depth snapshot taken at
// depth.UpdateID. Replay continues from the next sequence ID.
func (ab *AggregatedBook) OnRebuild(depth *Depth) error {
	if depth == nil {
		return ErrInvalidParam
	}

	ab.mu.Lock()
	defer ab.mu.Unlock()

	ab.ask = treemap.NewWithKeyCompare[decimal.Decimal, decimal.Decimal](lessDecimal)
	ab.bid = treemap.NewWithKeyCompare[decimal.Decimal, decimal.Decimal](lessDecimal)
	for _, item := range depth.Asks {
		ab.ask.Set(item.Price, item.Size)
	}
	for _, item := range depth.Bids {
		ab.bid.Set(item.Price, item.Size)
	}
	ab.seqID = depth.UpdateID
	return nil
}

// Depth returns the aggregated size at a specific price level for the given side.
// Returns zero if the price level does not exist.
func (ab *AggregatedBook) Depth(side Side, price decimal.Decimal) (decimal.Decimal, error) {
	if !side.valid() {
		return decimal.Zero, ErrInvalidSide
	}

	ab.mu.RLock()
	defer ab.mu.RUnlock()

	size, ok := ab.side(side).Get(price)
	if !ok {
		return decimal.Zero, nil
	}
	return size, nil
}

// BestBid returns the highest bid level.
func (ab *AggregatedBook) BestBid() *Quote {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	return ab.bestBid()
}

// BestAsk returns the lowest ask level.
func (ab *AggregatedBook) BestAsk() *Quote {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	return ab.bestAsk()
}

func (ab *AggregatedBook) bestBid() *Quote {
	it := ab.bid.Reverse()
	if !it.Valid() {
		return nil
	}
	return &Quote{Price: it.Key(), Size: it.Value()}
}

func (ab *AggregatedBook) bestAsk() *Quote {
	it := ab.ask.Iterator()
	if !it.Valid() {
		return nil
	}
	return &Quote{Price: it.Key(), Size: it.Value()}
}

// Levels returns up to limit levels per side, best first.
func (ab *AggregatedBook) Levels(limit uint32) *Depth {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	depth := &Depth{
		UpdateID: ab.seqID,
		Asks:     make([]*DepthItem, 0),
		Bids:     make([]*DepthItem, 0),
	}
	for it := ab.ask.Iterator(); it.Valid() && uint32(len(depth.Asks)) < limit; it.Next() {
		depth.Asks = append(depth.Asks, &DepthItem{Price: it.Key(), Size: it.Value()})
	}
	for it := ab.bid.Reverse(); it.Valid() && uint32(len(depth.Bids)) < limit; it.Next() {
		depth.Bids = append(depth.Bids, &DepthItem{Price: it.Key(), Size: it.Value()})
	}
	return depth
}

// Snapshot summarizes the current top of book and last trade.
func (ab *AggregatedBook) Snapshot() *MarketSnapshot {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	snap := &MarketSnapshot{
		SequenceID:     ab.seqID,
		BestBid:        ab.bestBid(),
		BestAsk:        ab.bestAsk(),
		LastTradePrice: ab.lastTradePrice,
		LastTradeSize:  ab.lastTradeSize,
	}
	snap.ReferencePrice = referencePrice(snap.BestBid, snap.BestAsk)
	return snap
}
