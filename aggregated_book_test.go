package match

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateDepthChange(t *testing.T) {
	price := decimal.NewFromInt(100)
	size := decimal.NewFromInt(3)

	open := CalculateDepthChange(&BookLog{Type: LogTypeOpen, Side: Buy, Price: price, Size: size})
	assert.Equal(t, Buy, open.Side)
	assert.Equal(t, "3", open.SizeDiff.String())

	cancel := CalculateDepthChange(&BookLog{Type: LogTypeCancel, Side: Sell, Price: price, Size: size})
	assert.Equal(t, Sell, cancel.Side)
	assert.Equal(t, "-3", cancel.SizeDiff.String())

	// taker buys, liquidity leaves the ask side
	match := CalculateDepthChange(&BookLog{Type: LogTypeMatch, Side: Buy, Price: price, Size: size})
	assert.Equal(t, Sell, match.Side)
	assert.Equal(t, "-3", match.SizeDiff.String())

	reject := CalculateDepthChange(&BookLog{Type: LogTypeReject, Side: Buy, Size: size})
	assert.True(t, reject.SizeDiff.IsZero())
}

func TestAggregatedBookReplay(t *testing.T) {
	ab := NewAggregatedBook()

	logs := []*BookLog{
		{SequenceID: 1, Type: LogTypeOpen, Side: Sell, Price: decimal.NewFromInt(101), Size: decimal.NewFromInt(5)},
		{SequenceID: 2, Type: LogTypeOpen, Side: Sell, Price: decimal.RequireFromString("101.0"), Size: decimal.NewFromInt(2)},
		{SequenceID: 3, Type: LogTypeOpen, Side: Buy, Price: decimal.NewFromInt(99), Size: decimal.NewFromInt(4)},
		{SequenceID: 4, Type: LogTypeMatch, Side: Buy, Price: decimal.NewFromInt(101), Size: decimal.NewFromInt(7)},
		{SequenceID: 5, Type: LogTypeReject, Side: Buy, Size: decimal.NewFromInt(1), RejectReason: RejectReasonNoLiquidity},
	}
	for _, log := range logs[:3] {
		require.NoError(t, ab.Replay(log))
	}

	size, err := ab.Depth(Sell, decimal.NewFromInt(101))
	require.NoError(t, err)
	assert.Equal(t, "7", size.String())

	snap := ab.Snapshot()
	assert.Equal(t, "100", snap.ReferencePrice.String())
	assert.Nil(t, snap.LastTradePrice)

	require.NoError(t, ab.Replay(logs[3]))
	require.NoError(t, ab.Replay(logs[4]))

	size, err = ab.Depth(Sell, decimal.NewFromInt(101))
	require.NoError(t, err)
	assert.True(t, size.IsZero())
	assert.Nil(t, ab.BestAsk())

	snap = ab.Snapshot()
	assert.Equal(t, uint64(5), snap.SequenceID)
	assert.Equal(t, "99", snap.ReferencePrice.String())
	assert.Equal(t, "101", snap.LastTradePrice.String())
	assert.Equal(t, "7", snap.LastTradeSize.String())

	// duplicates are ignored
	require.NoError(t, ab.Replay(logs[0]))
	assert.Equal(t, uint64(5), ab.SequenceID())

	// gaps are reported and change nothing
	err = ab.Replay(&BookLog{SequenceID: 7, Type: LogTypeOpen, Side: Buy, Price: decimal.NewFromInt(98), Size: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrSequenceGap)
	assert.Equal(t, uint64(5), ab.SequenceID())

	_, err = ab.Depth(Side(9), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrInvalidSide)
}

func TestAggregatedBookLevels(t *testing.T) {
	ab := NewAggregatedBook()
	seq := uint64(0)
	open := func(side Side, price, size int64) {
		seq++
		require.NoError(t, ab.Replay(&BookLog{SequenceID: seq, Type: LogTypeOpen, Side: side, Price: decimal.NewFromInt(price), Size: decimal.NewFromInt(size)}))
	}

	open(Buy, 98, 1)
	open(Buy, 99, 2)
	open(Buy, 97, 3)
	open(Sell, 102, 1)
	open(Sell, 101, 2)

	depth := ab.Levels(2)
	require.Len(t, depth.Bids, 2)
	require.Len(t, depth.Asks, 2)
	assert.Equal(t, "99", depth.Bids[0].Price.String())
	assert.Equal(t, "98", depth.Bids[1].Price.String())
	assert.Equal(t, "101", depth.Asks[0].Price.String())
	assert.Equal(t, uint64(5), depth.UpdateID)

	assert.Equal(t, "99", ab.BestBid().Price.String())
}

// The engine's event stream must rebuild the same depth it reports itself.
func TestAggregatedBookFollowsEngine(t *testing.T) {
	publish := NewMemoryPublishLog()
	engine := startTestEngine(t, WithPublishLog(publish))
	ctx := context.Background()

	cmds := []*PlaceOrderCommand{
		limitCmd("a", Sell, 101, 5),
		limitCmd("b", Sell, 102, 5),
		limitCmd("c", Buy, 99, 5),
		limitCmd("d", Buy, 101, 7),
		marketCmd("e", Sell, 4),
		limitCmd("f", Sell, 100, 1),
	}
	for _, cmd := range cmds {
		_, err := engine.SubmitOrder(ctx, cmd)
		require.NoError(t, err)
	}
	_, err := engine.CancelOrder(ctx, 2)
	require.NoError(t, err)

	ab := NewAggregatedBook()
	for _, log := range publish.Logs() {
		require.NoError(t, ab.Replay(log))
	}

	depth, err := engine.Depth(ctx, 10)
	require.NoError(t, err)
	rebuilt := ab.Levels(10)

	require.Len(t, rebuilt.Asks, len(depth.Asks))
	require.Len(t, rebuilt.Bids, len(depth.Bids))
	for i := range depth.Asks {
		assert.True(t, depth.Asks[i].Price.Equal(rebuilt.Asks[i].Price))
		assert.True(t, depth.Asks[i].Size.Equal(rebuilt.Asks[i].Size))
	}
	for i := range depth.Bids {
		assert.True(t, depth.Bids[i].Price.Equal(rebuilt.Bids[i].Price))
		assert.True(t, depth.Bids[i].Size.Equal(rebuilt.Bids[i].Size))
	}
	assert.Equal(t, depth.UpdateID, rebuilt.UpdateID)
}

func TestAggregatedBookOnRebuild(t *testing.T) {
	ab := NewAggregatedBook()
	err := ab.OnRebuild(&Depth{
		UpdateID: 10,
		Asks:     []*DepthItem{{Price: decimal.NewFromInt(101), Size: decimal.NewFromInt(3)}},
		Bids:     []*DepthItem{{Price: decimal.NewFromInt(99), Size: decimal.NewFromInt(2)}},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(10), ab.SequenceID())

	require.NoError(t, ab.Replay(&BookLog{SequenceID: 11, Type: LogTypeCancel, Side: Buy, Price: decimal.NewFromInt(99), Size: decimal.NewFromInt(2)}))
	assert.Nil(t, ab.BestBid())

	assert.ErrorIs(t, ab.OnRebuild(nil), ErrInvalidParam)
}
