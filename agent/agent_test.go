package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	match "github.com/0x5487/marketsim"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startEngine(t *testing.T) *match.MatchingEngine {
	t.Helper()
	engine := match.NewMatchingEngine()
	go func() {
		_ = engine.Start()
	}()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = engine.Shutdown(ctx)
	})
	return engine
}

type recordingClient struct {
	mu     sync.Mutex
	orders []*match.PlaceOrderCommand
	snap   *match.MarketSnapshot
	err    error
}

func (c *recordingClient) Submit(_ context.Context, cmd *match.PlaceOrderCommand) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.orders = append(c.orders, cmd)
	return nil
}

func (c *recordingClient) MarketSnapshot(context.Context) (*match.MarketSnapshot, error) {
	if c.snap == nil {
		return &match.MarketSnapshot{}, nil
	}
	return c.snap, nil
}

func (c *recordingClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.orders)
}

func testConfig() Config {
	return Config{
		CenterPrice: decimal.NewFromInt(100),
		Deviance:    decimal.RequireFromString("0.005"),
		MinInterval: time.Millisecond,
		MaxInterval: 2 * time.Millisecond,
	}
}

func TestNextOrderBounds(t *testing.T) {
	a := NewRandomAgent(testConfig(), 42, nil)
	reference := decimal.NewFromInt(100)
	low := decimal.RequireFromString("99.5")
	high := decimal.RequireFromString("100.5")

	sides := map[match.Side]int{}
	for i := 0; i < 1000; i++ {
		cmd := a.NextOrder(reference)
		sides[cmd.Side]++

		assert.Equal(t, match.Limit, cmd.Type)
		assert.Equal(t, a.Name(), cmd.AccountID)
		assert.NotEmpty(t, cmd.ClientOrderID)
		assert.True(t, cmd.Price.GreaterThanOrEqual(low) && cmd.Price.LessThanOrEqual(high), cmd.Price.String())
		assert.True(t, cmd.Price.Equal(cmd.Price.Round(2)))

		lots := cmd.Quantity.Div(decimal.NewFromInt(10))
		assert.True(t, lots.IsInteger())
		assert.True(t, lots.GreaterThanOrEqual(decimal.NewFromInt(2)) && lots.LessThanOrEqual(decimal.NewFromInt(50)))
	}
	assert.Positive(t, sides[match.Buy])
	assert.Positive(t, sides[match.Sell])
}

func TestRandomAgentUsesReferencePrice(t *testing.T) {
	ref := decimal.NewFromInt(500)
	client := &recordingClient{snap: &match.MarketSnapshot{ReferencePrice: &ref}}
	a := NewRandomAgent(testConfig(), 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx, client)
	}()

	assert.Eventually(t, func() bool {
		return client.count() >= 5
	}, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	client.mu.Lock()
	defer client.mu.Unlock()
	for _, cmd := range client.orders {
		assert.True(t, cmd.Price.GreaterThan(decimal.NewFromInt(490)), cmd.Price.String())
	}
}

func TestRandomAgentStopsWhenMarketCloses(t *testing.T) {
	client := &recordingClient{err: match.ErrShutdown}
	a := NewRandomAgent(testConfig(), 1, nil)

	err := a.Run(context.Background(), client)
	assert.ErrorIs(t, err, match.ErrShutdown)
	assert.Zero(t, a.Submitted())
}

func TestSeedBuildsSymmetricBook(t *testing.T) {
	engine := startEngine(t)
	client := NewEngineClient(engine)

	require.NoError(t, Seed(context.Background(), client, decimal.NewFromInt(100)))

	depth, err := engine.Depth(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, depth.Asks, 5)
	require.Len(t, depth.Bids, 5)

	assert.Equal(t, "100.1", depth.Asks[0].Price.String())
	assert.Equal(t, "100.5", depth.Asks[4].Price.String())
	assert.Equal(t, "99.9", depth.Bids[0].Price.String())
	assert.Equal(t, "99.5", depth.Bids[4].Price.String())
	for _, level := range append(depth.Asks, depth.Bids...) {
		assert.Equal(t, "200", level.Size.String())
		assert.Equal(t, int64(2), level.Count)
	}

	snap, err := client.MarketSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "100", snap.ReferencePrice.String())
	assert.Nil(t, snap.LastTradePrice)
}

func TestSeedRandomNeverCrosses(t *testing.T) {
	engine := startEngine(t)
	client := NewEngineClient(engine)

	require.NoError(t, SeedRandom(context.Background(), client, decimal.NewFromInt(100), decimal.RequireFromString("0.01"), 200, 7))

	stats, err := engine.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(200), stats.AskOrderCount+stats.BidOrderCount)

	snap, err := client.MarketSnapshot(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap.LastTradePrice)
}

func TestSupervisorAgainstEngine(t *testing.T) {
	engine := startEngine(t)
	client := NewEngineClient(engine)
	require.NoError(t, Seed(context.Background(), client, decimal.NewFromInt(100)))

	agents := make([]Agent, 0, 4)
	randoms := make([]*RandomAgent, 0, 4)
	for i := 0; i < 4; i++ {
		a := NewRandomAgent(testConfig(), int64(i), nil)
		agents = append(agents, a)
		randoms = append(randoms, a)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewSupervisor(client, nil, agents...).Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		total := uint64(0)
		for _, a := range randoms {
			total += a.Submitted()
		}
		return total >= 40
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.False(t, engine.Halted())

	depth, err := engine.Depth(context.Background(), 1)
	require.NoError(t, err)
	if len(depth.Asks) > 0 && len(depth.Bids) > 0 {
		assert.True(t, depth.Bids[0].Price.LessThan(depth.Asks[0].Price))
	}
}

func TestSupervisorReportsClosedMarket(t *testing.T) {
	client := &recordingClient{err: match.ErrHalted}
	sup := NewSupervisor(client, nil, NewRandomAgent(testConfig(), 1, nil), NewRandomAgent(testConfig(), 2, nil))

	err := sup.Run(context.Background())
	assert.ErrorIs(t, err, match.ErrHalted)
}
