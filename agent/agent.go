package agent

import (
	"context"

	match "github.com/0x5487/marketsim"
)

// Client is the minimal surface agents need from the market. The engine,
// the gRPC client and the Kafka producer all satisfy it.
type Client interface {
	Submit(ctx context.Context, cmd *match.PlaceOrderCommand) error
	MarketSnapshot(ctx context.Context) (*match.MarketSnapshot, error)
}

// Agent trades until ctx is done. Run returns nil on cancellation and an
// error only when the market stopped accepting orders.
type Agent interface {
	Name() string
	Run(ctx context.Context, client Client) error
}

// EngineClient adapts an in-process engine.
type EngineClient struct {
	engine *match.MatchingEngine
}

func NewEngineClient(engine *match.MatchingEngine) *EngineClient {
	return &EngineClient{engine: engine}
}

// Submit waits for the match result so validation errors reach the agent.
func (c *EngineClient) Submit(ctx context.Context, cmd *match.PlaceOrderCommand) error {
	_, err := c.engine.SubmitOrder(ctx, cmd)
	return err
}

func (c *EngineClient) MarketSnapshot(ctx context.Context) (*match.MarketSnapshot, error) {
	return c.engine.MarketSnapshot(ctx)
}
