package agent

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	match "github.com/0x5487/marketsim"
	"github.com/rs/xid"
	"github.com/shopspring/decimal"
)

const (
	minLots = 2
	maxLots = 50
)

var (
	minTick = decimal.New(1, -2)
	lotSize = decimal.NewFromInt(10)
)

// Config drives a RandomAgent.
type Config struct {
	CenterPrice decimal.Decimal // used while the book has no reference price
	Deviance    decimal.Decimal // fraction of the price, 0.005 is half a percent
	MinInterval time.Duration
	MaxInterval time.Duration
}

// RandomAgent places limit orders of random side and size around the
// reference price at random intervals.
type RandomAgent struct {
	accountID string
	cfg       Config
	rand      *rand.Rand
	logger    *slog.Logger

	submitted atomic.Uint64
	rejected  atomic.Uint64
}

func NewRandomAgent(cfg Config, seed int64, logger *slog.Logger) *RandomAgent {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxInterval < cfg.MinInterval {
		cfg.MaxInterval = cfg.MinInterval
	}
	accountID := xid.New().String()
	return &RandomAgent{
		accountID: accountID,
		cfg:       cfg,
		rand:      rand.New(rand.NewSource(seed)),
		logger:    logger.With("component", "agent", "account_id", accountID),
	}
}

func (a *RandomAgent) Name() string {
	return a.accountID
}

func (a *RandomAgent) Submitted() uint64 {
	return a.submitted.Load()
}

func (a *RandomAgent) Run(ctx context.Context, client Client) error {
	timer := time.NewTimer(a.nextDelay())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		if err := a.trade(ctx, client); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		timer.Reset(a.nextDelay())
	}
}

func (a *RandomAgent) trade(ctx context.Context, client Client) error {
	reference := a.cfg.CenterPrice
	snap, err := client.MarketSnapshot(ctx)
	switch {
	case err == nil && snap.ReferencePrice != nil:
		reference = *snap.ReferencePrice
	case err != nil && marketClosed(err):
		return err
	case err != nil:
		a.logger.Warn("market snapshot failed, using center price", "error", err)
	}

	cmd := a.NextOrder(reference)
	if err := client.Submit(ctx, cmd); err != nil {
		if marketClosed(err) {
			return err
		}
		a.rejected.Add(1)
		a.logger.Warn("order not accepted", "error", err)
		return nil
	}

	a.submitted.Add(1)
	a.logger.Debug("order sent", "side", cmd.Side.String(), "price", cmd.Price.String(), "quantity", cmd.Quantity.String())
	return nil
}

// NextOrder builds a limit order priced uniformly within the configured
// deviance of reference.
func (a *RandomAgent) NextOrder(reference decimal.Decimal) *match.PlaceOrderCommand {
	side := match.Buy
	if a.rand.Intn(2) == 1 {
		side = match.Sell
	}

	spread := reference.Mul(a.cfg.Deviance)
	offset := spread.Mul(decimal.NewFromFloat(2*a.rand.Float64() - 1))
	price := reference.Add(offset).Round(2)
	if price.LessThan(minTick) {
		price = minTick
	}

	lots := minLots + a.rand.Intn(maxLots-minLots+1)

	return &match.PlaceOrderCommand{
		ClientOrderID: xid.New().String(),
		AccountID:     a.accountID,
		Side:          side,
		Type:          match.Limit,
		Price:         price,
		Quantity:      lotSize.Mul(decimal.NewFromInt(int64(lots))),
	}
}

func (a *RandomAgent) nextDelay() time.Duration {
	window := a.cfg.MaxInterval - a.cfg.MinInterval
	if window <= 0 {
		return a.cfg.MinInterval
	}
	return a.cfg.MinInterval + time.Duration(a.rand.Int63n(int64(window)+1))
}

func marketClosed(err error) bool {
	return errors.Is(err, match.ErrShutdown) || errors.Is(err, match.ErrHalted)
}
