package agent

import (
	"context"
	"fmt"
	"math/rand"

	match "github.com/0x5487/marketsim"
	"github.com/rs/xid"
	"github.com/shopspring/decimal"
)

const (
	seedLevels      = 5
	seedOrdersLevel = 2
)

var (
	seedStep = decimal.New(10, -2)
	seedSize = decimal.NewFromInt(100)
)

// Seed fills an empty book symmetrically: five ask levels at center+0.10*i
// and five bid levels at center-0.10*i, two orders of 100 at each.
func Seed(ctx context.Context, client Client, center decimal.Decimal) error {
	for round := 0; round < seedOrdersLevel; round++ {
		for i := 1; i <= seedLevels; i++ {
			offset := seedStep.Mul(decimal.NewFromInt(int64(i)))
			if err := submitSeed(ctx, client, match.Sell, center.Add(offset)); err != nil {
				return err
			}
		}
	}
	for round := 0; round < seedOrdersLevel; round++ {
		for i := 1; i <= seedLevels; i++ {
			offset := seedStep.Mul(decimal.NewFromInt(int64(i)))
			if err := submitSeed(ctx, client, match.Buy, center.Sub(offset)); err != nil {
				return err
			}
		}
	}
	return nil
}

func submitSeed(ctx context.Context, client Client, side match.Side, price decimal.Decimal) error {
	err := client.Submit(ctx, &match.PlaceOrderCommand{
		AccountID: xid.New().String(),
		Side:      side,
		Type:      match.Limit,
		Price:     price.Round(2),
		Quantity:  seedSize,
	})
	if err != nil {
		return fmt.Errorf("seed %s at %s: %w", side, price, err)
	}
	return nil
}

// SeedRandom places n orders that never cross: bids below center and asks
// above it, each within deviance of center.
func SeedRandom(ctx context.Context, client Client, center, deviance decimal.Decimal, n int, seed int64) error {
	rng := rand.New(rand.NewSource(seed))
	spread := center.Mul(deviance)

	for i := 0; i < n; i++ {
		side := match.Buy
		if rng.Intn(2) == 1 {
			side = match.Sell
		}

		offset := spread.Mul(decimal.NewFromFloat(rng.Float64())).Round(2)
		if offset.IsZero() {
			offset = minTick
		}
		price := center.Sub(offset)
		if side == match.Sell {
			price = center.Add(offset)
		}
		if !price.IsPositive() {
			continue
		}

		lots := minLots + rng.Intn(maxLots-minLots+1)
		err := client.Submit(ctx, &match.PlaceOrderCommand{
			AccountID: xid.New().String(),
			Side:      side,
			Type:      match.Limit,
			Price:     price.Round(2),
			Quantity:  lotSize.Mul(decimal.NewFromInt(int64(lots))),
		})
		if err != nil {
			return fmt.Errorf("seed order %d: %w", i, err)
		}
	}
	return nil
}
