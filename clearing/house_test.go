package clearing

import (
	"errors"
	"testing"

	match "github.com/0x5487/marketsim"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type recordingJournal struct {
	records []*match.ClearingRecord
	err     error
}

func (j *recordingJournal) Append(rec *match.ClearingRecord) error {
	if j.err != nil {
		return j.err
	}
	j.records = append(j.records, rec)
	return nil
}

func testRecord(tradeID uint64, buyer, seller, price, qty string) *match.ClearingRecord {
	p := decimal.RequireFromString(price)
	q := decimal.RequireFromString(qty)
	return &match.ClearingRecord{
		TradeID:       tradeID,
		BuyAccountID:  buyer,
		SellAccountID: seller,
		TakerSide:     match.Buy,
		Price:         p,
		Quantity:      q,
		Amount:        p.Mul(q),
	}
}

func TestHouseSettles(t *testing.T) {
	journal := &recordingJournal{}
	house := NewHouse(WithJournal(journal))

	house.PublishClearing(
		testRecord(1, "alice", "bob", "100", "2"),
		testRecord(2, "carol", "bob", "101", "1"),
	)

	stats := house.Stats()
	assert.Equal(t, uint64(2), stats.Settled)
	assert.Equal(t, uint64(0), stats.SelfTrades)
	assert.Equal(t, uint64(2), stats.LastTradeID)
	assert.Equal(t, "301", stats.Notional.String())
	assert.Len(t, journal.records, 2)
}

func TestHouseSkipsSelfTrade(t *testing.T) {
	journal := &recordingJournal{}
	house := NewHouse(WithJournal(journal))

	house.PublishClearing(testRecord(7, "alice", "alice", "100", "5"), nil)

	stats := house.Stats()
	assert.Equal(t, uint64(0), stats.Settled)
	assert.Equal(t, uint64(1), stats.SelfTrades)
	assert.Equal(t, uint64(7), stats.LastTradeID)
	assert.True(t, stats.Notional.IsZero())
	assert.Empty(t, journal.records)
}

func TestHouseJournalFailure(t *testing.T) {
	house := NewHouse(WithJournal(&recordingJournal{err: errors.New("disk full")}))

	house.PublishClearing(testRecord(1, "alice", "bob", "10", "1"))

	stats := house.Stats()
	assert.Equal(t, uint64(1), stats.JournalErrors)
	assert.Equal(t, uint64(1), stats.Settled)
}
