package clearing

import (
	"log/slog"
	"sync"

	match "github.com/0x5487/marketsim"
	"github.com/shopspring/decimal"
)

// Journal durably records clearing records before they leave the process.
type Journal interface {
	Append(rec *match.ClearingRecord) error
}

type HouseOption func(*House)

func WithLogger(logger *slog.Logger) HouseOption {
	return func(h *House) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithJournal appends every settled record to j.
func WithJournal(j Journal) HouseOption {
	return func(h *House) {
		h.journal = j
	}
}

// Stats counts what the house has seen so far.
type Stats struct {
	Settled       uint64
	SelfTrades    uint64
	JournalErrors uint64
	Notional      decimal.Decimal
	LastTradeID   uint64
}

// House settles clearing records. It implements match.ClearingPublisher.
type House struct {
	logger  *slog.Logger
	journal Journal

	mu    sync.Mutex
	stats Stats
}

func NewHouse(opts ...HouseOption) *House {
	h := &House{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "clearing_house")
	return h
}

// PublishClearing settles records in order. A trade where buyer and seller
// are the same account moves nothing and is only counted.
func (h *House) PublishClearing(records ...*match.ClearingRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, rec := range records {
		if rec == nil {
			continue
		}
		h.stats.LastTradeID = rec.TradeID

		if rec.BuyAccountID == rec.SellAccountID {
			h.stats.SelfTrades++
			h.logger.Debug("self trade skipped", "trade_id", rec.TradeID, "account_id", rec.BuyAccountID)
			continue
		}

		h.logger.Info("sending asset",
			"trade_id", rec.TradeID,
			"quantity", rec.Quantity.String(),
			"from", rec.SellAccountID,
			"to", rec.BuyAccountID,
			"price", rec.Price.String(),
			"amount", rec.Amount.String(),
		)

		if h.journal != nil {
			if err := h.journal.Append(rec); err != nil {
				h.stats.JournalErrors++
				h.logger.Error("journal append failed", "trade_id", rec.TradeID, "error", err)
			}
		}

		h.stats.Settled++
		h.stats.Notional = h.stats.Notional.Add(rec.Amount)
	}
}

func (h *House) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}
