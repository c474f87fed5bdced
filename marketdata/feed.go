package marketdata

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	match "github.com/0x5487/marketsim"
	"github.com/0x5487/marketsim/protocol"
	"github.com/gorilla/websocket"
)

const defaultSubscriberBuffer = 32

// Trade is the public form of a match event.
type Trade struct {
	SequenceID   uint64 `json:"seq_id"`
	TradeID      uint64 `json:"trade_id"`
	MarketID     string `json:"market_id"`
	TakerSide    string `json:"taker_side"`
	Price        string `json:"price"`
	Size         string `json:"size"`
	TakerOrderID uint64 `json:"taker_order_id"`
	MakerOrderID uint64 `json:"maker_order_id"`
	Time         int64  `json:"time"` // Unix nano
}

type outboundMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type FeedOption func(*Feed)

func WithLogger(logger *slog.Logger) FeedOption {
	return func(f *Feed) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithSubscriberBuffer sets how many messages a websocket client may lag
// behind before it starts missing them.
func WithSubscriberBuffer(size int) FeedOption {
	return func(f *Feed) {
		if size > 0 {
			f.buffer = size
		}
	}
}

// WithCORSOrigin sets the Access-Control-Allow-Origin header of every route.
func WithCORSOrigin(origin string) FeedOption {
	return func(f *Feed) {
		f.corsOrigin = origin
	}
}

func WithClock(clock func() time.Time) FeedOption {
	return func(f *Feed) {
		if clock != nil {
			f.clock = clock
		}
	}
}

// Feed is a match.PublishLog that keeps an aggregated copy of the book and
// streams it to websocket clients.
type Feed struct {
	book       *match.AggregatedBook
	bookHub    *hub[*protocol.MarketSnapshotMessage]
	tradeHub   *hub[Trade]
	upgrader   websocket.Upgrader
	logger     *slog.Logger
	clock      func() time.Time
	buffer     int
	corsOrigin string

	gaps atomic.Uint64
}

func NewFeed(opts ...FeedOption) *Feed {
	f := &Feed{
		book:       match.NewAggregatedBook(),
		bookHub:    newHub[*protocol.MarketSnapshotMessage](),
		tradeHub:   newHub[Trade](),
		upgrader:   websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		logger:     slog.Default(),
		clock:      time.Now,
		buffer:     defaultSubscriberBuffer,
		corsOrigin: "*",
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With("component", "market_data")
	return f
}

// Publish replays logs in order. It runs on the engine goroutine and must
// not keep the logs past return.
func (f *Feed) Publish(logs ...*match.BookLog) {
	changed := false

	for _, log := range logs {
		if err := f.book.Replay(log); err != nil {
			if errors.Is(err, match.ErrSequenceGap) {
				f.gaps.Add(1)
			}
			f.logger.Warn("book log not applied", "seq_id", log.SequenceID, "error", err)
			continue
		}
		changed = true

		if log.Type == match.LogTypeMatch {
			f.tradeHub.Broadcast(Trade{
				SequenceID:   log.SequenceID,
				TradeID:      log.TradeID,
				MarketID:     log.MarketID,
				TakerSide:    log.Side.String(),
				Price:        log.Price.String(),
				Size:         log.Size.String(),
				TakerOrderID: log.OrderID,
				MakerOrderID: log.MakerOrderID,
				Time:         log.CreatedAt.UnixNano(),
			})
		}
	}

	if changed && f.bookHub.Len() > 0 {
		f.bookHub.Broadcast(match.MarketSnapshotToProtocol(f.Snapshot()))
	}
}

// Rebuild resets the view from a depth snapshot, clearing a sequence gap.
func (f *Feed) Rebuild(depth *match.Depth) error {
	return f.book.OnRebuild(depth)
}

// Snapshot returns top of book, reference price and last trade.
func (f *Feed) Snapshot() *match.MarketSnapshot {
	snap := f.book.Snapshot()
	snap.Timestamp = f.clock().UTC()
	return snap
}

// MarketSnapshot lets the feed serve agents that do not talk to the engine.
func (f *Feed) MarketSnapshot(context.Context) (*match.MarketSnapshot, error) {
	return f.Snapshot(), nil
}

func (f *Feed) Depth(limit uint32) *match.Depth {
	return f.book.Levels(limit)
}

func (f *Feed) SequenceID() uint64 {
	return f.book.SequenceID()
}

// Gaps counts sequence gaps seen since start.
func (f *Feed) Gaps() uint64 {
	return f.gaps.Load()
}

// Close disconnects every websocket subscriber.
func (f *Feed) Close() {
	f.bookHub.Close()
	f.tradeHub.Close()
}
