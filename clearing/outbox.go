package clearing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	match "github.com/0x5487/marketsim"
	"github.com/0x5487/marketsim/protocol"
	"github.com/cockroachdb/pebble"
)

const (
	keyPrefix     = "clearing/"
	keyUpperBound = "clearing/~"
	lastTradeKey  = "meta/last-trade-id"
)

var (
	// ErrRecordNotFound is returned by Get for an unknown trade id.
	ErrRecordNotFound = errors.New("clearing record not found")
	// ErrDuplicateTrade is returned by Append when the trade id is already pending.
	ErrDuplicateTrade = errors.New("clearing record already pending")
)

// Outbox is a pebble-backed queue of clearing records waiting to be relayed.
// Entries are keyed by trade id so iteration follows emission order. The
// highest trade id ever appended survives acks and restarts.
type Outbox struct {
	db         *pebble.DB
	serializer protocol.Serializer

	mu          sync.Mutex
	lastTradeID uint64
}

// OpenOutbox opens or creates the outbox in dir.
func OpenOutbox(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open outbox %s: %w", dir, err)
	}

	last, err := loadLastTradeID(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open outbox %s: %w", dir, err)
	}

	return &Outbox{
		db:          db,
		serializer:  &protocol.DefaultJSONSerializer{},
		lastTradeID: last,
	}, nil
}

func loadLastTradeID(db *pebble.DB) (uint64, error) {
	val, closer, err := db.Get([]byte(lastTradeKey))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer closer.Close()

	if len(val) != 8 {
		return 0, fmt.Errorf("corrupt %s: %d bytes", lastTradeKey, len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}

// LastTradeID returns the highest trade id ever appended. A restarted engine
// continues numbering after it.
func (o *Outbox) LastTradeID() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastTradeID
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

func keyFor(tradeID uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, tradeID))
}

func tradeIDFromKey(key []byte) (uint64, error) {
	return strconv.ParseUint(strings.TrimPrefix(string(key), keyPrefix), 10, 64)
}

// Append stores rec together with the trade id high-water mark. A pending
// record is never overwritten: a second append of its trade id returns
// ErrDuplicateTrade.
func (o *Outbox) Append(rec *match.ClearingRecord) error {
	payload, err := o.serializer.Marshal(match.ClearingRecordToProtocol(rec))
	if err != nil {
		return fmt.Errorf("encode trade %d: %w", rec.TradeID, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	key := keyFor(rec.TradeID)
	_, closer, err := o.db.Get(key)
	switch {
	case err == nil:
		_ = closer.Close()
		return fmt.Errorf("%w: trade %d", ErrDuplicateTrade, rec.TradeID)
	case !errors.Is(err, pebble.ErrNotFound):
		return err
	}

	batch := o.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(key, payload, nil); err != nil {
		return err
	}
	last := o.lastTradeID
	if rec.TradeID > last {
		last = rec.TradeID
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], last)
		if err := batch.Set([]byte(lastTradeKey), buf[:], nil); err != nil {
			return err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return err
	}
	o.lastTradeID = last
	return nil
}

// Get decodes the stored record for tradeID.
func (o *Outbox) Get(tradeID uint64) (*match.ClearingRecord, error) {
	val, closer, err := o.db.Get(keyFor(tradeID))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var msg protocol.ClearingRecordMessage
	if err := o.serializer.Unmarshal(val, &msg); err != nil {
		return nil, fmt.Errorf("decode trade %d: %w", tradeID, err)
	}
	return match.ClearingRecordFromProtocol(&msg)
}

// Pending walks unacknowledged entries in trade id order. Iteration stops at
// the first error returned by fn, which is passed back to the caller.
func (o *Outbox) Pending(fn func(tradeID uint64, payload []byte) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyUpperBound),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		tradeID, err := tradeIDFromKey(iter.Key())
		if err != nil {
			return fmt.Errorf("outbox key %q: %w", iter.Key(), err)
		}

		// the iterator reuses its value buffer
		payload := append([]byte(nil), iter.Value()...)
		if err := fn(tradeID, payload); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Ack removes a relayed entry.
func (o *Outbox) Ack(tradeID uint64) error {
	return o.db.Delete(keyFor(tradeID), pebble.Sync)
}

// Len counts pending entries.
func (o *Outbox) Len() (int, error) {
	n := 0
	err := o.Pending(func(uint64, []byte) error {
		n++
		return nil
	})
	return n, err
}
