package match

import "sync"

// ClearingPublisher receives clearing records in match order. Records are
// immutable once emitted and ownership passes to the publisher.
type ClearingPublisher interface {
	PublishClearing(...*ClearingRecord)
}

// MemoryClearingPublisher stores records in memory, useful for testing.
type MemoryClearingPublisher struct {
	mu      sync.RWMutex
	records []*ClearingRecord
}

func NewMemoryClearingPublisher() *MemoryClearingPublisher {
	return &MemoryClearingPublisher{
		records: make([]*ClearingRecord, 0),
	}
}

func (m *MemoryClearingPublisher) PublishClearing(records ...*ClearingRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
}

func (m *MemoryClearingPublisher) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MemoryClearingPublisher) Get(index int) *ClearingRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.records[index]
}

// Records returns a copy of the stored slice.
func (m *MemoryClearingPublisher) Records() []*ClearingRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]*ClearingRecord, len(m.records))
	copy(records, m.records)
	return records
}

type DiscardClearingPublisher struct {
}

func NewDiscardClearingPublisher() *DiscardClearingPublisher {
	return &DiscardClearingPublisher{}
}

func (p *DiscardClearingPublisher) PublishClearing(records ...*ClearingRecord) {

}
