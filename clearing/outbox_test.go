package clearing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestOutbox(t *testing.T) *Outbox {
	t.Helper()
	outbox, err := OpenOutbox(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = outbox.Close()
	})
	return outbox
}

func TestOutboxAppendGet(t *testing.T) {
	outbox := openTestOutbox(t)

	rec := testRecord(42, "alice", "bob", "100.5", "3")
	rec.ID = "trade-42"
	require.NoError(t, outbox.Append(rec))

	got, err := outbox.Get(42)
	require.NoError(t, err)
	assert.Equal(t, "trade-42", got.ID)
	assert.Equal(t, "alice", got.BuyAccountID)
	assert.Equal(t, "bob", got.SellAccountID)
	assert.True(t, rec.Price.Equal(got.Price))
	assert.True(t, rec.Amount.Equal(got.Amount))

	_, err = outbox.Get(43)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestOutboxPendingOrderAndAck(t *testing.T) {
	outbox := openTestOutbox(t)

	// keys are zero padded so 10 sorts after 9
	for _, id := range []uint64{10, 2, 9} {
		require.NoError(t, outbox.Append(testRecord(id, "a", "b", "1", "1")))
	}

	var seen []uint64
	require.NoError(t, outbox.Pending(func(tradeID uint64, payload []byte) error {
		assert.NotEmpty(t, payload)
		seen = append(seen, tradeID)
		return nil
	}))
	assert.Equal(t, []uint64{2, 9, 10}, seen)

	require.NoError(t, outbox.Ack(9))
	n, err := outbox.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// acking an unknown id is a no-op
	require.NoError(t, outbox.Ack(1000))
}

func TestOutboxSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	outbox, err := OpenOutbox(dir)
	require.NoError(t, err)
	require.NoError(t, outbox.Append(testRecord(1, "a", "b", "1", "1")))
	require.NoError(t, outbox.Close())

	outbox, err = OpenOutbox(dir)
	require.NoError(t, err)
	defer outbox.Close()

	n, err := outbox.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOutboxKeepsPendingAcrossRestart(t *testing.T) {
	dir := t.TempDir()

	outbox, err := OpenOutbox(dir)
	require.NoError(t, err)
	first := testRecord(1, "alice", "bob", "100", "1")
	first.ID = "run-1"
	require.NoError(t, outbox.Append(first))
	require.NoError(t, outbox.Append(testRecord(2, "alice", "bob", "100", "1")))
	require.NoError(t, outbox.Ack(2))
	require.NoError(t, outbox.Close())

	outbox, err = OpenOutbox(dir)
	require.NoError(t, err)
	defer outbox.Close()

	// the high-water mark outlives the acked record
	assert.Equal(t, uint64(2), outbox.LastTradeID())

	second := testRecord(1, "carol", "dave", "50", "2")
	second.ID = "run-2"
	err = outbox.Append(second)
	assert.ErrorIs(t, err, ErrDuplicateTrade)

	got, err := outbox.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, "alice", got.BuyAccountID)

	n, err := outbox.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
