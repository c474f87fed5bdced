package match

import (
	"fmt"
	"math/rand"
	"runtime"
	"testing"

	"github.com/shopspring/decimal"
)

const (
	benchStart = 10 // actual = benchStart * goprocs
	benchEnd   = 1000
	benchStep  = 330
)

func BenchmarkQueueInsert(b *testing.B) {
	q := NewBuyerQueue()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		price := rand.Int63n(10000) + 1
		q.insertOrder(newTestOrder(uint64(i+1), Buy, price, 1))
	}
}

func BenchmarkQueuePopHead(b *testing.B) {
	q := NewSellerQueue()
	for i := 0; i < b.N; i++ {
		q.insertOrder(newTestOrder(uint64(i+1), Sell, rand.Int63n(10000)+1, 1))
	}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		q.popHeadOrder()
	}
}

func BenchmarkMatcherSubmit(b *testing.B) {
	m := NewMatcher(nil)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		side := Buy
		if i%2 == 1 {
			side = Sell
		}
		_, _ = m.Submit(limitCmd("bench", side, rand.Int63n(20)+90, rand.Int63n(10)+1))
	}
}

func BenchmarkMatcherSubmitDeepBook(b *testing.B) {
	for _, resting := range []int{1000, 50000} {
		b.Run(fmt.Sprintf("resting-%d", resting), func(b *testing.B) {
			m := NewMatcher(nil)
			for i := 0; i < resting; i++ {
				_, _ = m.Submit(limitCmd("maker", Buy, int64(1000+i%500), 1))
			}
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				// take the best bid and put it back so the depth stays constant
				_, _ = m.Submit(limitCmd("taker", Sell, 1000, 1))
				_, _ = m.Submit(limitCmd("maker", Buy, 1499, 1))
			}
		})
	}
}

func BenchmarkMatcherSubmitParallel(b *testing.B) {
	goprocs := runtime.GOMAXPROCS(0)

	for i := benchStart; i < benchEnd; i += benchStep {
		m := NewMatcher(nil)

		b.Run(fmt.Sprintf("goroutines-%d", i*goprocs), func(b *testing.B) {
			b.SetParallelism(i)
			b.RunParallel(func(pb *testing.PB) {
				r := rand.New(rand.NewSource(rand.Int63()))
				for pb.Next() {
					cmd := &PlaceOrderCommand{
						AccountID: "bench",
						Side:      Side(r.Intn(2) + 1),
						Type:      Limit,
						Price:     decimal.NewFromInt(r.Int63n(20) + 90),
						Quantity:  decimal.NewFromInt(1),
					}
					_, _ = m.Submit(cmd)
				}
			})
		})
	}
}
