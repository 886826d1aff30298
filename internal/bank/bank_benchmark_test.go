package bank

import (
	"strconv"
	"testing"
)

func BenchmarkPut(b *testing.B) {
	bank := New(Config{})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := bank.Put(PutInput{
			Description: "bench",
			AgentID:     "producer",
			Tags:        []string{"t" + strconv.Itoa(i%8)},
			Content:     i,
		})
		if err != nil {
			b.Fatalf("put failed at i=%d: %v", i, err)
		}
	}
}

func BenchmarkPutTake(b *testing.B) {
	bank := New(Config{})
	f := Filter{Tags: []string{"work"}}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := bank.Put(PutInput{
			Description: "bench",
			AgentID:     "producer",
			Tags:        []string{"work"},
		}); err != nil {
			b.Fatalf("put failed at i=%d: %v", i, err)
		}
		if m := bank.Take(f); m == nil {
			b.Fatalf("take returned nothing at i=%d", i)
		}
	}
}
