package parallel

import (
	"sync/atomic"
	"testing"
)

func TestChunks(t *testing.T) {
	tests := []struct {
		name    string
		items   int
		workers int
		want    []Range
	}{
		{"empty", 0, 4, nil},
		{"even", 8, 4, []Range{{0, 2}, {2, 4}, {4, 6}, {6, 8}}},
		{"uneven", 10, 4, []Range{{0, 3}, {3, 6}, {6, 9}, {9, 10}}},
		{"more workers than items", 2, 8, []Range{{0, 1}, {1, 2}}},
		{"zero workers", 5, 0, []Range{{0, 5}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Chunks(tt.items, tt.workers)
			if len(got) != len(tt.want) {
				t.Fatalf("Chunks(%d, %d) = %v, want %v", tt.items, tt.workers, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParallelizeCoversEveryItemOnce(t *testing.T) {
	const n = 10007
	counts := make([]int32, n)
	Parallelize(n, func(start, end int) {
		for i := start; i < end; i++ {
			atomic.AddInt32(&counts[i], 1)
		}
	})
	for i, c := range counts {
		if c != 1 {
			t.Fatalf("item %d visited %d times", i, c)
		}
	}
}

func TestParallelizeWithThreshold(t *testing.T) {
	var calls int32
	ParallelizeWithThreshold(100, 1000, func(start, end int) {
		atomic.AddInt32(&calls, 1)
		if start != 0 || end != 100 {
			t.Errorf("sequential range = [%d, %d), want [0, 100)", start, end)
		}
	})
	if calls != 1 {
		t.Errorf("fn called %d times below threshold, want 1", calls)
	}

	calls = 0
	ParallelizeWithThreshold(0, 10, func(start, end int) { atomic.AddInt32(&calls, 1) })
	if calls != 0 {
		t.Errorf("fn called %d times for zero items", calls)
	}
}

func TestParallelizePropagatesPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != "boom" {
			t.Errorf("recovered %v, want boom", r)
		}
	}()
	Parallelize(5000, func(start, end int) {
		if start == 0 {
			panic("boom")
		}
	})
	t.Error("expected panic")
}
