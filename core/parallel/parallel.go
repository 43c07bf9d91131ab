// Package parallel splits row loops into contiguous chunks run on separate goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Range is a half-open row interval [Start, End).
type Range struct {
	Start, End int
}

// Chunks divides items into at most workers contiguous ranges of near-equal size
func Chunks(items, workers int) []Range {
	if items <= 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > items {
		workers = items
	}

	// 切り上げ除算
	size := (items + workers - 1) / workers
	ranges := make([]Range, 0, workers)
	for start := 0; start < items; start += size {
		end := start + size
		if end > items {
			end = items
		}
		ranges = append(ranges, Range{Start: start, End: end})
	}
	return ranges
}

// Parallelize runs fn over chunks of [0, items) on up to GOMAXPROCS goroutines
// and waits for all of them.
//
// A panic in any chunk is re-raised on the calling goroutine after the others
// finish, so errors.SafeExecute around the caller still recovers it.
func Parallelize(items int, fn func(start, end int)) {
	ranges := Chunks(items, runtime.GOMAXPROCS(0))
	if len(ranges) == 0 {
		return
	}
	if len(ranges) == 1 {
		fn(ranges[0].Start, ranges[0].End)
		return
	}

	var (
		wg        sync.WaitGroup
		once      sync.Once
		recovered interface{}
	)
	for _, r := range ranges {
		wg.Add(1)
		go func(r Range) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					once.Do(func() { recovered = p })
				}
			}()
			fn(r.Start, r.End)
		}(r)
	}
	wg.Wait()

	if recovered != nil {
		panic(recovered)
	}
}

// ParallelizeWithThreshold runs fn sequentially when items <= threshold
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		if items > 0 {
			fn(0, items)
		}
		return
	}
	Parallelize(items, fn)
}
