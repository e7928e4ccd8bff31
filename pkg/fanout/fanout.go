// Package fanout runs a fixed body of work over a bounded worker pool.
package fanout

import (
	"context"
	"sync"
	"sync/atomic"
)

// ForEach invokes fn for every index in [0, n) with at most concurrency
// invocations in flight. Dispatch follows index order, completion order is
// unconstrained, and the call returns once every index has been processed or
// the context is cancelled before an index was claimed. fn outcomes are the
// caller's business: a failed item never stops the others.
func ForEach(ctx context.Context, n, concurrency int, fn func(ctx context.Context, index int)) {
	if n <= 0 {
		return
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > n {
		concurrency = n
	}

	var cursor int64 = -1
	var wg sync.WaitGroup

	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				index := int(atomic.AddInt64(&cursor, 1))
				if index >= n {
					return
				}
				select {
				case <-ctx.Done():
					return
				default:
				}
				fn(ctx, index)
			}
		}()
	}

	wg.Wait()
}
