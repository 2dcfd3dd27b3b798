package swcache

import (
	"context"
	"sync"
)

// outcome is a settled result of a single job.
type outcome struct {
	Item string
	Err  error
}

// settleAll runs job for every item concurrently and waits for all of them to settle.
//
// Outcomes are returned in the order of items, a failure of one job does not affect others.
func settleAll(ctx context.Context, items []string, job func(ctx context.Context, item string) error) []outcome {
	res := make([]outcome, len(items))
	wg := sync.WaitGroup{}
	wg.Add(len(items))

	for i, item := range items {
		i, item := i, item

		go func() {
			defer wg.Done()

			res[i] = outcome{Item: item, Err: job(ctx, item)}
		}()
	}

	wg.Wait()

	return res
}
