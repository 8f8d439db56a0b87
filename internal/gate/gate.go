// Package gate provides the single bounded-concurrency primitive used
// everywhere this module fans out upstream I/O, replacing the ad-hoc
// semaphores the original source scattered per call site.
package gate

import (
	"context"
	"sync"
)

// Gate bounds concurrent invocations of a worker function to Limit.
type Gate struct {
	Limit int
}

// New returns a Gate bounding concurrency to limit. limit <= 0 is
// treated as 1 so a misconfigured gate still makes progress serially
// rather than deadlocking.
func New(limit int) *Gate {
	if limit <= 0 {
		limit = 1
	}
	return &Gate{Limit: limit}
}

// RunAll drives at most g.Limit concurrent invocations of worker, one
// per item, consuming items in submission order. Individual worker
// errors are swallowed — the worker is expected to log its own
// failures — so a single bad item never aborts the batch. If ctx is
// canceled, in-flight workers observe it via the context passed to
// them and unstarted items are skipped.
func RunAll[T any](ctx context.Context, g *Gate, items []T, worker func(ctx context.Context, item T)) {
	sem := make(chan struct{}, g.Limit)
	var wg sync.WaitGroup

items:
	for _, item := range items {
		if ctx.Err() != nil {
			break items
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break items
		}
		wg.Add(1)
		go func(it T) {
			defer wg.Done()
			defer func() { <-sem }()
			worker(ctx, it)
		}(item)
	}
	wg.Wait()
}
