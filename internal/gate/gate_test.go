package gate

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunAllBoundsConcurrency(t *testing.T) {
	g := New(3)
	var inFlight, maxInFlight int32
	items := make([]int, 20)
	for i := range items {
		items[i] = i
	}

	RunAll(context.Background(), g, items, func(ctx context.Context, item int) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
	})

	assert.LessOrEqual(t, int(maxInFlight), 3)
}

func TestRunAllVisitsEveryItem(t *testing.T) {
	g := New(4)
	items := []int{1, 2, 3, 4, 5, 6, 7}
	var count int32
	RunAll(context.Background(), g, items, func(ctx context.Context, item int) {
		atomic.AddInt32(&count, 1)
	})
	assert.Equal(t, int32(len(items)), count)
}

func TestRunAllHonorsCancellation(t *testing.T) {
	g := New(2)
	ctx, cancel := context.WithCancel(context.Background())
	items := make([]int, 50)
	var started int32
	RunAll(ctx, g, items, func(ctx context.Context, item int) {
		n := atomic.AddInt32(&started, 1)
		if n == 3 {
			cancel()
		}
		time.Sleep(time.Millisecond)
	})
	assert.Less(t, int(started), 50)
}
