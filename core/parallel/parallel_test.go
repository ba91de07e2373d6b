package parallel

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelizeWorkers_CoversEveryItem(t *testing.T) {
	for _, tt := range []struct{ items, workers int }{{0, 4}, {1, 4}, {7, 3}, {100, 8}, {5, 0}} {
		t.Run(fmt.Sprintf("%d/%d", tt.items, tt.workers), func(t *testing.T) {
			seen := make([]int32, tt.items)
			ParallelizeWorkers(tt.items, tt.workers, func(start, end int) {
				for i := start; i < end; i++ {
					atomic.AddInt32(&seen[i], 1)
				}
			})
			for i, c := range seen {
				assert.Equal(t, int32(1), c, "item %d", i)
			}
		})
	}
}

func TestParallelizeWithThreshold_Sequential(t *testing.T) {
	calls := 0
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
	})
	assert.Equal(t, 1, calls)
}

func TestForEach(t *testing.T) {
	for _, workers := range []int{1, 3, 16} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			out := make([]int, 20)
			errs := ForEach(20, workers, func(i, _ int) error {
				out[i] = i * i
				if i == 13 {
					return fmt.Errorf("job %d", i)
				}
				return nil
			})
			for i := range out {
				assert.Equal(t, i*i, out[i])
			}
			assert.EqualError(t, FirstError(errs), "job 13")
			assert.Nil(t, errs[12])
		})
	}
}
