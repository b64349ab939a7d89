package batchqueue

import (
	"sync"
	"testing"

	"gotest.tools/v3/assert"
)

func TestBatchesDrainInArrivalOrder(t *testing.T) {
	q := NewQueue()

	first := q.AddBatch([][]float64{{1, 2}}, []float64{0.0, 0.5})
	second := q.AddExpandBatch([][]float64{{3, 4, 5}}, []float64{1.0, 1.5, 2.0})
	assert.Equal(t, 2, q.AmountOfBatches())
	assert.Equal(t, 5, q.AmountOfSamples())

	cpy := q.CopyBatches()
	batches := cpy.Batches()
	assert.Equal(t, 2, len(batches))
	assert.Equal(t, first, batches[0].BatchID)
	assert.Equal(t, second, batches[1].BatchID)
	assert.Check(t, !batches[0].Expand)
	assert.Check(t, batches[1].Expand)

	// Draining resets the live queue but not the copy.
	assert.Equal(t, 0, q.AmountOfBatches())
	assert.Equal(t, 0, q.AmountOfSamples())
	assert.Equal(t, 2, len(cpy.Batches()))
}

func TestBatchIDsAreUnique(t *testing.T) {
	q := NewQueue()
	seen := map[BatchID]bool{}
	for i := 0; i < 100; i++ {
		id := q.AddBatch([][]float64{{0}}, []float64{float64(i)})
		assert.Check(t, !seen[id])
		seen[id] = true
	}
}

func TestConcurrentPushesAreAllRetained(t *testing.T) {
	q := NewQueue()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				q.AddBatch([][]float64{{1, 2, 3}}, []float64{0, 1, 2})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 500, q.AmountOfBatches())
	assert.Equal(t, 1500, q.AmountOfSamples())
}
